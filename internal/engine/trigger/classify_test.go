// Copyright (C) 2026 Cascade HR
// SPDX-License-Identifier: AGPL-3.0-or-later

package trigger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyTrainingCompletion(t *testing.T) {
	ctx := Context{Type: TypeTrainingCompletion, SubjectID: "emp-1"}
	res := HandlerResult{
		Success: true,
		Payload: TrainingCompletion{
			EmployeeID:       "emp-1",
			TrainingID:       "tr-100",
			CompletionType:   "training",
			PerformanceScore: 75,
			CompletedAt:      time.Now(),
		},
	}

	got := Classify(ctx, res)
	assert.Equal(t, []string{TypePerformanceAssessment}, got)
}

// A high-scoring training completion with leadership skills trips the
// classification rule and both threshold rules, in rule order.
func TestClassifyHighPerformerWithLeadershipSkills(t *testing.T) {
	ctx := Context{Type: TypeTrainingCompletion, SubjectID: "emp-1"}
	res := HandlerResult{
		Success: true,
		Payload: TrainingCompletion{
			EmployeeID:       "emp-1",
			TrainingID:       "tr-100",
			CompletionType:   "training",
			PerformanceScore: 95,
			LeadershipSkills: []string{"negotiation"},
			CompletedAt:      time.Now(),
		},
	}

	got := Classify(ctx, res)
	assert.Equal(t, []string{
		TypePerformanceAssessment,
		TypeHighPerformanceReward,
		TypeLeadershipDevelopment,
	}, got)
}

func TestClassifyScoreBoundary(t *testing.T) {
	// Exactly 90 does not qualify as high performance; the threshold is
	// strictly greater.
	ctx := Context{Type: TypeTrainingCompletion}
	res := HandlerResult{
		Success: true,
		Payload: TrainingCompletion{CompletionType: "training", PerformanceScore: 90},
	}
	assert.NotContains(t, Classify(ctx, res), TypeHighPerformanceReward)

	res.Payload = TrainingCompletion{CompletionType: "training", PerformanceScore: 90.01}
	assert.Contains(t, Classify(ctx, res), TypeHighPerformanceReward)
}

func TestClassifyPayloadVariants(t *testing.T) {
	tests := []struct {
		name    string
		ctx     Context
		payload ResultPayload
		want    []string
	}{
		{
			name:    "performance assessment",
			ctx:     Context{Type: "external_event"},
			payload: AssessmentCompletion{AssessmentType: "performance", Score: 70},
			want:    []string{TypePerformanceManagement},
		},
		{
			name:    "culture assessment",
			ctx:     Context{Type: "external_event"},
			payload: AssessmentCompletion{AssessmentType: "culture", Score: 80},
			want:    []string{TypeCultureAnalysisUpdate},
		},
		{
			name:    "skill validation",
			ctx:     Context{Type: "external_event"},
			payload: SkillValidation{ValidatedSkills: []string{"go"}},
			want:    []string{TypeSkillsAnalysisUpdate},
		},
		{
			name:    "compliance completion",
			ctx:     Context{Type: "external_event"},
			payload: ComplianceCompletion{ComplianceType: "gdpr"},
			want:    []string{TypeComplianceTracking},
		},
		{
			name:    "certification completion",
			ctx:     Context{Type: "external_event"},
			payload: CertificationCompletion{CertificationName: "cissp"},
			want:    []string{TypeCertificationTracking},
		},
		{
			name:    "compliance training",
			ctx:     Context{Type: "external_event"},
			payload: TrainingCompletion{CompletionType: "compliance", TrainingID: "gdpr-101"},
			want:    []string{TypeComplianceTracking},
		},
		{
			name:    "certification training",
			ctx:     Context{Type: "external_event"},
			payload: TrainingCompletion{CompletionType: "certification", TrainingID: "aws-ct"},
			want:    []string{TypeCertificationTracking},
		},
		{
			name:    "no payload no rules",
			ctx:     Context{Type: "external_event"},
			payload: nil,
			want:    nil,
		},
		{
			name:    "generic payload no rules",
			ctx:     Context{Type: "external_event"},
			payload: Generic{Data: map[string]any{"k": "v"}},
			want:    nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.ctx, HandlerResult{Success: true, Payload: tt.payload})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyMatchesOnTriggerTypeSubstring(t *testing.T) {
	// The trigger type alone can select a rule even without a typed payload.
	got := Classify(Context{Type: "partner_training_completion"}, HandlerResult{Success: true})
	assert.Equal(t, []string{TypePerformanceAssessment}, got)

	got = Classify(Context{Type: TypeCultureAssessmentDone}, HandlerResult{Success: true})
	assert.Equal(t, []string{TypeCultureAnalysisUpdate}, got)
}
