// Copyright (C) 2026 Cascade HR
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package performance is the performance-management domain module:
// assessments, reviews, goals, and onboarding outcomes.
package performance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cascadehr/cascade/internal/engine/module"
	"github.com/cascadehr/cascade/internal/engine/trigger"
	"github.com/cascadehr/cascade/internal/logger"

	"github.com/go-viper/mapstructure/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ModuleID is the registry id of the performance module.
const ModuleID = "performance"

// RemedialScoreThreshold is the assessment score below which the module
// suggests a remedial training assignment.
const RemedialScoreThreshold = 60.0

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetModuleLogger()
		log = &l
	})
	return log
}

// Descriptor returns the performance module's registration descriptor.
func Descriptor() module.Descriptor {
	return module.Descriptor{
		ID:      ModuleID,
		Name:    "Performance Management",
		Version: "1.0.3",
		Status:  module.StatusActive,
		Capabilities: []string{
			"performance_assessments",
			"review_cycles",
			"goal_tracking",
		},
		SupportedTriggers: []string{
			trigger.TypePerformanceAssessment,
			trigger.TypePerformanceManagement,
			trigger.TypeReviewCompleted,
			trigger.TypeGoalAchieved,
			trigger.TypeOnboardingCompletion,
		},
		OutputTriggers: []string{
			trigger.TypePerformanceManagement,
			trigger.TypeSkillsAnalysisUpdate,
			trigger.TypeTrainingAssignment,
		},
	}
}

// assessmentEvent is the inbound payload shape for assessment triggers.
// It matches what the learning module synthesizes for
// performance_assessment_trigger.
type assessmentEvent struct {
	EmployeeID   string    `mapstructure:"employee_id"`
	AssessmentID string    `mapstructure:"assessment_id"`
	TrainingID   string    `mapstructure:"training_id"`
	Score        float64   `mapstructure:"score"`
	CompletedAt  time.Time `mapstructure:"completed_at"`
}

type reviewEvent struct {
	EmployeeID string   `mapstructure:"employee_id"`
	ReviewID   string   `mapstructure:"review_id"`
	Rating     float64  `mapstructure:"rating"`
	Strengths  []string `mapstructure:"strengths"`
}

// Handler processes the performance module's supported trigger types.
type Handler struct{}

// NewHandler creates the performance domain handler.
func NewHandler() *Handler { return &Handler{} }

// ProcessTrigger implements module.Handler.
func (h *Handler) ProcessTrigger(ctx context.Context, tc trigger.Context) (trigger.HandlerResult, error) {
	switch tc.Type {
	case trigger.TypePerformanceAssessment:
		return h.handleAssessment(tc)
	case trigger.TypePerformanceManagement:
		return h.handleManagement(tc)
	case trigger.TypeReviewCompleted, trigger.TypeGoalAchieved, trigger.TypeOnboardingCompletion:
		return h.handleReviewLike(tc)
	default:
		return trigger.HandlerResult{}, fmt.Errorf("performance module cannot process trigger type %q", tc.Type)
	}
}

// handleAssessment turns a triggered assessment into a completed performance
// assessment. Low scores additionally suggest a remedial training assignment
// back to the learning module.
func (h *Handler) handleAssessment(tc trigger.Context) (trigger.HandlerResult, error) {
	var ev assessmentEvent
	if err := decode(tc.Payload, &ev); err != nil {
		return trigger.HandlerResult{Success: false, Error: fmt.Sprintf("invalid assessment payload: %v", err)}, nil
	}
	if ev.AssessmentID == "" {
		ev.AssessmentID = uuid.NewString()
	}
	if ev.CompletedAt.IsZero() {
		ev.CompletedAt = time.Now().UTC()
	}

	res := trigger.HandlerResult{
		Success: true,
		Payload: trigger.AssessmentCompletion{
			EmployeeID:     ev.EmployeeID,
			AssessmentID:   ev.AssessmentID,
			AssessmentType: "performance",
			Score:          ev.Score,
			CompletedAt:    ev.CompletedAt,
		},
	}

	if ev.Score < RemedialScoreThreshold {
		getLog().Info().
			Str("assessment_id", ev.AssessmentID).
			Float64("score", ev.Score).
			Msg("Assessment below remedial threshold, suggesting training assignment")
		res.NextActions = append(res.NextActions, trigger.NextAction{
			Name:        "assign_remedial_training",
			TriggerType: trigger.TypeTrainingAssignment,
			Params: map[string]any{
				"employee_id": ev.EmployeeID,
				"training_id": ev.TrainingID,
				"reason":      "remedial",
			},
		})
	}
	return res, nil
}

// handleManagement closes the assessment loop: the management step validates
// the skills the assessment demonstrated and the cascade ends at the skills
// profile update.
func (h *Handler) handleManagement(tc trigger.Context) (trigger.HandlerResult, error) {
	var ev assessmentEvent
	if err := decode(tc.Payload, &ev); err != nil {
		return trigger.HandlerResult{Success: false, Error: fmt.Sprintf("invalid management payload: %v", err)}, nil
	}

	return trigger.HandlerResult{
		Success: true,
		Payload: trigger.SkillValidation{
			EmployeeID:      ev.EmployeeID,
			ValidatedSkills: skillsForScore(ev.Score),
			Source:          "performance_assessment:" + ev.AssessmentID,
			ValidatedAt:     time.Now().UTC(),
		},
	}, nil
}

func (h *Handler) handleReviewLike(tc trigger.Context) (trigger.HandlerResult, error) {
	var ev reviewEvent
	if err := decode(tc.Payload, &ev); err != nil {
		return trigger.HandlerResult{Success: false, Error: fmt.Sprintf("invalid review payload: %v", err)}, nil
	}

	return trigger.HandlerResult{
		Success: true,
		Payload: trigger.AssessmentCompletion{
			EmployeeID:     ev.EmployeeID,
			AssessmentID:   ev.ReviewID,
			AssessmentType: "performance",
			Score:          ev.Rating,
			CompletedAt:    time.Now().UTC(),
		},
	}, nil
}

// skillsForScore maps a score band to a coarse skill tag. Fine-grained skill
// extraction belongs to the analytics pipeline, not the trigger path.
func skillsForScore(score float64) []string {
	switch {
	case score >= 90:
		return []string{"expert_execution"}
	case score >= 70:
		return []string{"proficient_execution"}
	default:
		return []string{"developing_execution"}
	}
}

func decode(payload map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     out,
		DecodeHook: mapstructure.StringToTimeHookFunc(time.RFC3339),
	})
	if err != nil {
		return err
	}
	return dec.Decode(payload)
}
