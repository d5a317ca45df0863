// Copyright (C) 2026 Cascade HR
// SPDX-License-Identifier: AGPL-3.0-or-later

package trigger

import (
	"fmt"
	"sync"
	"time"

	"github.com/cascadehr/cascade/internal/logger"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetTriggerLogger()
		log = &l
	})
	return log
}

// NextTriggers derives the ordered, deduplicated list of downstream trigger
// types for a successful handler result: classification and threshold rules
// first, then explicit pass-through from the handler's next actions and
// trigger list. Deduplication keeps the first occurrence, so the output is
// stable across retries of the same firing.
func NextTriggers(ctx Context, res HandlerResult) []string {
	types := Classify(ctx, res)

	for _, na := range res.NextActions {
		if na.TriggerType != "" {
			types = append(types, na.TriggerType)
		}
	}
	types = append(types, res.Triggers...)

	return lo.Uniq(types)
}

// BuildPayloads constructs one OutputPayload per downstream trigger type.
// A construction failure for one type is logged and skipped; the remaining
// types still produce payloads.
func BuildPayloads(sourceModule, sourceAction string, ctx Context, res HandlerResult, types []string) []OutputPayload {
	payloads := make([]OutputPayload, 0, len(types))
	for _, t := range types {
		data, err := buildData(t, ctx, res)
		if err != nil {
			getLog().Warn().
				Err(err).
				Str("trigger_type", t).
				Str("source_module", sourceModule).
				Str("firing_id", ctx.FiringID).
				Msg("Skipping downstream trigger: payload construction failed")
			continue
		}
		payloads = append(payloads, OutputPayload{
			Type:         t,
			SourceModule: sourceModule,
			SourceAction: sourceAction,
			SubjectID:    subjectOf(ctx, res),
			TenantID:     ctx.TenantID,
			Data:         data,
			Priority:     PriorityOf(t),
			Urgency:      UrgencyOf(t),
			Hop:          ctx.Hop + 1,
			CreatedAt:    time.Now().UTC(),
		})
	}
	return payloads
}

// buildData maps a selected trigger type to its domain-specific sub-object.
// Unmapped types get a generic payload carrying the raw result, so a selected
// type is never silently dropped for lack of a dedicated shape.
func buildData(triggerType string, ctx Context, res HandlerResult) (map[string]any, error) {
	switch triggerType {
	case TypePerformanceAssessment:
		tc, ok := res.Payload.(TrainingCompletion)
		if !ok {
			return nil, fmt.Errorf("%s requires a training completion payload, got %s", triggerType, kindOf(res.Payload))
		}
		return map[string]any{
			"employee_id":  employeeOf(tc.EmployeeID, ctx),
			"training_id":  tc.TrainingID,
			"score":        tc.PerformanceScore,
			"completed_at": tc.CompletedAt,
		}, nil

	case TypePerformanceManagement:
		ac, ok := res.Payload.(AssessmentCompletion)
		if !ok {
			return nil, fmt.Errorf("%s requires an assessment completion payload, got %s", triggerType, kindOf(res.Payload))
		}
		return map[string]any{
			"employee_id":     employeeOf(ac.EmployeeID, ctx),
			"assessment_id":   ac.AssessmentID,
			"assessment_type": ac.AssessmentType,
			"score":           ac.Score,
		}, nil

	case TypeSkillsAnalysisUpdate:
		switch p := res.Payload.(type) {
		case SkillValidation:
			return map[string]any{
				"employee_id":      employeeOf(p.EmployeeID, ctx),
				"validated_skills": p.ValidatedSkills,
				"source":           p.Source,
			}, nil
		case TrainingCompletion:
			return map[string]any{
				"employee_id":      employeeOf(p.EmployeeID, ctx),
				"validated_skills": p.LeadershipSkills,
				"source":           ctx.Type,
			}, nil
		}
		return nil, fmt.Errorf("%s requires skill or training data, got %s", triggerType, kindOf(res.Payload))

	case TypeCultureAnalysisUpdate:
		ac, ok := res.Payload.(AssessmentCompletion)
		if !ok || ac.AssessmentType != "culture" {
			return nil, fmt.Errorf("%s requires a culture assessment payload, got %s", triggerType, kindOf(res.Payload))
		}
		return map[string]any{
			"employee_id":   employeeOf(ac.EmployeeID, ctx),
			"assessment_id": ac.AssessmentID,
			"score":         ac.Score,
			"completed_at":  ac.CompletedAt,
		}, nil

	case TypeComplianceTracking:
		switch p := res.Payload.(type) {
		case ComplianceCompletion:
			return map[string]any{
				"employee_id":     employeeOf(p.EmployeeID, ctx),
				"compliance_type": p.ComplianceType,
				"completed_at":    p.CompletedAt,
				"expires_at":      p.ExpiresAt,
			}, nil
		case TrainingCompletion:
			if p.CompletionType != "compliance" {
				return nil, fmt.Errorf("%s requires a compliance completion, got completion type %q", triggerType, p.CompletionType)
			}
			return map[string]any{
				"employee_id":     employeeOf(p.EmployeeID, ctx),
				"compliance_type": p.TrainingID,
				"completed_at":    p.CompletedAt,
			}, nil
		}
		return nil, fmt.Errorf("%s requires compliance data, got %s", triggerType, kindOf(res.Payload))

	case TypeCertificationTracking:
		switch p := res.Payload.(type) {
		case CertificationCompletion:
			return map[string]any{
				"employee_id":        employeeOf(p.EmployeeID, ctx),
				"certification_name": p.CertificationName,
				"issued_by":          p.IssuedBy,
				"issued_at":          p.IssuedAt,
			}, nil
		case TrainingCompletion:
			if p.CompletionType != "certification" {
				return nil, fmt.Errorf("%s requires a certification completion, got completion type %q", triggerType, p.CompletionType)
			}
			return map[string]any{
				"employee_id":        employeeOf(p.EmployeeID, ctx),
				"certification_name": p.TrainingID,
				"issued_at":          p.CompletedAt,
			}, nil
		}
		return nil, fmt.Errorf("%s requires certification data, got %s", triggerType, kindOf(res.Payload))

	case TypeHighPerformanceReward:
		score, ok := performanceScore(res)
		if !ok {
			return nil, fmt.Errorf("%s requires a scored payload, got %s", triggerType, kindOf(res.Payload))
		}
		return map[string]any{
			"employee_id":     subjectOf(ctx, res),
			"score":           score,
			"reward_category": "performance_excellence",
		}, nil

	case TypeLeadershipDevelopment:
		tc, ok := res.Payload.(TrainingCompletion)
		if !ok || len(tc.LeadershipSkills) == 0 {
			return nil, fmt.Errorf("%s requires leadership skills, got %s", triggerType, kindOf(res.Payload))
		}
		return map[string]any{
			"employee_id":       employeeOf(tc.EmployeeID, ctx),
			"leadership_skills": tc.LeadershipSkills,
		}, nil

	default:
		return map[string]any{
			"generic_data": genericData(res),
			"source_type":  ctx.Type,
		}, nil
	}
}

func kindOf(p ResultPayload) PayloadKind {
	if p == nil {
		return "none"
	}
	return p.Kind()
}

// employeeOf prefers the payload's employee id, falling back to the firing
// subject when the handler omitted it.
func employeeOf(payloadID string, ctx Context) string {
	if payloadID != "" {
		return payloadID
	}
	return ctx.SubjectID
}

// subjectOf resolves the downstream subject id from payload variants that
// carry an employee id, falling back to the firing subject.
func subjectOf(ctx Context, res HandlerResult) string {
	switch p := res.Payload.(type) {
	case TrainingCompletion:
		return employeeOf(p.EmployeeID, ctx)
	case AssessmentCompletion:
		return employeeOf(p.EmployeeID, ctx)
	case SkillValidation:
		return employeeOf(p.EmployeeID, ctx)
	case ComplianceCompletion:
		return employeeOf(p.EmployeeID, ctx)
	case CertificationCompletion:
		return employeeOf(p.EmployeeID, ctx)
	}
	return ctx.SubjectID
}

func genericData(res HandlerResult) any {
	if g, ok := res.Payload.(Generic); ok {
		return g.Data
	}
	return res.Payload
}
