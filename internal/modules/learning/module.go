// Copyright (C) 2026 Cascade HR
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package learning is the learning-experience (LXP) domain module: training
// completions, learning paths, and training assignments.
package learning

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cascadehr/cascade/internal/engine/module"
	"github.com/cascadehr/cascade/internal/engine/trigger"
	"github.com/cascadehr/cascade/internal/logger"

	"github.com/go-viper/mapstructure/v2"
	"github.com/rs/zerolog"
)

// ModuleID is the registry id of the learning module.
const ModuleID = "learning"

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

// Descriptor returns the learning module's registration descriptor.
func Descriptor() module.Descriptor {
	return module.Descriptor{
		ID:      ModuleID,
		Name:    "Learning Experience",
		Version: "1.2.0",
		Status:  module.StatusActive,
		Capabilities: []string{
			"training_tracking",
			"learning_paths",
			"certification_management",
		},
		SupportedTriggers: []string{
			trigger.TypeTrainingCompletion,
			trigger.TypeLearningPathCompleted,
			trigger.TypeTrainingAssignment,
		},
		OutputTriggers: []string{
			trigger.TypePerformanceAssessment,
			trigger.TypeHighPerformanceReward,
			trigger.TypeLeadershipDevelopment,
			trigger.TypeComplianceTracking,
			trigger.TypeCertificationTracking,
			trigger.TypeSkillsAnalysisUpdate,
		},
	}
}

// trainingEvent is the inbound payload shape for training triggers.
type trainingEvent struct {
	EmployeeID       string    `mapstructure:"employee_id"`
	TrainingID       string    `mapstructure:"training_id"`
	CompletionType   string    `mapstructure:"completion_type"`
	PerformanceScore float64   `mapstructure:"performance_score"`
	LeadershipSkills []string  `mapstructure:"leadership_skills"`
	CompletedAt      time.Time `mapstructure:"completed_at"`
}

type pathEvent struct {
	EmployeeID string   `mapstructure:"employee_id"`
	PathID     string   `mapstructure:"path_id"`
	Skills     []string `mapstructure:"skills"`
}

type assignmentEvent struct {
	EmployeeID string `mapstructure:"employee_id"`
	TrainingID string `mapstructure:"training_id"`
	AssignedBy string `mapstructure:"assigned_by"`
	Reason     string `mapstructure:"reason"`
}

// Handler processes the learning module's supported trigger types.
type Handler struct{}

// NewHandler creates the learning domain handler.
func NewHandler() *Handler { return &Handler{} }

// ProcessTrigger implements module.Handler.
func (h *Handler) ProcessTrigger(ctx context.Context, tc trigger.Context) (trigger.HandlerResult, error) {
	switch tc.Type {
	case trigger.TypeTrainingCompletion:
		return h.handleTrainingCompletion(tc)
	case trigger.TypeLearningPathCompleted:
		return h.handleLearningPathCompleted(tc)
	case trigger.TypeTrainingAssignment:
		return h.handleTrainingAssignment(tc)
	default:
		return trigger.HandlerResult{}, fmt.Errorf("learning module cannot process trigger type %q", tc.Type)
	}
}

func (h *Handler) handleTrainingCompletion(tc trigger.Context) (trigger.HandlerResult, error) {
	var ev trainingEvent
	if err := decode(tc.Payload, &ev); err != nil {
		return trigger.HandlerResult{Success: false, Error: fmt.Sprintf("invalid training completion payload: %v", err)}, nil
	}
	if ev.TrainingID == "" {
		return trigger.HandlerResult{Success: false, Error: "training_id is required"}, nil
	}
	if ev.CompletionType == "" {
		ev.CompletionType = "training"
	}
	if ev.CompletedAt.IsZero() {
		ev.CompletedAt = time.Now().UTC()
	}

	getLog().Debug().
		Str("training_id", ev.TrainingID).
		Str("completion_type", ev.CompletionType).
		Float64("score", ev.PerformanceScore).
		Msg("Processed training completion")

	return trigger.HandlerResult{
		Success: true,
		Payload: trigger.TrainingCompletion{
			EmployeeID:       ev.EmployeeID,
			TrainingID:       ev.TrainingID,
			CompletionType:   ev.CompletionType,
			PerformanceScore: ev.PerformanceScore,
			LeadershipSkills: ev.LeadershipSkills,
			CompletedAt:      ev.CompletedAt,
		},
	}, nil
}

func (h *Handler) handleLearningPathCompleted(tc trigger.Context) (trigger.HandlerResult, error) {
	var ev pathEvent
	if err := decode(tc.Payload, &ev); err != nil {
		return trigger.HandlerResult{Success: false, Error: fmt.Sprintf("invalid learning path payload: %v", err)}, nil
	}
	if ev.PathID == "" {
		return trigger.HandlerResult{Success: false, Error: "path_id is required"}, nil
	}

	// A finished path validates the skills it taught.
	return trigger.HandlerResult{
		Success: true,
		Payload: trigger.SkillValidation{
			EmployeeID:      ev.EmployeeID,
			ValidatedSkills: ev.Skills,
			Source:          "learning_path:" + ev.PathID,
			ValidatedAt:     time.Now().UTC(),
		},
	}, nil
}

func (h *Handler) handleTrainingAssignment(tc trigger.Context) (trigger.HandlerResult, error) {
	var ev assignmentEvent
	if err := decode(tc.Payload, &ev); err != nil {
		return trigger.HandlerResult{Success: false, Error: fmt.Sprintf("invalid training assignment payload: %v", err)}, nil
	}
	if ev.TrainingID == "" {
		return trigger.HandlerResult{Success: false, Error: "training_id is required"}, nil
	}

	getLog().Debug().
		Str("training_id", ev.TrainingID).
		Str("assigned_by", ev.AssignedBy).
		Msg("Recorded training assignment")

	// Assignments terminate the cascade: acknowledged, no classification
	// input, lower confidence than a completed activity.
	conf := 0.6
	return trigger.HandlerResult{
		Success: true,
		Payload: trigger.Generic{Data: map[string]any{
			"employee_id": ev.EmployeeID,
			"training_id": ev.TrainingID,
			"assigned_by": ev.AssignedBy,
			"reason":      ev.Reason,
			"status":      "assigned",
		}},
		Confidence: &conf,
	}, nil
}

// decode maps a raw trigger payload onto a typed event, tolerating extra keys
// and RFC3339 time strings.
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
