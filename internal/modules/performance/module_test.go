// Copyright (C) 2026 Cascade HR
// SPDX-License-Identifier: AGPL-3.0-or-later

package performance

import (
	"context"
	"testing"

	"github.com/cascadehr/cascade/internal/engine/trigger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptorIsValid(t *testing.T) {
	d := Descriptor()
	require.NoError(t, d.Validate())
	assert.Equal(t, ModuleID, d.ID)
	assert.True(t, d.Supports(trigger.TypePerformanceAssessment))
	assert.True(t, d.Emits(trigger.TypeTrainingAssignment))
}

func TestProcessAssessment(t *testing.T) {
	h := NewHandler()

	res, err := h.ProcessTrigger(context.Background(), trigger.Context{
		Type:      trigger.TypePerformanceAssessment,
		SubjectID: "emp-1",
		Payload: map[string]any{
			"employee_id": "emp-1",
			"training_id": "tr-100",
			"score":       82.0,
		},
	})
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)

	ac, ok := res.Payload.(trigger.AssessmentCompletion)
	require.True(t, ok, "expected an assessment completion payload")
	assert.Equal(t, "emp-1", ac.EmployeeID)
	assert.Equal(t, "performance", ac.AssessmentType)
	assert.Equal(t, 82.0, ac.Score)
	assert.NotEmpty(t, ac.AssessmentID, "assessment id is generated when absent")
	assert.Empty(t, res.NextActions, "no remedial action above the threshold")
}

func TestProcessAssessmentLowScoreSuggestsRemedialTraining(t *testing.T) {
	h := NewHandler()

	res, err := h.ProcessTrigger(context.Background(), trigger.Context{
		Type: trigger.TypePerformanceAssessment,
		Payload: map[string]any{
			"employee_id": "emp-1",
			"training_id": "tr-100",
			"score":       45.0,
		},
	})
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)

	require.Len(t, res.NextActions, 1)
	na := res.NextActions[0]
	assert.Equal(t, "assign_remedial_training", na.Name)
	assert.Equal(t, trigger.TypeTrainingAssignment, na.TriggerType)
	assert.Equal(t, "remedial", na.Params["reason"])

	// The suggested assignment flows into the synthesized trigger list.
	next := trigger.NextTriggers(trigger.Context{Type: trigger.TypePerformanceAssessment}, res)
	assert.Contains(t, next, trigger.TypeTrainingAssignment)
}

func TestProcessManagementValidatesSkills(t *testing.T) {
	h := NewHandler()

	res, err := h.ProcessTrigger(context.Background(), trigger.Context{
		Type: trigger.TypePerformanceManagement,
		Payload: map[string]any{
			"employee_id":   "emp-1",
			"assessment_id": "as-5",
			"score":         93.0,
		},
	})
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)

	sv, ok := res.Payload.(trigger.SkillValidation)
	require.True(t, ok)
	assert.Equal(t, []string{"expert_execution"}, sv.ValidatedSkills)
	assert.Equal(t, "performance_assessment:as-5", sv.Source)
}

func TestProcessReviewCompleted(t *testing.T) {
	h := NewHandler()

	res, err := h.ProcessTrigger(context.Background(), trigger.Context{
		Type: trigger.TypeReviewCompleted,
		Payload: map[string]any{
			"employee_id": "emp-1",
			"review_id":   "rev-3",
			"rating":      88.0,
		},
	})
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)

	ac, ok := res.Payload.(trigger.AssessmentCompletion)
	require.True(t, ok)
	assert.Equal(t, "rev-3", ac.AssessmentID)
	assert.Equal(t, 88.0, ac.Score)
}

func TestSkillsForScoreBands(t *testing.T) {
	assert.Equal(t, []string{"expert_execution"}, skillsForScore(90))
	assert.Equal(t, []string{"proficient_execution"}, skillsForScore(70))
	assert.Equal(t, []string{"proficient_execution"}, skillsForScore(89.9))
	assert.Equal(t, []string{"developing_execution"}, skillsForScore(0))
}

func TestProcessUnsupportedType(t *testing.T) {
	h := NewHandler()
	_, err := h.ProcessTrigger(context.Background(), trigger.Context{Type: "culture_assessment_complete"})
	assert.Error(t, err)
}
