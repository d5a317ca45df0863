// Copyright (C) 2026 Cascade HR
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cascadehr/cascade/internal/engine/ledger"
	"github.com/cascadehr/cascade/internal/engine/module"
	"github.com/cascadehr/cascade/internal/engine/trigger"
	"github.com/cascadehr/cascade/internal/queue"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func learningDescriptor() module.Descriptor {
	return module.Descriptor{
		ID:      "learning",
		Name:    "Learning Experience",
		Version: "1.0.0",
		Status:  module.StatusActive,
		SupportedTriggers: []string{
			trigger.TypeTrainingCompletion,
		},
		OutputTriggers: []string{
			trigger.TypePerformanceAssessment,
			trigger.TypeHighPerformanceReward,
			trigger.TypeLeadershipDevelopment,
		},
	}
}

// permissiveLedger accepts every write.
func permissiveLedger() *MockLedger {
	l := &MockLedger{}
	l.On("InsertExecutionRecord", mock.Anything, mock.Anything).Return(nil)
	l.On("UpdateExecutionStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	l.On("IncrementTriggerStats", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	return l
}

func registryWith(t *testing.T, desc module.Descriptor, h module.Handler) *module.Registry {
	t.Helper()
	r := module.NewRegistry()
	require.NoError(t, r.Register(desc, h))
	require.NoError(t, r.Initialize(desc.ID))
	return r
}

func highPerformerResult() trigger.HandlerResult {
	return trigger.HandlerResult{
		Success: true,
		Payload: trigger.TrainingCompletion{
			EmployeeID:       "emp-1",
			TrainingID:       "tr-100",
			CompletionType:   "training",
			PerformanceScore: 95,
			LeadershipSkills: []string{"negotiation"},
			CompletedAt:      time.Now().UTC(),
		},
	}
}

func TestHandleUnknownModule(t *testing.T) {
	ldg := &MockLedger{}
	eng := New(module.NewRegistry(), ldg)

	result := eng.Handle(context.Background(), "ghost", trigger.TypeTrainingCompletion, nil, FiringOptions{})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "module not found")
	assert.Empty(t, result.NextTriggers)
	assert.Zero(t, result.Confidence)
	// Validation failures leave no trace in the ledger.
	ldg.AssertNotCalled(t, "InsertExecutionRecord", mock.Anything, mock.Anything)
	ldg.AssertNotCalled(t, "IncrementTriggerStats", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleUnsupportedTriggerNeverInvokesHandler(t *testing.T) {
	handler := &MockHandler{}
	ldg := &MockLedger{}
	eng := New(registryWith(t, learningDescriptor(), handler), ldg)

	result := eng.Handle(context.Background(), "learning", "candidate_hired", nil, FiringOptions{})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "unsupported trigger type")
	handler.AssertNotCalled(t, "ProcessTrigger", mock.Anything, mock.Anything)
	ldg.AssertNotCalled(t, "InsertExecutionRecord", mock.Anything, mock.Anything)
}

func TestHandleUninitializedModule(t *testing.T) {
	r := module.NewRegistry()
	require.NoError(t, r.Register(learningDescriptor(), &MockHandler{}))
	eng := New(r, &MockLedger{})

	result := eng.Handle(context.Background(), "learning", trigger.TypeTrainingCompletion, nil, FiringOptions{})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "not initialized")
}

func TestHandleSuccessfulCascade(t *testing.T) {
	handler := &MockHandler{}
	handler.On("ProcessTrigger", mock.Anything, mock.Anything).Return(highPerformerResult(), nil)
	ldg := permissiveLedger()
	q := queue.NewChannelQueue(16)

	eng := New(registryWith(t, learningDescriptor(), handler), ldg, WithQueue(q))

	payload := map[string]any{"training_id": "tr-100", "performance_score": 95}
	result := eng.Handle(context.Background(), "learning", trigger.TypeTrainingCompletion, payload, FiringOptions{
		TenantID:  "tenant-1",
		SubjectID: "emp-1",
	})

	require.True(t, result.Success, "unexpected failure: %s", result.Error)
	assert.Equal(t, "learning", result.Module)
	assert.Equal(t, trigger.TypeTrainingCompletion, result.TriggerType)
	assert.Equal(t, "training_completion_processed", result.Action)
	assert.Equal(t, []string{
		trigger.TypePerformanceAssessment,
		trigger.TypeHighPerformanceReward,
		trigger.TypeLeadershipDevelopment,
	}, result.NextTriggers)
	assert.InDelta(t, 0.8, result.Confidence, 1e-9)
	assert.Greater(t, result.ProcessingTime, time.Duration(0))

	// One envelope per synthesized trigger, each linked to a pending record.
	n, _ := q.Len(context.Background())
	require.Equal(t, 3, n)
	for i := 0; i < 3; i++ {
		env, err := q.Dequeue(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "learning", env.SourceModule)
		assert.Equal(t, "tenant-1", env.TenantID)
		assert.Equal(t, 1, env.Hop)
		assert.NotEmpty(t, env.RecordID)
	}

	// Terminal record for the firing itself plus three pending records.
	ldg.AssertNumberOfCalls(t, "InsertExecutionRecord", 4)
	ldg.AssertCalled(t, "IncrementTriggerStats", mock.Anything, "learning", trigger.TypeTrainingCompletion, "training_completion_processed", 7, true)
}

func TestHandleDerivesUrgencyAndPriorityFromTables(t *testing.T) {
	var seen trigger.Context
	handler := module.HandlerFunc(func(ctx context.Context, tc trigger.Context) (trigger.HandlerResult, error) {
		seen = tc
		return trigger.HandlerResult{Success: true}, nil
	})
	eng := New(registryWith(t, learningDescriptor(), handler), permissiveLedger())

	eng.Handle(context.Background(), "learning", trigger.TypeTrainingCompletion, nil, FiringOptions{})
	assert.Equal(t, trigger.UrgencyHigh, seen.Urgency)
	assert.Equal(t, 7, seen.Priority)
	assert.NotEmpty(t, seen.FiringID)

	eng.Handle(context.Background(), "learning", trigger.TypeTrainingCompletion, nil, FiringOptions{
		Urgency:  trigger.UrgencyLow,
		Priority: 2,
	})
	assert.Equal(t, trigger.UrgencyLow, seen.Urgency)
	assert.Equal(t, 2, seen.Priority)
}

func TestHandleFoldsHandlerError(t *testing.T) {
	handler := &MockHandler{}
	handler.On("ProcessTrigger", mock.Anything, mock.Anything).
		Return(trigger.HandlerResult{}, errors.New("db exploded"))
	ldg := permissiveLedger()
	eng := New(registryWith(t, learningDescriptor(), handler), ldg)

	result := eng.Handle(context.Background(), "learning", trigger.TypeTrainingCompletion, nil, FiringOptions{})

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "handler failure")
	assert.Contains(t, result.Error, "db exploded")
	assert.Zero(t, result.Confidence)
	assert.Empty(t, result.NextTriggers)

	// Failed firings are still ledgered.
	ldg.AssertNumberOfCalls(t, "InsertExecutionRecord", 1)
	ldg.AssertCalled(t, "IncrementTriggerStats", mock.Anything, "learning", trigger.TypeTrainingCompletion, mock.Anything, mock.Anything, false)
}

func TestHandleFoldsHandlerReportedFailure(t *testing.T) {
	handler := &MockHandler{}
	handler.On("ProcessTrigger", mock.Anything, mock.Anything).
		Return(trigger.HandlerResult{Success: false, Error: "training_id is required"}, nil)
	eng := New(registryWith(t, learningDescriptor(), handler), permissiveLedger())

	result := eng.Handle(context.Background(), "learning", trigger.TypeTrainingCompletion, nil, FiringOptions{})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "training_id is required")
}

func TestHandleHandlerTimeout(t *testing.T) {
	handler := module.HandlerFunc(func(ctx context.Context, tc trigger.Context) (trigger.HandlerResult, error) {
		select {
		case <-ctx.Done():
			return trigger.HandlerResult{}, ctx.Err()
		case <-time.After(5 * time.Second):
			return trigger.HandlerResult{Success: true}, nil
		}
	})
	eng := New(registryWith(t, learningDescriptor(), handler), permissiveLedger(),
		WithHandlerTimeout(20*time.Millisecond))

	result := eng.Handle(context.Background(), "learning", trigger.TypeTrainingCompletion, nil, FiringOptions{})
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "context deadline exceeded")
}

func TestHandleMaxHopsSuppressesDownstreamTriggers(t *testing.T) {
	handler := &MockHandler{}
	handler.On("ProcessTrigger", mock.Anything, mock.Anything).Return(highPerformerResult(), nil)
	q := queue.NewChannelQueue(16)
	eng := New(registryWith(t, learningDescriptor(), handler), permissiveLedger(),
		WithQueue(q), WithMaxHops(3))

	result := eng.Handle(context.Background(), "learning", trigger.TypeTrainingCompletion, nil, FiringOptions{Hop: 3})

	assert.True(t, result.Success, "hop cap must not fail the firing")
	assert.Empty(t, result.NextTriggers)
	n, _ := q.Len(context.Background())
	assert.Zero(t, n)
}

func TestHandleMaxHopsDisabled(t *testing.T) {
	handler := &MockHandler{}
	handler.On("ProcessTrigger", mock.Anything, mock.Anything).Return(highPerformerResult(), nil)
	eng := New(registryWith(t, learningDescriptor(), handler), permissiveLedger(), WithMaxHops(0))

	result := eng.Handle(context.Background(), "learning", trigger.TypeTrainingCompletion, nil, FiringOptions{Hop: 100})
	assert.Len(t, result.NextTriggers, 3)
}

func TestHandleUndeclaredOutputStillEmitted(t *testing.T) {
	desc := learningDescriptor()
	// The module forgot to declare its reward/leadership outputs.
	desc.OutputTriggers = []string{trigger.TypePerformanceAssessment}
	handler := &MockHandler{}
	handler.On("ProcessTrigger", mock.Anything, mock.Anything).Return(highPerformerResult(), nil)
	q := queue.NewChannelQueue(16)
	eng := New(registryWith(t, desc, handler), permissiveLedger(), WithQueue(q))

	result := eng.Handle(context.Background(), "learning", trigger.TypeTrainingCompletion, nil, FiringOptions{})

	assert.Len(t, result.NextTriggers, 3)
	n, _ := q.Len(context.Background())
	assert.Equal(t, 3, n, "undeclared outputs are warned about, not dropped")
}

func TestHandleLedgerFailuresDoNotAffectResult(t *testing.T) {
	handler := &MockHandler{}
	handler.On("ProcessTrigger", mock.Anything, mock.Anything).Return(highPerformerResult(), nil)
	ldg := &MockLedger{}
	ldg.On("InsertExecutionRecord", mock.Anything, mock.Anything).Return(errors.New("disk full"))
	ldg.On("IncrementTriggerStats", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("disk full"))
	eng := New(registryWith(t, learningDescriptor(), handler), ldg)

	result := eng.Handle(context.Background(), "learning", trigger.TypeTrainingCompletion, nil, FiringOptions{})
	assert.True(t, result.Success, "ledger errors must never surface to the caller")
}

func TestHandleExplicitConfidence(t *testing.T) {
	conf := 0.33
	handler := &MockHandler{}
	handler.On("ProcessTrigger", mock.Anything, mock.Anything).
		Return(trigger.HandlerResult{Success: true, Confidence: &conf}, nil)
	eng := New(registryWith(t, learningDescriptor(), handler), permissiveLedger())

	result := eng.Handle(context.Background(), "learning", trigger.TypeTrainingCompletion, nil, FiringOptions{})
	assert.InDelta(t, 0.33, result.Confidence, 1e-9)
}

func TestHandleWithRecordIDUpdatesExistingRecord(t *testing.T) {
	handler := &MockHandler{}
	handler.On("ProcessTrigger", mock.Anything, mock.Anything).
		Return(trigger.HandlerResult{Success: true}, nil)
	ldg := &MockLedger{}
	ldg.On("UpdateExecutionStatus", mock.Anything, "rec-42", ledger.StatusRunning, "", int64(0)).Return(nil)
	ldg.On("UpdateExecutionStatus", mock.Anything, "rec-42", ledger.StatusCompleted, "", mock.Anything).Return(nil)
	ldg.On("IncrementTriggerStats", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	eng := New(registryWith(t, learningDescriptor(), handler), ldg)

	result := eng.Handle(context.Background(), "learning", trigger.TypeTrainingCompletion, nil, FiringOptions{RecordID: "rec-42"})

	assert.True(t, result.Success)
	ldg.AssertExpectations(t)
	ldg.AssertNotCalled(t, "InsertExecutionRecord", mock.Anything, mock.Anything)
}

// A queued trigger can reach a module that stopped supporting it (or left the
// registry) after routing. The validation failure must still move the pending
// record to failed instead of stranding it.
func TestHandleValidationFailureMarksPendingRecordFailed(t *testing.T) {
	ldg := &MockLedger{}
	ldg.On("UpdateExecutionStatus", mock.Anything, "rec-55", ledger.StatusFailed, mock.Anything, int64(0)).Return(nil)
	ldg.On("UpdateExecutionStatus", mock.Anything, "rec-56", ledger.StatusFailed, mock.Anything, int64(0)).Return(nil)
	eng := New(registryWith(t, learningDescriptor(), &MockHandler{}), ldg)

	result := eng.Handle(context.Background(), "learning", "candidate_hired", nil, FiringOptions{RecordID: "rec-55"})
	assert.False(t, result.Success)

	result = eng.Handle(context.Background(), "ghost", trigger.TypeTrainingCompletion, nil, FiringOptions{RecordID: "rec-56"})
	assert.False(t, result.Success)

	ldg.AssertExpectations(t)
	ldg.AssertNotCalled(t, "InsertExecutionRecord", mock.Anything, mock.Anything)
	ldg.AssertNotCalled(t, "IncrementTriggerStats", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleEnqueueFailureIsBestEffort(t *testing.T) {
	handler := &MockHandler{}
	handler.On("ProcessTrigger", mock.Anything, mock.Anything).Return(highPerformerResult(), nil)
	q := &MockQueue{}
	q.On("Enqueue", mock.Anything, mock.Anything).Return(queue.ErrQueueFull)
	q.On("Len", mock.Anything).Return(0, nil)
	eng := New(registryWith(t, learningDescriptor(), handler), permissiveLedger(), WithQueue(q))

	result := eng.Handle(context.Background(), "learning", trigger.TypeTrainingCompletion, nil, FiringOptions{})

	assert.True(t, result.Success)
	assert.Len(t, result.NextTriggers, 3, "result still reports what was synthesized")
}
