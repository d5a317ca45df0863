// Copyright (C) 2026 Cascade HR
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"

	"github.com/cascadehr/cascade/internal/engine/ledger"
	"github.com/cascadehr/cascade/internal/engine/trigger"
	"github.com/cascadehr/cascade/internal/queue"

	"github.com/stretchr/testify/mock"
)

// MockLedger is a shared mock implementation of the Ledger interface.
// Use this in engine tests that assert on persistence interactions.
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) InsertExecutionRecord(ctx context.Context, rec *ledger.ExecutionRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockLedger) UpdateExecutionStatus(ctx context.Context, recordID string, status ledger.ExecutionStatus, errMsg string, execMS int64) error {
	args := m.Called(ctx, recordID, status, errMsg, execMS)
	return args.Error(0)
}

func (m *MockLedger) IncrementTriggerStats(ctx context.Context, moduleID, eventType, action string, priority int, success bool) error {
	args := m.Called(ctx, moduleID, eventType, action, priority, success)
	return args.Error(0)
}

// MockHandler is a mock module handler.
type MockHandler struct {
	mock.Mock
}

func (m *MockHandler) ProcessTrigger(ctx context.Context, tc trigger.Context) (trigger.HandlerResult, error) {
	args := m.Called(ctx, tc)
	return args.Get(0).(trigger.HandlerResult), args.Error(1)
}

// MockQueue is a mock trigger queue.
type MockQueue struct {
	mock.Mock
}

func (m *MockQueue) Enqueue(ctx context.Context, env queue.Envelope) error {
	args := m.Called(ctx, env)
	return args.Error(0)
}

func (m *MockQueue) Dequeue(ctx context.Context) (queue.Envelope, error) {
	args := m.Called(ctx)
	return args.Get(0).(queue.Envelope), args.Error(1)
}

func (m *MockQueue) Len(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockQueue) Close() error {
	args := m.Called()
	return args.Error(0)
}
