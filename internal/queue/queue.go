// Copyright (C) 2026 Cascade HR
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package queue carries synthesized downstream triggers from one firing to
// the dispatcher that re-submits them to the engine. Delivery is best-effort:
// a trigger is a row insert plus a queue push, not a guaranteed message.
package queue

import (
	"context"
	"time"

	"github.com/cascadehr/cascade/internal/engine/trigger"
	"github.com/google/uuid"
)

// Envelope is the wire form of one queued downstream trigger.
type Envelope struct {
	ID           string          `json:"id"`
	RecordID     string          `json:"record_id,omitempty"`
	Type         string          `json:"trigger_type"`
	SourceModule string          `json:"source_module"`
	SourceAction string          `json:"source_action"`
	TenantID     string          `json:"tenant_id"`
	SubjectID    string          `json:"subject_id"`
	Data         map[string]any  `json:"data"`
	Priority     int             `json:"priority"`
	Urgency      trigger.Urgency `json:"urgency"`
	Hop          int             `json:"hop"`
	CreatedAt    time.Time       `json:"created_at"`
}

// NewEnvelope wraps an output payload for transport. RecordID links the
// envelope to its pending execution record, when one was created.
func NewEnvelope(p trigger.OutputPayload, recordID string) Envelope {
	return Envelope{
		ID:           uuid.NewString(),
		RecordID:     recordID,
		Type:         p.Type,
		SourceModule: p.SourceModule,
		SourceAction: p.SourceAction,
		TenantID:     p.TenantID,
		SubjectID:    p.SubjectID,
		Data:         p.Data,
		Priority:     p.Priority,
		Urgency:      p.Urgency,
		Hop:          p.Hop,
		CreatedAt:    p.CreatedAt,
	}
}

// Queue is the transport between the engine and the dispatcher.
type Queue interface {
	// Enqueue submits an envelope. It returns an error when the transport
	// rejects the envelope (buffer full, backend down); callers treat that
	// as best-effort loss, not as a firing failure.
	Enqueue(ctx context.Context, env Envelope) error

	// Dequeue blocks until an envelope is available or ctx is done.
	Dequeue(ctx context.Context) (Envelope, error)

	// Len returns the number of envelopes currently waiting.
	Len(ctx context.Context) (int, error)

	Close() error
}
