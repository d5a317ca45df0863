// Copyright (C) 2026 Cascade HR
// SPDX-License-Identifier: AGPL-3.0-or-later

package queue

import (
	"context"
	"testing"
	"time"

	"github.com/cascadehr/cascade/internal/engine/trigger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEnvelope(triggerType string) Envelope {
	return NewEnvelope(trigger.OutputPayload{
		Type:      triggerType,
		TenantID:  "tenant-1",
		SubjectID: "emp-1",
		Data:      map[string]any{"k": "v"},
		Priority:  5,
		Urgency:   trigger.UrgencyMedium,
		CreatedAt: time.Now().UTC(),
	}, "")
}

func TestChannelQueueRoundTrip(t *testing.T) {
	q := NewChannelQueue(4)
	ctx := context.Background()

	in := testEnvelope("a_trigger")
	require.NoError(t, q.Enqueue(ctx, in))

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	out, err := q.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, "a_trigger", out.Type)
	assert.Equal(t, "tenant-1", out.TenantID)
}

func TestChannelQueuePreservesOrder(t *testing.T) {
	q := NewChannelQueue(4)
	ctx := context.Background()

	for _, tt := range []string{"first", "second", "third"} {
		require.NoError(t, q.Enqueue(ctx, testEnvelope(tt)))
	}
	for _, want := range []string{"first", "second", "third"} {
		env, err := q.Dequeue(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, env.Type)
	}
}

func TestChannelQueueFullBuffer(t *testing.T) {
	q := NewChannelQueue(1)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, testEnvelope("a")))
	err := q.Enqueue(ctx, testEnvelope("b"))
	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestChannelQueueDequeueHonorsContext(t *testing.T) {
	q := NewChannelQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestChannelQueueEnqueueAfterClose(t *testing.T) {
	q := NewChannelQueue(1)
	require.NoError(t, q.Close())

	err := q.Enqueue(context.Background(), testEnvelope("a"))
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestNewEnvelopeCarriesPayloadFields(t *testing.T) {
	p := trigger.OutputPayload{
		Type:         "t",
		SourceModule: "learning",
		SourceAction: "done",
		SubjectID:    "emp-2",
		TenantID:     "tenant-2",
		Data:         map[string]any{"x": 1},
		Priority:     8,
		Urgency:      trigger.UrgencyHigh,
		Hop:          2,
		CreatedAt:    time.Now().UTC(),
	}
	env := NewEnvelope(p, "rec-1")

	assert.NotEmpty(t, env.ID)
	assert.Equal(t, "rec-1", env.RecordID)
	assert.Equal(t, p.Type, env.Type)
	assert.Equal(t, p.SourceModule, env.SourceModule)
	assert.Equal(t, p.Priority, env.Priority)
	assert.Equal(t, p.Urgency, env.Urgency)
	assert.Equal(t, p.Hop, env.Hop)
}
