// Copyright (C) 2026 Cascade HR
// SPDX-License-Identifier: AGPL-3.0-or-later

package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrQueueClosed is returned when operating on a closed queue.
var ErrQueueClosed = errors.New("queue closed")

// ErrQueueFull is returned by Enqueue when the in-process buffer is full.
var ErrQueueFull = errors.New("queue buffer full")

// ChannelQueue is the in-process queue backend: a single buffered channel.
// Enqueue never blocks; a full buffer is an error so the engine can count
// the loss and move on.
type ChannelQueue struct {
	ch      chan Envelope
	closeMu sync.Mutex
	closed  bool
}

// NewChannelQueue creates an in-process queue with the given buffer size.
func NewChannelQueue(buffer int) *ChannelQueue {
	return &ChannelQueue{ch: make(chan Envelope, buffer)}
}

// Enqueue submits an envelope without blocking.
func (q *ChannelQueue) Enqueue(ctx context.Context, env Envelope) error {
	q.closeMu.Lock()
	if q.closed {
		q.closeMu.Unlock()
		return ErrQueueClosed
	}
	q.closeMu.Unlock()

	select {
	case q.ch <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Dequeue blocks until an envelope is available or ctx is done.
func (q *ChannelQueue) Dequeue(ctx context.Context) (Envelope, error) {
	select {
	case env := <-q.ch:
		return env, nil
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	}
}

// Len returns the number of buffered envelopes.
func (q *ChannelQueue) Len(ctx context.Context) (int, error) {
	return len(q.ch), nil
}

// Close marks the queue closed. The channel itself is left open so that
// concurrent Enqueue calls never panic; consumers stop via their context.
func (q *ChannelQueue) Close() error {
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	q.closed = true
	return nil
}
