// Copyright (C) 2026 Cascade HR
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"errors"
	"sync"

	"github.com/cascadehr/cascade/internal/engine/ledger"
	"github.com/cascadehr/cascade/internal/queue"
)

// Dispatcher drains the downstream trigger queue and re-submits each envelope
// to the engine, routing by which active module supports the trigger type.
// One dispatcher per process is enough; worker count controls concurrency.
type Dispatcher struct {
	engine  *Engine
	queue   queue.Queue
	workers int

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewDispatcher creates a dispatcher with the given worker count.
// Values below 1 are treated as 1.
func NewDispatcher(e *Engine, q queue.Queue, workers int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{engine: e, queue: q, workers: workers}
}

// Start launches the worker goroutines. They run until Stop is called or the
// parent context is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)

	getLog().Info().Int("workers", d.workers).Msg("Starting trigger dispatcher")
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.run(ctx)
		}()
	}
}

// Stop cancels the workers and waits for in-flight firings to finish.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	getLog().Info().Msg("Trigger dispatcher stopped")
}

func (d *Dispatcher) run(ctx context.Context) {
	for {
		env, err := d.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			if errors.Is(err, queue.ErrQueueClosed) {
				return
			}
			getLog().Error().Err(err).Msg("Failed to dequeue trigger envelope")
			continue
		}
		d.dispatch(ctx, env)
	}
}

// dispatch routes one envelope. An unroutable trigger type is dropped: logged,
// counted, and its pending record marked failed.
func (d *Dispatcher) dispatch(ctx context.Context, env queue.Envelope) {
	moduleID, ok := d.engine.registry.ModuleFor(env.Type)
	if !ok {
		getLog().Warn().
			Str("trigger_type", env.Type).
			Str("source_module", env.SourceModule).
			Str("envelope_id", env.ID).
			Msg("No active module supports trigger type, dropping")
		d.engine.metrics.TriggerDropped(env.Type)
		if env.RecordID != "" {
			if err := d.engine.ledger.UpdateExecutionStatus(ctx, env.RecordID,
				ledger.StatusFailed, "no active module supports trigger type", 0); err != nil {
				getLog().Warn().Err(err).Str("record_id", env.RecordID).Msg("Failed to mark dropped trigger record")
				d.engine.metrics.LedgerWriteError("update_status")
			}
		}
		return
	}

	// The envelope hop was already incremented when the payload was
	// synthesized, so it is passed through as-is.
	result := d.engine.Handle(ctx, moduleID, env.Type, env.Data, FiringOptions{
		TenantID:  env.TenantID,
		SubjectID: env.SubjectID,
		Urgency:   env.Urgency,
		Priority:  env.Priority,
		Hop:       env.Hop,
		RecordID:  env.RecordID,
	})

	getLog().Debug().
		Str("trigger_type", env.Type).
		Str("module", moduleID).
		Bool("success", result.Success).
		Int("hop", env.Hop).
		Msg("Dispatched queued trigger")
}
