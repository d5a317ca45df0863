// Copyright (C) 2026 Cascade HR
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine implements the cross-module trigger orchestrator: it
// validates an incoming trigger against the target module's descriptor, runs
// the module's domain handler, scores the result, synthesizes downstream
// triggers for other modules, and records the firing in the execution ledger.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cascadehr/cascade/internal/engine/ledger"
	"github.com/cascadehr/cascade/internal/engine/module"
	"github.com/cascadehr/cascade/internal/engine/trigger"
	"github.com/cascadehr/cascade/internal/logger"
	"github.com/cascadehr/cascade/internal/metrics"
	"github.com/cascadehr/cascade/internal/queue"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetEngineLogger()
		log = &l
	})
	return log
}

// Ledger is the persistence contract the engine writes through. All writes
// are best-effort: a failed write is logged and counted, never surfaced to
// the caller of Handle.
type Ledger interface {
	InsertExecutionRecord(ctx context.Context, rec *ledger.ExecutionRecord) error
	UpdateExecutionStatus(ctx context.Context, recordID string, status ledger.ExecutionStatus, errMsg string, execMS int64) error
	IncrementTriggerStats(ctx context.Context, moduleID, eventType, action string, priority int, success bool) error
}

// FiringOptions is the optional per-firing context supplied by the caller.
// Zero urgency/priority are derived from the static tables.
type FiringOptions struct {
	TenantID  string
	SubjectID string
	Urgency   trigger.Urgency
	Priority  int
	Hop       int
	// RecordID links the firing to a pre-created pending execution record
	// (the dispatcher path). Empty means the engine inserts a terminal
	// record itself once the outcome is known.
	RecordID string
}

// Engine is the module orchestrator. It holds no per-firing state; concurrent
// Handle calls are safe without locking.
type Engine struct {
	registry *module.Registry
	ledger   Ledger
	queue    queue.Queue
	metrics  metrics.Sink
	tracer   trace.Tracer

	handlerTimeout time.Duration
	maxHops        int
}

// Option configures an Engine.
type Option func(*Engine)

// WithQueue attaches a downstream trigger queue. Without one, synthesized
// triggers are reported in the result but not transported anywhere.
func WithQueue(q queue.Queue) Option {
	return func(e *Engine) { e.queue = q }
}

// WithMetrics attaches a metrics sink.
func WithMetrics(s metrics.Sink) Option {
	return func(e *Engine) { e.metrics = s }
}

// WithHandlerTimeout bounds the domain handler invocation.
func WithHandlerTimeout(d time.Duration) Option {
	return func(e *Engine) { e.handlerTimeout = d }
}

// WithMaxHops caps the cascade depth. 0 disables the cap.
func WithMaxHops(n int) Option {
	return func(e *Engine) { e.maxHops = n }
}

// New creates an engine over the given module registry and ledger.
func New(registry *module.Registry, ldg Ledger, opts ...Option) *Engine {
	e := &Engine{
		registry:       registry,
		ledger:         ldg,
		metrics:        metrics.NewNoopSink(),
		tracer:         otel.Tracer("cascade/engine"),
		handlerTimeout: 30 * time.Second,
		maxHops:        8,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handle processes one trigger firing for a module. It never returns an
// error: expected failure modes (unknown module, unsupported trigger type,
// handler failure, handler timeout) are folded into a structured Result with
// Success=false so the caller always receives the real outcome.
func (e *Engine) Handle(ctx context.Context, moduleID, triggerType string, payload map[string]any, opts FiringOptions) trigger.Result {
	start := time.Now()
	e.metrics.FiringStarted(moduleID, triggerType)

	ctx, span := e.tracer.Start(ctx, "engine.handle", trace.WithAttributes(
		attribute.String("cascade.module", moduleID),
		attribute.String("cascade.trigger_type", triggerType),
		attribute.String("cascade.tenant_id", opts.TenantID),
		attribute.Int("cascade.hop", opts.Hop),
	))
	defer span.End()

	desc, handler, err := e.registry.Resolve(moduleID)
	if err != nil {
		// Caller bug or routing error: no handler ran, no new ledger record.
		return e.fail(ctx, moduleID, triggerType, start, span, opts, false, err.Error())
	}
	if !desc.Supports(triggerType) {
		msg := fmt.Sprintf("%v: %q is not in the supported triggers of module %s",
			module.ErrUnsupportedTrigger, triggerType, moduleID)
		return e.fail(ctx, moduleID, triggerType, start, span, opts, false, msg)
	}

	tc := e.buildContext(triggerType, payload, opts)
	span.SetAttributes(attribute.String("cascade.firing_id", tc.FiringID))

	if opts.RecordID != "" {
		e.markRunning(ctx, opts.RecordID)
	}

	res := e.invoke(ctx, handler, tc)
	if !res.Success {
		msg := res.Error
		if msg == "" {
			msg = "handler reported failure"
		}
		result := e.fail(ctx, moduleID, triggerType, start, span, opts, true, "handler failure: "+msg)
		e.record(ctx, tc, moduleID, result, opts.RecordID)
		return result
	}

	action := trigger.ActionOf(triggerType)
	confidence := trigger.ConfidenceOf(res)

	next := trigger.NextTriggers(tc, res)
	if e.maxHops > 0 && tc.Hop >= e.maxHops && len(next) > 0 {
		getLog().Warn().
			Str("module", moduleID).
			Str("trigger_type", triggerType).
			Int("hop", tc.Hop).
			Strs("suppressed", next).
			Msg("Cascade depth limit reached, suppressing downstream triggers")
		next = nil
	}

	payloads := trigger.BuildPayloads(moduleID, action, tc, res, next)
	e.metrics.TriggersSynthesized(moduleID, len(payloads))
	for _, t := range synthesisFailures(next, payloads) {
		e.metrics.PayloadSynthesisError(t)
	}
	for _, p := range payloads {
		if !desc.Emits(p.Type) {
			getLog().Warn().
				Str("module", moduleID).
				Str("trigger_type", p.Type).
				Msg("Module emitted a trigger type outside its declared outputs")
			e.metrics.UndeclaredOutput(moduleID, p.Type)
		}
	}

	e.enqueue(ctx, payloads)

	result := trigger.Result{
		Success:        true,
		Module:         moduleID,
		TriggerType:    triggerType,
		Action:         action,
		Data:           res.Payload,
		NextTriggers:   next,
		ProcessingTime: time.Since(start),
		Confidence:     confidence,
	}

	e.record(ctx, tc, moduleID, result, opts.RecordID)
	e.metrics.FiringCompleted(moduleID, triggerType, true, result.ProcessingTime)

	getLog().Debug().
		Str("module", moduleID).
		Str("trigger_type", triggerType).
		Str("firing_id", tc.FiringID).
		Int("next_triggers", len(next)).
		Float64("confidence", confidence).
		Dur("elapsed", result.ProcessingTime).
		Msg("Firing completed")

	return result
}

// buildContext assembles the immutable per-firing envelope, deriving urgency
// and priority from the static tables when the caller did not supply them.
func (e *Engine) buildContext(triggerType string, payload map[string]any, opts FiringOptions) trigger.Context {
	urgency := opts.Urgency
	if urgency == "" {
		urgency = trigger.UrgencyOf(triggerType)
	}
	priority := opts.Priority
	if priority == 0 {
		priority = trigger.PriorityOf(triggerType)
	}
	return trigger.Context{
		FiringID:  uuid.NewString(),
		TenantID:  opts.TenantID,
		SubjectID: opts.SubjectID,
		Type:      triggerType,
		Payload:   payload,
		Urgency:   urgency,
		Priority:  priority,
		Hop:       opts.Hop,
	}
}

// invoke runs the domain handler under the configured timeout. A returned
// error and a timeout are both folded into a failed HandlerResult; the
// handler is the only blocking step of a firing.
func (e *Engine) invoke(ctx context.Context, handler module.Handler, tc trigger.Context) trigger.HandlerResult {
	hctx, cancel := context.WithTimeout(ctx, e.handlerTimeout)
	defer cancel()

	res, err := handler.ProcessTrigger(hctx, tc)
	if err != nil {
		return trigger.HandlerResult{Success: false, Error: err.Error()}
	}
	if hctx.Err() != nil && !res.Success && res.Error == "" {
		res.Error = hctx.Err().Error()
	}
	return res
}

// fail builds the structured failure result. handlerRan controls whether the
// firing is ledgered by the caller; validation failures never create records,
// but a pre-existing pending record (the dispatcher path) must still reach a
// terminal state.
func (e *Engine) fail(ctx context.Context, moduleID, triggerType string, start time.Time, span trace.Span, opts FiringOptions, handlerRan bool, msg string) trigger.Result {
	span.SetAttributes(attribute.Bool("cascade.success", false))
	getLog().Warn().
		Str("module", moduleID).
		Str("trigger_type", triggerType).
		Bool("handler_ran", handlerRan).
		Str("error", msg).
		Msg("Firing failed")

	if !handlerRan && opts.RecordID != "" {
		wctx := context.WithoutCancel(ctx)
		if err := e.ledger.UpdateExecutionStatus(wctx, opts.RecordID, ledger.StatusFailed, msg, 0); err != nil {
			getLog().Warn().Err(err).Str("record_id", opts.RecordID).Msg("Failed to mark execution record failed")
			e.metrics.LedgerWriteError("update_status")
		}
	}

	result := trigger.Result{
		Success:        false,
		Module:         moduleID,
		TriggerType:    triggerType,
		Action:         trigger.ActionOf(triggerType),
		NextTriggers:   []string{},
		ProcessingTime: time.Since(start),
		Confidence:     0,
		Error:          msg,
	}
	e.metrics.FiringCompleted(moduleID, triggerType, false, result.ProcessingTime)
	return result
}

// markRunning moves a pre-created pending record into running before the
// handler is invoked. Best-effort.
func (e *Engine) markRunning(ctx context.Context, recordID string) {
	if err := e.ledger.UpdateExecutionStatus(ctx, recordID, ledger.StatusRunning, "", 0); err != nil {
		getLog().Warn().Err(err).Str("record_id", recordID).Msg("Failed to mark execution record running")
		e.metrics.LedgerWriteError("update_status")
	}
}

// record persists the firing outcome: the execution record and the trigger
// definition statistics. The two writes are independent and issued
// concurrently; either failing is logged, never propagated, because the
// caller already holds the real business outcome.
func (e *Engine) record(ctx context.Context, tc trigger.Context, moduleID string, result trigger.Result, recordID string) {
	status := ledger.StatusCompleted
	if !result.Success {
		status = ledger.StatusFailed
	}
	execMS := result.ProcessingTime.Milliseconds()

	// The audit write must survive caller cancellation once the outcome
	// is known.
	wctx := context.WithoutCancel(ctx)

	g, _ := errgroup.WithContext(wctx)
	g.Go(func() error {
		var err error
		if recordID != "" {
			err = e.ledger.UpdateExecutionStatus(wctx, recordID, status, result.Error, execMS)
		} else {
			now := time.Now().UTC()
			err = e.ledger.InsertExecutionRecord(wctx, &ledger.ExecutionRecord{
				ID:              tc.FiringID,
				TenantID:        tc.TenantID,
				Module:          moduleID,
				EventType:       tc.Type,
				Status:          status,
				InputPayload:    tc.Payload,
				OutputPayload:   outputSnapshot(result),
				ErrorMsg:        result.Error,
				ExecutionTimeMS: execMS,
				StartedAt:       now.Add(-result.ProcessingTime),
				CompletedAt:     &now,
			})
		}
		if err != nil {
			getLog().Error().Err(err).Str("firing_id", tc.FiringID).Msg("Failed to write execution record")
			e.metrics.LedgerWriteError("execution_record")
		}
		return nil
	})
	g.Go(func() error {
		err := e.ledger.IncrementTriggerStats(wctx, moduleID, tc.Type, result.Action, tc.Priority, result.Success)
		if err != nil {
			getLog().Error().Err(err).Str("firing_id", tc.FiringID).Msg("Failed to update trigger statistics")
			e.metrics.LedgerWriteError("trigger_stats")
		}
		return nil
	})
	_ = g.Wait()
}

// enqueue transports the synthesized payloads, creating a pending execution
// record per payload so the dispatcher can carry the record through
// running -> terminal. Best-effort end to end.
func (e *Engine) enqueue(ctx context.Context, payloads []trigger.OutputPayload) {
	if e.queue == nil || len(payloads) == 0 {
		return
	}

	for _, p := range payloads {
		rec := &ledger.ExecutionRecord{
			ID:           uuid.NewString(),
			TenantID:     p.TenantID,
			EventType:    p.Type,
			Status:       ledger.StatusPending,
			InputPayload: p.Data,
			StartedAt:    p.CreatedAt,
		}
		recordID := rec.ID
		if err := e.ledger.InsertExecutionRecord(ctx, rec); err != nil {
			getLog().Warn().Err(err).Str("trigger_type", p.Type).Msg("Failed to create pending execution record")
			e.metrics.LedgerWriteError("pending_record")
			recordID = ""
		}

		if err := e.queue.Enqueue(ctx, queue.NewEnvelope(p, recordID)); err != nil {
			getLog().Error().Err(err).Str("trigger_type", p.Type).Msg("Failed to enqueue downstream trigger")
			e.metrics.EnqueueError()
			continue
		}
		e.metrics.TriggerEnqueued(p.Type)
	}

	if depth, err := e.queue.Len(ctx); err == nil {
		e.metrics.QueueDepthUpdate(depth)
	}
}

// synthesisFailures returns the trigger types selected by the rules for
// which no payload could be constructed.
func synthesisFailures(selected []string, payloads []trigger.OutputPayload) []string {
	built := lo.Map(payloads, func(p trigger.OutputPayload, _ int) string { return p.Type })
	return lo.Without(selected, built...)
}

// outputSnapshot captures the result fields worth replaying from the ledger.
func outputSnapshot(result trigger.Result) ledger.JSONMap {
	return ledger.JSONMap{
		"success":       result.Success,
		"action":        result.Action,
		"next_triggers": result.NextTriggers,
		"confidence":    result.Confidence,
	}
}
