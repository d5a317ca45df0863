// Copyright (C) 2026 Cascade HR
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import "time"

// Sink defines the interface for recording engine metrics.
// All methods are fire-and-forget: implementations MUST NOT block or
// propagate errors. If the metrics backend is unavailable, implementations
// log warnings and continue.
type Sink interface {
	// Engine metrics
	FiringStarted(module, triggerType string)
	FiringCompleted(module, triggerType string, success bool, duration time.Duration)
	TriggersSynthesized(module string, count int)
	UndeclaredOutput(module, triggerType string)
	PayloadSynthesisError(triggerType string)
	LedgerWriteError(op string)

	// Queue / dispatcher metrics
	TriggerEnqueued(triggerType string)
	EnqueueError()
	TriggerDropped(triggerType string)
	QueueDepthUpdate(depth int)

	// Scheduler metrics
	ScheduledFiring(entry string, err error)
}

// Outcome label values for firing counters.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
