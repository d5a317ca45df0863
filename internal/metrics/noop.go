// Copyright (C) 2026 Cascade HR
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import "time"

// NoopSink discards all metrics. Used when metrics are disabled and in tests.
type NoopSink struct{}

// NewNoopSink creates a sink that records nothing.
func NewNoopSink() *NoopSink { return &NoopSink{} }

func (*NoopSink) FiringStarted(module, triggerType string)                                  {}
func (*NoopSink) FiringCompleted(module, triggerType string, success bool, d time.Duration) {}
func (*NoopSink) TriggersSynthesized(module string, count int)                              {}
func (*NoopSink) UndeclaredOutput(module, triggerType string)                               {}
func (*NoopSink) PayloadSynthesisError(triggerType string)                                  {}
func (*NoopSink) LedgerWriteError(op string)                                                {}
func (*NoopSink) TriggerEnqueued(triggerType string)                                        {}
func (*NoopSink) EnqueueError()                                                             {}
func (*NoopSink) TriggerDropped(triggerType string)                                         {}
func (*NoopSink) QueueDepthUpdate(depth int)                                                {}
func (*NoopSink) ScheduledFiring(entry string, err error)                                   {}
