// Copyright (C) 2026 Cascade HR
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"sync"
	"time"

	"github.com/cascadehr/cascade/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetMetricsLogger()
		log = &l
	})
	return log
}

// PrometheusSink implements Sink using the Prometheus client library.
// All methods are non-blocking and fire-and-forget. Registration errors are
// logged but never propagated; metrics that fail to register simply stay
// unregistered and keep accepting writes.
type PrometheusSink struct {
	firingsTotal          *prometheus.CounterVec
	firingsInFlight       prometheus.Gauge
	firingDuration        prometheus.Histogram
	triggersSynthesized   prometheus.Counter
	undeclaredOutputs     *prometheus.CounterVec
	synthesisErrorsTotal  *prometheus.CounterVec
	ledgerWriteErrors     *prometheus.CounterVec
	triggersEnqueued      *prometheus.CounterVec
	enqueueErrorsTotal    prometheus.Counter
	triggersDropped       *prometheus.CounterVec
	queueDepth            prometheus.Gauge
	scheduledFiringsTotal *prometheus.CounterVec
}

// NewPrometheusSink creates a new Prometheus metrics sink registered on reg.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{
		firingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cascade_engine_firings_total",
			Help: "Total number of trigger firings handled by the engine.",
		}, []string{"module", "trigger_type", "outcome"}),
		firingsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cascade_engine_firings_in_flight",
			Help: "Number of firings currently being processed.",
		}),
		firingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cascade_engine_firing_duration_seconds",
			Help:    "End-to-end duration of one firing, including the domain handler.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		triggersSynthesized: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cascade_engine_triggers_synthesized_total",
			Help: "Total number of downstream triggers synthesized.",
		}),
		undeclaredOutputs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cascade_engine_undeclared_outputs_total",
			Help: "Downstream triggers emitted outside the module's declared output set.",
		}, []string{"module", "trigger_type"}),
		synthesisErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cascade_engine_payload_synthesis_errors_total",
			Help: "Per-trigger-type payload construction failures.",
		}, []string{"trigger_type"}),
		ledgerWriteErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cascade_ledger_write_errors_total",
			Help: "Best-effort ledger writes that failed.",
		}, []string{"op"}),
		triggersEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cascade_queue_triggers_enqueued_total",
			Help: "Downstream triggers enqueued for dispatch.",
		}, []string{"trigger_type"}),
		enqueueErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cascade_queue_enqueue_errors_total",
			Help: "Enqueue attempts that failed (buffer full or backend error).",
		}),
		triggersDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cascade_dispatcher_triggers_dropped_total",
			Help: "Queued triggers dropped because no active module supports them.",
		}, []string{"trigger_type"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cascade_queue_depth",
			Help: "Current number of triggers waiting in the queue.",
		}),
		scheduledFiringsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cascade_scheduler_firings_total",
			Help: "Firings submitted by the cron scheduler.",
		}, []string{"entry", "outcome"}),
	}

	for name, c := range map[string]prometheus.Collector{
		"cascade_engine_firings_total":                  s.firingsTotal,
		"cascade_engine_firings_in_flight":              s.firingsInFlight,
		"cascade_engine_firing_duration_seconds":        s.firingDuration,
		"cascade_engine_triggers_synthesized_total":     s.triggersSynthesized,
		"cascade_engine_undeclared_outputs_total":       s.undeclaredOutputs,
		"cascade_engine_payload_synthesis_errors_total": s.synthesisErrorsTotal,
		"cascade_ledger_write_errors_total":             s.ledgerWriteErrors,
		"cascade_queue_triggers_enqueued_total":         s.triggersEnqueued,
		"cascade_queue_enqueue_errors_total":            s.enqueueErrorsTotal,
		"cascade_dispatcher_triggers_dropped_total":     s.triggersDropped,
		"cascade_queue_depth":                           s.queueDepth,
		"cascade_scheduler_firings_total":               s.scheduledFiringsTotal,
	} {
		if err := reg.Register(c); err != nil {
			getLog().Warn().Err(err).Str("metric", name).Msg("Failed to register metric")
		}
	}

	return s
}

func (s *PrometheusSink) FiringStarted(module, triggerType string) {
	s.firingsInFlight.Inc()
}

func (s *PrometheusSink) FiringCompleted(module, triggerType string, success bool, d time.Duration) {
	s.firingsInFlight.Dec()
	s.firingsTotal.WithLabelValues(module, triggerType, outcomeLabel(success)).Inc()
	s.firingDuration.Observe(d.Seconds())
}

func (s *PrometheusSink) TriggersSynthesized(module string, count int) {
	s.triggersSynthesized.Add(float64(count))
}

func (s *PrometheusSink) UndeclaredOutput(module, triggerType string) {
	s.undeclaredOutputs.WithLabelValues(module, triggerType).Inc()
}

func (s *PrometheusSink) PayloadSynthesisError(triggerType string) {
	s.synthesisErrorsTotal.WithLabelValues(triggerType).Inc()
}

func (s *PrometheusSink) LedgerWriteError(op string) {
	s.ledgerWriteErrors.WithLabelValues(op).Inc()
}

func (s *PrometheusSink) TriggerEnqueued(triggerType string) {
	s.triggersEnqueued.WithLabelValues(triggerType).Inc()
}

func (s *PrometheusSink) EnqueueError() {
	s.enqueueErrorsTotal.Inc()
}

func (s *PrometheusSink) TriggerDropped(triggerType string) {
	s.triggersDropped.WithLabelValues(triggerType).Inc()
}

func (s *PrometheusSink) QueueDepthUpdate(depth int) {
	s.queueDepth.Set(float64(depth))
}

func (s *PrometheusSink) ScheduledFiring(entry string, err error) {
	s.scheduledFiringsTotal.WithLabelValues(entry, outcomeLabel(err == nil)).Inc()
}

func outcomeLabel(success bool) string {
	if success {
		return OutcomeSuccess
	}
	return OutcomeFailure
}
