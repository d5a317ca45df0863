// Copyright (C) 2026 Cascade HR
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package scheduler fires configured triggers on cron schedules. It is a
// trigger source like any external caller: each tick becomes one engine
// firing at hop 0.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/cascadehr/cascade/internal/config"
	"github.com/cascadehr/cascade/internal/engine"
	"github.com/cascadehr/cascade/internal/logger"
	"github.com/cascadehr/cascade/internal/metrics"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetSchedulerLogger()
		log = &l
	})
	return log
}

// Scheduler submits configured triggers to the engine on cron schedules.
type Scheduler struct {
	engine  *engine.Engine
	metrics metrics.Sink
	cron    *cron.Cron
	entries []config.ScheduleEntry
}

// New builds a scheduler from the configured entries. Schedules use the
// standard 5-field cron syntax.
func New(e *engine.Engine, sink metrics.Sink, entries []config.ScheduleEntry) (*Scheduler, error) {
	s := &Scheduler{
		engine:  e,
		metrics: sink,
		cron:    cron.New(),
		entries: entries,
	}

	for _, entry := range entries {
		entry := entry
		_, err := s.cron.AddFunc(entry.Schedule, func() { s.fire(entry) })
		if err != nil {
			return nil, fmt.Errorf("scheduler entry %q: invalid schedule %q: %w", entry.Name, entry.Schedule, err)
		}
	}
	return s, nil
}

// Start begins firing schedules in a background goroutine.
func (s *Scheduler) Start() {
	getLog().Info().Int("entries", len(s.entries)).Msg("Starting trigger scheduler")
	s.cron.Start()
}

// Stop halts scheduling and waits for running fires to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	getLog().Info().Msg("Trigger scheduler stopped")
}

func (s *Scheduler) fire(entry config.ScheduleEntry) {
	result := s.engine.Handle(context.Background(), entry.Module, entry.TriggerType, entry.Payload, engine.FiringOptions{
		TenantID: entry.TenantID,
	})

	var err error
	if !result.Success {
		err = fmt.Errorf("scheduled firing failed: %s", result.Error)
		getLog().Warn().
			Str("entry", entry.Name).
			Str("module", entry.Module).
			Str("trigger_type", entry.TriggerType).
			Str("error", result.Error).
			Msg("Scheduled firing failed")
	} else {
		getLog().Debug().
			Str("entry", entry.Name).
			Str("module", entry.Module).
			Str("trigger_type", entry.TriggerType).
			Int("next_triggers", len(result.NextTriggers)).
			Msg("Scheduled firing completed")
	}
	s.metrics.ScheduledFiring(entry.Name, err)
}
