// Copyright (C) 2026 Cascade HR
// SPDX-License-Identifier: AGPL-3.0-or-later

package logger

import (
	"github.com/rs/zerolog"
)

// Static logger getters that map directly to config.yaml log.levels
// These ensure consistent logger names across the codebase

// GetEngineLogger returns a logger for the trigger engine
func GetEngineLogger() zerolog.Logger {
	return GetLogger("engine")
}

// GetTriggerLogger returns a logger for trigger classification and synthesis
func GetTriggerLogger() zerolog.Logger {
	return GetLogger("trigger")
}

// GetModuleLogger returns a logger for the module registry
func GetModuleLogger() zerolog.Logger {
	return GetLogger("module")
}

// GetLedgerLogger returns a logger for ledger operations
func GetLedgerLogger() zerolog.Logger {
	return GetLogger("ledger")
}

// GetQueueLogger returns a logger for queue transport
func GetQueueLogger() zerolog.Logger {
	return GetLogger("queue")
}

// GetSchedulerLogger returns a logger for the cron trigger source
func GetSchedulerLogger() zerolog.Logger {
	return GetLogger("scheduler")
}

// GetMetricsLogger returns a logger for the metrics sink
func GetMetricsLogger() zerolog.Logger {
	return GetLogger("metrics")
}
