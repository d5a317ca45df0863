// Copyright (C) 2026 Cascade HR
// SPDX-License-Identifier: AGPL-3.0-or-later

package ledger

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// ExecutionStatus tracks one firing through its lifecycle.
// pending -> running -> completed | failed. Terminal states are final.
type ExecutionStatus string

const (
	StatusPending   ExecutionStatus = "pending"
	StatusRunning   ExecutionStatus = "running"
	StatusCompleted ExecutionStatus = "completed"
	StatusFailed    ExecutionStatus = "failed"
)

// Terminal reports whether s is a final state.
func (s ExecutionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether the transition s -> next is legal.
func (s ExecutionStatus) CanTransitionTo(next ExecutionStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusRunning || next == StatusCompleted || next == StatusFailed
	case StatusRunning:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// JSONMap stores an arbitrary payload snapshot as a JSON text column.
type JSONMap map[string]any

// Scan implements the sql.Scanner interface.
func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return errors.New("cannot scan JSONMap from non-string/[]byte value")
	}
}

// Value implements the driver.Valuer interface.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// TriggerDefinition aggregates statistics across many ExecutionRecords for
// the same logical trigger. Counters are updated additively after each
// firing and never decremented.
type TriggerDefinition struct {
	ID           string `gorm:"primaryKey;type:text" json:"id"`
	Name         string `gorm:"type:text" json:"name"`
	SourceModule string `gorm:"not null;type:text;uniqueIndex:idx_defn_module_event" json:"source_module"`
	EventType    string `gorm:"not null;type:text;uniqueIndex:idx_defn_module_event" json:"event_type"`
	TargetModule string `gorm:"type:text" json:"target_module"`
	Action       string `gorm:"type:text" json:"action"`
	Active       bool   `gorm:"not null;default:true" json:"active"`
	Priority     int    `gorm:"not null;default:5" json:"priority"`

	TriggerCount    int64      `gorm:"not null;default:0" json:"trigger_count"`
	SuccessCount    int64      `gorm:"not null;default:0" json:"success_count"`
	FailureCount    int64      `gorm:"not null;default:0" json:"failure_count"`
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for TriggerDefinition.
func (TriggerDefinition) TableName() string {
	return "trigger_definitions"
}

// ExecutionRecord is the audit row for one firing: full input/output
// snapshot, status, and timing. Rows are never deleted.
type ExecutionRecord struct {
	ID        string          `gorm:"primaryKey;type:text" json:"id"`
	TriggerID string          `gorm:"type:text;index" json:"trigger_id"`
	TenantID  string          `gorm:"type:text;index" json:"tenant_id"`
	Module    string          `gorm:"type:text;index" json:"module"`
	EventType string          `gorm:"not null;type:text;index" json:"event_type"`
	Status    ExecutionStatus `gorm:"not null;type:text;index" json:"status"`

	InputPayload  JSONMap `gorm:"type:text" json:"input_payload"`
	OutputPayload JSONMap `gorm:"type:text" json:"output_payload"`
	ErrorMsg      string  `gorm:"type:text" json:"error_msg"`

	ExecutionTimeMS int64      `gorm:"type:integer" json:"execution_time_ms"`
	StartedAt       time.Time  `gorm:"index" json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for ExecutionRecord.
func (ExecutionRecord) TableName() string {
	return "execution_records"
}
