// Copyright (C) 2026 Cascade HR
// SPDX-License-Identifier: AGPL-3.0-or-later

package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cascadehr/cascade/internal/config"
	"github.com/cascadehr/cascade/internal/logger"
	"github.com/google/uuid"

	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetLedgerLogger()
		log = &l
	})
	return log
}

// ErrIllegalTransition is returned when an execution record is asked to move
// out of a terminal state.
var ErrIllegalTransition = errors.New("illegal execution status transition")

// GormLedger is the append-only execution ledger backed by GORM.
type GormLedger struct {
	db *gorm.DB
}

// NewGormLedger opens a database connection for the ledger.
func NewGormLedger(cfg *config.DatabaseConfig) (*GormLedger, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.GetDSN())
	case "postgres":
		dialector = postgres.Open(cfg.GetDSN())
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent), // Reduce GORM log noise
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	getLog().Info().Str("driver", cfg.Driver).Msg("Execution ledger connected")
	return &GormLedger{db: db}, nil
}

// NewGormLedgerFromDB wraps an existing GORM handle. Used by tests.
func NewGormLedgerFromDB(db *gorm.DB) *GormLedger {
	return &GormLedger{db: db}
}

// AutoMigrate runs database migrations for the ledger tables.
func (l *GormLedger) AutoMigrate() error {
	return l.db.AutoMigrate(
		&TriggerDefinition{},
		&ExecutionRecord{},
	)
}

// ValidateSchema verifies the ledger tables exist. Called after AutoMigrate
// at startup to fail fast on a broken schema.
func (l *GormLedger) ValidateSchema() error {
	for _, model := range []any{&TriggerDefinition{}, &ExecutionRecord{}} {
		if !l.db.Migrator().HasTable(model) {
			stmt := &gorm.Statement{DB: l.db}
			_ = stmt.Parse(model)
			return fmt.Errorf("ledger table missing: %s", stmt.Schema.Table)
		}
	}
	return nil
}

// Close closes the database connection.
func (l *GormLedger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InsertExecutionRecord appends one execution record. The record captures
// the true outcome of a firing, so it is written after the handler has
// returned, never before.
func (l *GormLedger) InsertExecutionRecord(ctx context.Context, rec *ExecutionRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}
	return l.db.WithContext(ctx).Create(rec).Error
}

// UpdateExecutionStatus moves an execution record along its lifecycle,
// enforcing that terminal states are final. CompletedAt is stamped when the
// record reaches a terminal state.
func (l *GormLedger) UpdateExecutionStatus(ctx context.Context, recordID string, status ExecutionStatus, errMsg string, execMS int64) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec ExecutionRecord
		if err := tx.First(&rec, "id = ?", recordID).Error; err != nil {
			return err
		}

		if !rec.Status.CanTransitionTo(status) {
			return fmt.Errorf("%w: %s -> %s (record %s)", ErrIllegalTransition, rec.Status, status, recordID)
		}

		updates := map[string]any{"status": status}
		if errMsg != "" {
			updates["error_msg"] = errMsg
		}
		if status.Terminal() {
			now := time.Now().UTC()
			updates["completed_at"] = &now
			updates["execution_time_ms"] = execMS
		}
		return tx.Model(&ExecutionRecord{}).Where("id = ?", recordID).Updates(updates).Error
	})
}

// IncrementTriggerStats upserts the TriggerDefinition for (module, event
// type) and applies the additive counter updates: trigger count always,
// success or failure count by outcome, last_triggered_at overwritten.
func (l *GormLedger) IncrementTriggerStats(ctx context.Context, moduleID, eventType, action string, priority int, success bool) error {
	now := time.Now().UTC()

	def := TriggerDefinition{
		ID:              uuid.NewString(),
		Name:            eventType,
		SourceModule:    moduleID,
		EventType:       eventType,
		Action:          action,
		Active:          true,
		Priority:        priority,
		TriggerCount:    1,
		LastTriggeredAt: &now,
	}

	assignments := map[string]any{
		"trigger_count":     gorm.Expr("trigger_count + 1"),
		"last_triggered_at": now,
		"action":            action,
	}
	if success {
		def.SuccessCount = 1
		assignments["success_count"] = gorm.Expr("success_count + 1")
	} else {
		def.FailureCount = 1
		assignments["failure_count"] = gorm.Expr("failure_count + 1")
	}

	return l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_module"}, {Name: "event_type"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(&def).Error
}

// GetDefinition returns the trigger definition for (module, event type).
func (l *GormLedger) GetDefinition(ctx context.Context, moduleID, eventType string) (*TriggerDefinition, error) {
	var def TriggerDefinition
	err := l.db.WithContext(ctx).
		First(&def, "source_module = ? AND event_type = ?", moduleID, eventType).Error
	if err != nil {
		return nil, err
	}
	return &def, nil
}

// GetExecutionRecord returns one execution record by id.
func (l *GormLedger) GetExecutionRecord(ctx context.Context, recordID string) (*ExecutionRecord, error) {
	var rec ExecutionRecord
	if err := l.db.WithContext(ctx).First(&rec, "id = ?", recordID).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListExecutionRecords returns the most recent execution records for a
// tenant, newest first.
func (l *GormLedger) ListExecutionRecords(ctx context.Context, tenantID string, limit int) ([]ExecutionRecord, error) {
	var recs []ExecutionRecord
	err := l.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("started_at DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	return recs, nil
}
