// Copyright (C) 2026 Cascade HR
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// AppConfig holds all application configuration.
// It is instantiated by NewConfig() and passed to components that need it
// (dependency injection).
type AppConfig struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// DatabaseConfig holds all database configuration.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level   string            `mapstructure:"level"`
	Format  string            `mapstructure:"format"` // "console" or "json"
	Output  []LogOutputConfig `mapstructure:"output"`
	Levels  map[string]string `mapstructure:"levels"`
	Context LogContextConfig  `mapstructure:"context"`
}

// LogOutputConfig defines where logs are written.
type LogOutputConfig struct {
	Type    string          `mapstructure:"type"` // "file", "console"
	Enabled bool            `mapstructure:"enabled"`
	Path    string          `mapstructure:"path"`   // For file output
	Rotate  LogRotateConfig `mapstructure:"rotate"` // For file output
}

// LogRotateConfig defines log rotation settings.
type LogRotateConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	Compress   bool `mapstructure:"compress"`
}

// LogContextConfig defines what context to include in logs.
type LogContextConfig struct {
	IncludeCaller    bool `mapstructure:"include_caller"`
	IncludeTimestamp bool `mapstructure:"include_timestamp"`
}

// EngineConfig holds trigger engine configuration.
type EngineConfig struct {
	// HandlerTimeout bounds one domain handler invocation. A timeout is
	// treated as a handler failure.
	HandlerTimeout time.Duration `mapstructure:"handler_timeout"`
	// MaxHops caps trigger cascade depth. 0 disables the cap.
	MaxHops int `mapstructure:"max_hops"`
	// TableOverridesPath optionally points at a yaml file with
	// priority/urgency/action table entries.
	TableOverridesPath string `mapstructure:"table_overrides_path"`
}

// QueueConfig holds downstream trigger queue configuration.
type QueueConfig struct {
	Backend string `mapstructure:"backend"` // "channel" or "redis"
	Buffer  int    `mapstructure:"buffer"`  // channel backend buffer size
	Key     string `mapstructure:"key"`     // redis list key

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

// SchedulerConfig holds the cron trigger source configuration.
type SchedulerConfig struct {
	Enabled bool            `mapstructure:"enabled"`
	Entries []ScheduleEntry `mapstructure:"entries"`
}

// ScheduleEntry is one cron-driven trigger submission.
type ScheduleEntry struct {
	Name        string         `mapstructure:"name"`
	Schedule    string         `mapstructure:"schedule"` // standard 5-field cron expression
	Module      string         `mapstructure:"module"`
	TriggerType string         `mapstructure:"trigger_type"`
	TenantID    string         `mapstructure:"tenant_id"`
	Payload     map[string]any `mapstructure:"payload"`
}

// MetricsConfig holds the Prometheus endpoint configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// TelemetryConfig holds OpenTelemetry tracing configuration.
// An empty endpoint disables tracing.
type TelemetryConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

// NewConfig creates a new AppConfig by reading from a file, environment
// variables, and applying defaults.
func NewConfig(configPath string) (*AppConfig, error) {
	cfg := defaultConfig()

	v := viper.New()

	// Set config file if provided, otherwise search in standard locations
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/cascade/")
		v.AddConfigPath("$HOME/.cascade")
	}

	v.SetEnvPrefix("CASCADE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read the config file. It's okay if it doesn't exist.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.expandPaths()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// defaultConfig returns an AppConfig with default values.
// This is more type-safe than using viper.SetDefault().
func defaultConfig() AppConfig {
	return AppConfig{
		Database: DatabaseConfig{
			Driver:   "sqlite",
			Database: "cascade.db",
			Host:     "localhost",
			Port:     5432,
			SSLMode:  "disable",
		},
		Log: LogConfig{
			Level:  "INFO",
			Format: "console",
			Output: []LogOutputConfig{
				{
					Type:    "file",
					Enabled: true,
					Path:    "./logs/cascade.log",
					Rotate: LogRotateConfig{
						MaxSizeMB:  100,
						MaxBackups: 7,
						MaxAgeDays: 30,
						Compress:   true,
					},
				},
				{
					Type:    "console",
					Enabled: true,
				},
			},
			Levels: map[string]string{
				"engine":    "INFO",
				"trigger":   "INFO",
				"module":    "INFO",
				"ledger":    "INFO",
				"queue":     "INFO",
				"scheduler": "INFO",
				"metrics":   "WARN",
			},
			Context: LogContextConfig{
				IncludeCaller:    true,
				IncludeTimestamp: true,
			},
		},
		Engine: EngineConfig{
			HandlerTimeout: 30 * time.Second,
			MaxHops:        8,
		},
		Queue: QueueConfig{
			Backend:   "channel",
			Buffer:    256,
			Key:       "cascade:triggers",
			RedisAddr: "localhost:6379",
		},
		Scheduler: SchedulerConfig{
			Enabled: false,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    "127.0.0.1:9464",
		},
		Telemetry: TelemetryConfig{
			Endpoint: "",
			Insecure: true,
		},
	}
}

// expandPaths expands ~ and environment variables in path configuration values.
func (c *AppConfig) expandPaths() {
	for i := range c.Log.Output {
		if c.Log.Output[i].Path != "" {
			c.Log.Output[i].Path = expandPath(c.Log.Output[i].Path)
		}
	}
	if c.Engine.TableOverridesPath != "" {
		c.Engine.TableOverridesPath = expandPath(c.Engine.TableOverridesPath)
	}
	if c.Database.Driver == "sqlite" && c.Database.Database != "" {
		c.Database.Database = expandPath(c.Database.Database)
	}
}

// expandPath expands ~ to home directory and environment variables.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[1:])
		}
	}
	return os.ExpandEnv(path)
}

// validate checks if the configuration is valid.
func (c *AppConfig) validate() error {
	if c.Database.Driver == "" {
		return errors.New("database driver is required")
	}

	validLogLevels := map[string]bool{
		"TRACE": true, "DEBUG": true, "INFO": true, "WARN": true, "ERROR": true, "FATAL": true, "PANIC": true,
	}
	if !validLogLevels[strings.ToUpper(c.Log.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	if c.Engine.HandlerTimeout <= 0 {
		return errors.New("engine.handler_timeout must be positive")
	}
	if c.Engine.MaxHops < 0 {
		return fmt.Errorf("engine.max_hops must be >= 0, got %d", c.Engine.MaxHops)
	}

	switch c.Queue.Backend {
	case "channel":
		if c.Queue.Buffer <= 0 {
			return fmt.Errorf("queue.buffer must be positive, got %d", c.Queue.Buffer)
		}
	case "redis":
		if c.Queue.RedisAddr == "" {
			return errors.New("queue.redis_addr is required for the redis backend")
		}
		if c.Queue.Key == "" {
			return errors.New("queue.key is required for the redis backend")
		}
	default:
		return fmt.Errorf("queue.backend must be 'channel' or 'redis', got: %s", c.Queue.Backend)
	}

	for _, e := range c.Scheduler.Entries {
		if e.Name == "" || e.Schedule == "" || e.Module == "" || e.TriggerType == "" {
			return fmt.Errorf("scheduler entry %q: name, schedule, module and trigger_type are required", e.Name)
		}
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return errors.New("metrics.addr is required when metrics are enabled")
	}

	return nil
}

// GetDSN returns the database connection string.
func (dc *DatabaseConfig) GetDSN() string {
	switch dc.Driver {
	case "sqlite":
		dsn := dc.Database
		if dsn == ":memory:" {
			dsn = "file::memory:?cache=shared"
		}
		return dsn
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			dc.Host, dc.Port, dc.Username, dc.Password, dc.Database, dc.SSLMode)
	default:
		// Fallback for drivers that use a connection string directly
		return dc.Database
	}
}
