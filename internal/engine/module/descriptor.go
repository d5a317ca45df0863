// Copyright (C) 2026 Cascade HR
// SPDX-License-Identifier: AGPL-3.0-or-later

package module

import (
	"errors"
	"fmt"

	"github.com/samber/lo"
)

// Status is the externally visible lifecycle status of a module.
type Status string

const (
	StatusActive      Status = "active"
	StatusInactive    Status = "inactive"
	StatusMaintenance Status = "maintenance"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusMaintenance:
		return true
	}
	return false
}

// Descriptor is the static metadata for one business module: its identity,
// the trigger types it consumes, and the trigger types it may emit.
// Constructed once per process; mutated only through Registry.UpdateConfig.
type Descriptor struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Version           string   `json:"version"`
	Status            Status   `json:"status"`
	Capabilities      []string `json:"capabilities"`
	SupportedTriggers []string `json:"supported_triggers"`
	OutputTriggers    []string `json:"output_triggers"`
}

// Supports reports whether the module consumes the given trigger type.
func (d Descriptor) Supports(triggerType string) bool {
	return lo.Contains(d.SupportedTriggers, triggerType)
}

// Emits reports whether the module has declared the given output trigger type.
func (d Descriptor) Emits(triggerType string) bool {
	return lo.Contains(d.OutputTriggers, triggerType)
}

// Validate checks the descriptor for registration.
func (d Descriptor) Validate() error {
	if d.ID == "" {
		return errors.New("module id is required")
	}
	if d.Name == "" {
		return errors.New("module name is required")
	}
	if !d.Status.Valid() {
		return fmt.Errorf("invalid module status: %s", d.Status)
	}
	if len(d.SupportedTriggers) == 0 {
		return fmt.Errorf("module %s declares no supported triggers", d.ID)
	}
	return nil
}

// ConfigUpdate is a partial descriptor update. Nil/empty fields are left
// unchanged; slice fields replace the existing values when non-nil.
type ConfigUpdate struct {
	Status            *Status  `json:"status,omitempty"`
	Capabilities      []string `json:"capabilities,omitempty"`
	SupportedTriggers []string `json:"supported_triggers,omitempty"`
	OutputTriggers    []string `json:"output_triggers,omitempty"`
}

// Health is the result of a module health check.
type Health struct {
	Healthy bool           `json:"healthy"`
	Status  Status         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}
