// Copyright (C) 2026 Cascade HR
// SPDX-License-Identifier: AGPL-3.0-or-later

package module

import (
	"errors"
	"fmt"
	"sync"
)

// Module registration errors. These indicate caller bugs or bad routing and
// are the only failures the engine surfaces as errors rather than folding
// into a structured result.
var (
	ErrModuleNotFound      = errors.New("module not found")
	ErrDuplicateModule     = errors.New("module already registered")
	ErrModuleUninitialized = errors.New("module not initialized")
	ErrModuleInactive      = errors.New("module not active")
	ErrUnsupportedTrigger  = errors.New("unsupported trigger type")
)

// State is the internal lifecycle state of a registered module.
// Transitions: Uninitialized -> Active -> (Inactive | Maintenance), with
// Inactive/Maintenance able to return to Active via UpdateConfig.
type State int

const (
	StateUninitialized State = iota
	StateActive
	StateInactive
	StateMaintenance
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateActive:
		return "active"
	case StateInactive:
		return "inactive"
	case StateMaintenance:
		return "maintenance"
	default:
		return "unknown"
	}
}

type entry struct {
	desc    Descriptor
	handler Handler
	state   State
}

// Registry holds the registered modules and their handlers. All methods are
// safe for concurrent use; the descriptor set is effectively read-only after
// startup apart from explicit UpdateConfig calls.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// NewRegistry creates an empty module registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds a module descriptor and its handler. The module stays
// uninitialized until Initialize is called.
func (r *Registry) Register(desc Descriptor, handler Handler) error {
	if err := desc.Validate(); err != nil {
		return fmt.Errorf("invalid descriptor: %w", err)
	}
	if handler == nil {
		return fmt.Errorf("module %s: handler is required", desc.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[desc.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateModule, desc.ID)
	}
	r.entries[desc.ID] = &entry{desc: desc, handler: handler, state: StateUninitialized}
	return nil
}

// Initialize moves a registered module from Uninitialized into the state
// implied by its descriptor status. Calling Handle before Initialize fails
// with ErrModuleUninitialized.
func (r *Registry) Initialize(moduleID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[moduleID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrModuleNotFound, moduleID)
	}
	e.state = stateForStatus(e.desc.Status)
	return nil
}

// Descriptor returns the current descriptor for a module.
func (r *Registry) Descriptor(moduleID string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[moduleID]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrModuleNotFound, moduleID)
	}
	return e.desc, nil
}

// Resolve returns the descriptor and handler for a dispatchable module.
// It fails if the module is unknown, uninitialized, or not active.
func (r *Registry) Resolve(moduleID string) (Descriptor, Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[moduleID]
	if !ok {
		return Descriptor{}, nil, fmt.Errorf("%w: %s", ErrModuleNotFound, moduleID)
	}
	switch e.state {
	case StateUninitialized:
		return Descriptor{}, nil, fmt.Errorf("%w: %s", ErrModuleUninitialized, moduleID)
	case StateInactive, StateMaintenance:
		return Descriptor{}, nil, fmt.Errorf("%w: %s (%s)", ErrModuleInactive, moduleID, e.state)
	}
	return e.desc, e.handler, nil
}

// ModuleFor returns the first active module that supports the given trigger
// type. Used by the dispatcher to route queued downstream triggers.
func (r *Registry) ModuleFor(triggerType string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, e := range r.entries {
		if e.state == StateActive && e.desc.Supports(triggerType) {
			return id, true
		}
	}
	return "", false
}

// CheckHealth reports whether a module is able to serve firings.
func (r *Registry) CheckHealth(moduleID string) (Health, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[moduleID]
	if !ok {
		return Health{}, fmt.Errorf("%w: %s", ErrModuleNotFound, moduleID)
	}
	return Health{
		Healthy: e.state == StateActive,
		Status:  e.desc.Status,
		Details: map[string]any{
			"state":              e.state.String(),
			"version":            e.desc.Version,
			"supported_triggers": len(e.desc.SupportedTriggers),
		},
	}, nil
}

// UpdateConfig applies a partial descriptor update. A status change also
// moves the internal state, except for modules that were never initialized.
func (r *Registry) UpdateConfig(moduleID string, update ConfigUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[moduleID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrModuleNotFound, moduleID)
	}

	if update.Status != nil {
		if !update.Status.Valid() {
			return fmt.Errorf("invalid module status: %s", *update.Status)
		}
		e.desc.Status = *update.Status
		if e.state != StateUninitialized {
			e.state = stateForStatus(*update.Status)
		}
	}
	if update.Capabilities != nil {
		e.desc.Capabilities = update.Capabilities
	}
	if update.SupportedTriggers != nil {
		e.desc.SupportedTriggers = update.SupportedTriggers
	}
	if update.OutputTriggers != nil {
		e.desc.OutputTriggers = update.OutputTriggers
	}
	return nil
}

// ModuleIDs returns the ids of all registered modules.
func (r *Registry) ModuleIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}

func stateForStatus(s Status) State {
	switch s {
	case StatusInactive:
		return StateInactive
	case StatusMaintenance:
		return StateMaintenance
	default:
		return StateActive
	}
}
