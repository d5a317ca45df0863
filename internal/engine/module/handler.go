// Copyright (C) 2026 Cascade HR
// SPDX-License-Identifier: AGPL-3.0-or-later

package module

import (
	"context"

	"github.com/cascadehr/cascade/internal/engine/trigger"
)

// Handler is the domain workflow behind a module: one implementation per
// module, dispatched by trigger type. Expected business failures must be
// reported through HandlerResult{Success: false, Error: ...}; a returned
// error is reserved for truly exceptional conditions. The engine tolerates
// both and folds either into a structured failure result.
type Handler interface {
	ProcessTrigger(ctx context.Context, tc trigger.Context) (trigger.HandlerResult, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, tc trigger.Context) (trigger.HandlerResult, error)

// ProcessTrigger implements Handler.
func (f HandlerFunc) ProcessTrigger(ctx context.Context, tc trigger.Context) (trigger.HandlerResult, error) {
	return f(ctx, tc)
}
