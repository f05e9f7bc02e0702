// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package gwevents provides the gateway's internal pub/sub bus, used to let
// a tailer or reaper signal lifecycle transitions upward without holding a
// reference back to the registry that owns it (spec §9 Design Notes).
package gwevents

import (
	"context"
	"time"
)

// Event is an immutable event record.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	SessionID string                 `json:"sessionId,omitempty"`
	Payload   map[string]interface{} `json:"payload"`
}

// Handler processes a received event.
type Handler func(ctx context.Context, event Event)

// SubscriptionID uniquely identifies a subscription.
type SubscriptionID string

// Filter selects events from History.
type Filter struct {
	Patterns  []string
	SessionID string
	Since     time.Time
	Limit     int
}

// Bus is the gateway's event pub/sub surface.
type Bus interface {
	Publish(ctx context.Context, event Event)
	Subscribe(pattern string, handler Handler) SubscriptionID
	Unsubscribe(id SubscriptionID)
	History(filter Filter) []Event
	Close()
}

// Well-known event types published by the gateway's components.
const (
	// EventTailerRetire is published by internal/tailer when a session's
	// SSE fan-out has had no clients and no activity for its idle window,
	// asking the owning registry to drop the tailer entry.
	EventTailerRetire = "tailer.retire"

	// EventPTYReaped is published by internal/ptyreg when the reaper or an
	// exit handler removes a PTY session.
	EventPTYReaped = "pty.reaped"

	// EventTurnFinalized is published by internal/engine when an exec turn
	// completes, is cancelled, or errors.
	EventTurnFinalized = "turn.finalized"
)
