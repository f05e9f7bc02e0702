// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package tailer

import (
	"context"
	"sync"
	"time"

	"github.com/nwgate/codex-gateway/internal/gwevents"
)

// recordingBus wraps a real gwevents.MemoryBus and records every
// tailer.retire event's session id, for tests asserting the idle-shutdown
// signal fired.
type recordingBus struct {
	bus *gwevents.MemoryBus

	mu      sync.Mutex
	retired map[string]bool
}

func newRecordingBus() *recordingBus {
	rb := &recordingBus{
		bus:     gwevents.NewMemoryBus(gwevents.BusConfig{HistoryMaxAge: time.Hour}),
		retired: make(map[string]bool),
	}
	rb.bus.Subscribe(gwevents.EventTailerRetire, func(ctx context.Context, e gwevents.Event) {
		rb.mu.Lock()
		rb.retired[e.SessionID] = true
		rb.mu.Unlock()
	})
	return rb
}

func (rb *recordingBus) sawRetire(sessionID string) bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.retired[sessionID]
}
