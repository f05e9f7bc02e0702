// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package tailer

import (
	"context"
	"sync"

	"github.com/nwgate/codex-gateway/internal/gwevents"
)

// Registry owns the set of active per-session tailers and retires them on
// the idle "retire me" signal, avoiding a back-reference from Tailer to its
// owning registry (spec §9 Design Notes).
type Registry struct {
	cfg    Config
	bus    *gwevents.MemoryBus
	metaFn SessionMetaFunc
	sub    gwevents.SubscriptionID

	mu      sync.Mutex
	tailers map[string]*Tailer
}

// NewRegistry builds a Registry and subscribes it to tailer.retire events
// on bus.
func NewRegistry(cfg Config, bus *gwevents.MemoryBus, metaFn SessionMetaFunc) *Registry {
	r := &Registry{
		cfg:     cfg,
		bus:     bus,
		metaFn:  metaFn,
		tailers: make(map[string]*Tailer),
	}
	if bus != nil {
		r.sub = bus.Subscribe(gwevents.EventTailerRetire, r.onRetire)
	}
	return r
}

func (r *Registry) onRetire(ctx context.Context, event gwevents.Event) {
	r.mu.Lock()
	t, ok := r.tailers[event.SessionID]
	if ok {
		delete(r.tailers, event.SessionID)
	}
	r.mu.Unlock()
	if ok {
		t.Close()
	}
}

// GetOrCreate returns the tailer for sessionID, creating one watching
// journalPath if none exists yet.
func (r *Registry) GetOrCreate(sessionID, journalPath string) (*Tailer, error) {
	r.mu.Lock()
	if t, ok := r.tailers[sessionID]; ok {
		r.mu.Unlock()
		return t, nil
	}
	r.mu.Unlock()

	t, err := New(sessionID, journalPath, r.cfg, r.bus, r.metaFn)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if existing, ok := r.tailers[sessionID]; ok {
		r.mu.Unlock()
		t.Close()
		return existing, nil
	}
	r.tailers[sessionID] = t
	r.mu.Unlock()

	return t, nil
}

// Stats returns a snapshot of every currently active tailer.
func (r *Registry) Stats() []TailerStats {
	r.mu.Lock()
	tailers := make([]*Tailer, 0, len(r.tailers))
	for _, t := range r.tailers {
		tailers = append(tailers, t)
	}
	r.mu.Unlock()

	stats := make([]TailerStats, 0, len(tailers))
	for _, t := range tailers {
		stats = append(stats, t.Stats())
	}
	return stats
}

// Close retires every tailer and unsubscribes from the bus.
func (r *Registry) Close() {
	if r.bus != nil {
		r.bus.Unsubscribe(r.sub)
	}

	r.mu.Lock()
	tailers := make([]*Tailer, 0, len(r.tailers))
	for _, t := range r.tailers {
		tailers = append(tailers, t)
	}
	r.tailers = make(map[string]*Tailer)
	r.mu.Unlock()

	for _, t := range tailers {
		t.Close()
	}
}
