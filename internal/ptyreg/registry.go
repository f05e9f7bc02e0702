// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package ptyreg

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nwgate/codex-gateway/internal/gwevents"
)

// Registry owns the set of live PTY sessions (spec §4.B).
type Registry struct {
	cfg   Config
	bus   *gwevents.MemoryBus
	group singleflight.Group

	mu       sync.RWMutex
	sessions map[string]*session

	stop chan struct{}
	done chan struct{}
}

// New builds a Registry. bus may be nil, in which case lifecycle events are
// not published (useful in tests that don't care about the debug surface).
func New(cfg Config, bus *gwevents.MemoryBus) *Registry {
	cfg.setDefaults()
	r := &Registry{
		cfg:      cfg,
		bus:      bus,
		sessions: make(map[string]*session),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go r.reapLoop()
	return r
}

// GetOrCreate returns the existing session for id, bumping its
// lastActivity, or spawns a new one. Concurrent calls for the same id are
// deduplicated via singleflight so only one PTY is ever started per id.
func (r *Registry) GetOrCreate(id string) (*session, error) {
	r.mu.RLock()
	if s, ok := r.sessions[id]; ok {
		r.mu.RUnlock()
		s.mu.Lock()
		s.lastActivity = time.Now()
		s.mu.Unlock()
		return s, nil
	}
	r.mu.RUnlock()

	v, err, _ := r.group.Do(id, func() (interface{}, error) {
		r.mu.RLock()
		if s, ok := r.sessions[id]; ok {
			r.mu.RUnlock()
			return s, nil
		}
		r.mu.RUnlock()

		s, err := spawn(id, r.cfg)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.sessions[id] = s
		r.mu.Unlock()

		go s.readLoop(func(code int, signal string) {
			r.handleExit(id, code, signal)
		})

		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*session), nil
}

// Write sends bytes to sessionId's PTY stdin.
func (r *Registry) Write(id string, data []byte) error {
	s, ok := r.lookup(id)
	if !ok {
		return ErrNotFound
	}
	return s.write(data)
}

// Resize changes sessionId's PTY geometry; cols and rows must be positive.
func (r *Registry) Resize(id string, cols, rows int) error {
	s, ok := r.lookup(id)
	if !ok {
		return ErrNotFound
	}
	return s.resize(cols, rows)
}

// Attach registers sink against sessionId, immediately replaying history.
func (r *Registry) Attach(id string, sink Sink) error {
	s, ok := r.lookup(id)
	if !ok {
		return ErrNotFound
	}
	s.attach(sink)
	return nil
}

// Detach unregisters sink from sessionId.
func (r *Registry) Detach(id string, sink Sink) {
	if s, ok := r.lookup(id); ok {
		s.detach(sink)
	}
}

func (r *Registry) lookup(id string) (*session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) handleExit(id string, code int, signalName string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()

	log.Printf("ptyreg: session %s exited (code=%d signal=%q)", id, code, signalName)
	r.publish(id, "exited", code, signalName)
}

// reapLoop periodically sweeps sessions exceeding their TTL or idle budget,
// mirroring the teacher's cleanupLoop/stopIdleViewers idiom.
func (r *Registry) reapLoop() {
	defer close(r.done)
	ticker := time.NewTicker(r.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.reapOnce()
		}
	}
}

func (r *Registry) reapOnce() {
	now := time.Now()

	r.mu.RLock()
	var toReap []string
	for id, s := range r.sessions {
		s.mu.Lock()
		ttlExceeded := now.Sub(s.createdAt) > r.cfg.SessionTTL
		idleExceeded := s.clientCountLocked() == 0 && now.Sub(s.lastActivity) > r.cfg.IdleTimeout
		s.mu.Unlock()
		if ttlExceeded || idleExceeded {
			toReap = append(toReap, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range toReap {
		r.reap(id)
	}
}

func (r *Registry) reap(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return
	}

	log.Printf("ptyreg: reaping session %s (ttl/idle)", id)
	s.terminate()
	r.publish(id, "reaped", -1, "")
}

func (r *Registry) publish(id, reason string, code int, signalName string) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(context.Background(), gwevents.Event{
		Type:      gwevents.EventPTYReaped,
		SessionID: id,
		Payload: map[string]interface{}{
			"reason": reason,
			"code":   code,
			"signal": signalName,
		},
	})
}

// Close stops the reaper and terminates every live session.
func (r *Registry) Close() {
	close(r.stop)
	<-r.done

	r.mu.Lock()
	sessions := make([]*session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.terminate()
	}
}
