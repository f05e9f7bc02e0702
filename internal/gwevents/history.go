// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package gwevents

import (
	"sort"
	"sync"
	"time"
)

// historyConfig bounds retention of the in-memory event history.
type historyConfig struct {
	maxEvents int
	maxAge    time.Duration
}

// eventHistory retains a bounded window of recent events, served by the
// debug history endpoint (GET /api/events).
type eventHistory struct {
	mu      sync.RWMutex
	events  []Event
	cfg     historyConfig
	matcher *patternMatcher
}

func newEventHistory(cfg historyConfig) *eventHistory {
	if cfg.maxEvents <= 0 {
		cfg.maxEvents = 1000
	}
	if cfg.maxAge <= 0 {
		cfg.maxAge = time.Hour
	}
	return &eventHistory{cfg: cfg, matcher: newPatternMatcher()}
}

func (h *eventHistory) add(event Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	if len(h.events) > h.cfg.maxEvents {
		h.events = h.events[len(h.events)-h.cfg.maxEvents:]
	}
}

func (h *eventHistory) query(filter Filter) []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	result := make([]Event, 0)
	for _, event := range h.events {
		if h.matches(event, filter) {
			result = append(result, event)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[len(result)-filter.Limit:]
	}
	return result
}

func (h *eventHistory) matches(event Event, filter Filter) bool {
	if len(filter.Patterns) > 0 {
		matched := false
		for _, p := range filter.Patterns {
			if h.matcher.match(event.Type, p) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if filter.SessionID != "" && event.SessionID != filter.SessionID {
		return false
	}
	if !filter.Since.IsZero() && event.Timestamp.Before(filter.Since) {
		return false
	}
	return true
}

// prune drops events older than maxAge, enforced periodically by the bus.
func (h *eventHistory) prune() {
	h.mu.Lock()
	defer h.mu.Unlock()
	cutoff := time.Now().Add(-h.cfg.maxAge)
	filtered := h.events[:0:0]
	for _, event := range h.events {
		if event.Timestamp.After(cutoff) {
			filtered = append(filtered, event)
		}
	}
	h.events = filtered
}

func (h *eventHistory) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = nil
}
