// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nwgate/codex-gateway/internal/gwevents"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// EventHandler serves the debug event surface (spec §2 component F):
// read-only visibility into the internal pub/sub bus for operators, not
// part of the session/turn contract itself.
type EventHandler struct {
	bus *gwevents.MemoryBus
}

// NewEventHandler creates a new event handler.
func NewEventHandler(bus *gwevents.MemoryBus) *EventHandler {
	return &EventHandler{bus: bus}
}

// History returns the event history.
func (h *EventHandler) History(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := gwevents.Filter{}

	if types := query["type"]; len(types) > 0 {
		filter.Patterns = types
	}

	if sessionID := query.Get("session"); sessionID != "" {
		filter.SessionID = sessionID
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 {
			filter.Limit = n
		}
	}

	if sinceStr := query.Get("since"); sinceStr != "" {
		if t, err := time.Parse(time.RFC3339, sinceStr); err == nil {
			filter.Since = t
		}
	}

	WriteJSON(w, http.StatusOK, h.bus.History(filter))
}

// WebSocket handles the WebSocket connection for real-time debug events.
func (h *EventHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		pattern = "*"
	}

	eventCh := make(chan gwevents.Event, 100)
	done := make(chan struct{})

	subID := h.bus.Subscribe(pattern, func(_ context.Context, event gwevents.Event) {
		select {
		case eventCh <- event:
		case <-done:
		default:
			// Drop if the client's buffer is full; it is not the bus's job
			// to slow down for a lagging debug viewer.
		}
	})
	defer h.bus.Unsubscribe(subID)

	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	pingTicker := time.NewTicker(54 * time.Second)
	defer pingTicker.Stop()

	go func() {
		defer close(done)
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case event := <-eventCh:
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-pingTicker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
