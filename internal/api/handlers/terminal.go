// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/nwgate/codex-gateway/internal/ptyreg"
)

const (
	ptyPongWait   = 60 * time.Second
	ptyPingPeriod = 54 * time.Second
)

// wsSink adapts a live WebSocket connection into a ptyreg.Sink, forwarding
// PTY output and exit notifications as framed JSON messages. Write must not
// block the registry for long, so sends are guarded by a mutex shared with
// the ping ticker rather than funneled through a channel.
type wsSink struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

type ptyOutboundMessage struct {
	Type   string `json:"type"`
	Data   string `json:"data,omitempty"`
	Code   int    `json:"code,omitempty"`
	Signal string `json:"signal,omitempty"`
}

func (s *wsSink) Write(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.WriteJSON(ptyOutboundMessage{Type: "output", Data: string(data)})
}

func (s *wsSink) Exit(code int, signal string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.WriteJSON(ptyOutboundMessage{Type: "exit", Code: code, Signal: signal})
}

// ptyInboundMessage is a client->server control frame over the terminal
// WebSocket (spec §4.B attach protocol).
type ptyInboundMessage struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
	Cols int    `json:"cols,omitempty"`
	Rows int    `json:"rows,omitempty"`
}

// TerminalHandler serves the raw PTY WebSocket surface backed by the PTY
// Registry (spec §4.B).
type TerminalHandler struct {
	registry *ptyreg.Registry
}

// NewTerminalHandler builds a TerminalHandler.
func NewTerminalHandler(registry *ptyreg.Registry) *TerminalHandler {
	return &TerminalHandler{registry: registry}
}

// WebSocket handles GET /api/sessions/:id/terminal, attaching the caller to
// sessionId's PTY, spawning it if it doesn't yet exist.
func (h *TerminalHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if _, err := h.registry.GetOrCreate(sessionID); err != nil {
		conn.WriteJSON(ptyOutboundMessage{Type: "error", Data: err.Error()})
		return
	}

	sink := &wsSink{conn: conn}
	if err := h.registry.Attach(sessionID, sink); err != nil {
		conn.WriteJSON(ptyOutboundMessage{Type: "error", Data: err.Error()})
		return
	}
	defer h.registry.Detach(sessionID, sink)

	conn.SetReadDeadline(time.Now().Add(ptyPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(ptyPongWait))
		return nil
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg ptyInboundMessage
			if err := json.Unmarshal(raw, &msg); err != nil {
				continue
			}
			switch msg.Type {
			case "input":
				h.registry.Write(sessionID, []byte(msg.Data))
			case "resize":
				if msg.Cols > 0 && msg.Rows > 0 {
					h.registry.Resize(sessionID, msg.Cols, msg.Rows)
				}
			}
		}
	}()

	pingTicker := time.NewTicker(ptyPingPeriod)
	defer pingTicker.Stop()

	for {
		select {
		case <-done:
			return
		case <-pingTicker.C:
			sink.mu.Lock()
			err := conn.WriteMessage(websocket.PingMessage, nil)
			sink.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
