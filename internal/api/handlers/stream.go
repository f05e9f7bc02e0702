// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/nwgate/codex-gateway/internal/journal"
	"github.com/nwgate/codex-gateway/internal/tailer"
)

// StreamHandler serves the per-session SSE journal fan-out (spec §4.C, §6).
type StreamHandler struct {
	store   *journal.Store
	tailers *tailer.Registry
}

// NewStreamHandler builds a StreamHandler.
func NewStreamHandler(store *journal.Store, tailers *tailer.Registry) *StreamHandler {
	return &StreamHandler{store: store, tailers: tailers}
}

// sseClient adapts an http.ResponseWriter into a tailer.Client, framing each
// event as `id:<cursor>\nevent:<kind>\ndata:<json>\n\n\n` per spec §6.
type sseClient struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

func (c *sseClient) WriteFrame(cursor string, event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintf(c.w, "id:%s\nevent:%s\ndata:%s\n\n\n", cursor, event, payload); err != nil {
		return err
	}
	c.flusher.Flush()
	return nil
}

// Chat handles GET /api/chat-stream?session=&since=&limit=.
func (h *StreamHandler) Chat(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if !journal.SessionIDPattern.MatchString(sessionID) {
		WriteError(w, http.StatusBadRequest, ErrInvalidSessionID, "session id is not a valid uuid")
		return
	}
	if _, err := h.store.ReadSidecar(sessionID); err != nil {
		WriteError(w, http.StatusNotFound, ErrSessionNotFound, "session not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, "streaming unsupported")
		return
	}

	since := 0
	if v := r.URL.Query().Get("since"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			since = n
		}
	}
	// A Last-Event-ID header means the client reconnected after a dropped
	// connection; it takes precedence over the query's since value.
	if v := r.Header.Get("Last-Event-ID"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			since = n
		}
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	t, err := h.tailers.GetOrCreate(sessionID, h.store.JournalPath(sessionID))
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	client := &sseClient{w: w, flusher: flusher}
	defer t.Detach(client)

	if err := t.Attach(r.Context(), client, tailer.AttachRequest{Since: since, Limit: limit}); err != nil {
		return
	}

	// Attach only runs the meta/history/join-broadcast-set handshake; every
	// live frame thereafter is pushed by the tailer's own watch/heartbeat
	// goroutines directly onto client. Block here so the response stays
	// open for them until the client disconnects.
	<-r.Context().Done()
}

// Stats handles GET /api/chat-stream/stats.
func (h *StreamHandler) Stats(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		WriteJSON(w, http.StatusOK, h.tailers.Stats())
		return
	}
	if !journal.SessionIDPattern.MatchString(sessionID) {
		WriteError(w, http.StatusBadRequest, ErrInvalidSessionID, "session id is not a valid uuid")
		return
	}
	for _, s := range h.tailers.Stats() {
		if s.SessionID == sessionID {
			WriteJSON(w, http.StatusOK, s)
			return
		}
	}
	WriteError(w, http.StatusNotFound, ErrSessionNotFound, "no active tailer for session")
}
