// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/nwgate/codex-gateway/internal/directory"
	"github.com/nwgate/codex-gateway/internal/engine"
	"github.com/nwgate/codex-gateway/internal/journal"
)

// SessionHandler serves the session-directory and exec-turn submission
// surface (spec §6 HTTP surface).
type SessionHandler struct {
	store  *journal.Store
	lister *directory.Lister
	eng    *engine.Engine
}

// NewSessionHandler builds a SessionHandler.
func NewSessionHandler(store *journal.Store, lister *directory.Lister, eng *engine.Engine) *SessionHandler {
	return &SessionHandler{store: store, lister: lister, eng: eng}
}

// List handles GET /api/sessions?limit=&offset=.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	limit := 50
	if v := query.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	offset := 0
	if v := query.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	page, err := h.lister.List(offset, limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, page)
}

type startSessionRequest struct {
	Cwd   string `json:"cwd"`
	Model string `json:"model"`
}

// Start handles POST /api/session/start.
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid request body")
		return
	}

	cwd := strings.TrimSpace(req.Cwd)
	if cwd == "" {
		WriteError(w, http.StatusBadRequest, ErrInvalidCwd, "cwd is required")
		return
	}
	if info, err := os.Stat(cwd); err != nil || !info.IsDir() {
		WriteError(w, http.StatusBadRequest, ErrInvalidCwd, "cwd does not exist or is not a directory")
		return
	}

	id := uuid.NewString()
	sc, err := h.store.CreateSession(id, cwd, req.Model)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}

	WriteJSON(w, http.StatusCreated, startSessionResponse{SessionID: sc.ID, Cwd: sc.Cwd, Ready: true})
}

type startSessionResponse struct {
	SessionID string `json:"sessionId"`
	Cwd       string `json:"cwd"`
	Ready     bool   `json:"ready"`
}

type submitMessageRequest struct {
	Content   string `json:"content"`
	ImagePath string `json:"imagePath"`
}

// SubmitMessage handles POST /api/sessions/:id/messages.
func (h *SessionHandler) SubmitMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	if !journal.SessionIDPattern.MatchString(sessionID) {
		WriteError(w, http.StatusBadRequest, ErrInvalidSessionID, "session id is not a valid uuid")
		return
	}

	if _, err := h.store.ReadSidecar(sessionID); err != nil {
		WriteError(w, http.StatusNotFound, ErrSessionNotFound, "session not found")
		return
	}

	var req submitMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		WriteError(w, http.StatusBadRequest, ErrMissingContent, "content is required")
		return
	}

	messageID, err := h.eng.Submit(sessionID, req.Content, req.ImagePath)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}

	WriteJSON(w, http.StatusAccepted, submitMessageResponse{Accepted: true, MessageID: messageID})
}

type submitMessageResponse struct {
	Accepted  bool   `json:"accepted"`
	MessageID string `json:"messageId"`
}

type cancelRequest struct {
	ClearQueue bool `json:"clearQueue"`
}

// Cancel handles POST /api/sessions/:id/cancel.
func (h *SessionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	if !journal.SessionIDPattern.MatchString(sessionID) {
		WriteError(w, http.StatusBadRequest, ErrInvalidSessionID, "session id is not a valid uuid")
		return
	}

	var req cancelRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req) // clearQueue is optional; ignore decode errors on an empty body
	}

	result, err := h.eng.Cancel(sessionID, req.ClearQueue)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, cancelResponse{
		OK:           true,
		Cancelled:    result.TurnWasRunning,
		Running:      result.TurnWasRunning,
		ClearedQueue: result.QueueCleared,
	})
}

type cancelResponse struct {
	OK           bool `json:"ok"`
	Cancelled    bool `json:"cancelled"`
	Running      bool `json:"running"`
	ClearedQueue bool `json:"clearedQueue"`
}
