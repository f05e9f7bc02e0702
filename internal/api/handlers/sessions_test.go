// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nwgate/codex-gateway/internal/directory"
	"github.com/nwgate/codex-gateway/internal/engine"
	"github.com/nwgate/codex-gateway/internal/journal"
)

func newTestSessionHandler(t *testing.T) (*SessionHandler, *journal.Store) {
	t.Helper()
	store, err := journal.NewStore(t.TempDir())
	require.NoError(t, err)

	lister := directory.NewLister(store, nil)
	eng := engine.New(store, nil, engine.Config{Bin: "true", ApprovalPolicy: "on-request", SandboxMode: "workspace-write"})

	return NewSessionHandler(store, lister, eng), store
}

func newRouterFor(handler http.HandlerFunc, method, pattern string) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc(pattern, handler).Methods(method)
	return r
}

func TestSessionHandler_List_Empty(t *testing.T) {
	h, _ := newTestSessionHandler(t)

	req := httptest.NewRequest("GET", "/api/sessions", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.Error)
}

func TestSessionHandler_Start_RequiresCwd(t *testing.T) {
	h, _ := newTestSessionHandler(t)

	body, _ := json.Marshal(startSessionRequest{Cwd: ""})
	req := httptest.NewRequest("POST", "/api/session/start", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.Start(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrInvalidCwd, resp.Error.Code)
}

func TestSessionHandler_Start_RejectsNonexistentCwd(t *testing.T) {
	h, _ := newTestSessionHandler(t)

	body, _ := json.Marshal(startSessionRequest{Cwd: "/nonexistent/path/xyz"})
	req := httptest.NewRequest("POST", "/api/session/start", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.Start(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionHandler_Start_Creates(t *testing.T) {
	h, _ := newTestSessionHandler(t)
	cwd := t.TempDir()

	body, _ := json.Marshal(startSessionRequest{Cwd: cwd, Model: "gpt-5.2"})
	req := httptest.NewRequest("POST", "/api/session/start", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.Start(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Data startSessionResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Data.SessionID)
	assert.Equal(t, cwd, resp.Data.Cwd)
	assert.True(t, resp.Data.Ready)

	// And it now shows up in the directory listing.
	listReq := httptest.NewRequest("GET", "/api/sessions", nil)
	listRec := httptest.NewRecorder()
	h.List(listRec, listReq)

	var listResp struct {
		Data directory.Page `json:"data"`
	}
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &listResp))
	assert.Equal(t, 1, listResp.Data.Total)
}

func TestSessionHandler_SubmitMessage_InvalidSessionID(t *testing.T) {
	h, _ := newTestSessionHandler(t)

	r := newRouterFor(h.SubmitMessage, "POST", "/api/sessions/{id}/messages")
	req := httptest.NewRequest("POST", "/api/sessions/not-a-uuid/messages", bytes.NewReader([]byte(`{"content":"hi"}`)))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrInvalidSessionID, resp.Error.Code)
}

func TestSessionHandler_SubmitMessage_SessionNotFound(t *testing.T) {
	h, _ := newTestSessionHandler(t)

	r := newRouterFor(h.SubmitMessage, "POST", "/api/sessions/{id}/messages")
	id := "11111111-1111-1111-1111-111111111111"
	req := httptest.NewRequest("POST", "/api/sessions/"+id+"/messages", bytes.NewReader([]byte(`{"content":"hi"}`)))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrSessionNotFound, resp.Error.Code)
}

func TestSessionHandler_SubmitMessage_MissingContent(t *testing.T) {
	h, store := newTestSessionHandler(t)
	sc, err := store.CreateSession("22222222-2222-2222-2222-222222222222", t.TempDir(), "gpt-5.2")
	require.NoError(t, err)

	r := newRouterFor(h.SubmitMessage, "POST", "/api/sessions/{id}/messages")
	req := httptest.NewRequest("POST", "/api/sessions/"+sc.ID+"/messages", bytes.NewReader([]byte(`{"content":""}`)))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrMissingContent, resp.Error.Code)
}

func TestSessionHandler_SubmitMessage_Accepted(t *testing.T) {
	h, store := newTestSessionHandler(t)
	sc, err := store.CreateSession("33333333-3333-3333-3333-333333333333", t.TempDir(), "gpt-5.2")
	require.NoError(t, err)

	r := newRouterFor(h.SubmitMessage, "POST", "/api/sessions/{id}/messages")
	req := httptest.NewRequest("POST", "/api/sessions/"+sc.ID+"/messages", bytes.NewReader([]byte(`{"content":"hello there"}`)))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)

	var resp struct {
		Data submitMessageResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Accepted)
	assert.NotEmpty(t, resp.Data.MessageID)
}

func TestSessionHandler_Cancel_InvalidSessionID(t *testing.T) {
	h, _ := newTestSessionHandler(t)

	r := newRouterFor(h.Cancel, "POST", "/api/sessions/{id}/cancel")
	req := httptest.NewRequest("POST", "/api/sessions/not-a-uuid/cancel", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionHandler_Cancel_NoActiveTurn(t *testing.T) {
	h, store := newTestSessionHandler(t)
	sc, err := store.CreateSession("44444444-4444-4444-4444-444444444444", t.TempDir(), "gpt-5.2")
	require.NoError(t, err)

	r := newRouterFor(h.Cancel, "POST", "/api/sessions/{id}/cancel")
	req := httptest.NewRequest("POST", "/api/sessions/"+sc.ID+"/cancel", bytes.NewReader([]byte(`{"clearQueue":true}`)))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data cancelResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Data.OK)
	assert.False(t, resp.Data.Cancelled)
	assert.False(t, resp.Data.Running)
	assert.True(t, resp.Data.ClearedQueue)
}
