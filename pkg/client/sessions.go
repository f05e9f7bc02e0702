// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

// SessionClient provides access to session lifecycle operations.
//
// Access this client through [Client.Sessions].
type SessionClient struct {
	c *Client
}

// Session is one entry from the session directory (spec §4.E).
type Session struct {
	ID                 string    `json:"id"`
	Cwd                string    `json:"cwd"`
	Model              string    `json:"model"`
	CreatedAt          time.Time `json:"createdAt"`
	LastMessageAt      time.Time `json:"lastMessageAt,omitempty"`
	LastMessagePreview string    `json:"lastMessagePreview,omitempty"`
	MessageCount       int       `json:"messageCount"`
	FileSize           int64     `json:"fileSize"`
	IsActive           bool      `json:"isActive"`
}

// Page is a paginated session listing.
type Page struct {
	Sessions []Session `json:"sessions"`
	Total    int       `json:"total"`
	HasMore  bool      `json:"hasMore"`
}

// List returns a page of sessions, most-recent-first.
func (s *SessionClient) List(ctx context.Context, offset, limit int) (*Page, error) {
	path := "/api/sessions"
	params := url.Values{}
	if offset > 0 {
		params.Set("offset", fmt.Sprintf("%d", offset))
	}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	data, err := s.c.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var page Page
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("failed to parse sessions: %w", err)
	}
	return &page, nil
}

// StartResult reports a newly created session (spec §6 POST /api/session/start).
type StartResult struct {
	SessionID string `json:"sessionId"`
	Cwd       string `json:"cwd"`
	Ready     bool   `json:"ready"`
}

// Start creates a new session rooted at cwd, optionally overriding the
// default model.
func (s *SessionClient) Start(ctx context.Context, cwd, model string) (*StartResult, error) {
	data, err := s.c.postJSON(ctx, "/api/session/start", map[string]string{
		"cwd":   cwd,
		"model": model,
	})
	if err != nil {
		return nil, err
	}

	var result StartResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}
	return &result, nil
}

// SubmitResult reports the accepted message's ID (spec §6 POST /api/sessions/:id/messages).
type SubmitResult struct {
	Accepted  bool   `json:"accepted"`
	MessageID string `json:"messageId"`
}

// SubmitMessage enqueues a user turn for sessionID.
func (s *SessionClient) SubmitMessage(ctx context.Context, sessionID, content, imagePath string) (*SubmitResult, error) {
	data, err := s.c.postJSON(ctx, fmt.Sprintf("/api/sessions/%s/messages", sessionID), map[string]string{
		"content":   content,
		"imagePath": imagePath,
	})
	if err != nil {
		return nil, err
	}

	var result SubmitResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse submit result: %w", err)
	}
	return &result, nil
}

// CancelResult reports the outcome of a cancel request (spec §6 POST
// /api/sessions/:id/cancel).
type CancelResult struct {
	OK           bool `json:"ok"`
	Cancelled    bool `json:"cancelled"`
	Running      bool `json:"running"`
	ClearedQueue bool `json:"clearedQueue"`
}

// Cancel stops sessionID's active turn, optionally clearing its queue.
func (s *SessionClient) Cancel(ctx context.Context, sessionID string, clearQueue bool) (*CancelResult, error) {
	data, err := s.c.postJSON(ctx, fmt.Sprintf("/api/sessions/%s/cancel", sessionID), map[string]bool{
		"clearQueue": clearQueue,
	})
	if err != nil {
		return nil, err
	}

	var result CancelResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse cancel result: %w", err)
	}
	return &result, nil
}
