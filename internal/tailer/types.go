// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package tailer implements the per-session journal tailer and SSE
// fan-out (spec §4.C): one tailer per active session watches its .jsonl
// file and streams new records to every attached client.
package tailer

import (
	"time"

	"github.com/nwgate/codex-gateway/internal/journal"
)

// Client receives framed SSE events from a Tailer. WriteFrame is called
// from the attaching goroutine, the live-read path and the heartbeat loop,
// so it must be safe for concurrent use; a returned error
// causes the client to be dropped from the broadcast set without affecting
// other clients (spec §4.C "Client death").
type Client interface {
	WriteFrame(cursor string, event string, data interface{}) error
}

// AttachRequest is a client's attach protocol payload.
type AttachRequest struct {
	// Since is the last cursor the client has already seen (0 for a fresh
	// connection).
	Since int
	// Limit caps how many history records are replayed; 0 means unlimited.
	Limit int
}

// SessionMetaFunc resolves the current session_meta payload (sidecar plus
// live isActive/queueLength) for the history preamble.
type SessionMetaFunc func(sessionID string) (journal.SessionMetaData, error)

// TailerStats is a diagnostics snapshot of one tailer's live state, served
// by GET /api/chat-stream/stats.
type TailerStats struct {
	SessionID string     `json:"sessionId"`
	Clients   int        `json:"clients"`
	Position  int        `json:"position"`
	IdleSince *time.Time `json:"idleSince,omitempty"`
}

const (
	// replayYieldEvery is the cooperative-scheduling point during history
	// replay: every this-many emitted records, the tailer yields so one
	// slow-draining client cannot starve the others.
	replayYieldEvery = 200
)
