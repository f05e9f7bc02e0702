// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package engine implements the Exec-Turn Engine (spec §4.D): it
// serializes user turns per session into a child-process invocation of the
// exec binary, transcodes its structured stdout into journal events, and
// exposes cancellation.
package engine

import (
	"strings"
	"time"
)

// Turn is one queued user submission awaiting a child-process run.
type Turn struct {
	Prompt        string
	Content       string
	ImagePath     string
	UserMessageID string
}

// Config bounds how the engine spawns and labels the exec child.
type Config struct {
	// Bin is the exec binary's path or name (resolved via exec.LookPath
	// when it has no path separator).
	Bin string
	// ApprovalPolicy is passed as `-a <value>`.
	ApprovalPolicy string
	// SandboxMode is passed as `--sandbox <value>`.
	SandboxMode string
	// DefaultModel is used when a session has no model override.
	DefaultModel string
	// ModelChoices is the list `/models` offers.
	ModelChoices []string
	// GraceKillTimeout bounds how long a cancelled child gets after a
	// graceful termination request before being force-killed.
	GraceKillTimeout time.Duration
	// StderrRingSize bounds the bytes kept of a turn's stderr for error
	// finalization previews.
	StderrRingSize int
}

func (c *Config) setDefaults() {
	if c.GraceKillTimeout <= 0 {
		c.GraceKillTimeout = 1500 * time.Millisecond
	}
	if c.StderrRingSize <= 0 {
		c.StderrRingSize = 8 * 1024
	}
}

const (
	previewLen       = 120
	stderrPreviewLen = 2000
)

// modelContextWindow is an entry in the context-accounting table (spec §4.D
// "Context accounting").
type modelContextWindow struct {
	prefix   string
	exact    bool
	maxTokens int
}

var modelContextTable = []modelContextWindow{
	{prefix: "gpt-4o", maxTokens: 128_000},
	{prefix: "o3", exact: true, maxTokens: 200_000},
	{prefix: "o4-mini", exact: true, maxTokens: 200_000},
	{prefix: "gpt-5.2", maxTokens: 200_000},
}

// lookupMaxTokens returns the context window for model, or false if no
// table entry matches (the spec's "maxTokens and percentLeft are null"
// case).
func lookupMaxTokens(model string) (int, bool) {
	for _, e := range modelContextTable {
		if e.exact {
			if model == e.prefix {
				return e.maxTokens, true
			}
			continue
		}
		if strings.HasPrefix(model, e.prefix) {
			return e.maxTokens, true
		}
	}
	return 0, false
}

// isSlashCommand reports whether trimmed content is a gateway slash
// command (spec §6 "Slash-command protocol").
func isSlashCommand(content string) bool {
	trimmed := strings.TrimSpace(content)
	return trimmed == "/models" || strings.HasPrefix(trimmed, "/model ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
