// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config handles HJSON configuration loading for the gateway.
package config

// Config is the root configuration structure for codex-gateway.
type Config struct {
	Version string `json:"version"`

	// Workdir is the working directory PTY sessions are spawned in. It is
	// not a fallback for exec sessions: starting one without a cwd is
	// rejected.
	Workdir string `json:"workdir"`

	// ExecBin is the exec binary's path or name.
	ExecBin string `json:"exec_bin"`
	// ApprovalPolicy is passed to the exec binary as `-a <value>`.
	ApprovalPolicy string `json:"approval_policy"`
	// SandboxMode is passed to the exec binary as `--sandbox <value>`.
	SandboxMode string `json:"sandbox_mode"`
	// DefaultModel is used for sessions without a model override.
	DefaultModel string `json:"default_model"`
	// ModelChoices is the list `/models` offers.
	ModelChoices []string `json:"model_choices"`

	// SessionTTLMs bounds how long a PTY session is kept before the reaper
	// kills it outright, regardless of activity.
	SessionTTLMs int64 `json:"session_ttl_ms"`
	// IdleTimeoutMs bounds how long a PTY session with no attached client
	// is kept before the reaper retires it.
	IdleTimeoutMs int64 `json:"idle_timeout_ms"`
	// HistoryLimit bounds the bytes of PTY scrollback kept per session.
	HistoryLimit int `json:"history_limit"`
	// HeartbeatIntervalMs is the SSE tailer's heartbeat cadence.
	HeartbeatIntervalMs int64 `json:"heartbeat_interval_ms"`
	// TailerIdleTimeoutMs bounds how long an SSE tailer with no clients is
	// kept before it retires.
	TailerIdleTimeoutMs int64 `json:"tailer_idle_timeout_ms"`

	Server   ServerConfig  `json:"server"`
	Logging  LoggingConfig `json:"logging"`
	StateDir string        `json:"state_dir"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level string `json:"level"` // "debug", "info", "warn", "error"
}
