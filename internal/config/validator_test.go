// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Version:             "1.0",
		Workdir:             "/srv/work",
		ExecBin:             "codex",
		DefaultModel:        "gpt-5.2",
		ModelChoices:        []string{"gpt-5.2", "gpt-4o"},
		HeartbeatIntervalMs: 15000,
		Server:              ServerConfig{Host: "127.0.0.1", Port: 8080},
		Logging:             LoggingConfig{Level: "info"},
	}
}

func TestValidator_Validate_ValidConfig(t *testing.T) {
	validator := NewValidator()
	err := validator.Validate(validConfig())
	assert.NoError(t, err)
}

func TestValidator_Validate_RequiredFields(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		errContains string
	}{
		{
			name:        "missing workdir",
			mutate:      func(c *Config) { c.Workdir = "" },
			errContains: "workdir",
		},
		{
			name:        "missing exec_bin",
			mutate:      func(c *Config) { c.ExecBin = "" },
			errContains: "exec_bin",
		},
		{
			name:        "missing default_model",
			mutate:      func(c *Config) { c.DefaultModel = "" },
			errContains: "default_model",
		},
		{
			name:        "missing server host",
			mutate:      func(c *Config) { c.Server.Host = "" },
			errContains: "server.host",
		},
	}

	validator := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := validator.Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestValidator_Validate_ServerPortRange(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"negative", -1},
		{"too high", 70000},
	}

	validator := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Server.Port = tt.port
			err := validator.Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "port")
		})
	}
}

func TestValidator_Validate_ApprovalPolicy(t *testing.T) {
	validator := NewValidator()

	cfg := validConfig()
	cfg.ApprovalPolicy = "bogus"
	err := validator.Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "approval_policy")

	for _, p := range []string{"untrusted", "on-failure", "on-request", "never", ""} {
		cfg := validConfig()
		cfg.ApprovalPolicy = p
		assert.NoError(t, validator.Validate(cfg))
	}
}

func TestValidator_Validate_SandboxMode(t *testing.T) {
	validator := NewValidator()

	cfg := validConfig()
	cfg.SandboxMode = "bogus"
	err := validator.Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sandbox_mode")

	for _, m := range []string{"read-only", "workspace-write", "danger-full-access", ""} {
		cfg := validConfig()
		cfg.SandboxMode = m
		assert.NoError(t, validator.Validate(cfg))
	}
}

func TestValidator_Validate_DefaultModelMustBeInChoices(t *testing.T) {
	cfg := validConfig()
	cfg.DefaultModel = "not-an-offered-model"

	validator := NewValidator()
	err := validator.Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model_choices")
}

func TestValidator_Validate_LoggingLevel(t *testing.T) {
	validator := NewValidator()

	cfg := validConfig()
	cfg.Logging.Level = "verbose"
	err := validator.Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logging.level")

	for _, level := range []string{"debug", "info", "warn", "error", ""} {
		cfg := validConfig()
		cfg.Logging.Level = level
		assert.NoError(t, validator.Validate(cfg))
	}
}

func TestValidator_Validate_IdleTimeoutMustNotExceedSessionTTL(t *testing.T) {
	cfg := validConfig()
	cfg.SessionTTLMs = 1000
	cfg.IdleTimeoutMs = 2000

	validator := NewValidator()
	err := validator.Validate(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "idle_timeout_ms")
}

func TestValidator_Validate_NegativeDurations(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		errContains string
	}{
		{"negative session ttl", func(c *Config) { c.SessionTTLMs = -1 }, "session_ttl_ms"},
		{"negative idle timeout", func(c *Config) { c.IdleTimeoutMs = -1 }, "idle_timeout_ms"},
		{"negative history limit", func(c *Config) { c.HistoryLimit = -1 }, "history_limit"},
		{"zero heartbeat", func(c *Config) { c.HeartbeatIntervalMs = 0 }, "heartbeat_interval_ms"},
		{"negative tailer idle timeout", func(c *Config) { c.TailerIdleTimeoutMs = -1 }, "tailer_idle_timeout_ms"},
	}

	validator := NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.HeartbeatIntervalMs = 1000 // keep this one valid unless the test overrides it
			tt.mutate(cfg)
			err := validator.Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{
		Errors: []FieldError{
			{Field: "workdir", Message: "is required"},
			{Field: "server.host", Message: "is required"},
		},
	}

	errStr := err.Error()
	assert.Contains(t, errStr, "workdir")
	assert.Contains(t, errStr, "server.host")
}

func TestValidationError_IsEmpty(t *testing.T) {
	err := &ValidationError{}
	assert.True(t, err.IsEmpty())

	err.Errors = append(err.Errors, FieldError{Field: "test", Message: "error"})
	assert.False(t, err.IsEmpty())
}
