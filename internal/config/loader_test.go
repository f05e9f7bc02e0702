// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Load_ValidConfig(t *testing.T) {
	configContent := `{
		version: "1.0"
		workdir: "/srv/work"
		exec_bin: "codex"
		server: {
			port: 8080
			host: "127.0.0.1"
		}
	}`

	cfg := loadFromString(t, configContent)

	assert.Equal(t, "1.0", cfg.Version)
	assert.Equal(t, "/srv/work", cfg.Workdir)
	assert.Equal(t, "codex", cfg.ExecBin)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
}

func TestLoader_Load_HJSONFeatures(t *testing.T) {
	// Test HJSON-specific features: comments, unquoted keys, trailing commas
	configContent := `{
		// This is a comment
		version: "1.0"

		# Hash comment
		workdir: /srv/work

		server: {
			port: 8080,
			host: 127.0.0.1,
		}

		model_choices: [
			"gpt-5.2",
			"gpt-4o",
		]
	}`

	cfg := loadFromString(t, configContent)

	assert.Equal(t, "1.0", cfg.Version)
	assert.Equal(t, "/srv/work", cfg.Workdir)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"gpt-5.2", "gpt-4o"}, cfg.ModelChoices)
}

func TestLoader_Load_AllFields(t *testing.T) {
	configContent := `{
		version: "1.0"
		workdir: "/srv/work"
		exec_bin: "codex"
		approval_policy: "on-request"
		sandbox_mode: "workspace-write"
		default_model: "gpt-5.2"
		model_choices: ["gpt-5.2", "gpt-4o", "o3"]
		session_ttl_ms: 14400000
		idle_timeout_ms: 1800000
		history_limit: 200000
		heartbeat_interval_ms: 15000
		tailer_idle_timeout_ms: 60000
		state_dir: "/var/lib/codex-gateway"
		server: { host: "0.0.0.0", port: 4096 }
		logging: { level: "debug" }
	}`

	cfg := loadFromString(t, configContent)

	assert.Equal(t, "on-request", cfg.ApprovalPolicy)
	assert.Equal(t, "workspace-write", cfg.SandboxMode)
	assert.Equal(t, "gpt-5.2", cfg.DefaultModel)
	assert.Equal(t, []string{"gpt-5.2", "gpt-4o", "o3"}, cfg.ModelChoices)
	assert.EqualValues(t, 14400000, cfg.SessionTTLMs)
	assert.EqualValues(t, 1800000, cfg.IdleTimeoutMs)
	assert.Equal(t, 200000, cfg.HistoryLimit)
	assert.EqualValues(t, 15000, cfg.HeartbeatIntervalMs)
	assert.EqualValues(t, 60000, cfg.TailerIdleTimeoutMs)
	assert.Equal(t, "/var/lib/codex-gateway", cfg.StateDir)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 4096, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoader_Load_Defaults(t *testing.T) {
	configContent := `{
		version: "1.0"
	}`

	loader := NewLoader()
	cfg, err := loader.LoadWithDefaults(context.Background(), writeTestConfig(t, configContent))
	require.NoError(t, err)

	assert.Equal(t, 4096, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "codex", cfg.ExecBin)
	assert.Equal(t, "on-request", cfg.ApprovalPolicy)
	assert.Equal(t, "workspace-write", cfg.SandboxMode)
	assert.Equal(t, "gpt-5.2", cfg.DefaultModel)
	assert.NotEmpty(t, cfg.ModelChoices)
	assert.NotZero(t, cfg.SessionTTLMs)
	assert.NotZero(t, cfg.IdleTimeoutMs)
	assert.NotZero(t, cfg.HistoryLimit)
	assert.NotZero(t, cfg.HeartbeatIntervalMs)
	assert.NotZero(t, cfg.TailerIdleTimeoutMs)
	assert.NotEmpty(t, cfg.StateDir)
}

func TestLoader_Load_FileNotFound(t *testing.T) {
	loader := NewLoader()
	_, err := loader.Load(context.Background(), "/nonexistent/path/config.hjson")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoader_Load_InvalidHJSON(t *testing.T) {
	configContent := `{
		version: "1.0"
		invalid json here {{{
	}`

	loader := NewLoader()
	path := writeTestConfig(t, configContent)
	_, err := loader.Load(context.Background(), path)
	assert.Error(t, err)
}

func TestLoader_Load_ConfigPaths(t *testing.T) {
	dir := t.TempDir()

	hjsonPath := filepath.Join(dir, "codex-gateway.hjson")
	require.NoError(t, os.WriteFile(hjsonPath, []byte(`{version: "1.0", workdir: "hjson-dir"}`), 0644))

	jsonPath := filepath.Join(dir, "codex-gateway.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"version": "1.0", "workdir": "json-dir"}`), 0644))

	loader := NewLoader()

	cfg, err := loader.Load(context.Background(), hjsonPath)
	require.NoError(t, err)
	assert.Equal(t, "hjson-dir", cfg.Workdir)

	cfg, err = loader.Load(context.Background(), jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "json-dir", cfg.Workdir)
}

func TestLoader_FindConfig(t *testing.T) {
	dir := t.TempDir()
	originalWd, _ := os.Getwd()
	defer os.Chdir(originalWd)
	os.Chdir(dir)

	loader := NewLoader()

	_, err := loader.FindConfig()
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "codex-gateway.hjson"), []byte(`{}`), 0644))
	path, err := loader.FindConfig()
	require.NoError(t, err)
	assert.Contains(t, path, "codex-gateway.hjson")

	os.Remove(filepath.Join(dir, "codex-gateway.hjson"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "codex-gateway.json"), []byte(`{}`), 0644))
	path, err = loader.FindConfig()
	require.NoError(t, err)
	assert.Contains(t, path, "codex-gateway.json")
}

// Helper functions

func loadFromString(t *testing.T, content string) *Config {
	t.Helper()
	path := writeTestConfig(t, content)
	loader := NewLoader()
	cfg, err := loader.Load(context.Background(), path)
	require.NoError(t, err)
	return cfg
}

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "codex-gateway.hjson")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
