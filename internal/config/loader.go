// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/user"
	"path/filepath"

	"github.com/hjson/hjson-go/v4"
)

// Loader handles configuration file loading.
type Loader struct{}

// NewLoader creates a new config loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses the configuration from the given path.
func (l *Loader) Load(ctx context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Parse HJSON to intermediate map
	var raw map[string]interface{}
	if err := hjson.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse hjson: %w", err)
	}

	// Convert to JSON and unmarshal to struct (for type safety)
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("convert to json: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(jsonData, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads config with default values applied.
func (l *Loader) LoadWithDefaults(ctx context.Context, path string) (*Config, error) {
	cfg, err := l.Load(ctx, path)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	return cfg, nil
}

// FindConfig searches for a config file, first in the current directory,
// then in the gateway's default state directory.
func (l *Loader) FindConfig() (string, error) {
	candidates := []string{
		"codex-gateway.hjson",
		"codex-gateway.json",
	}

	for _, name := range candidates {
		path := filepath.Join(".", name)
		if _, err := os.Stat(path); err == nil {
			if abs, err := filepath.Abs(path); err == nil {
				return abs, nil
			}
			return path, nil
		}
	}

	if dir, err := defaultStateDir(); err == nil {
		for _, name := range candidates {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
	}

	return "", fmt.Errorf("config file not found (looked for codex-gateway.hjson, codex-gateway.json)")
}

// defaultStateDir returns <home>/.claude-gateway, the gateway's default
// process-owned root.
func defaultStateDir() (string, error) {
	u, err := user.Current()
	if err != nil {
		return "", err
	}
	return filepath.Join(u.HomeDir, ".claude-gateway"), nil
}

// applyDefaults sets default values for missing config fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 4096
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}

	if cfg.Workdir == "" {
		if wd, err := os.Getwd(); err == nil {
			cfg.Workdir = wd
		}
	}

	if cfg.ExecBin == "" {
		cfg.ExecBin = "codex"
	}
	if cfg.ApprovalPolicy == "" {
		cfg.ApprovalPolicy = "on-request"
	}
	if cfg.SandboxMode == "" {
		cfg.SandboxMode = "workspace-write"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-5.2"
	}
	if len(cfg.ModelChoices) == 0 {
		cfg.ModelChoices = []string{"gpt-5.2", "gpt-4o", "o3", "o4-mini"}
	}

	if cfg.SessionTTLMs == 0 {
		cfg.SessionTTLMs = int64(4 * 60 * 60 * 1000) // 4h
	}
	if cfg.IdleTimeoutMs == 0 {
		cfg.IdleTimeoutMs = int64(30 * 60 * 1000) // 30m
	}
	if cfg.HistoryLimit == 0 {
		cfg.HistoryLimit = 200_000
	}
	if cfg.HeartbeatIntervalMs == 0 {
		cfg.HeartbeatIntervalMs = 15_000
	}
	if cfg.TailerIdleTimeoutMs == 0 {
		cfg.TailerIdleTimeoutMs = 60_000
	}

	if cfg.StateDir == "" {
		if dir, err := defaultStateDir(); err == nil {
			cfg.StateDir = dir
		}
	}
}
