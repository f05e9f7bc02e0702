// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"strings"
)

// Validator validates configuration against schema rules.
type Validator struct{}

// NewValidator creates a new config validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidationError contains multiple validation failures.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single field validation error.
type FieldError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	var msgs []string
	for _, fe := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return strings.Join(msgs, "; ")
}

// IsEmpty returns true if there are no validation errors.
func (e *ValidationError) IsEmpty() bool {
	return len(e.Errors) == 0
}

// Add adds a field error.
func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

var validApprovalPolicies = map[string]bool{
	"untrusted":  true,
	"on-failure": true,
	"on-request": true,
	"never":      true,
}

var validSandboxModes = map[string]bool{
	"read-only":           true,
	"workspace-write":     true,
	"danger-full-access":  true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks configuration validity.
func (v *Validator) Validate(cfg *Config) error {
	errs := &ValidationError{}

	v.validateRequired(cfg, errs)
	v.validateServer(cfg, errs)
	v.validateExec(cfg, errs)
	v.validateLogging(cfg, errs)
	v.validateDurations(cfg, errs)

	if errs.IsEmpty() {
		return nil
	}
	return errs
}

func (v *Validator) validateRequired(cfg *Config, errs *ValidationError) {
	if strings.TrimSpace(cfg.Workdir) == "" {
		errs.Add("workdir", "is required")
	}
}

func (v *Validator) validateServer(cfg *Config, errs *ValidationError) {
	if cfg.Server.Port != 0 {
		if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
			errs.Add("server.port", "must be between 0 and 65535")
		}
	}
	if strings.TrimSpace(cfg.Server.Host) == "" {
		errs.Add("server.host", "is required")
	}
}

func (v *Validator) validateExec(cfg *Config, errs *ValidationError) {
	if strings.TrimSpace(cfg.ExecBin) == "" {
		errs.Add("exec_bin", "is required")
	}
	if cfg.ApprovalPolicy != "" && !validApprovalPolicies[cfg.ApprovalPolicy] {
		errs.Add("approval_policy", fmt.Sprintf("invalid policy '%s', must be one of: untrusted, on-failure, on-request, never", cfg.ApprovalPolicy))
	}
	if cfg.SandboxMode != "" && !validSandboxModes[cfg.SandboxMode] {
		errs.Add("sandbox_mode", fmt.Sprintf("invalid mode '%s', must be one of: read-only, workspace-write, danger-full-access", cfg.SandboxMode))
	}
	if strings.TrimSpace(cfg.DefaultModel) == "" {
		errs.Add("default_model", "is required")
	}
	if len(cfg.ModelChoices) > 0 && cfg.DefaultModel != "" {
		found := false
		for _, m := range cfg.ModelChoices {
			if m == cfg.DefaultModel {
				found = true
				break
			}
		}
		if !found {
			errs.Add("default_model", fmt.Sprintf("'%s' is not in model_choices", cfg.DefaultModel))
		}
	}
}

func (v *Validator) validateLogging(cfg *Config, errs *ValidationError) {
	if cfg.Logging.Level != "" && !validLogLevels[cfg.Logging.Level] {
		errs.Add("logging.level", fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", cfg.Logging.Level))
	}
}

func (v *Validator) validateDurations(cfg *Config, errs *ValidationError) {
	if cfg.SessionTTLMs < 0 {
		errs.Add("session_ttl_ms", "must not be negative")
	}
	if cfg.IdleTimeoutMs < 0 {
		errs.Add("idle_timeout_ms", "must not be negative")
	}
	if cfg.SessionTTLMs > 0 && cfg.IdleTimeoutMs > 0 && cfg.IdleTimeoutMs > cfg.SessionTTLMs {
		errs.Add("idle_timeout_ms", "must not exceed session_ttl_ms")
	}
	if cfg.HistoryLimit < 0 {
		errs.Add("history_limit", "must not be negative")
	}
	if cfg.HeartbeatIntervalMs <= 0 {
		errs.Add("heartbeat_interval_ms", "must be positive")
	}
	if cfg.TailerIdleTimeoutMs < 0 {
		errs.Add("tailer_idle_timeout_ms", "must not be negative")
	}
}
