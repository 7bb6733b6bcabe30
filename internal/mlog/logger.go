// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mlog provides the orchestrator's structured logging conventions
// on top of log/slog.
package mlog

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format is the log output encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// LevelTrace is more verbose than Debug; used for per-step condition and
// routing decision tracing.
const LevelTrace = slog.Level(-8)

// Standard field keys, shared across components so log aggregation can
// join on them.
const (
	RunIDKey      = "run_id"
	StepIDKey     = "step_id"
	AgentKey      = "agent"
	TaskTypeKey   = "task_type"
	DurationKey   = "duration_ms"
	WorkflowKey   = "workflow_id"
	EventKey      = "event"
)

// Config holds logging configuration.
type Config struct {
	Level     string
	Format    Format
	Output    io.Writer
	AddSource bool
}

// DefaultConfig returns sane defaults: info level, JSON to stderr.
func DefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Format: FormatJSON,
		Output: os.Stderr,
	}
}

// FromEnv builds a Config from environment variables:
//   - MAESTRO_DEBUG: true/1 enables debug level + source info (takes precedence)
//   - MAESTRO_LOG_LEVEL: trace, debug, info, warn, error
//   - MAESTRO_LOG_FORMAT: json, text
//   - MAESTRO_LOG_SOURCE: 1 to add source file/line
func FromEnv() *Config {
	cfg := DefaultConfig()

	debug := os.Getenv("MAESTRO_DEBUG")
	if debug == "true" || debug == "1" {
		cfg.Level = "debug"
		cfg.AddSource = true
	}

	if debug == "" {
		if level := os.Getenv("MAESTRO_LOG_LEVEL"); level != "" {
			cfg.Level = strings.ToLower(level)
		}
	}

	if format := os.Getenv("MAESTRO_LOG_FORMAT"); format != "" {
		cfg.Format = Format(strings.ToLower(format))
	}

	if os.Getenv("MAESTRO_LOG_SOURCE") == "1" {
		cfg.AddSource = true
	}

	return cfg
}

// New builds a *slog.Logger from cfg. A nil cfg uses DefaultConfig.
func New(cfg *Config) *slog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	opts := &slog.HandlerOptions{
		Level:     parseLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	switch cfg.Format {
	case FormatText:
		handler = slog.NewTextHandler(cfg.Output, opts)
	default:
		handler = slog.NewJSONHandler(cfg.Output, opts)
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRunContext attaches run_id and workflow_id to all subsequent entries.
func WithRunContext(logger *slog.Logger, runID, workflowID string) *slog.Logger {
	return logger.With(slog.String(RunIDKey, runID), slog.String(WorkflowKey, workflowID))
}

// WithStepContext attaches run_id and step_id.
func WithStepContext(logger *slog.Logger, runID, stepID string) *slog.Logger {
	return logger.With(slog.String(RunIDKey, runID), slog.String(StepIDKey, stepID))
}

// WithAgent attaches the agent name handling the current step.
func WithAgent(logger *slog.Logger, agent string) *slog.Logger {
	return logger.With(slog.String(AgentKey, agent))
}

// SanitizeSecret always redacts, regardless of input.
func SanitizeSecret(secret string) string {
	return "[REDACTED]"
}

// Trace logs at LevelTrace, skipped entirely unless enabled.
func Trace(logger *slog.Logger, msg string, attrs ...slog.Attr) {
	if !logger.Enabled(nil, LevelTrace) {
		return
	}
	logger.LogAttrs(nil, LevelTrace, msg, attrs...)
}
