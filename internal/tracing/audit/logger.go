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

// Package audit provides an append-only, NDJSON audit trail of run
// mutations, gate decisions, and artifact publication: the forensic
// record behind the per-run gate and reasoning side-records.
package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Action represents an action taken on a run, gate, or artifact.
type Action string

const (
	ActionRunCreate        Action = "run:create"
	ActionRunUpdate        Action = "run:update"
	ActionRunApprove       Action = "run:approve"
	ActionRunDeny          Action = "run:deny"
	ActionGateDecision     Action = "gate:decision"
	ActionArtifactRegister Action = "artifact:register"
	ActionArtifactPublish  Action = "artifact:publish"
)

// Result represents the outcome of an audited action
type Result string

const (
	ResultSuccess      Result = "success"
	ResultUnauthorized Result = "unauthorized"
	ResultForbidden    Result = "forbidden"
	ResultNotFound     Result = "not_found"
	ResultError        Result = "error"
)

// Entry represents a single audit log entry
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"user_id"`
	Action    Action    `json:"action"`
	Resource  string    `json:"resource"`
	Result    Result    `json:"result"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	Error     string    `json:"error,omitempty"`

	// Run/gate-specific metadata
	RunID      string   `json:"run_id,omitempty"`
	Step       int      `json:"step,omitempty"`
	Agent      string   `json:"agent,omitempty"`
	Blockers   []string `json:"blockers,omitempty"`
	ArtifactID string   `json:"artifact_id,omitempty"`
}

// Logger writes audit log entries to an append-only log
type Logger struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewLogger creates a new audit logger
func NewLogger(writer io.Writer) *Logger {
	return &Logger{
		writer: writer,
	}
}

// NewFileLogger creates an audit logger that writes to a file
func NewFileLogger(path string) (*Logger, error) {
	// Open file in append mode, create if not exists
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}

	return &Logger{
		writer: f,
	}, nil
}

// NewStdoutLogger creates an audit logger that writes to stdout
func NewStdoutLogger() *Logger {
	return &Logger{
		writer: os.Stdout,
	}
}

// NewLoggerFromDestination creates an audit logger based on destination type.
// Valid destinations: "file", "stdout", "syslog"
func NewLoggerFromDestination(destination, filePath string) (*Logger, error) {
	switch destination {
	case "file":
		if filePath == "" {
			return nil, fmt.Errorf("file_path is required when destination is 'file'")
		}
		return NewFileLogger(filePath)
	case "stdout":
		return NewStdoutLogger(), nil
	case "syslog":
		// syslog writes the same NDJSON lines to stdout; no syslog
		// connection is opened and no syslog framing is added.
		return NewStdoutLogger(), nil
	default:
		return nil, fmt.Errorf("invalid audit destination: %q (must be file, stdout, or syslog)", destination)
	}
}

// Log writes an audit entry
func (l *Logger) Log(entry Entry) error {
	// Set timestamp if not provided
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	// Marshal to JSON
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	// Write with newline
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err = l.writer.Write(append(data, '\n'))
	if err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}

	return nil
}

// LogRunMutation logs a CreateRun/UpdateRun call against runID.
func (l *Logger) LogRunMutation(userID string, action Action, runID string, result Result, err error) error {
	entry := Entry{
		UserID:   userID,
		Action:   action,
		Resource: runID,
		Result:   result,
		RunID:    runID,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	return l.Log(entry)
}

// LogGateDecision logs a step's gate outcome (allowed or blocked).
func (l *Logger) LogGateDecision(userID, runID string, step int, agent string, allowed bool, blockers []string) error {
	result := ResultSuccess
	if !allowed {
		result = ResultForbidden
	}
	entry := Entry{
		UserID:   userID,
		Action:   ActionGateDecision,
		Resource: fmt.Sprintf("%s#%d", runID, step),
		Result:   result,
		RunID:    runID,
		Step:     step,
		Agent:    agent,
		Blockers: blockers,
	}
	return l.Log(entry)
}

// LogArtifactPublish logs an artifact's publish attempt outcome.
func (l *Logger) LogArtifactPublish(userID, runID, artifactID string, result Result, err error) error {
	entry := Entry{
		UserID:     userID,
		Action:     ActionArtifactPublish,
		Resource:   artifactID,
		Result:     result,
		RunID:      runID,
		ArtifactID: artifactID,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	return l.Log(entry)
}

// Close closes the underlying writer if it implements io.Closer
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if closer, ok := l.writer.(io.Closer); ok {
		return closer.Close()
	}

	return nil
}
