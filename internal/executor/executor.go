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

// Package executor defines the Executor Adapter: the single abstract
// capability the Workflow Stepper uses to invoke an agent. The concrete
// adapters (LLM runtime, sandboxed child process) are out of scope for
// the core; this package only defines the contract, a fixed-order probe,
// and the anti-false-success rewrite the Stepper applies to every result.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/loomkit/maestro/pkg/merrors"
)

// Status is the terminal state an adapter reports for one invocation.
type Status string

const (
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
	StatusTimeout          Status = "timeout"
	StatusAwaitingApproval Status = "awaiting_approval"
)

// TokenSource names where a TokenUsage estimate came from.
type TokenSource string

const (
	SourceAPI       TokenSource = "api"
	SourceSession   TokenSource = "session"
	SourceEstimate  TokenSource = "estimate"
	SourceHeuristic TokenSource = "heuristic"
)

// Confidence qualifies a TokenUsage estimate.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// TokenUsage reports how much of an agent's context budget one
// invocation consumed, and how reliable that number is.
type TokenUsage struct {
	Used       int         `json:"used"`
	Limit      int         `json:"limit"`
	Source     TokenSource `json:"source"`
	Confidence Confidence  `json:"confidence"`
}

// Message mirrors agentctx.Message without importing it, so concrete
// adapters depend only on this package and the error taxonomy.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one agent invocation, assembled by the Context Builder and
// handed to the Stepper's chosen adapter.
type Request struct {
	Agent        string
	SystemPrompt string
	Messages     []Message
	Tools        []string
	RunID        string
	Step         int
}

// Result is what an adapter reports back for one Request.
type Result struct {
	Status           Status     `json:"status"`
	ArtifactsWritten []string   `json:"artifacts_written"`
	GatePath         string     `json:"gate_path,omitempty"`
	ReasoningPath    string     `json:"reasoning_path,omitempty"`
	TokenUsage       TokenUsage `json:"token_usage"`
	Stdout           string     `json:"stdout,omitempty"`
	Stderr           string     `json:"stderr,omitempty"`
	DurationMS       int64      `json:"duration_ms"`
	Error            string     `json:"error,omitempty"`
}

// Adapter is the one-method execution surface. Concrete
// implementations (LLM runtime, sandboxed child process) live outside
// this repo's core and are injected by the caller.
type Adapter interface {
	// Available reports, without side effects, whether this adapter can
	// currently serve Execute calls (e.g. credentials present, binary on
	// PATH, daemon reachable).
	Available(ctx context.Context) bool

	// Execute runs one agent invocation to completion or until ctx is
	// cancelled/deadlined.
	Execute(ctx context.Context, req Request) (Result, error)
}

// Named pairs an Adapter with the name used in probe order and error
// reporting.
type Named struct {
	Name    string
	Adapter Adapter
}

// Probe walks candidates in the given fixed order and returns the first
// one that reports itself available. Absence of any available adapter
// is the fatal merrors.NoExecutorAvailableError.
func Probe(ctx context.Context, candidates []Named) (Named, error) {
	probed := make([]string, 0, len(candidates))
	for _, c := range candidates {
		probed = append(probed, c.Name)
		if c.Adapter.Available(ctx) {
			return c, nil
		}
	}
	return Named{}, &merrors.NoExecutorAvailableError{Probed: probed}
}

// StatFunc reports whether a filesystem path exists; injected so the
// anti-false-success rewrite is independently testable without touching
// a real filesystem.
type StatFunc func(path string) bool

// ApplyAntiFalseSuccess enforces the anti-false-success contract: a
// "completed" result with no artifacts, or with any listed artifact path
// missing from disk, is rewritten to "failed" before the Stepper
// observes it.
func ApplyAntiFalseSuccess(res Result, exists StatFunc) Result {
	if res.Status != StatusCompleted {
		return res
	}
	if len(res.ArtifactsWritten) == 0 {
		res.Status = StatusFailed
		res.Error = "anti-false-success: completed result reported no artifacts_written"
		return res
	}
	for _, path := range res.ArtifactsWritten {
		if !exists(path) {
			res.Status = StatusFailed
			res.Error = fmt.Sprintf("anti-false-success: artifact %q does not exist on disk", path)
			return res
		}
	}
	return res
}

// DefaultDeadline bounds a single Execute call absent a more specific
// per-step deadline.
const DefaultDeadline = 5 * time.Minute
