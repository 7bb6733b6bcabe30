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

// Package stepper implements the Workflow Stepper: the component that
// advances a run one step at a time, evaluating conditions and approval
// gates, building agent context, invoking the Executor Adapter,
// registering artifacts, and transitioning run state.
package stepper

import (
	"time"

	"github.com/loomkit/maestro/internal/runstore"
)

// StepDef is one step of a workflow definition, the external artifact a
// run's workflow id resolves to. Concrete workflow definitions are
// loaded by the caller; the Stepper only consumes this shape.
type StepDef struct {
	ID         string
	Agent      string
	Persona    string
	Task       string
	Injections []string

	// Condition, if non-empty, is evaluated by internal/condition before
	// the step runs; a false result is a recorded no-op.
	Condition string

	// RequiresApproval marks a step that must halt the run in
	// awaiting_approval rather than auto-advancing.
	RequiresApproval bool

	// IdempotencyPolicy governs artifact (re-)registration for this step;
	// empty defaults to PolicyOverwrite.
	IdempotencyPolicy runstore.IdempotencyPolicy

	// Retry bounds the step's retry/backoff behavior on executor failure.
	Retry RetryPolicy

	// Schema, if set, is the schema id artifacts from this step are
	// expected to validate against. Validation itself is an external
	// black box; the Stepper only records the outcome.
	Schema string
}

// RetryPolicy bounds exponential-backoff retry of a failed step
// invocation.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryPolicy is used for steps that declare none.
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 2, BaseDelay: 500 * time.Millisecond, MaxDelay: 10 * time.Second}

// Workflow is an ordered sequence of steps bound to one workflow id.
type Workflow struct {
	ID    string
	Steps []StepDef
}

// StepOutcome is emitted per Advance call, carrying enough detail for a
// caller (CLI, Pattern Learner hook) to report or log progress.
type StepOutcome struct {
	RunID      string
	StepIndex  int
	StepID     string
	Skipped    bool
	SkipReason string

	AwaitingApproval bool

	Status     runstore.Status
	Artifacts  []string
	Duration   time.Duration
	Error      error
}

// Validator is the external black-box schema validator. With a nil
// Validator, artifacts are registered with validation status pending.
type Validator interface {
	Validate(data []byte, schemaID string) (valid bool, errs []string)
}
