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

package shared

import (
	"errors"
	"fmt"
	"os"

	"github.com/loomkit/maestro/pkg/merrors"
)

// Exit codes for maestro CLI commands: 0 success, 1 logical
// failure (the command ran to completion but the outcome is a failure,
// such as a stalled run or blocked route), 2 fatal error (missing input, corrupt
// or invalid state). The named constants below all resolve to one of
// these three values; they exist so call sites can name *why* a command
// failed without the exit code itself fragmenting beyond the three
// values promised to callers.
const (
	ExitSuccess         = 0
	ExitExecutionFailed = 1
	ExitBlockedRun      = 1
	ExitInvalidWorkflow = 2
	ExitMissingInput    = 2
	ExitIllegalState    = 2
)

// ExitError is an error that carries an exit code
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewExecutionError creates an error for workflow execution failures
func NewExecutionError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitExecutionFailed,
		Message: msg,
		Cause:   cause,
	}
}

// NewInvalidWorkflowError creates an error for invalid workflow files
func NewInvalidWorkflowError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitInvalidWorkflow,
		Message: msg,
		Cause:   cause,
	}
}

// NewMissingInputError creates an error for missing required inputs
func NewMissingInputError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitMissingInput,
		Message: msg,
		Cause:   cause,
	}
}

// codeForMerror maps the core's typed error taxonomy (pkg/merrors) onto
// an exit code, so a raw *merrors.* bubbling up from internal/stepper or
// internal/runstore gets a stable code without every command needing to
// wrap it in an ExitError itself.
func codeForMerror(err error) (int, bool) {
	var illegal *merrors.IllegalStateTransitionError
	if errors.As(err, &illegal) {
		return ExitIllegalState, true
	}
	var blocked *merrors.BlockedError
	if errors.As(err, &blocked) {
		return ExitBlockedRun, true
	}
	var validation *merrors.ValidationError
	if errors.As(err, &validation) {
		return ExitMissingInput, true
	}
	return 0, false
}

// HandleExitError prints err to stderr and exits with its carried code:
// an *ExitError's own code, a code derived from the merrors taxonomy, or
// ExitExecutionFailed as the fallback.
func HandleExitError(err error) {
	if err == nil {
		return
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", exitErr.Error())
		os.Exit(exitErr.Code)
	}

	fmt.Fprintln(os.Stderr, "Error:", err.Error())
	if code, ok := codeForMerror(err); ok {
		os.Exit(code)
	}
	os.Exit(ExitExecutionFailed)
}
