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

// Package run implements the `maestro run` command group: create, read,
// update and inspect run records directly against internal/runstore,
// independent of the Stepper.
package run

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/loomkit/maestro/internal/cli/prompt"
	"github.com/loomkit/maestro/internal/commands/shared"
	"github.com/loomkit/maestro/internal/config"
	"github.com/loomkit/maestro/internal/tracing/audit"

	"github.com/loomkit/maestro/internal/runstore"
)

// NewCommand builds the `run` command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Create, read, and update run records",
	}

	cmd.AddCommand(newCreateCommand())
	cmd.AddCommand(newReadCommand())
	cmd.AddCommand(newUpdateCommand())
	cmd.AddCommand(newGetCurrentStepCommand())
	cmd.AddCommand(newShowArtifactCommand())

	return cmd
}

// openStore resolves config and opens the runstore.Store rooted at its
// RunsDir, and an audit logger alongside it for CLI-driven mutations.
func openStore() (*runstore.Store, *audit.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	store := runstore.New(cfg.RunsDir)

	logPath := cfg.RunsDir + "/audit.log"
	logger, err := audit.NewFileLogger(logPath)
	if err != nil {
		return nil, nil, err
	}
	return store, logger, nil
}

type runResponse struct {
	shared.JSONResponse
	Run *runstore.Run `json:"run,omitempty"`
}

func emitRun(cmdName string, run *runstore.Run) error {
	if shared.GetJSON() {
		return shared.EmitJSON(runResponse{
			JSONResponse: shared.JSONResponse{Version: "1.0", Command: cmdName, Success: true},
			Run:          run,
		})
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}

func newCreateCommand() *cobra.Command {
	var runID, idPrefix, workflowPath, workflowID string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new run",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, logger, err := openStore()
			if err != nil {
				return shared.NewExecutionError("opening run store", err)
			}
			defer logger.Close()

			if runID == "" {
				runID, err = store.NewRunID(idPrefix)
				if err != nil {
					return shared.NewExecutionError("generating run_id", err)
				}
			} else if err := runstore.ValidateRunID(runID); err != nil {
				return shared.NewInvalidWorkflowError("validating run_id", err)
			}

			opts := runstore.CreateOptions{
				WorkflowID:       workflowID,
				SelectedWorkflow: workflowPath,
				Metadata:         map[string]any{},
			}
			created, err := store.CreateRun(runID, opts)
			logErr := logger.LogRunMutation("cli", audit.ActionRunCreate, runID, resultFor(err), err)
			_ = logErr
			if err != nil {
				return shared.NewExecutionError("creating run", err)
			}
			return emitRun("run create", created)
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "Run identifier (generated when omitted)")
	cmd.Flags().StringVar(&idPrefix, "id-prefix", "", "Prefix for a generated run identifier")
	cmd.Flags().StringVar(&workflowPath, "workflow", "", "Path to the workflow definition (external artifact)")
	cmd.Flags().StringVar(&workflowID, "workflow-id", "", "Workflow identifier")
	return cmd
}

func newReadCommand() *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Print a run record",
		RunE: func(cmd *cobra.Command, args []string) error {
			if runID == "" {
				return shared.NewMissingInputError("--run-id is required", nil)
			}
			store, logger, err := openStore()
			if err != nil {
				return shared.NewExecutionError("opening run store", err)
			}
			defer logger.Close()

			run, err := store.ReadRun(runID)
			if err != nil {
				return shared.NewExecutionError("reading run", err)
			}
			return emitRun("run read", run)
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "Run identifier (required)")
	return cmd
}

func newGetCurrentStepCommand() *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "get-current-step",
		Short: "Print a run's current_step",
		RunE: func(cmd *cobra.Command, args []string) error {
			if runID == "" {
				return shared.NewMissingInputError("--run-id is required", nil)
			}
			store, logger, err := openStore()
			if err != nil {
				return shared.NewExecutionError("opening run store", err)
			}
			defer logger.Close()

			run, err := store.ReadRun(runID)
			if err != nil {
				return shared.NewExecutionError("reading run", err)
			}
			if shared.GetJSON() {
				return shared.EmitJSON(struct {
					shared.JSONResponse
					CurrentStep int `json:"current_step"`
				}{
					JSONResponse: shared.JSONResponse{Version: "1.0", Command: "run get-current-step", Success: true},
					CurrentStep:  run.CurrentStep,
				})
			}
			fmt.Println(run.CurrentStep)
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "Run identifier (required)")
	return cmd
}

func newUpdateCommand() *cobra.Command {
	var runID, field, value string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Patch a single field of a run record",
		RunE: func(cmd *cobra.Command, args []string) error {
			if runID == "" {
				return shared.NewMissingInputError("--run-id is required", nil)
			}
			if field == "" {
				return shared.NewMissingInputError("--field is required", nil)
			}
			store, logger, err := openStore()
			if err != nil {
				return shared.NewExecutionError("opening run store", err)
			}
			defer logger.Close()

			patch, err := buildPatch(field, value)
			if err != nil {
				return shared.NewInvalidWorkflowError("building patch", err)
			}

			// An approval acknowledgement: if the patched status is
			// awaiting a grant and we're attached to an interactive TTY
			// without --json, confirm before writing.
			if patch.Status != nil && *patch.Status == runstore.StatusCompleted && !shared.GetJSON() {
				if current, readErr := store.ReadRun(runID); readErr == nil && current.Status == runstore.StatusAwaitingApproval {
					sp := prompt.NewSurveyPrompter(true)
					approved, promptErr := sp.PromptBool(context.Background(), "approve", "Approve run "+runID+" to proceed?", false)
					if promptErr == nil && !approved {
						_ = logger.LogRunMutation("cli", audit.ActionRunDeny, runID, audit.ResultForbidden, nil)
						return shared.NewExecutionError("run update", fmt.Errorf("approval denied for run %s", runID))
					}
					_ = logger.LogRunMutation("cli", audit.ActionRunApprove, runID, audit.ResultSuccess, nil)
				}
			}

			updated, err := store.UpdateRun(runID, patch)
			_ = logger.LogRunMutation("cli", audit.ActionRunUpdate, runID, resultFor(err), err)
			if err != nil {
				return shared.NewExecutionError("updating run", err)
			}
			return emitRun("run update", updated)
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "Run identifier (required)")
	cmd.Flags().StringVar(&field, "field", "", "Field to patch: status|current_step")
	cmd.Flags().StringVar(&value, "value", "", "New value")
	return cmd
}

func buildPatch(field, value string) (runstore.Patch, error) {
	switch field {
	case "status":
		status := runstore.Status(value)
		switch status {
		case runstore.StatusPending, runstore.StatusInProgress, runstore.StatusAwaitingApproval,
			runstore.StatusCompleted, runstore.StatusFailed:
			return runstore.Patch{Status: &status}, nil
		default:
			return runstore.Patch{}, fmt.Errorf("unknown status %q", value)
		}
	case "current_step":
		n, err := strconv.Atoi(value)
		if err != nil {
			return runstore.Patch{}, fmt.Errorf("current_step must be an integer: %w", err)
		}
		return runstore.Patch{CurrentStep: &n}, nil
	default:
		return runstore.Patch{}, fmt.Errorf("unsupported field %q", field)
	}
}

func resultFor(err error) audit.Result {
	if err != nil {
		return audit.ResultError
	}
	return audit.ResultSuccess
}
