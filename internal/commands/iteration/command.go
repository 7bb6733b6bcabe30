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

// Package iteration wires internal/iteration's per-workflow self-healing
// loop state into the `maestro iteration` command group.
package iteration

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomkit/maestro/internal/commands/shared"
	"github.com/loomkit/maestro/internal/config"
	"github.com/loomkit/maestro/internal/iteration"
)

// NewCommand builds the `iteration` command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "iteration",
		Short: "Manage per-workflow self-healing iteration state",
	}

	cmd.AddCommand(newInitCommand())
	cmd.AddCommand(newGetCommand())
	cmd.AddCommand(newBumpCommand())
	cmd.AddCommand(newSetStatusCommand())
	cmd.AddCommand(newSetRatingCommand())
	cmd.AddCommand(newCompleteCommand())

	return cmd
}

func openStore() (*iteration.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return iteration.NewStore(cfg.RunsDir), nil
}

func emitState(cmdName string, state *iteration.State) error {
	if shared.GetJSON() {
		return shared.EmitJSON(struct {
			shared.JSONResponse
			State *iteration.State `json:"state"`
		}{
			JSONResponse: shared.JSONResponse{Version: "1.0", Command: cmdName, Success: true},
			State:        state,
		})
	}
	fmt.Printf("%s  workflow=%s  iteration=%d  status=%s  target=%.2f\n",
		shared.RenderLabel("iteration"), state.WorkflowID, state.IterationCount, state.Status, state.TargetRating)
	for component, rating := range state.ComponentRatings {
		fmt.Printf("  %-24s %.2f\n", component, rating.Score)
	}
	return nil
}

func newInitCommand() *cobra.Command {
	var workflowID string
	var targetRating float64

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a fresh iteration state for a workflow",
		RunE: func(cmd *cobra.Command, args []string) error {
			if workflowID == "" {
				return shared.NewMissingInputError("--id is required", nil)
			}
			store, err := openStore()
			if err != nil {
				return shared.NewExecutionError("opening iteration store", err)
			}
			state, err := store.Init(workflowID, targetRating)
			if err != nil {
				return shared.NewExecutionError("initializing iteration state", err)
			}
			return emitState("iteration init", state)
		},
	}
	cmd.Flags().StringVar(&workflowID, "id", "", "Workflow identifier (required)")
	cmd.Flags().Float64Var(&targetRating, "target-rating", 0.9, "Rating every component must reach to complete")
	return cmd
}

func newGetCommand() *cobra.Command {
	var workflowID string
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Print a workflow's iteration state",
		RunE: func(cmd *cobra.Command, args []string) error {
			if workflowID == "" {
				return shared.NewMissingInputError("--id is required", nil)
			}
			store, err := openStore()
			if err != nil {
				return shared.NewExecutionError("opening iteration store", err)
			}
			state, err := store.Get(workflowID)
			if err != nil {
				return shared.NewExecutionError("reading iteration state", err)
			}
			return emitState("iteration get", state)
		},
	}
	cmd.Flags().StringVar(&workflowID, "id", "", "Workflow identifier (required)")
	return cmd
}

func newBumpCommand() *cobra.Command {
	var workflowID string
	cmd := &cobra.Command{
		Use:   "bump",
		Short: "Increment a workflow's iteration counter",
		RunE: func(cmd *cobra.Command, args []string) error {
			if workflowID == "" {
				return shared.NewMissingInputError("--id is required", nil)
			}
			store, err := openStore()
			if err != nil {
				return shared.NewExecutionError("opening iteration store", err)
			}
			state, err := store.Bump(workflowID)
			if err != nil {
				return shared.NewExecutionError("bumping iteration state", err)
			}
			return emitState("iteration bump", state)
		},
	}
	cmd.Flags().StringVar(&workflowID, "id", "", "Workflow identifier (required)")
	return cmd
}

func newSetRatingCommand() *cobra.Command {
	var workflowID, component string
	var score float64
	cmd := &cobra.Command{
		Use:   "set-rating",
		Short: "Record a component's latest quality rating",
		RunE: func(cmd *cobra.Command, args []string) error {
			if workflowID == "" || component == "" {
				return shared.NewMissingInputError("--id and --component are required", nil)
			}
			store, err := openStore()
			if err != nil {
				return shared.NewExecutionError("opening iteration store", err)
			}
			state, err := store.SetRating(workflowID, component, score)
			if err != nil {
				return shared.NewExecutionError("setting component rating", err)
			}
			return emitState("iteration set-rating", state)
		},
	}
	cmd.Flags().StringVar(&workflowID, "id", "", "Workflow identifier (required)")
	cmd.Flags().StringVar(&component, "component", "", "Component name (required)")
	cmd.Flags().Float64Var(&score, "score", 0, "Component's latest score")
	return cmd
}

func newSetStatusCommand() *cobra.Command {
	var workflowID, status string
	cmd := &cobra.Command{
		Use:   "set-status",
		Short: "Force a workflow's iteration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if workflowID == "" || status == "" {
				return shared.NewMissingInputError("--id and --status are required", nil)
			}
			store, err := openStore()
			if err != nil {
				return shared.NewExecutionError("opening iteration store", err)
			}
			state, err := store.SetStatus(workflowID, iteration.Status(status))
			if err != nil {
				return shared.NewExecutionError("setting iteration status", err)
			}
			return emitState("iteration set-status", state)
		},
	}
	cmd.Flags().StringVar(&workflowID, "id", "", "Workflow identifier (required)")
	cmd.Flags().StringVar(&status, "status", "", "active|complete|abandoned")
	return cmd
}

func newCompleteCommand() *cobra.Command {
	var workflowID string
	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Mark a workflow's iteration state complete",
		RunE: func(cmd *cobra.Command, args []string) error {
			if workflowID == "" {
				return shared.NewMissingInputError("--id is required", nil)
			}
			store, err := openStore()
			if err != nil {
				return shared.NewExecutionError("opening iteration store", err)
			}
			state, err := store.SetStatus(workflowID, iteration.StatusComplete)
			if err != nil {
				return shared.NewExecutionError("completing iteration state", err)
			}
			return emitState("iteration complete", state)
		},
	}
	cmd.Flags().StringVar(&workflowID, "id", "", "Workflow identifier (required)")
	return cmd
}
