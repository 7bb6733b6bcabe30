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

// Package classify wires the Task Classifier (internal/classify) into a
// standalone `maestro classify` command, letting a caller see how a task
// description would be scored without creating a run.
package classify

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/loomkit/maestro/internal/classify"
	"github.com/loomkit/maestro/internal/commands/shared"
)

// NewCommand builds the `classify` command.
func NewCommand() *cobra.Command {
	var task string
	var files []string

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a task description's complexity, type, and gates",
		RunE: func(cmd *cobra.Command, args []string) error {
			if task == "" {
				return shared.NewMissingInputError("--task is required", nil)
			}

			cwd, err := os.Getwd()
			if err != nil {
				return shared.NewExecutionError("resolving working directory", err)
			}
			classifier := classify.New(os.DirFS(cwd))

			result, err := classifier.Classify(classify.Input{Task: task, Files: files})
			if err != nil {
				return shared.NewInvalidWorkflowError("classifying task", err)
			}

			if shared.GetJSON() {
				return shared.EmitJSON(struct {
					shared.JSONResponse
					Complexity   string         `json:"complexity"`
					TaskType     string         `json:"taskType"`
					PrimaryAgent string         `json:"primaryAgent"`
					Gates        classify.Gates `json:"gates"`
					Reasoning    []string       `json:"reasoning"`
				}{
					JSONResponse: shared.JSONResponse{Version: "1.0", Command: "classify", Success: true},
					Complexity:   result.Complexity.String(),
					TaskType:     string(result.TaskType),
					PrimaryAgent: result.PrimaryAgent,
					Gates:        result.Gates,
					Reasoning:    result.Reasoning,
				})
			}

			fmt.Printf("%s  complexity=%s  type=%s  agent=%s\n",
				shared.RenderLabel("classify"), result.Complexity, result.TaskType, result.PrimaryAgent)
			fmt.Printf("gates: planner=%v review=%v impact=%v\n",
				result.Gates.Planner, result.Gates.Review, result.Gates.ImpactAnalysis)
			for _, r := range result.Reasoning {
				fmt.Println("  -", r)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&task, "task", "", "Task description to classify (required)")
	cmd.Flags().StringSliceVar(&files, "files", nil, "Glob patterns or literal paths the task touches")
	return cmd
}
