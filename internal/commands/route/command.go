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

// Package route wires the Task Classifier and Agent Router together into
// a standalone `maestro route` command, showing the agent chain, gates,
// and security decision a task would be routed through.
package route

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loomkit/maestro/internal/classify"
	"github.com/loomkit/maestro/internal/commands/shared"
	"github.com/loomkit/maestro/internal/config"
	"github.com/loomkit/maestro/internal/pattern"
	"github.com/loomkit/maestro/internal/route"
)

// NewCommand builds the `route` command.
func NewCommand() *cobra.Command {
	var task string
	var files []string

	cmd := &cobra.Command{
		Use:   "route",
		Short: "Route a task through the classifier and agent router",
		RunE: func(cmd *cobra.Command, args []string) error {
			if task == "" {
				return shared.NewMissingInputError("--task is required", nil)
			}

			cwd, err := os.Getwd()
			if err != nil {
				return shared.NewExecutionError("resolving working directory", err)
			}
			classifier := classify.New(os.DirFS(cwd))
			classified, err := classifier.Classify(classify.Input{Task: task, Files: files})
			if err != nil {
				return shared.NewInvalidWorkflowError("classifying task", err)
			}

			learner := openLearner()
			router := route.New(learner)
			result := router.Route(task, classified)

			if shared.GetJSON() {
				return shared.EmitJSON(struct {
					shared.JSONResponse
					route.Result
				}{
					JSONResponse: shared.JSONResponse{Version: "1.0", Command: "route", Success: true},
					Result:       result,
				})
			}

			if result.Blocked {
				fmt.Println(shared.RenderError("blocked"), "-", result.Security.Priority)
			} else {
				fmt.Println(shared.RenderOK("routed"))
			}
			fmt.Printf("chain: %s\n", strings.Join(result.Chain, " -> "))
			fmt.Printf("workflow: %s\n", result.WorkflowID)
			if len(result.Reviewers) > 0 {
				fmt.Printf("reviewers: %s\n", strings.Join(result.Reviewers, ", "))
			}
			if len(result.Signoffs) > 0 {
				fmt.Printf("signoffs: %s\n", strings.Join(result.Signoffs, ", "))
			}
			if result.Suggestion.HasRecommendations {
				fmt.Printf("suggestion (%s confidence):\n", result.Suggestion.Confidence)
				for _, rec := range result.Suggestion.Recommendations {
					fmt.Println("  -", rec)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&task, "task", "", "Task description to route (required)")
	cmd.Flags().StringSliceVar(&files, "files", nil, "Glob patterns or literal paths the task touches")
	return cmd
}

// openLearner opens the persisted pattern learner at the config-resolved
// runs directory, falling back to an in-memory learner on any error so
// routing never hard-fails on a missing/corrupt history file.
func openLearner() *pattern.Learner {
	cfg, err := config.Load()
	if err != nil {
		return pattern.New()
	}
	learner, err := pattern.NewWithPersistence(cfg.RunsDir + "/patterns.ndjson")
	if err != nil {
		return pattern.New()
	}
	return learner
}
