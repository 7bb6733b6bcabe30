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

package run

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loomkit/maestro/internal/cli/format"
	"github.com/loomkit/maestro/internal/commands/shared"
)

// newShowArtifactCommand prints one registered artifact's file content,
// rendered per its format for an attached terminal: markdown documents go
// through glamour and code files through chroma (by extension), with every
// ANSI escape stripped from the result, and JSON gets re-indented. Piped
// output (or --json) gets the raw bytes, except JSON, which is re-indented
// either way.
func newShowArtifactCommand() *cobra.Command {
	var runID, name string

	cmd := &cobra.Command{
		Use:   "show-artifact",
		Short: "Print a registered artifact's content, formatted for the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			if runID == "" {
				return shared.NewMissingInputError("--run-id is required", nil)
			}
			if name == "" {
				return shared.NewMissingInputError("--name is required", nil)
			}
			store, logger, err := openStore()
			if err != nil {
				return shared.NewExecutionError("opening run store", err)
			}
			defer logger.Close()

			reg, err := store.ReadArtifactRegistry(runID)
			if err != nil {
				return shared.NewExecutionError("reading artifact registry", err)
			}
			artifact, ok := reg.Artifacts[name]
			if !ok {
				return shared.NewExecutionError("show-artifact", errArtifactNotFound(name))
			}

			raw, err := os.ReadFile(artifact.Path)
			if err != nil {
				return shared.NewExecutionError("reading artifact file", err)
			}

			isTTY := format.IsTTY() && !shared.GetJSON()
			rendered, err := format.Format(string(raw), formatHint(artifact.Schema, artifact.Path), isTTY)
			if err != nil {
				return shared.NewExecutionError("formatting artifact", err)
			}

			if shared.GetJSON() {
				return shared.EmitJSON(struct {
					shared.JSONResponse
					Name    string `json:"name"`
					Path    string `json:"path"`
					Content string `json:"content"`
				}{
					JSONResponse: shared.JSONResponse{Version: "1.0", Command: "run show-artifact", Success: true},
					Name:         artifact.Name,
					Path:         artifact.Path,
					Content:      rendered,
				})
			}
			_, err = os.Stdout.WriteString(rendered)
			if !strings.HasSuffix(rendered, "\n") {
				os.Stdout.WriteString("\n")
			}
			return err
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "Run identifier (required)")
	cmd.Flags().StringVar(&name, "name", "", "Artifact name as registered (required)")
	return cmd
}

// formatHint picks a format.Format format string from an artifact's schema
// (when it names a language, e.g. "code:python") or else from its file
// extension.
func formatHint(schema, path string) string {
	if strings.HasPrefix(strings.ToLower(schema), "code:") {
		return schema
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return "markdown"
	case ".json":
		return "json"
	case ".go":
		return "code:go"
	case ".py":
		return "code:python"
	case ".js", ".ts":
		return "code:javascript"
	case ".sh":
		return "code:bash"
	case ".yaml", ".yml":
		return "code:yaml"
	default:
		return "string"
	}
}

type artifactNotFoundError string

func (e artifactNotFoundError) Error() string { return "artifact not found: " + string(e) }

func errArtifactNotFound(name string) error { return artifactNotFoundError(name) }
