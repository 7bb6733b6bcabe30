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

// Package version implements `maestro version`.
package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/loomkit/maestro/internal/cli"
	"github.com/loomkit/maestro/internal/commands/shared"
)

// NewCommand builds the `version` command.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the maestro version",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, commit, date := cli.GetVersion()
			if shared.GetJSON() {
				return shared.EmitJSON(struct {
					shared.JSONResponse
					Version string `json:"version"`
					Commit  string `json:"commit"`
					Date    string `json:"date"`
				}{
					JSONResponse: shared.JSONResponse{Version: "1.0", Command: "version", Success: true},
					Version:      v,
					Commit:       commit,
					Date:         date,
				})
			}
			fmt.Printf("maestro %s (%s, built %s)\n", v, commit, date)
			return nil
		},
	}
}
