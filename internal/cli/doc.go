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

/*
Package cli provides the root command and shared configuration for Maestro's CLI.

This package creates the main Cobra command tree and handles global concerns like
version information, persistent flags, and error handling. Individual commands
are implemented in the internal/commands subpackages.

# Command Tree

The CLI is organized as:

	maestro
	├── run          Create/read/update a run record, print its current step
	├── monitor      Health metrics, stall detection, run listing
	├── classify     Run the task classifier in isolation
	├── route        Run the agent router in isolation
	├── iteration    Manage per-workflow iteration state
	├── version      Show version
	└── help         Show help

# Usage

From main.go:

	cli.SetVersion(version, commit, date)
	rootCmd := cli.NewRootCommand()
	// ... add commands ...
	if err := rootCmd.Execute(); err != nil {
	    cli.HandleExitError(err)
	}

# Global Flags

All commands inherit these flags:

	--verbose, -v    Enable verbose output
	--quiet, -q      Suppress non-error output
	--json           Output in JSON format
	--config         Config file path (not read; the XDG config path is always used)

# Error Handling

Errors are handled centrally to ensure proper exit codes, per
internal/commands/shared.ExitError and the merrors taxonomy mapping in
internal/commands/shared/exit_codes.go:

  - Exit 0: Success
  - Exit 1: Logical failure (e.g. stalled run)
  - Exit 2: Fatal error (missing input, corrupt state)

Use HandleExitError for consistent error handling:

	if err := cmd.Execute(); err != nil {
	    cli.HandleExitError(err)
	}
*/
package cli
