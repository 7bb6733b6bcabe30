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

package main

import (
	"log/slog"

	"github.com/loomkit/maestro/internal/cli"
	"github.com/loomkit/maestro/internal/commands/classify"
	"github.com/loomkit/maestro/internal/commands/iteration"
	"github.com/loomkit/maestro/internal/commands/monitor"
	"github.com/loomkit/maestro/internal/commands/route"
	"github.com/loomkit/maestro/internal/commands/run"
	versioncmd "github.com/loomkit/maestro/internal/commands/version"
	"github.com/loomkit/maestro/internal/mlog"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	slog.SetDefault(mlog.New(mlog.FromEnv()))

	cli.SetVersion(version, commit, buildDate)

	rootCmd := cli.NewRootCommand()

	// Core orchestration commands.
	rootCmd.AddCommand(run.NewCommand())
	rootCmd.AddCommand(monitor.NewCommand())
	rootCmd.AddCommand(classify.NewCommand())
	rootCmd.AddCommand(route.NewCommand())
	rootCmd.AddCommand(iteration.NewCommand())

	// Version command
	rootCmd.AddCommand(versioncmd.NewCommand())

	// Custom help command with JSON support
	rootCmd.SetHelpCommand(cli.NewHelpCommand(rootCmd))

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		cli.HandleExitError(err)
	}
}
