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

// Package prompt provides the interactive approval acknowledgement a CLI
// operator gives when `run update` would set an awaiting-approval run's
// status to completed: a single yes/no question asked at the terminal before
// the status patch is written.
package prompt

import "context"

// Prompter asks the operator a single yes/no question and reports the
// answer. SurveyPrompter is the terminal-backed implementation; a caller
// running non-interactively (no TTY, or CI) constructs it with
// interactive=false, and PromptBool returns an error instead of blocking.
type Prompter interface {
	// PromptBool asks name/desc as a yes/no question, offering def as the
	// default answer on bare Enter.
	PromptBool(ctx context.Context, name, desc string, def bool) (bool, error)

	// IsInteractive reports whether this Prompter can display prompts.
	IsInteractive() bool
}
