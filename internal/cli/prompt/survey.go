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

package prompt

import (
	"context"
	"fmt"

	"github.com/AlecAivazis/survey/v2"
)

// SurveyPrompter implements Prompter using the survey library's
// survey.Confirm widget.
type SurveyPrompter struct {
	interactive bool
}

// NewSurveyPrompter creates a survey-based prompter. interactive controls
// whether PromptBool actually asks (true) or fails fast (false), so callers
// on a non-TTY stdin or under --json don't block on terminal input.
func NewSurveyPrompter(interactive bool) *SurveyPrompter {
	return &SurveyPrompter{
		interactive: interactive,
	}
}

// PromptBool asks name/desc as a yes/no confirmation.
func (sp *SurveyPrompter) PromptBool(ctx context.Context, name, desc string, def bool) (bool, error) {
	if !sp.interactive {
		return false, fmt.Errorf("cannot prompt in non-interactive mode")
	}

	var result bool
	prompt := &survey.Confirm{
		Message: fmt.Sprintf("%s: %s", name, desc),
		Default: def,
	}

	err := survey.AskOne(prompt, &result)
	return result, err
}

// IsInteractive returns whether this prompter can display prompts.
func (sp *SurveyPrompter) IsInteractive() bool {
	return sp.interactive
}
