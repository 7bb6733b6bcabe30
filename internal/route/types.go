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

// Package route implements the Agent Router: classification-driven
// chain assembly over a static routing matrix, cross-cutting triggers,
// plan-reviewer/signoff tables, and a fail-closed security scan.
package route

import (
	"github.com/loomkit/maestro/internal/classify"
	"github.com/loomkit/maestro/internal/pattern"
)

// TriggerLevel gates whether a cross-cutting trigger fires for a given
// classified complexity.
type TriggerLevel string

const (
	TriggerAlways       TriggerLevel = "always"
	TriggerCritical     TriggerLevel = "critical"
	TriggerUITasks      TriggerLevel = "ui_tasks"
	TriggerModeratePlus TriggerLevel = "moderate_plus"
	TriggerComplexPlus  TriggerLevel = "complex_plus"
)

// matrixEntry is one row of the static routing matrix, keyed by task type.
type matrixEntry struct {
	Primary    string
	Supporting []string
	Review     []string
	Approval   []string
	Workflow   string
}

// trigger is one row of the cross-cutting trigger map.
type trigger struct {
	Agent    string
	Keywords []string
	Level    TriggerLevel
}

// SecurityDecision is the output of the fail-closed security
// enforcement scan.
type SecurityDecision struct {
	Priority       string   `json:"priority"`
	Blocking       bool     `json:"blocking"`
	RequireSignoff bool     `json:"requireSignoff"`
	Categories     []string `json:"categories"`
	RequiredAgents []string `json:"requiredAgents"`
}

// Result is the Router's output for one classified task.
type Result struct {
	Chain      []string           `json:"chain"`
	Gates      classify.Gates     `json:"gates"`
	WorkflowID string             `json:"workflowId"`
	Reviewers  []string           `json:"reviewers"`
	Signoffs   []string           `json:"signoffs"`
	Security   SecurityDecision   `json:"security"`
	Blocked    bool               `json:"blocked"`
	Suggestion pattern.Suggestion `json:"suggestion"`
}
