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

package route

import (
	"regexp"

	"github.com/loomkit/maestro/internal/classify"
)

// routingMatrix maps each task type to its base chain.
var routingMatrix = map[classify.TaskType]matrixEntry{
	classify.Documentation: {Primary: "technical-writer", Review: []string{"editor"}, Workflow: "docs"},
	classify.Implementation: {Primary: "developer", Supporting: []string{"architect"}, Review: []string{"code-reviewer"}, Workflow: "standard"},
	classify.Bugfix:      {Primary: "developer", Review: []string{"qa-engineer"}, Workflow: "standard"},
	classify.Refactor:    {Primary: "developer", Supporting: []string{"architect"}, Review: []string{"code-reviewer"}, Workflow: "standard"},
	classify.Testing:     {Primary: "qa-engineer", Review: []string{"code-reviewer"}, Workflow: "standard"},
	classify.UIUX:        {Primary: "ui-engineer", Supporting: []string{"ux-researcher"}, Review: []string{"code-reviewer"}, Workflow: "standard"},
	classify.Database:    {Primary: "database-engineer", Supporting: []string{"architect"}, Review: []string{"code-reviewer"}, Approval: []string{"tech-lead"}, Workflow: "data-change"},
	classify.Security:    {Primary: "security-architect", Supporting: []string{"developer"}, Review: []string{"code-reviewer"}, Approval: []string{"security-lead"}, Workflow: "security-review"},
	classify.DevOps:      {Primary: "devops-engineer", Review: []string{"code-reviewer"}, Approval: []string{"tech-lead"}, Workflow: "infra-change"},
	classify.Architecture: {Primary: "architect", Supporting: []string{"developer"}, Review: []string{"code-reviewer"}, Approval: []string{"tech-lead"}, Workflow: "design-review"},
}

// crossCuttingTriggers fires additional agents onto the chain regardless
// of the base task type's matrix row.
var crossCuttingTriggers = []trigger{
	{Agent: "security-architect", Keywords: []string{"auth", "password", "credential", "token", "secret", "permission"}, Level: TriggerCritical},
	{Agent: "accessibility-specialist", Keywords: []string{"ui", "ux", "component", "layout"}, Level: TriggerUITasks},
	{Agent: "performance-engineer", Keywords: []string{"performance", "latency", "throughput"}, Level: TriggerModeratePlus},
	{Agent: "architect", Keywords: []string{"architecture", "redesign", "cross-module"}, Level: TriggerComplexPlus},
	{Agent: "compliance-reviewer", Keywords: []string{"compliance", "regulation", "audit"}, Level: TriggerAlways},
}

// planReviewerTable maps a workflow to the plan-reviewer agents required
// before execution proceeds.
var planReviewerTable = map[string][]string{
	"standard":        {},
	"docs":            {},
	"data-change":     {"database-engineer"},
	"security-review": {"security-architect"},
	"infra-change":    {"devops-engineer"},
	"design-review":   {"architect"},
}

// signoffTable maps a task type to the signoff agents required before a
// run can complete.
var signoffTable = map[classify.TaskType][]string{
	classify.Security:     {"security-lead"},
	classify.Database:     {"tech-lead"},
	classify.DevOps:       {"tech-lead"},
	classify.Architecture: {"tech-lead"},
}

// reviewSkipList names task types that may skip the review stage at
// trivial complexity.
var reviewSkipList = map[classify.TaskType]bool{
	classify.Documentation: true,
	classify.Bugfix:        true,
	classify.Implementation: true,
}

// PrimaryAgentFor reports the routing matrix's primary agent for
// taskType, for consumers outside this package (internal/health's
// routing-accuracy metric) that need the matrix without running a full
// classification + Route call.
func PrimaryAgentFor(taskType classify.TaskType) (string, bool) {
	entry, ok := routingMatrix[taskType]
	if !ok {
		return "", false
	}
	return entry.Primary, true
}

type securityRule struct {
	pattern  *regexp.Regexp
	category string
	priority string
	blocking bool
}

// securityRules drives the secondary keyword/category scan. A match
// elevates the result's priority and, for blocking rules, halts the
// chain fail-closed.
var securityRules = []securityRule{
	{pattern: regexp.MustCompile(`(?i)\b(sql injection|command injection|rce|remote code execution)\b`), category: "injection", priority: "critical", blocking: true},
	{pattern: regexp.MustCompile(`(?i)\b(hardcode[d]? (secret|credential|password|key)|leak(ed)? (secret|credential))\b`), category: "secret-exposure", priority: "critical", blocking: true},
	{pattern: regexp.MustCompile(`(?i)\b(implement|build|create|design|rework)\b.*\b(auth\w*|oauth|jwt|sso|login)\b`), category: "auth-implementation", priority: "critical", blocking: true},
	{pattern: regexp.MustCompile(`(?i)\b(auth\w*|oauth|jwt|session)\b`), category: "authentication", priority: "high", blocking: false},
	{pattern: regexp.MustCompile(`(?i)\b(encrypt|decrypt|cipher|tls|certificate)\b`), category: "cryptography", priority: "high", blocking: false},
	{pattern: regexp.MustCompile(`(?i)\b(permission|access control|authorization|rbac)\b`), category: "access-control", priority: "medium", blocking: false},
}
