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
	"strings"

	"github.com/loomkit/maestro/internal/classify"
	"github.com/loomkit/maestro/internal/pattern"
)

// Router assembles an execution chain for a classified task.
type Router struct {
	learner *pattern.Learner
}

// New returns a Router. A nil learner disables pattern-learning
// consultation (SuggestRoutingImprovement then always reports no
// recommendations).
func New(learner *pattern.Learner) *Router {
	return &Router{learner: learner}
}

// Route composes the routing matrix, cross-cutting triggers, security
// enforcement, and learned suggestions for an already-classified task.
// task is the sanitized task description, used for trigger and security
// keyword matching.
func (r *Router) Route(task string, result *classify.Result) Result {
	entry, ok := routingMatrix[result.TaskType]
	if !ok {
		entry = matrixEntry{Primary: "developer", Review: []string{"code-reviewer"}, Workflow: "standard"}
	}

	security := scanSecurity(task)

	var chain []string
	chain = append(chain, entry.Primary)
	chain = append(chain, entry.Supporting...)

	for _, trig := range crossCuttingTriggers {
		if triggerFires(trig, task, result.Complexity) {
			chain = append(chain, trig.Agent)
		}
	}

	skipReview := result.Complexity == classify.Trivial && reviewSkipList[result.TaskType]
	if !skipReview {
		chain = append(chain, entry.Review...)
	}
	chain = append(chain, entry.Approval...)

	if security.Blocking {
		chain = append(chain, "security-architect")
		chain = append(chain, security.RequiredAgents...)
	}

	chain = dedupePreserveOrder(chain)

	reviewers := append([]string(nil), planReviewerTable[entry.Workflow]...)
	signoffs := append([]string(nil), signoffTable[result.TaskType]...)

	var suggestion pattern.Suggestion
	if r.learner != nil {
		suggestion = r.learner.SuggestRoutingImprovement(task, string(result.TaskType), chain)
	}

	return Result{
		Chain:      chain,
		Gates:      result.Gates,
		WorkflowID: entry.Workflow,
		Reviewers:  reviewers,
		Signoffs:   signoffs,
		Security:   security,
		Blocked:    security.Blocking,
		Suggestion: suggestion,
	}
}

// triggerFires reports whether trig applies: a keyword match plus a
// complexity level compatible with the trigger's declared level.
func triggerFires(trig trigger, task string, complexity classify.Complexity) bool {
	matched := false
	lower := strings.ToLower(task)
	for _, kw := range trig.Keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}

	switch trig.Level {
	case TriggerAlways, TriggerCritical:
		return true
	case TriggerModeratePlus:
		return complexity >= classify.Moderate
	case TriggerComplexPlus:
		return complexity >= classify.Complex
	case TriggerUITasks:
		return true
	default:
		return false
	}
}

// scanSecurity runs the secondary security keyword scan, fail-closed on
// any blocking rule match.
func scanSecurity(task string) SecurityDecision {
	decision := SecurityDecision{Priority: "none"}
	priorityRank := map[string]int{"none": 0, "low": 1, "medium": 2, "high": 3, "critical": 4}

	for _, rule := range securityRules {
		if !rule.pattern.MatchString(task) {
			continue
		}
		decision.Categories = append(decision.Categories, rule.category)
		if priorityRank[rule.priority] > priorityRank[decision.Priority] {
			decision.Priority = rule.priority
		}
		if rule.blocking {
			decision.Blocking = true
			decision.RequireSignoff = true
			decision.RequiredAgents = appendUnique(decision.RequiredAgents, "security-architect")
		}
	}
	return decision
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}

// dedupePreserveOrder removes duplicate and empty entries, keeping the
// first occurrence of each.
func dedupePreserveOrder(chain []string) []string {
	seen := make(map[string]bool, len(chain))
	out := make([]string, 0, len(chain))
	for _, agent := range chain {
		if agent == "" || seen[agent] {
			continue
		}
		seen[agent] = true
		out = append(out, agent)
	}
	return out
}
