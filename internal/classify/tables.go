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

package classify

import "regexp"

// weightedPattern is one entry of a scoring table: a compiled regex and
// the score contributed on a match. Plain keywords are compiled as
// case-insensitive literal-word regexes so both tables share one scoring
// loop; "regex" entries (scored x1.5) carry genuine patterns.
type weightedPattern struct {
	pattern *regexp.Regexp
	weight  float64
}

func keyword(word string, weight float64) weightedPattern {
	return weightedPattern{pattern: regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`), weight: weight}
}

func rx(expr string, weight float64) weightedPattern {
	return weightedPattern{pattern: regexp.MustCompile(expr), weight: weight}
}

// complexityTable scores the five complexity levels. Declaration order
// is the tie-break priority (earlier wins ties).
var complexityTable = []struct {
	level    Complexity
	patterns []weightedPattern
}{
	{Trivial, []weightedPattern{
		keyword("typo", 1), keyword("rename", 1), keyword("comment", 1), keyword("whitespace", 1),
	}},
	{Simple, []weightedPattern{
		keyword("fix", 1), keyword("update", 1), keyword("add", 1), keyword("small", 1),
	}},
	{Moderate, []weightedPattern{
		keyword("feature", 1), keyword("implement", 1), keyword("integrate", 1),
		rx(`(?i)multiple files`, 1.5),
	}},
	{Complex, []weightedPattern{
		keyword("refactor", 1), keyword("migrate", 1), keyword("redesign", 1),
		rx(`(?i)cross[- ]module`, 1.5), rx(`(?i)architecture`, 1.5),
	}},
	{Critical, []weightedPattern{
		keyword("security", 1), keyword("vulnerability", 1), keyword("breach", 1),
		rx(`(?i)production (outage|incident)`, 1.5), rx(`(?i)data loss`, 1.5),
	}},
}

// taskTypeTable scores task types. Declaration order is the tie-break
// priority.
var taskTypeTable = []struct {
	taskType TaskType
	agent    string
	patterns []weightedPattern
}{
	{Security, "security-architect", []weightedPattern{
		keyword("auth", 1), keyword("password", 1), keyword("credential", 1), keyword("token", 1),
		keyword("oauth", 1), keyword("jwt", 1), keyword("encryption", 1), keyword("secret", 1),
		keyword("permission", 1), rx(`(?i)access control`, 1.5),
	}},
	{Database, "database-engineer", []weightedPattern{
		keyword("schema", 1), keyword("migration", 1), keyword("query", 1), keyword("index", 1),
		rx(`(?i)\bsql\b`, 1.5),
	}},
	{UIUX, "ui-engineer", []weightedPattern{
		keyword("ui", 1), keyword("ux", 1), keyword("component", 1), keyword("layout", 1),
		keyword("style", 1), rx(`(?i)design system`, 1.5),
	}},
	{DevOps, "devops-engineer", []weightedPattern{
		keyword("deploy", 1), keyword("pipeline", 1), keyword("infrastructure", 1), keyword("docker", 1),
		rx(`(?i)ci/cd`, 1.5),
	}},
	{Testing, "qa-engineer", []weightedPattern{
		keyword("test", 1), keyword("coverage", 1), keyword("regression", 1),
	}},
	{Architecture, "architect", []weightedPattern{
		keyword("architecture", 1), keyword("redesign", 1), rx(`(?i)system design`, 1.5),
	}},
	{Refactor, "developer", []weightedPattern{
		keyword("refactor", 1), keyword("cleanup", 1), keyword("reorganize", 1),
	}},
	{Bugfix, "developer", []weightedPattern{
		keyword("bug", 1), keyword("fix", 1), keyword("issue", 1), keyword("broken", 1),
	}},
	{Documentation, "technical-writer", []weightedPattern{
		keyword("document", 1), keyword("readme", 1), keyword("typo", 1), keyword("comment", 1),
	}},
	{Implementation, "developer", []weightedPattern{
		keyword("implement", 1), keyword("feature", 1), keyword("build", 1), keyword("add", 1),
	}},
}

// securityKeywords is the fixed set that clamps complexity to at least
// Complex, independent of the task-type scoring above.
var securityKeywords = []weightedPattern{
	rx(`(?i)\bauth\w*`, 1), keyword("password", 1), keyword("credential", 1), keyword("token", 1),
	keyword("oauth", 1), keyword("jwt", 1), keyword("encryption", 1), keyword("secret", 1),
	keyword("permission", 1), rx(`(?i)access control`, 1),
}

// gatesForComplexity is the fixed complexity -> gates table.
func gatesForComplexity(c Complexity) Gates {
	switch c {
	case Trivial:
		return Gates{}
	case Simple:
		return Gates{Review: true}
	case Moderate:
		return Gates{Planner: true, Review: true}
	case Complex, Critical:
		return Gates{Planner: true, Review: true, ImpactAnalysis: true}
	default:
		return Gates{}
	}
}
