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

import (
	"io/fs"
	"regexp"
)

// Classifier runs the deterministic classification algorithm. The zero
// value resolves files against no filesystem (patterns are treated as
// literal paths); construct with New and a non-nil fs.FS to enable real
// glob expansion.
type Classifier struct {
	globs *globResolver
}

// New returns a Classifier backed by fsys for glob expansion. A nil fsys
// disables glob expansion (every pattern counts as exactly one file).
func New(fsys fs.FS) *Classifier {
	if fsys == nil {
		return &Classifier{}
	}
	return &Classifier{globs: newGlobResolver(fsys)}
}

var (
	singleFileHint   = regexp.MustCompile(`(?i)single file`)
	multipleFileHint = regexp.MustCompile(`(?i)multiple files`)
)

// Classify sanitizes the input, scores complexity and task type,
// adjusts for file scope, applies the security floor, and maps the
// result to quality gates.
func (c *Classifier) Classify(in Input) (*Result, error) {
	if len(in.Task) > MaxTaskLength {
		return nil, &InvalidArgumentError{Field: "task", Reason: "description exceeds max length"}
	}
	if len(in.Files) > MaxFiles {
		return nil, &InvalidArgumentError{Field: "files", Reason: "too many file patterns"}
	}
	for _, f := range in.Files {
		if err := validateFilePattern(f); err != nil {
			return nil, err
		}
	}

	task := sanitizeDescription(in.Task)
	var reasoning []string

	complexity, taskType, agent := scoreComplexityAndType(task)
	reasoning = append(reasoning, "scored complexity "+complexity.String()+" and task type "+string(taskType)+" from keyword/regex tables")

	var resolved []string
	for _, pattern := range in.Files {
		resolved = append(resolved, c.globs.resolve(pattern)...)
	}
	crossModule := isCrossModule(in.Files, resolved)

	complexity = applyFileCountAdjustment(complexity, len(resolved), crossModule)
	if crossModule {
		reasoning = append(reasoning, "Cross-module changes detected")
	}

	complexity = applyFileScopeHints(complexity, task)

	if matchesSecurityKeyword(task) {
		if complexity < Complex {
			complexity = Complex
		}
		reasoning = append(reasoning, "security keyword floor applied: complexity clamped to at least complex")
	}

	return &Result{
		Complexity:   complexity,
		TaskType:     taskType,
		PrimaryAgent: agent,
		Gates:        gatesForComplexity(complexity),
		Reasoning:    reasoning,
	}, nil
}

func scoreComplexityAndType(task string) (Complexity, TaskType, string) {
	bestComplexity := Simple
	bestComplexityScore := -1.0
	for _, entry := range complexityTable {
		score := scoreText(task, entry.patterns)
		if score > bestComplexityScore {
			bestComplexityScore = score
			bestComplexity = entry.level
		}
	}
	if bestComplexityScore <= 0 {
		bestComplexity = Simple
	}

	bestType := Implementation
	bestAgent := "developer"
	bestTypeScore := -1.0
	for _, entry := range taskTypeTable {
		score := scoreText(task, entry.patterns)
		if score > bestTypeScore {
			bestTypeScore = score
			bestType = entry.taskType
			bestAgent = entry.agent
		}
	}
	if bestTypeScore <= 0 {
		bestType = Implementation
		bestAgent = "developer"
	}

	return bestComplexity, bestType, bestAgent
}

func scoreText(text string, patterns []weightedPattern) float64 {
	var total float64
	for _, p := range patterns {
		if p.pattern.MatchString(text) {
			total += p.weight
		}
	}
	return total
}

func matchesSecurityKeyword(task string) bool {
	return scoreText(task, securityKeywords) > 0
}

// applyFileCountAdjustment adjusts complexity by resolved file count.
// Critical is never downgraded by file count.
func applyFileCountAdjustment(c Complexity, fileCount int, crossModule bool) Complexity {
	if c == Critical {
		return c
	}

	floor := c
	switch {
	case fileCount >= 6 || crossModule:
		if floor < Complex {
			floor = Complex
		}
	case fileCount >= 2 && fileCount <= 5:
		if floor < Moderate {
			floor = Moderate
		}
	case fileCount == 1 && !crossModule:
		if floor > Simple {
			floor = Simple
		}
	}
	return floor
}

// applyFileScopeHints adjusts complexity by file-scope hints in the
// description ("single file" down from moderate, "multiple files" up
// from simple).
func applyFileScopeHints(c Complexity, task string) Complexity {
	if c == Critical {
		return c
	}
	if singleFileHint.MatchString(task) && c == Moderate {
		return Simple
	}
	if multipleFileHint.MatchString(task) && c == Simple {
		return Moderate
	}
	return c
}
