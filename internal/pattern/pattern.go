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

// Package pattern implements the Pattern Learner: an append-only,
// bounded-history execution log keyed by task type, consulted by the
// Router for advisory (never binding) routing suggestions.
package pattern

import (
	"sync"
	"time"
)

// maxExecutionsPerType bounds the in-memory history per task type.
const maxExecutionsPerType = 1000

// minExecutionsForCoverage is the pattern-coverage threshold: a
// task type counts as covered once it has at least this many executions.
const minExecutionsForCoverage = 3

// Execution is one recorded outcome for a task.
type Execution struct {
	Task       string        `json:"task"`
	TaskType   string        `json:"taskType"`
	Agents     []string      `json:"agents"`
	Outcome    string        `json:"outcome"`
	Duration   time.Duration `json:"duration"`
	Feedback   string        `json:"feedback,omitempty"`
	RecordedAt time.Time     `json:"recordedAt"`
}

// Suggestion is the Pattern Learner's advisory output. The Router
// includes it verbatim in its result and never applies it silently.
type Suggestion struct {
	HasRecommendations bool     `json:"hasRecommendations"`
	Confidence         string   `json:"confidence"` // low, medium, high
	Recommendations    []string `json:"recommendations"`
}

// Learner is the append-only, thread-safe execution registry.
type Learner struct {
	mu     sync.RWMutex
	byType map[string][]Execution

	// persistPath, when set via NewWithPersistence, is the NDJSON file
	// every Record rewrites atomically. Empty means in-memory only.
	persistPath string
}

// New returns an empty, in-memory-only Learner. Use NewWithPersistence
// for a Learner backed by an on-disk NDJSON log.
func New() *Learner {
	return &Learner{byType: make(map[string][]Execution)}
}

// Record appends exec under its task type, evicting the oldest entry for
// that type once maxExecutionsPerType is exceeded, then persists the
// updated log to disk if this Learner was constructed with
// NewWithPersistence. A persistence failure is logged to the returned
// error rather than silently dropped, but never discards the in-memory
// record: the Router and Health/Monitor always see the update.
func (l *Learner) Record(exec Execution) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	log := l.byType[exec.TaskType]
	log = append(log, exec)
	if len(log) > maxExecutionsPerType {
		log = log[len(log)-maxExecutionsPerType:]
	}
	l.byType[exec.TaskType] = log

	return l.persistLocked()
}

// History returns a copy of the recorded executions for taskType.
func (l *Learner) History(taskType string) []Execution {
	l.mu.RLock()
	defer l.mu.RUnlock()

	log := l.byType[taskType]
	out := make([]Execution, len(log))
	copy(out, log)
	return out
}

// Coverage reports the fraction of distinct recorded task types that have
// reached minExecutionsForCoverage executions.
func (l *Learner) Coverage() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.byType) == 0 {
		return 0
	}
	covered := 0
	for _, log := range l.byType {
		if len(log) >= minExecutionsForCoverage {
			covered++
		}
	}
	return float64(covered) / float64(len(l.byType))
}

// SuggestRoutingImprovement inspects the recorded history for taskType
// and proposes a (non-binding) alternative to currentChain. The
// confidence scales with sample size; the Router must never apply this
// automatically.
func (l *Learner) SuggestRoutingImprovement(task, taskType string, currentChain []string) Suggestion {
	history := l.History(taskType)
	if len(history) == 0 {
		return Suggestion{HasRecommendations: false, Confidence: "low"}
	}

	successByAgent := make(map[string]int)
	totalByAgent := make(map[string]int)
	for _, exec := range history {
		for _, agent := range exec.Agents {
			totalByAgent[agent]++
			if exec.Outcome == "success" {
				successByAgent[agent]++
			}
		}
	}

	var recs []string
	for agent, total := range totalByAgent {
		if total < minExecutionsForCoverage {
			continue
		}
		rate := float64(successByAgent[agent]) / float64(total)
		if rate < 0.5 && containsString(currentChain, agent) {
			recs = append(recs, "agent "+agent+" has a low historical success rate for "+taskType+" tasks; consider an alternate assignment")
		}
	}

	confidence := "low"
	switch {
	case len(history) >= 20:
		confidence = "high"
	case len(history) >= minExecutionsForCoverage:
		confidence = "medium"
	}

	return Suggestion{
		HasRecommendations: len(recs) > 0,
		Confidence:         confidence,
		Recommendations:    recs,
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
