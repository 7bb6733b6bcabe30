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

package pattern

import (
	"path/filepath"
	"testing"
	"time"
)

func TestRecordAndHistory(t *testing.T) {
	l := New()
	l.Record(Execution{Task: "fix bug", TaskType: "BUGFIX", Agents: []string{"developer"}, Outcome: "success", Duration: time.Second})
	l.Record(Execution{Task: "fix bug 2", TaskType: "BUGFIX", Agents: []string{"developer"}, Outcome: "failure", Duration: 2 * time.Second})

	history := l.History("BUGFIX")
	if len(history) != 2 {
		t.Fatalf("History() len = %d, want 2", len(history))
	}

	other := l.History("SECURITY")
	if len(other) != 0 {
		t.Fatalf("History(SECURITY) len = %d, want 0", len(other))
	}
}

func TestRecordEvictsOldestPastCap(t *testing.T) {
	l := New()
	for i := 0; i < maxExecutionsPerType+10; i++ {
		l.Record(Execution{TaskType: "BUGFIX", Outcome: "success"})
	}
	if got := len(l.History("BUGFIX")); got != maxExecutionsPerType {
		t.Fatalf("History() len = %d, want %d", got, maxExecutionsPerType)
	}
}

func TestHistoryReturnsACopy(t *testing.T) {
	l := New()
	l.Record(Execution{TaskType: "BUGFIX", Outcome: "success"})

	history := l.History("BUGFIX")
	history[0].Outcome = "tampered"

	if l.History("BUGFIX")[0].Outcome != "success" {
		t.Fatal("History() leaked internal slice; mutation through the returned copy affected stored state")
	}
}

func TestCoverageFraction(t *testing.T) {
	l := New()
	for i := 0; i < minExecutionsForCoverage; i++ {
		l.Record(Execution{TaskType: "BUGFIX", Outcome: "success"})
	}
	l.Record(Execution{TaskType: "SECURITY", Outcome: "success"})

	if got := l.Coverage(); got != 0.5 {
		t.Fatalf("Coverage() = %v, want 0.5 (1 of 2 types covered)", got)
	}
}

func TestSuggestRoutingImprovementIsAdvisoryOnly(t *testing.T) {
	l := New()
	if s := l.SuggestRoutingImprovement("fix bug", "BUGFIX", []string{"developer"}); s.HasRecommendations {
		t.Fatalf("expected no recommendations with empty history, got %+v", s)
	}

	for i := 0; i < 10; i++ {
		outcome := "failure"
		if i%3 == 0 {
			outcome = "success"
		}
		l.Record(Execution{TaskType: "BUGFIX", Agents: []string{"developer"}, Outcome: outcome})
	}

	s := l.SuggestRoutingImprovement("fix bug", "BUGFIX", []string{"developer"})
	if !s.HasRecommendations {
		t.Fatalf("expected a recommendation given developer's <50%% success rate, got %+v", s)
	}
	if s.Confidence != "medium" {
		t.Fatalf("Confidence = %s, want medium for 10 samples", s.Confidence)
	}
}

func TestNewWithPersistenceSurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.ndjson")

	l, err := NewWithPersistence(path)
	if err != nil {
		t.Fatalf("NewWithPersistence: %v", err)
	}
	if err := l.Record(Execution{Task: "fix bug", TaskType: "BUGFIX", Agents: []string{"developer"}, Outcome: "success"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := l.Record(Execution{Task: "write doc", TaskType: "DOCUMENTATION", Agents: []string{"technical-writer"}, Outcome: "success"}); err != nil {
		t.Fatalf("Record: %v", err)
	}

	reloaded, err := NewWithPersistence(path)
	if err != nil {
		t.Fatalf("NewWithPersistence (reload): %v", err)
	}
	if got := len(reloaded.History("BUGFIX")); got != 1 {
		t.Fatalf("History(BUGFIX) after reload len = %d, want 1", got)
	}
	if got := len(reloaded.History("DOCUMENTATION")); got != 1 {
		t.Fatalf("History(DOCUMENTATION) after reload len = %d, want 1", got)
	}
}

func TestNewWithPersistenceMissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.ndjson")
	l, err := NewWithPersistence(path)
	if err != nil {
		t.Fatalf("NewWithPersistence: %v", err)
	}
	if got := len(l.History("BUGFIX")); got != 0 {
		t.Fatalf("History(BUGFIX) = %d, want 0 for a fresh log", got)
	}
}
