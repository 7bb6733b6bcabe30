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
	"strings"
	"testing"
	"testing/fstest"
)

func TestClassifyTrivialDocumentationTask(t *testing.T) {
	c := New(nil)
	result, err := c.Classify(Input{Task: "Fix typo in README"})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if result.Complexity != Trivial {
		t.Errorf("complexity = %s, want trivial", result.Complexity)
	}
	if result.TaskType != Documentation {
		t.Errorf("taskType = %s, want DOCUMENTATION", result.TaskType)
	}
	if result.PrimaryAgent != "technical-writer" {
		t.Errorf("primaryAgent = %s, want technical-writer", result.PrimaryAgent)
	}
	if result.Gates != (Gates{}) {
		t.Errorf("gates = %+v, want all false", result.Gates)
	}
}

func TestClassifySecurityKeywordFloor(t *testing.T) {
	c := New(nil)
	result, err := c.Classify(Input{Task: "Update login password validation"})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if result.Complexity != Complex && result.Complexity != Critical {
		t.Errorf("complexity = %s, want complex or critical", result.Complexity)
	}
	if !result.Gates.Planner {
		t.Errorf("gates.planner = false, want true")
	}
	found := false
	for _, r := range result.Reasoning {
		if strings.Contains(strings.ToLower(r), "security") {
			found = true
		}
	}
	if !found {
		t.Errorf("reasoning %v does not mention the security floor", result.Reasoning)
	}
}

func TestClassifyCrossModuleGlobElevatesComplexity(t *testing.T) {
	fsys := fstest.MapFS{
		"src/auth/login.ts":     &fstest.MapFile{},
		"src/users/profile.ts":  &fstest.MapFile{},
		"src/billing/invoice.ts": &fstest.MapFile{},
	}
	c := New(fsys)
	result, err := c.Classify(Input{Task: "Refactor authentication", Files: []string{"src/**/*.ts"}})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if result.Complexity != Complex && result.Complexity != Critical {
		t.Errorf("complexity = %s, want complex or critical", result.Complexity)
	}
	found := false
	for _, r := range result.Reasoning {
		if strings.Contains(r, "Cross-module changes detected") {
			found = true
		}
	}
	if !found {
		t.Errorf("reasoning %v missing cross-module note", result.Reasoning)
	}
}

func TestClassifySecurityKeywordAlwaysYieldsAtLeastComplex(t *testing.T) {
	tasks := []string{
		"rotate the oauth token",
		"fix the jwt encryption bug",
		"add permission checks",
	}
	c := New(nil)
	for _, task := range tasks {
		result, err := c.Classify(Input{Task: task})
		if err != nil {
			t.Fatalf("Classify(%q) error = %v", task, err)
		}
		if result.Complexity != Complex && result.Complexity != Critical {
			t.Errorf("Classify(%q) complexity = %s, want complex or critical", task, result.Complexity)
		}
	}
}

func TestClassifyRejectsOversizedInput(t *testing.T) {
	c := New(nil)
	_, err := c.Classify(Input{Task: strings.Repeat("a", MaxTaskLength+1)})
	if err == nil {
		t.Fatal("expected error for oversized task description")
	}
}

func TestClassifyRejectsTraversalAndAbsolutePatterns(t *testing.T) {
	c := New(nil)
	cases := []string{"../etc/passwd", "/etc/passwd", "src/`rm -rf`.go"}
	for _, pattern := range cases {
		_, err := c.Classify(Input{Task: "do something", Files: []string{pattern}})
		if err == nil {
			t.Errorf("Classify with pattern %q: expected error, got nil", pattern)
		}
	}
}

func TestClassifySingleFileCapsAtSimple(t *testing.T) {
	fsys := fstest.MapFS{"main.go": &fstest.MapFile{}}
	c := New(fsys)
	result, err := c.Classify(Input{Task: "implement a small feature", Files: []string{"main.go"}})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if result.Complexity > Simple {
		t.Errorf("complexity = %s, want capped at simple for a single-file change", result.Complexity)
	}
}

func TestClassifyMultiFileElevatesToModerate(t *testing.T) {
	fsys := fstest.MapFS{
		"a.go": &fstest.MapFile{},
		"b.go": &fstest.MapFile{},
		"c.go": &fstest.MapFile{},
	}
	c := New(fsys)
	result, err := c.Classify(Input{Task: "fix a small thing", Files: []string{"a.go", "b.go", "c.go"}})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if result.Complexity < Moderate {
		t.Errorf("complexity = %s, want at least moderate for 3 files", result.Complexity)
	}
}
