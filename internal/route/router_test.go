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
	"testing"

	"github.com/loomkit/maestro/internal/classify"
)

func TestRouteDocumentationChain(t *testing.T) {
	r := New(nil)
	result := r.Route("fix typo in readme", &classify.Result{
		Complexity: classify.Trivial,
		TaskType:   classify.Documentation,
		Gates:      classify.Gates{},
	})

	if result.Blocked {
		t.Fatalf("result.Blocked = true, want false: %+v", result)
	}
	if len(result.Chain) == 0 || result.Chain[0] != "technical-writer" {
		t.Errorf("Chain = %v, want primary technical-writer first", result.Chain)
	}
	for _, agent := range result.Chain {
		if agent == "editor" {
			t.Errorf("Chain = %v, trivial+skip-listed task type should have skipped review", result.Chain)
		}
	}
}

func TestRouteChainHasNoDuplicates(t *testing.T) {
	r := New(nil)
	result := r.Route("redesign the system architecture with cross-module refactor", &classify.Result{
		Complexity: classify.Complex,
		TaskType:   classify.Architecture,
	})

	seen := make(map[string]bool)
	for _, agent := range result.Chain {
		if seen[agent] {
			t.Fatalf("Chain = %v contains duplicate %q", result.Chain, agent)
		}
		seen[agent] = true
	}
}

func TestRouteSecurityBlockingHaltsChain(t *testing.T) {
	r := New(nil)
	result := r.Route("fix sql injection vulnerability in the query builder", &classify.Result{
		Complexity: classify.Critical,
		TaskType:   classify.Security,
	})

	if !result.Blocked {
		t.Fatalf("expected Blocked = true for an sql injection match, got %+v", result)
	}
	if !result.Security.RequireSignoff {
		t.Errorf("expected RequireSignoff = true when blocking")
	}
	found := false
	for _, agent := range result.Chain {
		if agent == "security-architect" {
			found = true
		}
	}
	if !found {
		t.Errorf("Chain = %v missing mandatory security-architect when blocked", result.Chain)
	}
}

func TestRouteAuthImplementationBlocks(t *testing.T) {
	r := New(nil)
	result := r.Route("Implement OAuth authentication with JWT", &classify.Result{
		Complexity: classify.Complex,
		TaskType:   classify.Security,
	})

	if !result.Blocked {
		t.Fatalf("expected Blocked = true for an auth implementation, got %+v", result)
	}
	if result.Security.Priority != "critical" {
		t.Errorf("Security.Priority = %q, want critical", result.Security.Priority)
	}
	found := false
	for _, agent := range result.Chain {
		if agent == "security-architect" {
			found = true
		}
	}
	if !found {
		t.Errorf("Chain = %v missing security-architect", result.Chain)
	}
}

func TestRouteCriticalTriggerFiresRegardlessOfComplexity(t *testing.T) {
	r := New(nil)
	result := r.Route("rotate the oauth token", &classify.Result{
		Complexity: classify.Trivial,
		TaskType:   classify.Bugfix,
	})

	found := false
	for _, agent := range result.Chain {
		if agent == "security-architect" {
			found = true
		}
	}
	if !found {
		t.Errorf("Chain = %v missing security-architect for a critical-level trigger keyword", result.Chain)
	}
}

func TestRouteModeratePlusTriggerRequiresComplexityFloor(t *testing.T) {
	r := New(nil)
	trivial := r.Route("fix performance of a single helper", &classify.Result{
		Complexity: classify.Trivial,
		TaskType:   classify.Bugfix,
	})
	for _, agent := range trivial.Chain {
		if agent == "performance-engineer" {
			t.Errorf("moderate_plus trigger fired at trivial complexity: %v", trivial.Chain)
		}
	}

	moderate := r.Route("fix performance of a single helper", &classify.Result{
		Complexity: classify.Moderate,
		TaskType:   classify.Bugfix,
	})
	found := false
	for _, agent := range moderate.Chain {
		if agent == "performance-engineer" {
			found = true
		}
	}
	if !found {
		t.Errorf("moderate_plus trigger did not fire at moderate complexity: %v", moderate.Chain)
	}
}

func TestRouteIncludesSuggestionButNeverAppliesIt(t *testing.T) {
	r := New(nil)
	result := r.Route("implement a new feature", &classify.Result{
		Complexity: classify.Moderate,
		TaskType:   classify.Implementation,
	})

	if result.Suggestion.HasRecommendations {
		t.Errorf("expected no recommendations with a nil learner, got %+v", result.Suggestion)
	}
	if len(result.Chain) == 0 || result.Chain[0] != "developer" {
		t.Errorf("suggestion must never silently override the matrix-selected primary: %v", result.Chain)
	}
}
