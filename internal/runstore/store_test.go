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

package runstore

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/loomkit/maestro/pkg/merrors"
)

func TestCreateRun(t *testing.T) {
	t.Run("creates run and subdirectories", func(t *testing.T) {
		store := New(t.TempDir())

		run, err := store.CreateRun("run-1", CreateOptions{WorkflowID: "wf-1"})
		if err != nil {
			t.Fatalf("CreateRun() error = %v", err)
		}
		if run.Status != StatusPending {
			t.Errorf("Status = %v, want %v", run.Status, StatusPending)
		}
		if run.CreatedAt.IsZero() || run.UpdatedAt.IsZero() {
			t.Error("timestamps should be set")
		}

		for _, sub := range []string{"artifacts", "plans", "reasoning", "gates"} {
			if _, err := os.Stat(filepath.Join(store.runDir("run-1"), sub)); err != nil {
				t.Errorf("expected subdirectory %s: %v", sub, err)
			}
		}
	})

	t.Run("rejects duplicate run_id", func(t *testing.T) {
		store := New(t.TempDir())
		if _, err := store.CreateRun("run-1", CreateOptions{}); err != nil {
			t.Fatalf("first CreateRun() error = %v", err)
		}
		if _, err := store.CreateRun("run-1", CreateOptions{}); err == nil {
			t.Fatal("expected error creating duplicate run_id")
		}
	})
}

func TestReadRun(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		store := New(t.TempDir())
		_, err := store.ReadRun("missing")
		var nf *merrors.NotFoundError
		if !errors.As(err, &nf) {
			t.Fatalf("expected NotFoundError, got %v", err)
		}
	})

	t.Run("corrupt", func(t *testing.T) {
		store := New(t.TempDir())
		dir := store.runDir("run-1")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(store.runPath("run-1"), []byte("{not json"), 0o600); err != nil {
			t.Fatal(err)
		}
		_, err := store.ReadRun("run-1")
		var ce *merrors.CorruptError
		if !errors.As(err, &ce) {
			t.Fatalf("expected CorruptError, got %v", err)
		}
	})
}

func TestUpdateRun(t *testing.T) {
	store := New(t.TempDir())
	if _, err := store.CreateRun("run-1", CreateOptions{}); err != nil {
		t.Fatal(err)
	}

	status := StatusInProgress
	run, err := store.UpdateRun("run-1", Patch{Status: &status})
	if err != nil {
		t.Fatalf("UpdateRun() error = %v", err)
	}
	if run.Status != StatusInProgress {
		t.Errorf("Status = %v, want %v", run.Status, StatusInProgress)
	}
	if run.Timestamps.StartedAt == nil {
		t.Error("expected started_at to be set on first transition to in_progress")
	}

	if _, err := os.Stat(filepath.Join(store.runDir("run-1"), "run.json.lock")); !os.IsNotExist(err) {
		t.Errorf("lock file should be removed after UpdateRun, stat err = %v", err)
	}

	t.Run("metadata deep merge", func(t *testing.T) {
		_, err := store.UpdateRun("run-1", Patch{Metadata: map[string]any{
			"blockers": []any{"b1"},
			"nested":   map[string]any{"a": 1},
		}})
		if err != nil {
			t.Fatal(err)
		}
		run, err := store.UpdateRun("run-1", Patch{Metadata: map[string]any{
			"nested": map[string]any{"b": 2},
		}})
		if err != nil {
			t.Fatal(err)
		}
		nested, ok := run.Metadata["nested"].(map[string]any)
		if !ok {
			t.Fatalf("nested metadata missing or wrong type: %#v", run.Metadata["nested"])
		}
		if nested["a"] != float64(1) || nested["b"] != float64(2) {
			t.Errorf("expected deep-merged nested map, got %#v", nested)
		}
	})

	t.Run("concurrent updates are linearisable and lossless", func(t *testing.T) {
		store := New(t.TempDir())
		if _, err := store.CreateRun("run-concurrent", CreateOptions{}); err != nil {
			t.Fatal(err)
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			store.UpdateRun("run-concurrent", Patch{Metadata: map[string]any{"field_a": 1}})
		}()
		go func() {
			defer wg.Done()
			store.UpdateRun("run-concurrent", Patch{Metadata: map[string]any{"field_b": 2}})
		}()
		wg.Wait()

		run, err := store.ReadRun("run-concurrent")
		if err != nil {
			t.Fatal(err)
		}
		if run.Metadata["field_a"] != float64(1) {
			t.Errorf("field_a = %#v, want 1", run.Metadata["field_a"])
		}
		if run.Metadata["field_b"] != float64(2) {
			t.Errorf("field_b = %#v, want 2", run.Metadata["field_b"])
		}
		if _, err := os.Stat(filepath.Join(store.runDir("run-concurrent"), "run.json.lock")); !os.IsNotExist(err) {
			t.Errorf("lock file should not remain, stat err = %v", err)
		}
	})
}

func TestRegisterArtifactPolicies(t *testing.T) {
	store := New(t.TempDir())
	if _, err := store.CreateRun("run-1", CreateOptions{}); err != nil {
		t.Fatal(err)
	}

	t.Run("overwrite keeps created_at", func(t *testing.T) {
		a1, err := store.RegisterArtifact("run-1", Artifact{Name: "plan", Path: "plans/plan.md"}, PolicyOverwrite)
		if err != nil {
			t.Fatal(err)
		}
		time.Sleep(time.Millisecond)
		a2, err := store.RegisterArtifact("run-1", Artifact{Name: "plan", Path: "plans/plan-v2.md"}, PolicyOverwrite)
		if err != nil {
			t.Fatal(err)
		}
		if !a2.CreatedAt.Equal(a1.CreatedAt) {
			t.Errorf("overwrite should preserve created_at: %v != %v", a2.CreatedAt, a1.CreatedAt)
		}
		if a2.Path != "plans/plan-v2.md" {
			t.Errorf("Path = %s, want updated path", a2.Path)
		}
	})

	t.Run("version suffixes and increments", func(t *testing.T) {
		if _, err := store.RegisterArtifact("run-1", Artifact{Name: "report"}, PolicyVersion); err != nil {
			t.Fatal(err)
		}
		a2, err := store.RegisterArtifact("run-1", Artifact{Name: "report"}, PolicyVersion)
		if err != nil {
			t.Fatal(err)
		}
		if a2.Name != "report-v2" || a2.Version != 2 {
			t.Errorf("got name=%s version=%d, want report-v2/2", a2.Name, a2.Version)
		}
	})

	t.Run("skip no-ops when validation already passed", func(t *testing.T) {
		passed := ValidationPass
		_, err := store.RegisterArtifact("run-1", Artifact{Name: "gate", ValidationStatus: passed}, PolicyOverwrite)
		if err != nil {
			t.Fatal(err)
		}
		result, err := store.RegisterArtifact("run-1", Artifact{Name: "gate", Path: "changed"}, PolicySkip)
		if err != nil {
			t.Fatal(err)
		}
		if result.Path == "changed" {
			t.Error("skip policy should not overwrite a passed artifact")
		}
	})

	t.Run("names unique within a run registry", func(t *testing.T) {
		reg, err := store.ReadArtifactRegistry("run-1")
		if err != nil {
			t.Fatal(err)
		}
		seen := map[string]bool{}
		for name := range reg.Artifacts {
			if seen[name] {
				t.Errorf("duplicate artifact name %s", name)
			}
			seen[name] = true
		}
	})
}

func TestUpdateArtifactPublishingStatus(t *testing.T) {
	store := New(t.TempDir())
	if _, err := store.CreateRun("run-1", CreateOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.RegisterArtifact("run-1", Artifact{Name: "doc", ValidationStatus: ValidationPass}, PolicyOverwrite); err != nil {
		t.Fatal(err)
	}
	if _, err := store.RegisterArtifact("run-1", Artifact{Name: "draft"}, PolicyOverwrite); err != nil {
		t.Fatal(err)
	}

	published := true
	status := PublishSuccess
	artifact, err := store.UpdateArtifactPublishingStatus("run-1", "doc", PublishingUpdate{
		Published:     &published,
		PublishStatus: &status,
		Attempt:       &PublishAttempt{At: time.Now().UTC(), Ok: true},
	})
	if err != nil {
		t.Fatalf("UpdateArtifactPublishingStatus() error = %v", err)
	}
	if !artifact.Published || artifact.PublishStatus != PublishSuccess {
		t.Errorf("got published=%v status=%v", artifact.Published, artifact.PublishStatus)
	}
	if len(artifact.PublishAttempts) != 1 {
		t.Errorf("expected 1 publish attempt, got %d", len(artifact.PublishAttempts))
	}

	t.Run("unvalidated artifact cannot be published", func(t *testing.T) {
		_, err := store.UpdateArtifactPublishingStatus("run-1", "draft", PublishingUpdate{Published: &published})
		if err == nil {
			t.Fatal("expected publish of an unvalidated artifact to fail")
		}
	})
}

func TestReadArtifactRegistryCacheIsDeepCopy(t *testing.T) {
	store := New(t.TempDir()).WithCacheTTL(time.Minute)
	if _, err := store.CreateRun("run-1", CreateOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := store.RegisterArtifact("run-1", Artifact{Name: "a"}, PolicyOverwrite); err != nil {
		t.Fatal(err)
	}

	reg1, err := store.ReadArtifactRegistry("run-1")
	if err != nil {
		t.Fatal(err)
	}
	reg1.Artifacts["a"].Path = "mutated"

	reg2, err := store.ReadArtifactRegistry("run-1")
	if err != nil {
		t.Fatal(err)
	}
	if reg2.Artifacts["a"].Path == "mutated" {
		t.Error("cache returned a shared reference instead of a deep copy")
	}
}

func TestRegistryRoundTrip(t *testing.T) {
	store := New(t.TempDir())
	if _, err := store.CreateRun("run-1", CreateOptions{}); err != nil {
		t.Fatal(err)
	}
	want, err := store.RegisterArtifact("run-1", Artifact{Name: "a", Dependencies: []string{"b"}}, PolicyOverwrite)
	if err != nil {
		t.Fatal(err)
	}

	store2 := New(store.root)
	reg, err := store2.ReadArtifactRegistry("run-1")
	if err != nil {
		t.Fatal(err)
	}
	got := reg.Artifacts["a"]
	if got.Name != want.Name || got.Dependencies[0] != want.Dependencies[0] {
		t.Errorf("round trip mismatch: got %#v, want %#v", got, want)
	}
}
