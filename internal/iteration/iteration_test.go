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

package iteration

import (
	"errors"
	"testing"

	"github.com/loomkit/maestro/pkg/merrors"
)

func TestStateCompletionRequiresAllComponents(t *testing.T) {
	s := New("wf-1", 8.0)
	if s.IsComplete() {
		t.Fatal("expected incomplete state with no ratings")
	}

	s.SetRating("backend", 9.0)
	if s.IsComplete() {
		t.Fatal("expected incomplete: only one of two components rated")
	}

	s.SetRating("frontend", 7.5)
	if s.IsComplete() {
		t.Fatal("expected incomplete: frontend below target")
	}

	s.SetRating("frontend", 8.5)
	if !s.IsComplete() {
		t.Fatal("expected complete: both components at/above target")
	}
	if s.Status != StatusComplete {
		t.Fatalf("expected status complete, got %s", s.Status)
	}
}

func TestStateBumpAndFixHistory(t *testing.T) {
	s := New("wf-1", 8.0)
	s.Bump()
	s.Bump()
	if s.IterationCount != 2 {
		t.Fatalf("expected iteration count 2, got %d", s.IterationCount)
	}

	s.RecordFix("backend", "fixed nil pointer in handler")
	if len(s.FixHistory) != 1 {
		t.Fatalf("expected one fix recorded, got %d", len(s.FixHistory))
	}
}

func TestStoreInitGetBump(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	if _, err := store.Init("wf-1", 8.0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := store.Init("wf-1", 8.0); err == nil {
		t.Fatal("expected error re-initializing an existing workflow")
	}

	state, err := store.Bump("wf-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.IterationCount != 1 {
		t.Fatalf("expected iteration count 1, got %d", state.IterationCount)
	}

	reloaded, err := store.Get("wf-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reloaded.IterationCount != 1 {
		t.Fatalf("expected persisted iteration count 1, got %d", reloaded.IterationCount)
	}
}

func TestStoreGetMissingIsNotFound(t *testing.T) {
	store := NewStore(t.TempDir())
	_, err := store.Get("does-not-exist")
	var notFound *merrors.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestStoreSetRatingPersists(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)
	if _, err := store.Init("wf-2", 9.0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	state, err := store.SetRating("wf-2", "api", 9.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Status != StatusComplete {
		t.Fatalf("expected complete after sole component meets target, got %s", state.Status)
	}
}

func TestSessionStateComplianceSnapshot(t *testing.T) {
	s := NewSessionState("sess-1")
	s.RecordGate(true)
	s.RecordGate(true)
	s.RecordGate(false)
	s.RecordApproval(true)

	snap := s.Snapshot()
	if snap.GatesPassed != 2 || snap.GatesViolated != 1 {
		t.Fatalf("unexpected gate counts: %+v", snap)
	}
	if snap.ApprovalsGranted != 1 {
		t.Fatalf("expected one approval granted, got %d", snap.ApprovalsGranted)
	}
	want := 2.0 / 3.0
	if snap.ComplianceRate != want {
		t.Fatalf("expected compliance rate %.4f, got %.4f", want, snap.ComplianceRate)
	}
}

func TestSessionStateCostTrackingDisabledByDefault(t *testing.T) {
	s := NewSessionState("sess-1")
	s.RecordCost(1.23, 500)
	if snap := s.Snapshot(); snap.Cost.TotalCostUSD != 0 {
		t.Fatalf("expected cost ignored while tracking disabled, got %+v", snap.Cost)
	}

	s.EnableCostTracking()
	s.RecordCost(1.23, 500)
	snap := s.Snapshot()
	if snap.Cost.TotalCostUSD != 1.23 || snap.Cost.TotalTokens != 500 {
		t.Fatalf("expected cost recorded once enabled, got %+v", snap.Cost)
	}
}
