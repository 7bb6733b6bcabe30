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

package registry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/loomkit/maestro/internal/runstore"
)

func sampleDoc() *runstore.Registry {
	doc := runstore.NewRegistry()
	doc.Artifacts["plan"] = &runstore.Artifact{
		Name: "plan", ID: "a1", Step: 0,
		Metadata: map[string]any{"type": "plan"},
	}
	doc.Artifacts["impl"] = &runstore.Artifact{
		Name: "impl", ID: "a2", Step: 1,
		Metadata: map[string]any{"type": "code"},
	}
	return doc
}

func TestIndexedGetters(t *testing.T) {
	idx := New(sampleDoc())

	if _, ok := idx.GetByName("plan"); !ok {
		t.Error("GetByName(plan) not found")
	}
	if _, ok := idx.GetByID("a2"); !ok {
		t.Error("GetByID(a2) not found")
	}
	if got := idx.GetByType("code"); len(got) != 1 || got[0].Name != "impl" {
		t.Errorf("GetByType(code) = %#v", got)
	}
	if got := idx.GetByStep(0); len(got) != 1 || got[0].Name != "plan" {
		t.Errorf("GetByStep(0) = %#v", got)
	}
}

func TestSetRemovesStaleIndexEntries(t *testing.T) {
	idx := New(sampleDoc())

	idx.Set(&runstore.Artifact{Name: "plan", ID: "a1-new", Step: 2, Metadata: map[string]any{"type": "reasoning"}})

	if got := idx.GetByType("plan"); len(got) != 0 {
		t.Errorf("old type index entry not removed: %#v", got)
	}
	if got := idx.GetByStep(0); len(got) != 0 {
		t.Errorf("old step index entry not removed: %#v", got)
	}
	if got := idx.GetByType("reasoning"); len(got) != 1 {
		t.Errorf("new type index entry missing: %#v", got)
	}
	if _, ok := idx.GetByID("a1"); ok {
		t.Error("stale id index entry should be gone")
	}
	if a, ok := idx.GetByID("a1-new"); !ok || a.Step != 2 {
		t.Errorf("new id index entry missing or wrong: %#v", a)
	}
}

func TestDeleteReportsWhetherRemoved(t *testing.T) {
	idx := New(sampleDoc())

	if !idx.Delete("plan") {
		t.Error("Delete(plan) should report true")
	}
	if idx.Delete("plan") {
		t.Error("second Delete(plan) should report false")
	}
	if _, ok := idx.GetByName("plan"); ok {
		t.Error("plan should no longer be indexed")
	}
}

func TestValidatePublishedRequiresPass(t *testing.T) {
	doc := sampleDoc()
	doc.Artifacts["plan"].Published = true
	doc.Artifacts["plan"].ValidationStatus = runstore.ValidationFail

	idx := New(doc)
	if err := idx.Validate(); err == nil {
		t.Error("expected Validate() to reject published-without-pass")
	}
}

func TestRegisterVersionPolicyAppendsSuffix(t *testing.T) {
	idx := New(sampleDoc())
	now := time.Now().UTC()

	stored := idx.Register(runstore.Artifact{Name: "plan", Step: 2}, runstore.PolicyVersion, now)

	if stored.Name != "plan-v1" || stored.Version != 1 {
		t.Errorf("expected versioned name plan-v1/v1, got %s/v%d", stored.Name, stored.Version)
	}
	if _, ok := idx.GetByName("plan"); !ok {
		t.Error("original plan entry should still be indexed under its own name")
	}
	if _, ok := idx.GetByName("plan-v1"); !ok {
		t.Error("versioned entry should be indexed under its new name")
	}
}

func TestRegisterSkipPolicyKeepsValidatedArtifact(t *testing.T) {
	doc := sampleDoc()
	doc.Artifacts["plan"].ValidationStatus = runstore.ValidationPass
	idx := New(doc)

	stored := idx.Register(runstore.Artifact{Name: "plan", Step: 5, Path: "/new/path"}, runstore.PolicySkip, time.Now().UTC())

	if stored.Step != 0 || stored.Path != "" {
		t.Errorf("expected skip policy to keep the original artifact, got %#v", stored)
	}
}

func TestRegisterOverwritePreservesCreatedAt(t *testing.T) {
	doc := sampleDoc()
	created := time.Now().UTC().Add(-time.Hour)
	doc.Artifacts["plan"].CreatedAt = created
	idx := New(doc)

	stored := idx.Register(runstore.Artifact{Name: "plan", Step: 3}, runstore.PolicyOverwrite, time.Now().UTC())

	if !stored.CreatedAt.Equal(created) {
		t.Errorf("expected CreatedAt preserved as %v, got %v", created, stored.CreatedAt)
	}
	if stored.Step != 3 {
		t.Errorf("expected overwritten step 3, got %d", stored.Step)
	}
}

func TestSerializationRoundTripsExactly(t *testing.T) {
	doc := sampleDoc()
	idx := New(doc)

	want, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	got, err := json.Marshal(idx.Document())
	if err != nil {
		t.Fatal(err)
	}

	var wantMap, gotMap map[string]any
	json.Unmarshal(want, &wantMap)
	json.Unmarshal(got, &gotMap)

	wantJSON, _ := json.Marshal(wantMap)
	gotJSON, _ := json.Marshal(gotMap)
	if string(wantJSON) != string(gotJSON) {
		t.Errorf("round trip mismatch:\nwant %s\ngot  %s", wantJSON, gotJSON)
	}
}
