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

// Package registry provides an in-memory, O(1)-indexed view over one run's
// artifact registry document (internal/runstore.Registry), keeping four
// maps consistent under every mutation: by name, by id, by type, and by
// step.
// Every mutation keeps the indexes mutually consistent, so an index
// entry never points at a stale artifact.
package registry

import (
	"fmt"
	"time"

	"github.com/loomkit/maestro/internal/runstore"
)

// Indexed wraps one run's artifact registry document with secondary
// indexes. It is not safe for concurrent use; callers synchronize
// externally (the Stepper owns one Indexed per run, serially).
type Indexed struct {
	byName map[string]*runstore.Artifact
	byID   map[string]*runstore.Artifact
	byType map[string]map[string]*runstore.Artifact // type -> name -> artifact
	byStep map[int]map[string]*runstore.Artifact    // step -> name -> artifact
}

// New builds an Indexed view from a registry document.
func New(doc *runstore.Registry) *Indexed {
	idx := &Indexed{
		byName: make(map[string]*runstore.Artifact),
		byID:   make(map[string]*runstore.Artifact),
		byType: make(map[string]map[string]*runstore.Artifact),
		byStep: make(map[int]map[string]*runstore.Artifact),
	}
	if doc != nil {
		for _, a := range doc.Artifacts {
			idx.insert(a)
		}
	}
	return idx
}

func artifactType(a *runstore.Artifact) string {
	if a.Metadata == nil {
		return ""
	}
	t, _ := a.Metadata["type"].(string)
	return t
}

func (idx *Indexed) insert(a *runstore.Artifact) {
	idx.byName[a.Name] = a
	if a.ID != "" {
		idx.byID[a.ID] = a
	}
	if t := artifactType(a); t != "" {
		if idx.byType[t] == nil {
			idx.byType[t] = make(map[string]*runstore.Artifact)
		}
		idx.byType[t][a.Name] = a
	}
	if idx.byStep[a.Step] == nil {
		idx.byStep[a.Step] = make(map[string]*runstore.Artifact)
	}
	idx.byStep[a.Step][a.Name] = a
}

func (idx *Indexed) removeIndexEntries(a *runstore.Artifact) {
	delete(idx.byName, a.Name)
	if a.ID != "" {
		delete(idx.byID, a.ID)
	}
	if t := artifactType(a); t != "" {
		if m, ok := idx.byType[t]; ok {
			delete(m, a.Name)
			if len(m) == 0 {
				delete(idx.byType, t)
			}
		}
	}
	if m, ok := idx.byStep[a.Step]; ok {
		delete(m, a.Name)
		if len(m) == 0 {
			delete(idx.byStep, a.Step)
		}
	}
}

// GetByName is O(1).
func (idx *Indexed) GetByName(name string) (*runstore.Artifact, bool) {
	a, ok := idx.byName[name]
	return a, ok
}

// GetByID is O(1).
func (idx *Indexed) GetByID(id string) (*runstore.Artifact, bool) {
	a, ok := idx.byID[id]
	return a, ok
}

// GetByType returns all artifacts with metadata.type == t, O(1) plus the
// size of the result set.
func (idx *Indexed) GetByType(t string) []*runstore.Artifact {
	m := idx.byType[t]
	out := make([]*runstore.Artifact, 0, len(m))
	for _, a := range m {
		out = append(out, a)
	}
	return out
}

// GetByStep returns all artifacts registered at the given step.
func (idx *Indexed) GetByStep(step int) []*runstore.Artifact {
	m := idx.byStep[step]
	out := make([]*runstore.Artifact, 0, len(m))
	for _, a := range m {
		out = append(out, a)
	}
	return out
}

// Set inserts or replaces the artifact, removing stale index entries for
// any prior artifact registered under the same name first.
func (idx *Indexed) Set(a *runstore.Artifact) {
	if old, ok := idx.byName[a.Name]; ok {
		idx.removeIndexEntries(old)
	}
	idx.insert(a)
}

// Register resolves idempotency policy against the current index and
// applies the result, mirroring runstore.Store.RegisterArtifact's rules
// (skip when already validated, bump a version suffix, or overwrite
// preserving CreatedAt) against the in-memory index rather than against
// disk. Callers batch several artifacts through one Register pass per
// step, then reflect the result back with Store.WriteArtifactRegistry.
func (idx *Indexed) Register(a runstore.Artifact, policy runstore.IdempotencyPolicy, now time.Time) *runstore.Artifact {
	existing, exists := idx.GetByName(a.Name)

	switch policy {
	case runstore.PolicySkip:
		if exists && existing.ValidationStatus == runstore.ValidationPass {
			return existing
		}
	case runstore.PolicyVersion:
		if exists {
			version := existing.Version + 1
			a.Name = fmt.Sprintf("%s-v%d", a.Name, version)
			a.Version = version
		} else {
			a.Version = 1
		}
	case runstore.PolicyOverwrite, "":
		if exists {
			a.CreatedAt = existing.CreatedAt
			if a.Version == 0 {
				a.Version = existing.Version
			}
		}
	}

	if a.Version == 0 {
		a.Version = 1
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	if a.ValidationStatus == "" {
		a.ValidationStatus = runstore.ValidationPending
	}
	if a.PublishStatus == "" {
		a.PublishStatus = runstore.PublishPending
	}

	idx.Set(&a)
	return &a
}

// Delete removes the named artifact, reporting whether one was removed.
func (idx *Indexed) Delete(name string) bool {
	a, ok := idx.byName[name]
	if !ok {
		return false
	}
	idx.removeIndexEntries(a)
	return true
}

// Len returns the number of artifacts currently indexed.
func (idx *Indexed) Len() int {
	return len(idx.byName)
}

// Document flattens the indexed view back to the on-disk registry shape.
func (idx *Indexed) Document() *runstore.Registry {
	doc := runstore.NewRegistry()
	for name, a := range idx.byName {
		doc.Artifacts[name] = a
	}
	return doc
}

// Validate checks the invariants this package is responsible for
// maintaining: index keys match artifact names, and published implies
// validation passed.
func (idx *Indexed) Validate() error {
	for name, a := range idx.byName {
		if a.Name != name {
			return fmt.Errorf("index corruption: key %q holds artifact named %q", name, a.Name)
		}
		if a.Published && a.ValidationStatus != runstore.ValidationPass {
			return fmt.Errorf("artifact %q is published but validationStatus=%q", name, a.ValidationStatus)
		}
	}
	return nil
}
