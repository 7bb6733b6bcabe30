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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/loomkit/maestro/pkg/merrors"
)

// DefaultCacheTTL is the default lifetime of a cached artifact registry.
const DefaultCacheTTL = 5 * time.Second

// Store is the crash-safe persistent store for run records and artifact
// registries. One Store serves a single root directory; it is safe for
// concurrent use by multiple goroutines and (via the per-run lock file)
// multiple processes.
//
// All mutations write to a temp file and rename over the target, so a
// crash mid-write never leaves a torn document behind.
type Store struct {
	root string

	cacheTTL time.Duration
	mu       sync.Mutex
	cache    map[string]cacheEntry
}

type cacheEntry struct {
	registry  *Registry
	expiresAt time.Time
}

// New creates a Store rooted at root (the directory containing runs/).
func New(root string) *Store {
	return &Store{
		root:     root,
		cacheTTL: DefaultCacheTTL,
		cache:    make(map[string]cacheEntry),
	}
}

// WithCacheTTL overrides the default registry cache TTL. Intended for tests.
func (s *Store) WithCacheTTL(ttl time.Duration) *Store {
	s.cacheTTL = ttl
	return s
}

func (s *Store) runDir(runID string) string {
	return filepath.Join(s.root, "runs", runID)
}

// RunDir exposes the per-run directory path so callers that write
// observable side-records outside the run record itself (gate decisions,
// reasoning transcripts) can locate the right `gates/`/`reasoning/`
// subdirectories without duplicating this store's layout convention.
func (s *Store) RunDir(runID string) string {
	return s.runDir(runID)
}

func (s *Store) runPath(runID string) string {
	return filepath.Join(s.runDir(runID), "run.json")
}

func (s *Store) registryPath(runID string) string {
	return filepath.Join(s.runDir(runID), "artifact-registry.json")
}

// ListRunIDs returns every run_id with a run directory under this
// store's root, in directory-read order. Used by recovery and
// monitoring tooling (internal/health); the Stepper never needs to
// enumerate runs.
func (s *Store) ListRunIDs() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, "runs"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// CreateRun initializes a new run directory. Fails if the run directory
// already exists.
func (s *Store) CreateRun(runID string, opts CreateOptions) (*Run, error) {
	if err := ValidateRunID(runID); err != nil {
		return nil, err
	}
	dir := s.runDir(runID)
	if _, err := os.Stat(dir); err == nil {
		return nil, &merrors.ValidationError{Field: "run_id", Message: fmt.Sprintf("run %s already exists", runID)}
	}

	for _, sub := range []string{"artifacts", "plans", "reasoning", "gates"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", sub, err)
		}
	}

	now := time.Now().UTC()
	run := &Run{
		RunID:            runID,
		WorkflowID:       opts.WorkflowID,
		SelectedWorkflow: opts.SelectedWorkflow,
		CurrentStep:      0,
		Status:           StatusPending,
		TaskQueue:        []TaskQueueItem{},
		Metadata:         opts.Metadata,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if run.Metadata == nil {
		run.Metadata = map[string]any{}
	}

	if err := writeJSONAtomic(s.runPath(runID), run); err != nil {
		return nil, err
	}
	if err := writeJSONAtomic(s.registryPath(runID), NewRegistry()); err != nil {
		return nil, err
	}
	s.syncProjectDB(run)

	return run, nil
}

// ReadRun loads the run record, returning a typed NotFound or Corrupt error.
func (s *Store) ReadRun(runID string) (*Run, error) {
	var run Run
	path := s.runPath(runID)
	if err := readJSON(path, &run); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &merrors.NotFoundError{Resource: "run", ID: runID}
		}
		return nil, &merrors.CorruptError{Path: path, Cause: err}
	}
	if run.RunID == "" {
		return nil, &merrors.CorruptError{Path: path, Cause: fmt.Errorf("missing run_id")}
	}
	return &run, nil
}

// Patch describes a partial update to a run record. Metadata is
// deep-merged; all other non-zero fields replace the existing value.
type Patch struct {
	Status      *Status
	CurrentStep *int
	TaskQueue   []TaskQueueItem
	Owners      *Owners
	Metadata    map[string]any
}

// UpdateRun acquires the run's lock, merges patch into the stored record,
// re-stamps updated_at, and persists atomically before releasing the lock.
func (s *Store) UpdateRun(runID string, patch Patch) (*Run, error) {
	lk, err := acquireLock(s.runDir(runID), runID, defaultLockDeadline)
	if err != nil {
		return nil, err
	}
	defer lk.release()

	run, err := s.ReadRun(runID)
	if err != nil {
		return nil, err
	}

	prevStep := run.CurrentStep
	prevStatus := run.Status

	if patch.Status != nil {
		run.Status = *patch.Status
	}
	if patch.CurrentStep != nil {
		run.CurrentStep = *patch.CurrentStep
	}
	if patch.TaskQueue != nil {
		run.TaskQueue = patch.TaskQueue
	}
	if patch.Owners != nil {
		run.Owners = *patch.Owners
	}
	if patch.Metadata != nil {
		if run.Metadata == nil {
			run.Metadata = map[string]any{}
		}
		deepMergeMap(run.Metadata, patch.Metadata)
	}

	now := time.Now().UTC()
	run.UpdatedAt = now

	if prevStatus != StatusInProgress && run.Status == StatusInProgress && run.Timestamps.StartedAt == nil {
		run.Timestamps.StartedAt = &now
	}
	if run.Status == StatusCompleted && run.Timestamps.CompletedAt == nil {
		run.Timestamps.CompletedAt = &now
	}
	if run.CurrentStep != prevStep {
		run.Timestamps.LastStepCompletedAt = &now
	}

	if err := writeJSONAtomic(s.runPath(runID), run); err != nil {
		return nil, err
	}
	s.syncProjectDB(run)

	return run, nil
}

// deepMergeMap merges src into dst, recursing into nested map[string]any
// values and overwriting scalar/slice leaves.
func deepMergeMap(dst, src map[string]any) {
	for k, v := range src {
		if sv, ok := v.(map[string]any); ok {
			if dv, ok := dst[k].(map[string]any); ok {
				deepMergeMap(dv, sv)
				continue
			}
		}
		dst[k] = v
	}
}

// ReadArtifactRegistry loads a run's artifact registry, consulting the
// short-TTL cache first. The returned value is always a deep copy.
func (s *Store) ReadArtifactRegistry(runID string) (*Registry, error) {
	if reg, ok := s.cacheGet(runID); ok {
		return reg, nil
	}

	reg, err := s.readRegistryFromDisk(runID)
	if err != nil {
		return nil, err
	}

	s.cachePut(runID, reg)
	return copyRegistry(reg), nil
}

func (s *Store) readRegistryFromDisk(runID string) (*Registry, error) {
	var reg Registry
	path := s.registryPath(runID)
	if err := readJSON(path, &reg); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &merrors.NotFoundError{Resource: "artifact-registry", ID: runID}
		}
		return nil, &merrors.CorruptError{Path: path, Cause: err}
	}
	if reg.Artifacts == nil {
		reg.Artifacts = make(map[string]*Artifact)
	}
	return &reg, nil
}

// RecoverArtifactRegistry is like ReadArtifactRegistry but, on a corrupt
// document, renames the offending file aside for forensics
// (<name>.corrupt-<ts>) instead of merely surfacing the error. No command
// in this module calls it; the read paths use ReadArtifactRegistry.
func (s *Store) RecoverArtifactRegistry(runID string) (*Registry, error) {
	reg, err := s.readRegistryFromDisk(runID)
	if err == nil {
		return reg, nil
	}

	var corrupt *merrors.CorruptError
	if !errors.As(err, &corrupt) {
		return nil, err
	}

	quarantine := fmt.Sprintf("%s.corrupt-%d", corrupt.Path, time.Now().UTC().Unix())
	if renameErr := os.Rename(corrupt.Path, quarantine); renameErr == nil {
		corrupt.QuarantinedAs = quarantine
	}
	return nil, corrupt
}

func (s *Store) writeRegistry(runID string, reg *Registry) error {
	s.cacheInvalidate(runID)
	if err := writeJSONAtomic(s.registryPath(runID), reg); err != nil {
		return err
	}
	s.cachePut(runID, reg)
	return nil
}

// RegisterArtifact adds or replaces an artifact record under the given
// idempotency policy.
func (s *Store) RegisterArtifact(runID string, artifact Artifact, policy IdempotencyPolicy) (*Artifact, error) {
	lk, err := acquireLock(s.runDir(runID), runID, defaultLockDeadline)
	if err != nil {
		return nil, err
	}
	defer lk.release()

	reg, err := s.readRegistryFromDisk(runID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	existing, exists := reg.Artifacts[artifact.Name]

	switch policy {
	case PolicySkip:
		if exists && existing.ValidationStatus == ValidationPass {
			return existing, nil
		}
	case PolicyVersion:
		if exists {
			version := existing.Version + 1
			artifact.Name = fmt.Sprintf("%s-v%d", artifact.Name, version)
			artifact.Version = version
		} else {
			artifact.Version = 1
		}
	case PolicyOverwrite, "":
		if exists {
			artifact.CreatedAt = existing.CreatedAt
			if artifact.Version == 0 {
				artifact.Version = existing.Version
			}
		}
	}

	if artifact.Version == 0 {
		artifact.Version = 1
	}
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = now
	}
	artifact.UpdatedAt = now
	if artifact.ValidationStatus == "" {
		artifact.ValidationStatus = ValidationPending
	}
	if artifact.PublishStatus == "" {
		artifact.PublishStatus = PublishPending
	}

	reg.Artifacts[artifact.Name] = &artifact

	if err := s.writeRegistry(runID, reg); err != nil {
		return nil, err
	}
	if run, err := s.ReadRun(runID); err == nil {
		s.syncProjectDB(run)
	}

	return &artifact, nil
}

// WriteArtifactRegistry persists reg as the full artifact registry
// document in one locked write. It exists for callers, like the Stepper's
// indexed registry, that resolve idempotency policy for
// several artifacts against an in-memory index before reflecting the
// batch back to disk, rather than taking one lock per artifact via
// RegisterArtifact.
func (s *Store) WriteArtifactRegistry(runID string, reg *Registry) error {
	lk, err := acquireLock(s.runDir(runID), runID, defaultLockDeadline)
	if err != nil {
		return err
	}
	defer lk.release()

	if err := s.writeRegistry(runID, reg); err != nil {
		return err
	}
	if run, err := s.ReadRun(runID); err == nil {
		s.syncProjectDB(run)
	}
	return nil
}

// UpdateArtifactPublishingStatus mutates only the publishing fields of a
// named artifact, appending a publish attempt record.
func (s *Store) UpdateArtifactPublishingStatus(runID, name string, update PublishingUpdate) (*Artifact, error) {
	lk, err := acquireLock(s.runDir(runID), runID, defaultLockDeadline)
	if err != nil {
		return nil, err
	}
	defer lk.release()

	reg, err := s.readRegistryFromDisk(runID)
	if err != nil {
		return nil, err
	}

	artifact, ok := reg.Artifacts[name]
	if !ok {
		return nil, &merrors.NotFoundError{Resource: "artifact", ID: name}
	}

	now := time.Now().UTC()
	if update.Published != nil {
		// An artifact may only be marked published once validation passed.
		if *update.Published && artifact.ValidationStatus != ValidationPass {
			return nil, &merrors.ValidationError{Field: "published", Message: fmt.Sprintf("artifact %s has validationStatus=%s, not pass", name, artifact.ValidationStatus)}
		}
		artifact.Published = *update.Published
		if *update.Published {
			artifact.PublishedAt = &now
		}
	}
	if update.PublishStatus != nil {
		artifact.PublishStatus = *update.PublishStatus
	}
	if update.PublishError != nil {
		artifact.PublishError = *update.PublishError
	}
	if update.Attempt != nil {
		artifact.PublishAttempts = append(artifact.PublishAttempts, *update.Attempt)
	}
	artifact.UpdatedAt = now

	if err := s.writeRegistry(runID, reg); err != nil {
		return nil, err
	}
	if run, err := s.ReadRun(runID); err == nil {
		s.syncProjectDB(run)
	}

	return artifact, nil
}

func (s *Store) cacheGet(runID string) (*Registry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.cache[runID]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return copyRegistry(entry.registry), true
}

func (s *Store) cachePut(runID string, reg *Registry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[runID] = cacheEntry{registry: copyRegistry(reg), expiresAt: time.Now().Add(s.cacheTTL)}
}

func (s *Store) cacheInvalidate(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cache, runID)
}

// copyRegistry returns a deep copy so callers (and the cache) never share
// mutable state through a returned pointer.
func copyRegistry(reg *Registry) *Registry {
	if reg == nil {
		return nil
	}
	data, err := json.Marshal(reg)
	if err != nil {
		// Unreachable for well-formed Registry values; fall back to a
		// shallow copy rather than panic.
		out := &Registry{Artifacts: make(map[string]*Artifact, len(reg.Artifacts))}
		for k, v := range reg.Artifacts {
			a := *v
			out.Artifacts[k] = &a
		}
		return out
	}
	var out Registry
	json.Unmarshal(data, &out)
	if out.Artifacts == nil {
		out.Artifacts = make(map[string]*Artifact)
	}
	return &out
}
