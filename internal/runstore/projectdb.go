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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/loomkit/maestro/pkg/merrors"
)

// ProjectDB is the read-optimised projection of a run record plus its
// artifact registry (project-db.json). It is never a source of truth and
// is only ever written as a derivation of the run record and registry:
// by syncProjectDB after every successful CreateRun, UpdateRun,
// RegisterArtifact, WriteArtifactRegistry, and
// UpdateArtifactPublishingStatus call, and by ReadProjectDB when the
// persisted copy is stale or absent.
// No public method accepts a caller-supplied ProjectDB for persistence.
type ProjectDB struct {
	RunID      string `json:"run_id"`
	WorkflowID string `json:"workflow_id"`
	Status     Status `json:"status"`

	CurrentStep int `json:"current_step"`
	TotalSteps  int `json:"total_steps"`

	TasksTotal     int `json:"tasks_total"`
	TasksCompleted int `json:"tasks_completed"`
	TasksFailed    int `json:"tasks_failed"`

	Artifacts []ProjectDBArtifact `json:"artifacts"`

	DerivedFromRunUpdatedAt string `json:"derived_from_run_updated_at"`
	Hash                    string `json:"hash"`
}

// ProjectDBArtifact is the flattened per-artifact view carried in the
// derived project database.
type ProjectDBArtifact struct {
	Name             string           `json:"name"`
	Step             int              `json:"step"`
	Agent            string           `json:"agent"`
	ValidationStatus ValidationStatus `json:"validation_status"`
	Published        bool             `json:"published"`
}

// deriveProjectDB projects a run record and registry into a ProjectDB.
// Pure function: same inputs always produce the same output (including
// Hash), which is what lets ReadProjectDB detect staleness cheaply.
func deriveProjectDB(run *Run, reg *Registry) *ProjectDB {
	db := &ProjectDB{
		RunID:                   run.RunID,
		WorkflowID:              run.WorkflowID,
		Status:                  run.Status,
		CurrentStep:             run.CurrentStep,
		DerivedFromRunUpdatedAt: run.UpdatedAt.UTC().Format(timeLayout),
	}

	for _, t := range run.TaskQueue {
		db.TasksTotal++
		switch t.Status {
		case TaskCompleted:
			db.TasksCompleted++
		case TaskFailed:
			db.TasksFailed++
		}
		if t.Step+1 > db.TotalSteps {
			db.TotalSteps = t.Step + 1
		}
	}

	if reg != nil {
		names := make([]string, 0, len(reg.Artifacts))
		for name := range reg.Artifacts {
			names = append(names, name)
		}
		sortStrings(names)
		for _, name := range names {
			a := reg.Artifacts[name]
			db.Artifacts = append(db.Artifacts, ProjectDBArtifact{
				Name:             a.Name,
				Step:             a.Step,
				Agent:            a.Agent,
				ValidationStatus: a.ValidationStatus,
				Published:        a.Published,
			})
		}
	}

	db.Hash = hashProjectDB(db)
	return db
}

const timeLayout = "2006-01-02T15:04:05.000000000Z"

// sortStrings avoids pulling in "sort" just for this call site's
// single use; kept tiny and local.
func sortStrings(ss []string) {
	for i := 1; i < len(ss); i++ {
		for j := i; j > 0 && ss[j-1] > ss[j]; j-- {
			ss[j-1], ss[j] = ss[j], ss[j-1]
		}
	}
}

func hashProjectDB(db *ProjectDB) string {
	cp := *db
	cp.Hash = ""
	data, err := json.Marshal(cp)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (s *Store) projectDBPath(runID string) string {
	return filepath.Join(s.runDir(runID), "project-db.json")
}

// syncProjectDB re-derives and persists project-db.json from the current
// run record and registry. Called after every run/registry mutation;
// failures are non-fatal to the triggering operation (the derived cache
// can always be rebuilt from the source of truth on the next read), so
// a write error is discarded without logging rather than failing the
// caller's write.
func (s *Store) syncProjectDB(run *Run) {
	reg, err := s.readRegistryFromDisk(run.RunID)
	if err != nil {
		reg = NewRegistry()
	}
	db := deriveProjectDB(run, reg)
	_ = writeJSONAtomic(s.projectDBPath(run.RunID), db)
}

// ReadProjectDB returns the derived project database for a run,
// re-deriving it first if the persisted copy is stale (its
// derived_from_run_updated_at no longer matches the run record's current
// updated_at) or absent.
func (s *Store) ReadProjectDB(runID string) (*ProjectDB, error) {
	run, err := s.ReadRun(runID)
	if err != nil {
		return nil, err
	}

	var db ProjectDB
	path := s.projectDBPath(runID)
	err = readJSON(path, &db)
	switch {
	case err == nil:
		if db.DerivedFromRunUpdatedAt == run.UpdatedAt.UTC().Format(timeLayout) {
			return &db, nil
		}
	case errors.Is(err, os.ErrNotExist):
		// fall through to derive
	default:
		return nil, &merrors.CorruptError{Path: path, Cause: err}
	}

	reg, err := s.readRegistryFromDisk(runID)
	if err != nil {
		reg = NewRegistry()
	}
	fresh := deriveProjectDB(run, reg)
	_ = writeJSONAtomic(path, fresh)
	return fresh, nil
}
