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
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/loomkit/maestro/pkg/merrors"
)

// Store persists one State document per workflow_id under
// <root>/iterations/<workflow_id>.json, using the same
// temp-file-then-rename discipline as internal/runstore.
type Store struct {
	root string
	mu   sync.Mutex
}

// NewStore returns a Store rooted at root.
func NewStore(root string) *Store {
	return &Store{root: root}
}

func (s *Store) path(workflowID string) string {
	return filepath.Join(s.root, "iterations", workflowID+".json")
}

// Init creates a fresh iteration state for workflowID, failing if one
// already exists.
func (s *Store) Init(workflowID string, targetRating float64) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(workflowID)
	if _, err := os.Stat(path); err == nil {
		return nil, &merrors.ValidationError{Field: "workflow_id", Message: fmt.Sprintf("iteration state for %s already exists", workflowID)}
	}

	state := New(workflowID, targetRating)
	if err := s.write(state); err != nil {
		return nil, err
	}
	return state, nil
}

// Get loads the iteration state for workflowID.
func (s *Store) Get(workflowID string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(workflowID)
}

// Bump loads, increments, and persists the iteration counter.
func (s *Store) Bump(workflowID string) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.read(workflowID)
	if err != nil {
		return nil, err
	}
	state.Bump()
	if err := s.write(state); err != nil {
		return nil, err
	}
	return state, nil
}

// SetRating loads, records a component rating, and persists the result.
func (s *Store) SetRating(workflowID, component string, score float64) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.read(workflowID)
	if err != nil {
		return nil, err
	}
	state.SetRating(component, score)
	if err := s.write(state); err != nil {
		return nil, err
	}
	return state, nil
}

// SetStatus loads, forces a status transition, and persists the result.
func (s *Store) SetStatus(workflowID string, status Status) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.read(workflowID)
	if err != nil {
		return nil, err
	}
	state.SetStatus(status)
	if err := s.write(state); err != nil {
		return nil, err
	}
	return state, nil
}

func (s *Store) read(workflowID string) (*State, error) {
	path := s.path(workflowID)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &merrors.NotFoundError{Resource: "iteration-state", ID: workflowID}
		}
		return nil, &merrors.CorruptError{Path: path, Cause: err}
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, &merrors.CorruptError{Path: path, Cause: err}
	}
	return &state, nil
}

func (s *Store) write(state *State) error {
	path := s.path(state.WorkflowID)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling iteration state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp file %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming %s to %s: %w", tmpPath, path, err)
	}
	return nil
}
