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
	"fmt"
	"os"
	"regexp"

	"github.com/google/uuid"

	"github.com/loomkit/maestro/pkg/merrors"
)

// MaxRunIDLength bounds a run_id. IDs are filename-safe: alphanumerics
// and hyphens only.
const MaxRunIDLength = 128

var runIDPattern = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

// ValidateRunID rejects empty, over-long, or non-filename-safe run IDs.
func ValidateRunID(runID string) error {
	if runID == "" {
		return &merrors.ValidationError{Field: "run_id", Message: "must not be empty"}
	}
	if len(runID) > MaxRunIDLength {
		return &merrors.ValidationError{Field: "run_id", Message: fmt.Sprintf("exceeds %d characters", MaxRunIDLength)}
	}
	if !runIDPattern.MatchString(runID) {
		return &merrors.ValidationError{Field: "run_id", Message: "must contain only alphanumerics and hyphens"}
	}
	return nil
}

// maxIDAttempts bounds collision retries in NewRunID. A random UUID
// colliding even once is already vanishingly unlikely.
const maxIDAttempts = 5

// NewRunID generates a fresh run_id from a random UUID, optionally
// prefixed (<prefix>-<uuid>), retrying while the ID collides with an
// existing run directory under this store.
func (s *Store) NewRunID(prefix string) (string, error) {
	if prefix != "" {
		if err := ValidateRunID(prefix); err != nil {
			return "", err
		}
	}

	for range maxIDAttempts {
		id := uuid.NewString()
		if prefix != "" {
			id = prefix + "-" + id
		}
		if len(id) > MaxRunIDLength {
			return "", &merrors.ValidationError{Field: "prefix", Message: "prefix leaves no room for the UUID"}
		}
		if _, err := os.Stat(s.runDir(id)); os.IsNotExist(err) {
			return id, nil
		}
	}
	return "", fmt.Errorf("generating run_id: %d consecutive collisions", maxIDAttempts)
}
