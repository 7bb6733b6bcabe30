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

package pattern

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// NewWithPersistence returns a Learner whose history is loaded from, and
// every subsequent Record rewritten to, an NDJSON file at path: one
// Execution per line, ordered oldest-first per type as recorded.
//
// Uses the same temp-file-then-rename discipline as internal/runstore's
// writeJSONAtomic (see persistLocked below) so a crash mid-write never
// leaves a truncated or partially-written file behind; unlike the run
// store this package has no per-resource lock file, since a single
// process owns one Learner for its lifetime.
func NewWithPersistence(path string) (*Learner, error) {
	l := New()
	l.persistPath = path

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, fmt.Errorf("opening pattern log %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var exec Execution
		if err := json.Unmarshal(line, &exec); err != nil {
			// A single malformed line does not invalidate the rest of the
			// log; skip it rather than failing Learner construction.
			continue
		}
		l.byType[exec.TaskType] = append(l.byType[exec.TaskType], exec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading pattern log %s: %w", path, err)
	}

	for taskType, log := range l.byType {
		if len(log) > maxExecutionsPerType {
			l.byType[taskType] = log[len(log)-maxExecutionsPerType:]
		}
	}

	return l, nil
}

// persistLocked rewrites the entire NDJSON log from the in-memory state.
// Callers must hold l.mu (write lock) before calling. A no-op when the
// Learner was constructed with New rather than NewWithPersistence.
func (l *Learner) persistLocked() error {
	if l.persistPath == "" {
		return nil
	}

	dir := filepath.Dir(l.persistPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(l.persistPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	enc := json.NewEncoder(tmp)
	var encErr error
	for _, log := range l.byType {
		for _, exec := range log {
			if err := enc.Encode(exec); err != nil {
				encErr = err
				break
			}
		}
		if encErr != nil {
			break
		}
	}
	if encErr != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("encoding pattern log: %w", encErr)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing temp file %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, l.persistPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming %s to %s: %w", tmpPath, l.persistPath, err)
	}
	return nil
}
