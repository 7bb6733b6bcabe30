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
	"math/rand"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/loomkit/maestro/pkg/merrors"
)

// staleLockTTL is how old a lock file's recorded acquisition time may be
// before a new acquirer is permitted to reclaim it.
const staleLockTTL = 30 * time.Second

// defaultLockDeadline bounds how long Acquire will retry before giving up.
const defaultLockDeadline = 5 * time.Second

// lockPayload is the JSON body written into a run's lock file: who holds
// it, and since when, so a stuck lock can be diagnosed and reclaimed.
type lockPayload struct {
	OwnerPID    int       `json:"owner_pid"`
	AcquiredAt  time.Time `json:"acquired_at"`
}

// runLock holds the exclusive per-run lock realised as an on-disk lock
// file: O_EXCL create plus an advisory flock, with a stale-lock TTL
// reclaim for locks abandoned by a dead writer.
type runLock struct {
	path string
	file *os.File
}

// acquireLock attempts to take the exclusive lock for runDir within
// deadline, retrying with bounded jittered backoff. A lock file older than
// staleLockTTL is treated as abandoned and reclaimed.
func acquireLock(runDir, runID string, deadline time.Duration) (*runLock, error) {
	if deadline <= 0 {
		deadline = defaultLockDeadline
	}
	path := filepath.Join(runDir, "run.json.lock")
	start := time.Now()
	backoff := 10 * time.Millisecond

	for {
		lk, err := tryAcquire(path)
		if err == nil {
			return lk, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, err
		}

		if reclaimIfStale(path) {
			continue
		}

		if time.Since(start) >= deadline {
			return nil, &merrors.LockTimeoutError{RunID: runID, Deadline: deadline, Cause: err}
		}

		jitter := time.Duration(rand.Int63n(int64(backoff) / 2))
		time.Sleep(backoff + jitter)
		if backoff < 200*time.Millisecond {
			backoff *= 2
		}
	}
}

// tryAcquire makes one O_EXCL create + flock attempt.
func tryAcquire(path string) (*runLock, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, err
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}

	payload := lockPayload{OwnerPID: os.Getpid(), AcquiredAt: time.Now().UTC()}
	data, _ := json.Marshal(payload)
	if _, err := f.Write(data); err != nil {
		syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		f.Close()
		os.Remove(path)
		return nil, fmt.Errorf("writing lock payload: %w", err)
	}
	f.Sync()

	return &runLock{path: path, file: f}, nil
}

// reclaimIfStale removes path if its recorded acquisition time is older
// than staleLockTTL, returning true if it did so. A lock file that cannot
// be parsed is treated by its mtime instead.
func reclaimIfStale(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	age := time.Since(info.ModTime())
	if data, err := os.ReadFile(path); err == nil {
		var payload lockPayload
		if json.Unmarshal(data, &payload) == nil && !payload.AcquiredAt.IsZero() {
			age = time.Since(payload.AcquiredAt)
		}
	}

	if age < staleLockTTL {
		return false
	}
	return os.Remove(path) == nil
}

// release unlocks and deletes the lock file. Release must delete, never
// merely truncate, so waiters observe freedom deterministically.
func (l *runLock) release() error {
	syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	if err := l.file.Close(); err != nil {
		return err
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
