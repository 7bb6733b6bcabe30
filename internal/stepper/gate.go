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

package stepper

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// GateRecord is the per-step gate side-record: an observable output
// documenting whether a step was allowed to proceed. It is never read
// back by the Stepper itself, only by external observers (CLI, audit
// tooling), so a write failure here never fails the step.
type GateRecord struct {
	Status   string   `json:"status"`
	Agent    string   `json:"agent"`
	Allowed  bool     `json:"allowed"`
	Blockers []string `json:"blockers,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// writeGateFile persists rec to gates/<NN>-gate.json under the run's
// directory. Best-effort: a failure here is
// logged and swallowed rather than surfaced, matching the audit log's
// own non-fatal write discipline (logGate).
func (s *Stepper) writeGateFile(runID string, step int, rec GateRecord) {
	if s.Store == nil {
		return
	}
	dir := filepath.Join(s.Store.RunDir(runID), "gates")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.Logger.Warn("gate record directory create failed", "run_id", runID, "error", err)
		return
	}
	path := filepath.Join(dir, fmt.Sprintf("%02d-gate.json", step))
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		s.Logger.Warn("gate record write failed", "run_id", runID, "path", path, "error", err)
	}
}
