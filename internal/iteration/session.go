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

import "sync"

// CostUsage tracks accumulated cost/token usage for one orchestrator
// session.
type CostUsage struct {
	TotalCostUSD float64
	TotalTokens  int
	RequestCount int
}

// SessionState holds per-session compliance counters (gate passes,
// violations, approvals) and optional cost accounting. It is a live
// in-memory counter, never a persisted document.
type SessionState struct {
	mu sync.Mutex

	SessionID string

	gatesPassed    int
	gatesViolated  int
	approvalsGranted int
	approvalsDenied  int

	costEnabled bool
	cost        CostUsage
}

// NewSessionState returns a SessionState for sessionID. Cost accounting
// starts disabled; call EnableCostTracking to turn it on.
func NewSessionState(sessionID string) *SessionState {
	return &SessionState{SessionID: sessionID}
}

// EnableCostTracking turns on cost accumulation for this session.
func (s *SessionState) EnableCostTracking() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.costEnabled = true
}

// RecordGate increments the pass or violation counter.
func (s *SessionState) RecordGate(passed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if passed {
		s.gatesPassed++
	} else {
		s.gatesViolated++
	}
}

// RecordApproval increments the granted or denied counter.
func (s *SessionState) RecordApproval(granted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if granted {
		s.approvalsGranted++
	} else {
		s.approvalsDenied++
	}
}

// RecordCost accumulates cost/token usage, a no-op unless cost tracking
// is enabled for this session.
func (s *SessionState) RecordCost(costUSD float64, tokens int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.costEnabled {
		return
	}
	s.cost.TotalCostUSD += costUSD
	s.cost.TotalTokens += tokens
	s.cost.RequestCount++
}

// ComplianceSnapshot is a point-in-time read of the compliance counters.
type ComplianceSnapshot struct {
	GatesPassed      int
	GatesViolated    int
	ApprovalsGranted int
	ApprovalsDenied  int
	ComplianceRate   float64
	CostTrackingOn   bool
	Cost             CostUsage
}

// Snapshot returns the current compliance/cost counters.
func (s *SessionState) Snapshot() ComplianceSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.gatesPassed + s.gatesViolated
	rate := 1.0
	if total > 0 {
		rate = float64(s.gatesPassed) / float64(total)
	}

	return ComplianceSnapshot{
		GatesPassed:      s.gatesPassed,
		GatesViolated:    s.gatesViolated,
		ApprovalsGranted: s.approvalsGranted,
		ApprovalsDenied:  s.approvalsDenied,
		ComplianceRate:   rate,
		CostTrackingOn:   s.costEnabled,
		Cost:             s.cost,
	}
}
