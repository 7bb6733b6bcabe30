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

// Package iteration implements per-workflow self-healing loop counters
// (iteration state) and per-session compliance/cost counters.
package iteration

import "time"

// Status is an iteration run's self-healing loop state.
type Status string

const (
	StatusActive   Status = "active"
	StatusComplete Status = "complete"
	StatusAbandoned Status = "abandoned"
)

// ComponentRating is one named component's latest quality score.
type ComponentRating struct {
	Score float64 `json:"score"`
}

// FixAttempt records one self-healing fix applied during the loop.
type FixAttempt struct {
	At          time.Time `json:"at"`
	Component   string    `json:"component"`
	Description string    `json:"description"`
}

// State is the persisted iteration-state document, one per workflow_id.
type State struct {
	WorkflowID       string                     `json:"workflow_id"`
	IterationCount   int                        `json:"iteration_count"`
	TargetRating     float64                    `json:"target_rating"`
	Status           Status                     `json:"status"`
	ComponentRatings map[string]ComponentRating `json:"component_ratings"`
	FixHistory       []FixAttempt               `json:"fix_history"`
	CompletionStatus string                     `json:"completion_status,omitempty"`
	CreatedAt        time.Time                  `json:"created_at"`
	UpdatedAt        time.Time                  `json:"updated_at"`
}

// New returns a fresh, active iteration state for workflowID.
func New(workflowID string, targetRating float64) *State {
	now := time.Now().UTC()
	return &State{
		WorkflowID:       workflowID,
		TargetRating:     targetRating,
		Status:           StatusActive,
		ComponentRatings: make(map[string]ComponentRating),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Bump increments the iteration counter.
func (s *State) Bump() {
	s.IterationCount++
	s.UpdatedAt = time.Now().UTC()
}

// SetRating records a component's latest score and, once every known
// component has reached TargetRating, marks the state complete.
func (s *State) SetRating(component string, score float64) {
	if s.ComponentRatings == nil {
		s.ComponentRatings = make(map[string]ComponentRating)
	}
	s.ComponentRatings[component] = ComponentRating{Score: score}
	s.UpdatedAt = time.Now().UTC()
	if s.allRatingsMeetTarget() {
		s.Status = StatusComplete
		s.CompletionStatus = "all components met target rating"
	}
}

// RecordFix appends a fix attempt to the history.
func (s *State) RecordFix(component, description string) {
	s.FixHistory = append(s.FixHistory, FixAttempt{
		At:          time.Now().UTC(),
		Component:   component,
		Description: description,
	})
	s.UpdatedAt = time.Now().UTC()
}

// SetStatus forces a status transition (e.g. an operator abandoning a
// stuck loop).
func (s *State) SetStatus(status Status) {
	s.Status = status
	s.UpdatedAt = time.Now().UTC()
}

// IsComplete reports whether every recorded component has reached
// TargetRating. An empty ComponentRatings map is never complete.
func (s *State) IsComplete() bool {
	return s.allRatingsMeetTarget()
}

func (s *State) allRatingsMeetTarget() bool {
	if len(s.ComponentRatings) == 0 {
		return false
	}
	for _, rating := range s.ComponentRatings {
		if rating.Score < s.TargetRating {
			return false
		}
	}
	return true
}
