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

// Package health implements the Health/Monitor component: stall
// detection, routing accuracy, agent utilization, pattern coverage and
// the composite health score, plus the memory-pressure sampler.
package health

import (
	"math"
	"time"

	"github.com/loomkit/maestro/internal/classify"
	"github.com/loomkit/maestro/internal/pattern"
	"github.com/loomkit/maestro/internal/route"
	"github.com/loomkit/maestro/internal/runstore"
)

// DefaultStallThreshold is the default duration of no progress after
// which a non-terminal run counts as stalled.
const DefaultStallThreshold = 5 * time.Minute

// Status is the composite health-score bucket.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// Metrics is the aggregate snapshot computed by Monitor.Compute.
type Metrics struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Stalled   int `json:"stalled"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`

	StalledRunIDs []string `json:"stalledRunIds,omitempty"`

	RoutingAccuracy    float64            `json:"routingAccuracy"`
	AgentUtilization   map[string]float64 `json:"agentUtilization"`
	PatternCoverage    float64            `json:"patternCoverage"`
	SuccessRate        float64            `json:"successRate"`
	AvgDurationSeconds float64            `json:"avgDurationSeconds"`

	Score  float64 `json:"score"`
	Status Status  `json:"status"`
}

// Monitor computes Metrics from a runstore.Store (run records) and a
// pattern.Learner (pattern coverage). It never mutates either: reads are
// snapshots, so the Monitor never blocks the Stepper.
type Monitor struct {
	store          *runstore.Store
	learner        *pattern.Learner
	stallThreshold time.Duration
}

// New returns a Monitor over store and learner. A nil learner yields a
// PatternCoverage of 0 in every computed Metrics.
func New(store *runstore.Store, learner *pattern.Learner) *Monitor {
	return &Monitor{store: store, learner: learner, stallThreshold: DefaultStallThreshold}
}

// WithStallThreshold overrides the default stall threshold. Intended for
// tests.
func (m *Monitor) WithStallThreshold(d time.Duration) *Monitor {
	m.stallThreshold = d
	return m
}

// nonTerminal reports whether status is one a stalled run may be in.
func nonTerminal(status runstore.Status) bool {
	switch status {
	case runstore.StatusPending, runstore.StatusInProgress, runstore.StatusAwaitingApproval:
		return true
	default:
		return false
	}
}

// IsStalled reports whether run counts as stalled at instant now: a
// non-terminal status whose updated_at exceeds the stall threshold.
func (m *Monitor) IsStalled(run *runstore.Run, now time.Time) bool {
	if !nonTerminal(run.Status) {
		return false
	}
	return now.Sub(run.UpdatedAt) > m.stallThreshold
}

// taskTypeOf extracts the task type recorded in a run's metadata by the
// Router at routing time (metadata["task_type"]).
func taskTypeOf(run *runstore.Run) (string, bool) {
	v, ok := run.Metadata["task_type"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok && s != ""
}

// Compute scans every persisted run and returns the aggregate Metrics
// snapshot as of now.
func (m *Monitor) Compute(now time.Time) (Metrics, error) {
	ids, err := m.store.ListRunIDs()
	if err != nil {
		return Metrics{}, err
	}

	metrics := Metrics{AgentUtilization: make(map[string]float64)}

	var routingMatches, routingRows int
	agentExecCounts := make(map[string]int)
	totalExecs := 0
	var totalDuration time.Duration
	var durationSamples int

	for _, id := range ids {
		run, err := m.store.ReadRun(id)
		if err != nil {
			// Corrupt or unreadable runs are excluded from the snapshot
			// rather than failing the whole computation.
			continue
		}
		metrics.Total++

		switch run.Status {
		case runstore.StatusCompleted:
			metrics.Completed++
		case runstore.StatusFailed:
			metrics.Failed++
		default:
			metrics.Active++
		}

		if m.IsStalled(run, now) {
			metrics.Stalled++
			metrics.StalledRunIDs = append(metrics.StalledRunIDs, run.RunID)
		}

		if taskType, ok := taskTypeOf(run); ok && len(run.TaskQueue) > 0 {
			if primary, ok := route.PrimaryAgentFor(classify.TaskType(taskType)); ok {
				routingRows++
				if run.TaskQueue[0].Agent == primary {
					routingMatches++
				}
			}
		}

		for _, item := range run.TaskQueue {
			if item.Agent == "" {
				continue
			}
			agentExecCounts[item.Agent]++
			totalExecs++
		}

		if run.Status == runstore.StatusCompleted && run.Timestamps.StartedAt != nil && run.Timestamps.CompletedAt != nil {
			totalDuration += run.Timestamps.CompletedAt.Sub(*run.Timestamps.StartedAt)
			durationSamples++
		}
	}

	if routingRows > 0 {
		metrics.RoutingAccuracy = float64(routingMatches) / float64(routingRows)
	}

	var utilizationSum float64
	if totalExecs > 0 {
		for agent, count := range agentExecCounts {
			share := float64(count) / float64(totalExecs)
			metrics.AgentUtilization[agent] = share
			utilizationSum += share
		}
	}
	avgUtilizationFraction := 0.0
	if len(agentExecCounts) > 0 {
		avgUtilizationFraction = utilizationSum / float64(len(agentExecCounts))
	}
	utilizationBalance := 1 - math.Abs(0.5-avgUtilizationFraction)

	if m.learner != nil {
		metrics.PatternCoverage = m.learner.Coverage()
	}

	if terminal := metrics.Completed + metrics.Failed; terminal > 0 {
		metrics.SuccessRate = float64(metrics.Completed) / float64(terminal)
	}

	if durationSamples > 0 {
		metrics.AvgDurationSeconds = totalDuration.Seconds() / float64(durationSamples)
	}

	metrics.Score = 100 * (0.4*metrics.RoutingAccuracy + 0.3*metrics.SuccessRate + 0.2*metrics.PatternCoverage + 0.1*utilizationBalance)
	switch {
	case metrics.Score >= 80:
		metrics.Status = StatusHealthy
	case metrics.Score >= 60:
		metrics.Status = StatusWarning
	default:
		metrics.Status = StatusCritical
	}

	return metrics, nil
}
