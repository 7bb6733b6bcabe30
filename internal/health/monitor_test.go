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

package health

import (
	"context"
	"testing"
	"time"

	"github.com/loomkit/maestro/internal/pattern"
	"github.com/loomkit/maestro/internal/runstore"
)

func TestIsStalled(t *testing.T) {
	store := runstore.New(t.TempDir())
	monitor := New(store, pattern.New()).WithStallThreshold(5 * time.Minute)

	now := time.Now().UTC()
	stale := &runstore.Run{Status: runstore.StatusInProgress, UpdatedAt: now.Add(-10 * time.Minute)}
	if !monitor.IsStalled(stale, now) {
		t.Fatal("expected in_progress run past threshold to be stalled")
	}

	fresh := &runstore.Run{Status: runstore.StatusInProgress, UpdatedAt: now.Add(-1 * time.Minute)}
	if monitor.IsStalled(fresh, now) {
		t.Fatal("expected recently-updated run not to be stalled")
	}

	terminal := &runstore.Run{Status: runstore.StatusCompleted, UpdatedAt: now.Add(-1 * time.Hour)}
	if monitor.IsStalled(terminal, now) {
		t.Fatal("expected terminal run never to be stalled")
	}
}

func TestComputeAggregatesRunsAndScore(t *testing.T) {
	store := runstore.New(t.TempDir())
	learner := pattern.New()
	monitor := New(store, learner).WithStallThreshold(5 * time.Minute)

	mustCreate := func(id, taskType, agent string, status runstore.Status) {
		run, err := store.CreateRun(id, runstore.CreateOptions{Metadata: map[string]any{"task_type": taskType}})
		if err != nil {
			t.Fatalf("CreateRun: %v", err)
		}
		s := status
		step := 1
		_, err = store.UpdateRun(run.RunID, runstore.Patch{
			Status:      &s,
			CurrentStep: &step,
			TaskQueue:   []runstore.TaskQueueItem{{TaskID: "t1", Agent: agent, Step: 1, Status: runstore.TaskCompleted}},
		})
		if err != nil {
			t.Fatalf("UpdateRun: %v", err)
		}
	}

	mustCreate("run-1", "IMPLEMENTATION", "developer", runstore.StatusCompleted)
	mustCreate("run-2", "IMPLEMENTATION", "developer", runstore.StatusFailed)
	mustCreate("run-3", "DOCUMENTATION", "technical-writer", runstore.StatusCompleted)

	metrics, err := monitor.Compute(time.Now().UTC())
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}

	if metrics.Total != 3 {
		t.Fatalf("expected 3 total runs, got %d", metrics.Total)
	}
	if metrics.Completed != 2 || metrics.Failed != 1 {
		t.Fatalf("expected 2 completed, 1 failed, got %+v", metrics)
	}
	if metrics.RoutingAccuracy != 1.0 {
		t.Fatalf("expected perfect routing accuracy (primary agent matches), got %f", metrics.RoutingAccuracy)
	}
	if metrics.Status == "" {
		t.Fatal("expected a computed status bucket")
	}
}

func TestMemoryMonitorTriggersEvictOnce(t *testing.T) {
	var evictCount int
	m := &MemoryMonitor{CeilingBytes: 1, OnEvict: func() { evictCount++ }}

	m.sample()
	m.sample()
	m.sample()

	if evictCount != 1 {
		t.Fatalf("expected eviction triggered exactly once while above watermark, got %d", evictCount)
	}
}

func TestMemoryMonitorRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	m := &MemoryMonitor{CeilingBytes: 0}
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected Run to return promptly after cancellation")
	}
}
