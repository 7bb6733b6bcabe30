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

// Package monitor wires the Health/Monitor component (internal/health)
// into a standalone `maestro monitor` command: a one-shot snapshot, a
// filesystem-driven --watch loop, a per-run ASCII step timeline
// (--timeline), a Prometheus /metrics endpoint for scraping, and a
// replay of the cross-run audit trail (--audit).
package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/loomkit/maestro/internal/cli/timeline"
	"github.com/loomkit/maestro/internal/commands/shared"
	"github.com/loomkit/maestro/internal/config"
	"github.com/loomkit/maestro/internal/health"
	"github.com/loomkit/maestro/internal/pattern"
	"github.com/loomkit/maestro/internal/runstore"
	"github.com/loomkit/maestro/internal/tracing/audit"
)

// gaugeSet mirrors health.Metrics as Prometheus gauges, refreshed on
// every /metrics scrape by recomputing from the store.
type gaugeSet struct {
	total, active, stalled, completed, failed prometheus.Gauge
	routingAccuracy, patternCoverage          prometheus.Gauge
	successRate, score                        prometheus.Gauge
}

func newGaugeSet(reg prometheus.Registerer) *gaugeSet {
	g := &gaugeSet{
		total:            promauto.With(reg).NewGauge(prometheus.GaugeOpts{Name: "maestro_runs_total"}),
		active:           promauto.With(reg).NewGauge(prometheus.GaugeOpts{Name: "maestro_runs_active"}),
		stalled:          promauto.With(reg).NewGauge(prometheus.GaugeOpts{Name: "maestro_runs_stalled"}),
		completed:        promauto.With(reg).NewGauge(prometheus.GaugeOpts{Name: "maestro_runs_completed"}),
		failed:           promauto.With(reg).NewGauge(prometheus.GaugeOpts{Name: "maestro_runs_failed"}),
		routingAccuracy:  promauto.With(reg).NewGauge(prometheus.GaugeOpts{Name: "maestro_routing_accuracy"}),
		patternCoverage:  promauto.With(reg).NewGauge(prometheus.GaugeOpts{Name: "maestro_pattern_coverage"}),
		successRate:      promauto.With(reg).NewGauge(prometheus.GaugeOpts{Name: "maestro_success_rate"}),
		score:             promauto.With(reg).NewGauge(prometheus.GaugeOpts{Name: "maestro_health_score"}),
	}
	return g
}

func (g *gaugeSet) set(m health.Metrics) {
	g.total.Set(float64(m.Total))
	g.active.Set(float64(m.Active))
	g.stalled.Set(float64(m.Stalled))
	g.completed.Set(float64(m.Completed))
	g.failed.Set(float64(m.Failed))
	g.routingAccuracy.Set(m.RoutingAccuracy)
	g.patternCoverage.Set(m.PatternCoverage)
	g.successRate.Set(m.SuccessRate)
	g.score.Set(m.Score)
}

// NewCommand builds the `monitor` command.
func NewCommand() *cobra.Command {
	var runID string
	var watch bool
	var statusOnly bool
	var list bool
	var metricsAddr string
	var timelineRunID string
	var auditMode bool
	var auditAction string
	var auditLimit int

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Report aggregate run health: stalls, routing accuracy, pattern coverage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return shared.NewExecutionError("loading config", err)
			}
			store := runstore.New(cfg.RunsDir)
			learner := openLearner(cfg)
			mon := health.New(store, learner)

			if auditMode {
				return printAudit(cfg.RunsDir, auditAction, auditLimit)
			}

			if timelineRunID != "" {
				return printTimeline(store, timelineRunID)
			}

			if metricsAddr != "" {
				return serveMetrics(cmd.Context(), metricsAddr, mon)
			}

			if list {
				return printList(store)
			}

			if runID != "" {
				if watch {
					return watchRun(cmd.Context(), cfg.RunsDir, store, mon, runID)
				}
				return printRun(store, mon, runID)
			}

			if watch {
				return watchLoop(cmd.Context(), cfg.RunsDir, mon, statusOnly)
			}

			metrics, err := mon.Compute(time.Now())
			if err != nil {
				return shared.NewExecutionError("computing health metrics", err)
			}
			return printMetrics(metrics, statusOnly)
		},
	}

	cmd.Flags().StringVar(&runID, "run-id", "", "Report on a single run instead of the aggregate snapshot")
	cmd.Flags().BoolVar(&watch, "watch", false, "Watch the runs directory and reprint on every change")
	cmd.Flags().BoolVar(&statusOnly, "status", false, "Print only the composite status word")
	cmd.Flags().BoolVar(&list, "list", false, "List run IDs and their status")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address instead of printing once (e.g. :9090)")
	cmd.Flags().StringVar(&timelineRunID, "timeline", "", "Print an ASCII step timeline for this run ID instead of the health snapshot")
	cmd.Flags().BoolVar(&auditMode, "audit", false, "Print audit log entries instead of the health snapshot")
	cmd.Flags().StringVar(&auditAction, "audit-action", "", "Restrict --audit output to this audit.Action (e.g. run.approve)")
	cmd.Flags().IntVar(&auditLimit, "audit-limit", 100, "Maximum number of --audit entries to print")
	return cmd
}

// printAudit replays the cross-run audit.Logger NDJSON trail through
// audit.Store's read-side query path, the companion to the write path
// already wired into `run create|update`.
func printAudit(runsDir, action string, limit int) error {
	store := audit.NewStore(runsDir + "/audit.log")
	entries, err := store.Query(audit.QueryFilter{Action: audit.Action(action), Limit: limit})
	if err != nil {
		return shared.NewExecutionError("querying audit log", err)
	}

	if shared.GetJSON() {
		return shared.EmitJSON(struct {
			shared.JSONResponse
			Entries []audit.Entry `json:"entries"`
		}{
			JSONResponse: shared.JSONResponse{Version: "1.0", Command: "monitor --audit", Success: true},
			Entries:      entries,
		})
	}
	for _, e := range entries {
		fmt.Printf("%s  %-20s run=%-36s actor=%-10s result=%s\n",
			e.Timestamp.Format(time.RFC3339), e.Action, e.RunID, e.UserID, e.Result)
	}
	return nil
}

// printTimeline renders one run's step history as an ASCII Gantt chart:
// one bar per step, spanning from the earliest CreatedAt to the latest
// UpdatedAt among the artifacts registered at that step.
func printTimeline(store *runstore.Store, runID string) error {
	reg, err := store.ReadArtifactRegistry(runID)
	if err != nil {
		return shared.NewExecutionError("reading artifact registry", err)
	}

	type bound struct {
		start, end time.Time
		ok         bool
		seen       bool
	}
	bounds := make(map[int]*bound)
	for _, a := range reg.Artifacts {
		b, ok := bounds[a.Step]
		if !ok {
			b = &bound{}
			bounds[a.Step] = b
		}
		if !b.seen || a.CreatedAt.Before(b.start) {
			b.start = a.CreatedAt
		}
		if !b.seen || a.UpdatedAt.After(b.end) {
			b.end = a.UpdatedAt
		}
		if !b.seen {
			b.ok = true
		}
		if a.ValidationStatus == runstore.ValidationFail {
			b.ok = false
		}
		b.seen = true
	}

	steps := make([]int, 0, len(bounds))
	for step := range bounds {
		steps = append(steps, step)
	}
	sort.Ints(steps)

	spans := make([]timeline.Span, 0, len(steps))
	for _, step := range steps {
		b := bounds[step]
		end := b.end
		if !end.After(b.start) {
			end = b.start.Add(time.Millisecond)
		}
		spans = append(spans, timeline.Span{
			Step:      step,
			Name:      fmt.Sprintf("%d artifact(s)", stepArtifactCount(reg, step)),
			StartTime: b.start,
			EndTime:   end,
			OK:        b.ok,
		})
	}

	renderer, err := timeline.NewRenderer()
	if err != nil {
		return shared.NewExecutionError("sizing timeline renderer", err)
	}
	out, err := renderer.Render(runID, spans)
	if err != nil {
		return shared.NewExecutionError("rendering timeline", err)
	}
	fmt.Print(out)
	return nil
}

func stepArtifactCount(reg *runstore.Registry, step int) int {
	n := 0
	for _, a := range reg.Artifacts {
		if a.Step == step {
			n++
		}
	}
	return n
}

func openLearner(cfg config.Config) *pattern.Learner {
	learner, err := pattern.NewWithPersistence(cfg.RunsDir + "/patterns.ndjson")
	if err != nil {
		return pattern.New()
	}
	return learner
}

func printMetrics(m health.Metrics, statusOnly bool) error {
	if shared.GetJSON() {
		return shared.EmitJSON(struct {
			shared.JSONResponse
			health.Metrics
		}{
			JSONResponse: shared.JSONResponse{Version: "1.0", Command: "monitor", Success: true},
			Metrics:      m,
		})
	}

	if statusOnly {
		fmt.Println(shared.RenderStatus(m.Status == health.StatusHealthy, string(m.Status)))
		return nil
	}

	fmt.Printf("%s  score=%.1f\n", shared.RenderStatus(m.Status == health.StatusHealthy, string(m.Status)), m.Score)
	fmt.Printf("runs: total=%d active=%d stalled=%d completed=%d failed=%d\n",
		m.Total, m.Active, m.Stalled, m.Completed, m.Failed)
	fmt.Printf("routing accuracy=%.2f  pattern coverage=%.2f  success rate=%.2f  avg duration=%.1fs\n",
		m.RoutingAccuracy, m.PatternCoverage, m.SuccessRate, m.AvgDurationSeconds)
	if len(m.StalledRunIDs) > 0 {
		fmt.Println(shared.RenderWarn(fmt.Sprintf("stalled runs: %v", m.StalledRunIDs)))
	}
	for agent, share := range m.AgentUtilization {
		fmt.Printf("  agent %-20s %.0f%%\n", agent, share*100)
	}
	return nil
}

type runReport struct {
	RunID       string          `json:"runId"`
	Status      runstore.Status `json:"status"`
	CurrentStep int             `json:"currentStep"`
	Stalled     bool            `json:"stalled"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// printRun reports one run's status, current step, and stall state. A
// stalled run is a logical failure, surfaced through the exit code.
func printRun(store *runstore.Store, mon *health.Monitor, runID string) error {
	run, err := store.ReadRun(runID)
	if err != nil {
		return shared.NewInvalidWorkflowError("reading run", err)
	}

	report := runReport{
		RunID:       run.RunID,
		Status:      run.Status,
		CurrentStep: run.CurrentStep,
		Stalled:     mon.IsStalled(run, time.Now()),
		UpdatedAt:   run.UpdatedAt,
	}

	if shared.GetJSON() {
		if err := shared.EmitJSON(struct {
			shared.JSONResponse
			runReport
		}{
			JSONResponse: shared.JSONResponse{Version: "1.0", Command: "monitor", Success: !report.Stalled},
			runReport:    report,
		}); err != nil {
			return err
		}
	} else {
		fmt.Printf("%s  %s  step=%d  updated=%s\n",
			run.RunID, shared.RenderStatus(run.Status == runstore.StatusCompleted, string(run.Status)),
			run.CurrentStep, run.UpdatedAt.Format(time.RFC3339))
		if report.Stalled {
			fmt.Println(shared.RenderWarn("run is stalled"))
		}
	}

	if report.Stalled {
		return &shared.ExitError{Code: shared.ExitExecutionFailed, Message: fmt.Sprintf("run %s is stalled", runID)}
	}
	return nil
}

// watchRun watches one run's directory and reprints the run report on
// every write to it.
func watchRun(ctx context.Context, runsDir string, store *runstore.Store, mon *health.Monitor, runID string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return shared.NewExecutionError("creating filesystem watcher", err)
	}
	defer watcher.Close()

	dir := filepath.Join(runsDir, "runs", runID)
	if err := watcher.Add(dir); err != nil {
		return shared.NewExecutionError("watching run directory", err)
	}

	if err := printRun(store, mon, runID); err != nil {
		var exitErr *shared.ExitError
		if !errors.As(err, &exitErr) {
			return err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove) != 0 {
				if err := printRun(store, mon, runID); err != nil {
					var exitErr *shared.ExitError
					if !errors.As(err, &exitErr) {
						return err
					}
				}
				fmt.Println("---")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintln(os.Stderr, "watch error:", err)
		}
	}
}

func printList(store *runstore.Store) error {
	ids, err := store.ListRunIDs()
	if err != nil {
		return shared.NewExecutionError("listing runs", err)
	}
	type row struct {
		RunID       string           `json:"runId"`
		Status      runstore.Status  `json:"status"`
		CurrentStep int              `json:"currentStep"`
	}
	var rows []row
	for _, id := range ids {
		run, err := store.ReadRun(id)
		if err != nil {
			continue
		}
		rows = append(rows, row{RunID: run.RunID, Status: run.Status, CurrentStep: run.CurrentStep})
	}

	if shared.GetJSON() {
		return shared.EmitJSON(struct {
			shared.JSONResponse
			Runs []row `json:"runs"`
		}{
			JSONResponse: shared.JSONResponse{Version: "1.0", Command: "monitor --list", Success: true},
			Runs:         rows,
		})
	}
	for _, r := range rows {
		fmt.Printf("%-36s %-20s step=%d\n", r.RunID, r.Status, r.CurrentStep)
	}
	return nil
}

// watchLoop watches runsDir/runs for filesystem events (run.json writes,
// new run directories) and reprints the aggregate snapshot on each one,
// in place of polling on a fixed interval.
func watchLoop(ctx context.Context, runsDir string, mon *health.Monitor, statusOnly bool) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return shared.NewExecutionError("creating filesystem watcher", err)
	}
	defer watcher.Close()

	root := filepath.Join(runsDir, "runs")
	if err := addWatchTree(watcher, root); err != nil {
		return shared.NewExecutionError("watching runs directory", err)
	}

	print := func() {
		metrics, err := mon.Compute(time.Now())
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return
		}
		_ = printMetrics(metrics, statusOnly)
		fmt.Println("---")
	}

	print()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove) != 0 {
				if event.Op&fsnotify.Create != 0 {
					_ = addWatchTree(watcher, event.Name)
				}
				print()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintln(os.Stderr, "watch error:", err)
		}
	}
}

// addWatchTree adds root and every existing subdirectory under it (each
// run's directory) to watcher. fsnotify has no native recursive mode.
func addWatchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

// serveMetrics blocks, serving a Prometheus /metrics endpoint that
// recomputes health.Metrics on every scrape.
func serveMetrics(ctx context.Context, addr string, mon *health.Monitor) error {
	reg := prometheus.NewRegistry()
	gauges := newGaugeSet(reg)

	mux := http.NewServeMux()
	metricsHandler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		if metrics, err := mon.Compute(time.Now()); err == nil {
			gauges.set(metrics)
		}
		metricsHandler.ServeHTTP(w, r)
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		metrics, err := mon.Compute(time.Now())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		gauges.set(metrics)
		w.WriteHeader(http.StatusOK)
	})

	srv := &http.Server{Addr: addr, Handler: mux}

	// Pre-populate the gauges once at startup.
	if metrics, err := mon.Compute(time.Now()); err == nil {
		gauges.set(metrics)
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	fmt.Fprintf(os.Stderr, "serving /metrics on %s\n", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return shared.NewExecutionError("serving metrics", err)
	}
	return nil
}
