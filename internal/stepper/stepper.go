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
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/loomkit/maestro/internal/agentctx"
	"github.com/loomkit/maestro/internal/condition"
	"github.com/loomkit/maestro/internal/executor"
	"github.com/loomkit/maestro/internal/pattern"
	"github.com/loomkit/maestro/internal/registry"
	"github.com/loomkit/maestro/internal/runstore"
	"github.com/loomkit/maestro/internal/tracing"
	"github.com/loomkit/maestro/internal/tracing/audit"
	"github.com/loomkit/maestro/pkg/merrors"
)

// Stepper advances runs one step at a time against the run-level state
// machine. One Stepper serves any number of runs; it holds no
// per-run state between Advance calls beyond what is persisted.
type Stepper struct {
	Store      *runstore.Store
	Evaluator  *condition.Evaluator
	Builder    *agentctx.Builder
	Learner    *pattern.Learner
	Validator  Validator
	Candidates []executor.Named

	Logger *slog.Logger

	// Tracer and AuditLogger are optional. When set, Advance emits one
	// OpenTelemetry span per step (the supplemented "OTel span per
	// workflow step" feature) and one audit.Logger gate-decision entry
	// when a step halts for approval, fails, or completes; a step skipped
	// by its condition gets no entry.
	Tracer      trace.Tracer
	AuditLogger *audit.Logger
	ActorID     string
}

// New returns a Stepper. Candidates is the fixed-order list of executor
// adapters probed on every invocation. Logger defaults to
// slog.Default(), which picks up the orchestrator-wide handler main()
// installs from internal/mlog's env-driven configuration. Callers that
// want a Stepper to log nowhere can still set s.Logger explicitly after
// construction.
func New(store *runstore.Store, evaluator *condition.Evaluator, builder *agentctx.Builder, learner *pattern.Learner, candidates []executor.Named) *Stepper {
	return &Stepper{
		Store:      store,
		Evaluator:  evaluator,
		Builder:    builder,
		Learner:    learner,
		Candidates: candidates,
		Logger:     slog.Default(),
	}
}

// AdvanceInput carries the per-call, externally-supplied context the
// condition evaluator needs (config/env/providers) plus the history the
// Context Builder threads through to the executor.
type AdvanceInput struct {
	Config    map[string]any
	Env       map[string]string
	Providers []string
	History   []agentctx.Message

	// StepOutput is the previous step's recorded output, exposed to
	// conditions as step.output.*.
	StepOutput map[string]any
}

// Advance executes workflow wf's step at run.CurrentStep. It loads the run, evaluates the step's
// condition, resolves an approval gate, builds agent context, invokes
// an executor, applies the anti-false-success rewrite, registers
// artifacts, and transitions run state, returning a StepOutcome
// describing what happened.
func (s *Stepper) Advance(ctx context.Context, runID string, wf *Workflow, in AdvanceInput) (*StepOutcome, error) {
	run, err := s.Store.ReadRun(runID)
	if err != nil {
		return nil, err
	}

	if run.Status == runstore.StatusCompleted || run.Status == runstore.StatusFailed {
		return nil, &merrors.IllegalStateTransitionError{RunID: runID, From: string(run.Status), To: string(runstore.StatusInProgress)}
	}
	if run.CurrentStep >= len(wf.Steps) {
		return nil, &merrors.IllegalStateTransitionError{RunID: runID, From: string(run.Status), To: "advance-past-end"}
	}

	step := wf.Steps[run.CurrentStep]
	outcome := &StepOutcome{RunID: runID, StepIndex: run.CurrentStep, StepID: step.ID}

	var span *tracing.WorkflowSpan
	if s.Tracer != nil {
		ctx, span = tracing.StartStep(ctx, s.Tracer, step.ID, string(step.IdempotencyPolicy))
		span.SetAttributes(map[string]any{"run.id": runID, "step.index": run.CurrentStep, "step.agent": step.Agent})
		defer func() {
			switch {
			case outcome.Error != nil:
				span.RecordError(outcome.Error)
			case outcome.Skipped:
				span.AddEvent("skipped", map[string]any{"reason": outcome.SkipReason})
				span.SetStatus(codes.Ok, "")
			default:
				span.SetStatus(codes.Ok, "")
			}
			span.End()
		}()
	}

	// Condition gate, fail-open on evaluation trouble (the
	// Evaluator itself already implements fail-open; here we only act on
	// its boolean result).
	if step.Condition != "" {
		condCtx := s.buildConditionContext(runID, in)
		if !s.Evaluator.Evaluate(step.Condition, condCtx) {
			outcome.Skipped = true
			outcome.SkipReason = fmt.Sprintf("condition %q evaluated false", step.Condition)
			if err := s.advanceStep(runID, run); err != nil {
				return nil, err
			}
			outcome.Status = runstore.StatusInProgress
			return outcome, nil
		}
	}

	// Approval gate. The state machine does not advance
	// further until an external acknowledgement updates the run.
	if step.RequiresApproval {
		terminal := runstore.StatusAwaitingApproval
		if _, err := s.Store.UpdateRun(runID, runstore.Patch{Status: &terminal}); err != nil {
			return nil, err
		}
		outcome.AwaitingApproval = true
		outcome.Status = terminal
		s.logGate(runID, run.CurrentStep, step.Agent, false, []string{"awaiting_approval"})
		return outcome, nil
	}

	if run.Status == runstore.StatusPending {
		inProgress := runstore.StatusInProgress
		if _, err := s.Store.UpdateRun(runID, runstore.Patch{Status: &inProgress}); err != nil {
			return nil, err
		}
	}

	built, err := s.Builder.Build(agentctx.Request{
		Agent:      step.Agent,
		RunID:      runID,
		Step:       run.CurrentStep,
		Injections: step.Injections,
		History:    in.History,
		Task:       step.Task,
		Persona:    step.Persona,
	})
	if err != nil {
		return s.fail(runID, outcome, err)
	}

	req := executor.Request{
		Agent:        step.Agent,
		SystemPrompt: built.SystemPrompt,
		Messages:     toExecutorMessages(built.Messages),
		Tools:        built.Tools,
		RunID:        runID,
		Step:         run.CurrentStep,
	}

	result, execErr := s.invokeWithRetry(ctx, step, req)
	if execErr != nil {
		return s.fail(runID, outcome, execErr)
	}

	result = executor.ApplyAntiFalseSuccess(result, func(path string) bool {
		_, statErr := os.Stat(path)
		return statErr == nil
	})

	outcome.Artifacts = result.ArtifactsWritten
	outcome.Duration = time.Duration(result.DurationMS) * time.Millisecond

	if result.Status != executor.StatusCompleted {
		cause := fmt.Errorf("executor reported status %s: %s", result.Status, result.Error)
		return s.fail(runID, outcome, &merrors.ExecutorFailureError{StepID: step.ID, Cause: cause})
	}

	policy := step.IdempotencyPolicy
	if policy == "" {
		policy = runstore.PolicyOverwrite
	}

	// Route the step's artifact writes through the indexed
	// registry's in-memory view rather than one locked
	// RegisterArtifact call per path, then reflect the batch back to
	// the Run Store in a single write.
	reg, err := s.Store.ReadArtifactRegistry(runID)
	if err != nil {
		return s.fail(runID, outcome, err)
	}
	idx := registry.New(reg)
	now := time.Now().UTC()

	var schemaFailure *runstore.Artifact
	for _, path := range result.ArtifactsWritten {
		validationStatus := runstore.ValidationPending
		if s.Validator != nil {
			data, readErr := os.ReadFile(path)
			if readErr == nil {
				valid, _ := s.Validator.Validate(data, step.Schema)
				if valid {
					validationStatus = runstore.ValidationPass
				} else {
					validationStatus = runstore.ValidationFail
				}
			}
		}
		artifact := runstore.Artifact{
			Name:             filepath.Base(path),
			Step:             run.CurrentStep,
			Agent:            step.Agent,
			Path:             path,
			Schema:           step.Schema,
			ValidationStatus: validationStatus,
		}
		stored := idx.Register(artifact, policy, now)
		if validationStatus == runstore.ValidationFail {
			schemaFailure = stored
			break
		}
	}

	if err := idx.Validate(); err != nil {
		return s.fail(runID, outcome, err)
	}
	if err := s.Store.WriteArtifactRegistry(runID, idx.Document()); err != nil {
		return s.fail(runID, outcome, err)
	}
	if schemaFailure != nil {
		return s.fail(runID, outcome, &merrors.SchemaValidationFailureError{Document: schemaFailure.Name, Reason: "failed schema " + step.Schema})
	}

	if err := s.advanceStep(runID, run); err != nil {
		return nil, err
	}

	if s.Learner != nil {
		if err := s.Learner.Record(pattern.Execution{
			Task:       step.Task,
			TaskType:   taskTypeFromConfig(in.Config),
			Agents:     []string{step.Agent},
			Outcome:    "success",
			Duration:   outcome.Duration,
			RecordedAt: time.Now().UTC(),
		}); err != nil {
			s.Logger.Warn("pattern learner persistence failed", "run_id", runID, "error", err)
		}
	}

	outcome.Status = runstore.StatusInProgress
	s.logGate(runID, run.CurrentStep, step.Agent, true, nil)
	return outcome, nil
}

// logGate persists a gate decision two ways: as the per-run
// gates/<NN>-gate.json side-record, and (if configured) as an entry in
// the cross-run AuditLogger NDJSON trail. Neither write can fail the
// step: both are observable outputs, never inputs to the state machine.
func (s *Stepper) logGate(runID string, step int, agent string, allowed bool, blockers []string) {
	status := "denied"
	if allowed {
		status = "allowed"
	}
	s.writeGateFile(runID, step, GateRecord{Status: status, Agent: agent, Allowed: allowed, Blockers: blockers})

	if s.AuditLogger == nil {
		return
	}
	actor := s.ActorID
	if actor == "" {
		actor = "stepper"
	}
	if err := s.AuditLogger.LogGateDecision(actor, runID, step, agent, allowed, blockers); err != nil {
		s.Logger.Warn("audit log write failed", "run_id", runID, "error", err)
	}
}

// buildConditionContext assembles a condition.Context for runID from
// the caller-supplied AdvanceInput plus the run's persisted artifact
// registry, flattened to name -> path for the artifacts.* surface.
func (s *Stepper) buildConditionContext(runID string, in AdvanceInput) condition.Context {
	artifacts := map[string]any{}
	if reg, err := s.Store.ReadArtifactRegistry(runID); err == nil {
		for name, a := range reg.Artifacts {
			artifacts[name] = a.Path
		}
	}
	return condition.Context{
		Config:     in.Config,
		StepOutput: in.StepOutput,
		Env:        in.Env,
		Artifacts:  artifacts,
		Providers:  in.Providers,
		TopLevel:   in.Config,
	}
}

// advanceStep increments current_step and appends a completed task-queue
// entry, re-stamping timestamps via UpdateRun.
func (s *Stepper) advanceStep(runID string, run *runstore.Run) error {
	next := run.CurrentStep + 1
	queue := append(append([]runstore.TaskQueueItem(nil), run.TaskQueue...), runstore.TaskQueueItem{
		TaskID:      fmt.Sprintf("%s-step-%d", runID, run.CurrentStep),
		Description: "",
		Agent:       "",
		Step:        run.CurrentStep,
		Status:      runstore.TaskCompleted,
	})
	_, err := s.Store.UpdateRun(runID, runstore.Patch{CurrentStep: &next, TaskQueue: queue})
	return err
}

// fail transitions the run to failed, records the error on the
// outcome, and returns it. Never an error to the caller: a failed step
// is a successful Advance call that reports failure.
func (s *Stepper) fail(runID string, outcome *StepOutcome, cause error) (*StepOutcome, error) {
	failed := runstore.StatusFailed
	_, err := s.Store.UpdateRun(runID, runstore.Patch{
		Status: &failed,
		Metadata: map[string]any{
			"blockers": []any{cause.Error()},
		},
	})
	if err != nil {
		return nil, err
	}
	outcome.Status = failed
	outcome.Error = cause
	s.logGate(runID, outcome.StepIndex, "", false, []string{cause.Error()})
	return outcome, nil
}

// invokeWithRetry probes for an available executor and invokes it,
// retrying failed/timeout results up to step.Retry.MaxRetries with
// exponential backoff.
func (s *Stepper) invokeWithRetry(ctx context.Context, step StepDef, req executor.Request) (executor.Result, error) {
	policy := step.Retry
	if policy.MaxRetries == 0 && policy.BaseDelay == 0 {
		policy = DefaultRetryPolicy
	}

	named, err := executor.Probe(ctx, s.Candidates)
	if err != nil {
		return executor.Result{}, err
	}

	delay := policy.BaseDelay
	if delay <= 0 {
		delay = DefaultRetryPolicy.BaseDelay
	}

	var lastResult executor.Result
	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		lastResult, lastErr = named.Adapter.Execute(ctx, req)
		if lastErr == nil && lastResult.Status != executor.StatusFailed && lastResult.Status != executor.StatusTimeout {
			return lastResult, nil
		}
		if attempt == policy.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return lastResult, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if policy.MaxDelay > 0 && delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}
	if lastErr != nil {
		return lastResult, &merrors.ExecutorFailureError{StepID: step.ID, Cause: lastErr}
	}
	return lastResult, nil
}

func toExecutorMessages(in []agentctx.Message) []executor.Message {
	out := make([]executor.Message, len(in))
	for i, m := range in {
		out[i] = executor.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

func taskTypeFromConfig(config map[string]any) string {
	if config == nil {
		return ""
	}
	if v, ok := config["task_type"].(string); ok {
		return v
	}
	return ""
}
