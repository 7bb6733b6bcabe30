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

/*
Package tracing provides the run/step tracing the Workflow Stepper emits
one OpenTelemetry span for per step (the supplemented "OTel span per
workflow step" feature), plus the audit subpackage's NDJSON trail of
run mutations and gate decisions.

# Quick Start

Build a tracer provider and hand it to a Stepper:

	cfg := tracing.DefaultConfig()
	cfg.Enabled = true
	cfg.Exporter = "otlp"
	cfg.OTLPEndpoint = "localhost:4317"

	provider, err := tracing.NewProvider(ctx, cfg)
	if err != nil {
	    return err
	}
	defer provider.Shutdown(ctx)

	s.Tracer = provider.Tracer("maestro")

The Stepper then starts one span per step:

	ctx, span := tracing.StartStep(ctx, s.Tracer, step.ID, string(step.IdempotencyPolicy))
	span.SetAttributes(map[string]any{"run.id": runID})
	defer span.End()

A Config with Enabled false (the default) still produces a working
*Provider whose spans simply go nowhere, so callers can wire tracing
unconditionally and gate actual export on configuration.

# Subpackages

  - audit: NDJSON audit trail of run mutations, approvals, and gate
    decisions, plus a Store for replaying it back (wired into
    `maestro monitor --audit`).
*/
package tracing
