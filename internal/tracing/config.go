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

package tracing

// Config configures the tracer provider a Stepper runs its run/step spans
// through.
type Config struct {
	// Enabled controls whether tracing is active.
	Enabled bool

	// ServiceName identifies this service in traces.
	ServiceName string

	// ServiceVersion is the application version.
	ServiceVersion string

	// Exporter selects the span exporter: "console" or "otlp".
	Exporter string

	// OTLPEndpoint is the OTLP gRPC collector address (for Exporter=otlp).
	OTLPEndpoint string

	// SampleRatio is the fraction of traces to record (0.0 - 1.0).
	SampleRatio float64
}

// DefaultConfig returns configuration with sensible defaults. Tracing is
// opt-in: Enabled defaults to false so a Stepper without an explicit
// Config runs with a no-op tracer.
func DefaultConfig() Config {
	return Config{
		Enabled:        false,
		ServiceName:    "maestro",
		ServiceVersion: "unknown",
		Exporter:       "console",
		SampleRatio:    1.0,
	}
}
