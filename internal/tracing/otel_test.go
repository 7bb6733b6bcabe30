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

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewProvider_DisabledStartsAndEndsSpan(t *testing.T) {
	cfg := DefaultConfig()
	provider, err := NewProvider(context.Background(), cfg)
	require.NoError(t, err)
	defer provider.Shutdown(context.Background())

	_, span := provider.Tracer("test").Start(context.Background(), "op")
	span.End()
}

func TestNewProvider_UnknownExporterErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Exporter = "carrier-pigeon"

	_, err := NewProvider(context.Background(), cfg)
	require.Error(t, err)
}

func TestNewProvider_ConsoleExporterStarts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.Exporter = "console"

	provider, err := NewProvider(context.Background(), cfg)
	require.NoError(t, err)
	defer provider.Shutdown(context.Background())

	ctx, span := provider.Tracer("test").Start(context.Background(), "op")
	span.End()
	_ = ctx
}
