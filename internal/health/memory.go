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
	"log/slog"
	"runtime"
	"time"
)

// memorySampleInterval is how often MemoryMonitor samples memory use.
const memorySampleInterval = 10 * time.Second

const (
	highWatermarkFraction   = 0.75
	evictWatermarkFraction  = 0.85
)

// MemoryMonitor watches memory pressure: it never kills in-flight runs,
// only logs at the high watermark and triggers cache eviction at the
// evict watermark. Memory use is runtime.MemStats.Alloc (bytes of live
// heap objects) from runtime.ReadMemStats; process resident size is not
// measured.
type MemoryMonitor struct {
	CeilingBytes uint64
	Logger       *slog.Logger

	// OnEvict is invoked once per crossing into the evict watermark (not
	// on every sample above it), so callers (runstore/pattern caches) are
	// not thrashed.
	OnEvict func()

	loggedHigh  bool
	triggeredEvict bool
}

// Run samples memory every memorySampleInterval until ctx is cancelled.
// Intended to be started in its own goroutine.
func (m *MemoryMonitor) Run(ctx context.Context) {
	if m.Logger == nil {
		m.Logger = slog.New(slog.DiscardHandler)
	}
	ticker := time.NewTicker(memorySampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sample()
		}
	}
}

func (m *MemoryMonitor) sample() {
	if m.CeilingBytes == 0 {
		return
	}
	if m.Logger == nil {
		m.Logger = slog.New(slog.DiscardHandler)
	}
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	fraction := float64(stats.Alloc) / float64(m.CeilingBytes)

	switch {
	case fraction >= evictWatermarkFraction:
		if !m.triggeredEvict {
			m.triggeredEvict = true
			m.Logger.Warn("memory pressure: evicting caches", "fraction", fraction, "alloc_bytes", stats.Alloc, "ceiling_bytes", m.CeilingBytes)
			if m.OnEvict != nil {
				m.OnEvict()
			}
		}
	case fraction >= highWatermarkFraction:
		if !m.loggedHigh {
			m.loggedHigh = true
			m.Logger.Warn("memory pressure: high", "fraction", fraction, "alloc_bytes", stats.Alloc, "ceiling_bytes", m.CeilingBytes)
		}
	default:
		m.loggedHigh = false
		m.triggeredEvict = false
	}
}
