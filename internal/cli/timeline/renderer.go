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

// Package timeline renders a run's step history as an ASCII Gantt chart:
// one bar per step, positioned and sized by the step's artifacts'
// earliest CreatedAt and latest UpdatedAt timestamps.
package timeline

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/term"
)

const (
	// MinTerminalWidth is the minimum supported terminal width.
	MinTerminalWidth = 80
	// DefaultBarWidth is the default width for duration bars.
	DefaultBarWidth = 40
	// StatusIconOK indicates no artifact at that step failed validation.
	StatusIconOK = "✓"
	// StatusIconError indicates at least one artifact at that step failed.
	StatusIconError = "✗"
)

// Span is one step's position in a run's timeline.
type Span struct {
	Step      int
	Name      string
	StartTime time.Time
	EndTime   time.Time
	OK        bool
}

// Renderer renders ASCII timelines from step spans.
type Renderer struct {
	Width    int
	BarWidth int
}

// NewRenderer creates a timeline renderer sized to the current terminal.
func NewRenderer() (*Renderer, error) {
	width, _, err := term.GetSize(0)
	if err != nil {
		width = 100
	}

	if width < MinTerminalWidth {
		return nil, fmt.Errorf("terminal width %d is too narrow (minimum %d columns)", width, MinTerminalWidth)
	}

	barWidth := width - 40
	if barWidth > 60 {
		barWidth = 60
	}
	if barWidth < DefaultBarWidth {
		barWidth = DefaultBarWidth
	}

	return &Renderer{Width: width, BarWidth: barWidth}, nil
}

// Render generates an ASCII timeline of a run's steps, one row per span in
// the order given (callers sort spans by Step).
func (r *Renderer) Render(runID string, spans []Span) (string, error) {
	if len(spans) == 0 {
		return "", fmt.Errorf("no spans to render")
	}

	minTime, maxTime := r.bounds(spans)
	totalDuration := maxTime.Sub(minTime)
	if totalDuration <= 0 {
		totalDuration = time.Second
	}

	var sb strings.Builder
	border := strings.Repeat("─", r.Width-2)
	sb.WriteString("┌" + border + "┐\n")
	sb.WriteString(fmt.Sprintf("│ run: %-*s total: %s │\n",
		r.Width-24, truncate(runID, r.Width-24), formatDuration(totalDuration)))
	sb.WriteString("├" + border + "┤\n")

	for _, span := range spans {
		sb.WriteString(r.renderSpan(span, minTime, totalDuration))
	}

	sb.WriteString("└" + border + "┘\n")
	return sb.String(), nil
}

func (r *Renderer) bounds(spans []Span) (time.Time, time.Time) {
	minTime, maxTime := spans[0].StartTime, spans[0].EndTime
	for _, span := range spans {
		if span.StartTime.Before(minTime) {
			minTime = span.StartTime
		}
		if span.EndTime.After(maxTime) {
			maxTime = span.EndTime
		}
	}
	return minTime, maxTime
}

func (r *Renderer) renderSpan(span Span, minTime time.Time, totalDuration time.Duration) string {
	duration := span.EndTime.Sub(span.StartTime)
	startOffset := span.StartTime.Sub(minTime)
	startPos := int(float64(startOffset) / float64(totalDuration) * float64(r.BarWidth))
	barLength := int(float64(duration) / float64(totalDuration) * float64(r.BarWidth))

	if barLength < 1 {
		barLength = 1
	}
	if startPos+barLength > r.BarWidth {
		barLength = r.BarWidth - startPos
	}

	bar := make([]rune, r.BarWidth)
	for i := range bar {
		if i >= startPos && i < startPos+barLength {
			bar[i] = '█'
		} else {
			bar[i] = '░'
		}
	}

	statusIcon := StatusIconOK
	if !span.OK {
		statusIcon = StatusIconError
	}

	name := truncate(fmt.Sprintf("step %d: %s", span.Step, span.Name), 22)
	return fmt.Sprintf("│ %-22s %s  %6s  %s │\n", name, string(bar), formatDuration(duration), statusIcon)
}

// truncate shortens a string to maxLen with ellipsis if needed.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%.1fm", d.Minutes())
}
