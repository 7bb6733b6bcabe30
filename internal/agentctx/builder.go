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

package agentctx

import (
	"os"
	"path/filepath"
	"strings"
)

// knownInjections names the recognized injection kinds. Any other name
// passed in Request.Injections is ignored.
var knownInjections = map[string]string{
	"architecture":  "architecture",
	"style-guide":   "style-guide",
	"project-rules": "project-rules",
}

// allowedTools is the static per-agent tool allow-list.
var allowedTools = map[string][]string{
	"developer":            {"read_file", "write_file", "run_tests", "search"},
	"technical-writer":     {"read_file", "write_file", "search"},
	"qa-engineer":          {"read_file", "run_tests", "search"},
	"security-architect":   {"read_file", "search", "run_security_scan"},
	"ui-engineer":          {"read_file", "write_file", "search", "render_preview"},
	"database-engineer":    {"read_file", "write_file", "run_migration", "search"},
	"devops-engineer":      {"read_file", "write_file", "run_deploy", "search"},
	"architect":            {"read_file", "search"},
	"code-reviewer":        {"read_file", "search"},
}

// Builder assembles Built values from Requests, resolving named
// injections against a constraints directory on disk.
type Builder struct {
	// ConstraintsDir holds one file per injection kind, named
	// "<kind>.json" or "<kind>.md". A missing file is skipped silently.
	ConstraintsDir string
}

// New returns a Builder rooted at constraintsDir.
func New(constraintsDir string) *Builder {
	return &Builder{ConstraintsDir: constraintsDir}
}

// Build assembles systemPrompt = persona + constraints + task.
func (b *Builder) Build(req Request) (Built, error) {
	if req.Persona == "" {
		return Built{}, &MissingPersonaError{Agent: req.Agent}
	}

	constraints := b.resolveConstraints(req.Injections)

	var sb strings.Builder
	sb.WriteString(req.Persona)
	sb.WriteString("\n## Constraints\n")
	sb.WriteString(constraints)
	sb.WriteString("\n## Task\n")
	sb.WriteString(req.Task)

	return Built{
		SystemPrompt: sb.String(),
		Messages:     req.History,
		Tools:        allowedTools[req.Agent],
	}, nil
}

// resolveConstraints loads each recognized injection in requested order,
// concatenating the ones found. Unknown injections are ignored; missing
// files are skipped silently.
func (b *Builder) resolveConstraints(injections []string) string {
	var parts []string
	for _, name := range injections {
		kind, known := knownInjections[name]
		if !known {
			continue
		}
		content, ok := b.loadInjection(kind)
		if !ok {
			continue
		}
		parts = append(parts, content)
	}
	return strings.Join(parts, "\n")
}

func (b *Builder) loadInjection(kind string) (string, bool) {
	if b.ConstraintsDir == "" {
		return "", false
	}
	for _, ext := range []string{".json", ".md"} {
		path := filepath.Join(b.ConstraintsDir, kind+ext)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		return string(data), true
	}
	return "", false
}
