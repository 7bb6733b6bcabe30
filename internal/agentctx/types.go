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

// Package agentctx implements the Context Builder / Injector: assembly
// of the systemPrompt/messages/tools triple handed to an Executor
// Adapter, plus optional restricted context packets. Prompts are built
// by direct string concatenation rather than text/template: the data
// being composed (persona + constraints + task) has no end-user-authored
// placeholders to resolve.
package agentctx

import "fmt"

// Message is one entry of prior conversation history, carried through
// unmodified to the Executor Adapter.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request names everything needed to build one agent invocation.
type Request struct {
	Agent      string
	RunID      string
	Step       int
	Injections []string
	History    []Message
	Task       string
	Persona    string // required; MissingPersonaError if empty
}

// Built is the assembled context handed to the Executor Adapter.
type Built struct {
	SystemPrompt string
	Messages     []Message
	Tools        []string
}

// Packet is the optional restricted context: goal and definitionOfDone
// are mandatory, constraints and references are optional.
type Packet struct {
	Goal             string   `json:"goal"`
	Constraints      []string `json:"constraints,omitempty"`
	References       []string `json:"references,omitempty"`
	DefinitionOfDone string   `json:"definitionOfDone"`
}

// Validate enforces the mandatory fields of Packet.
func (p Packet) Validate() error {
	if p.Goal == "" {
		return &MissingFieldError{Field: "goal"}
	}
	if p.DefinitionOfDone == "" {
		return &MissingFieldError{Field: "definitionOfDone"}
	}
	return nil
}

// MissingPersonaError is a hard error: a Request with no persona cannot
// be built.
type MissingPersonaError struct {
	Agent string
}

func (e *MissingPersonaError) Error() string {
	return fmt.Sprintf("agentctx: no persona available for agent %q", e.Agent)
}

// MissingFieldError reports a Packet missing a mandatory field.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("agentctx: missing mandatory field %q", e.Field)
}
