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

// Package runstore implements the crash-safe, concurrency-safe persistence
// layer for run records and artifact registries.
package runstore

import "time"

// Status is a run's lifecycle state.
type Status string

const (
	StatusPending           Status = "pending"
	StatusInProgress        Status = "in_progress"
	StatusAwaitingApproval  Status = "awaiting_approval"
	StatusCompleted         Status = "completed"
	StatusFailed            Status = "failed"
)

// TaskStatus is the state of a single task-queue entry.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// TaskQueueItem is one entry of a run's task_queue.
type TaskQueueItem struct {
	TaskID      string     `json:"task_id"`
	Description string     `json:"description"`
	Agent       string     `json:"agent"`
	Step        int        `json:"step"`
	Status      TaskStatus `json:"status"`
}

// Owners tracks who is driving a run.
type Owners struct {
	OrchestratorSessionID string   `json:"orchestrator_session_id,omitempty"`
	CurrentAgent          string   `json:"current_agent,omitempty"`
	AssignedAgents        []string `json:"assigned_agents,omitempty"`
}

// Timestamps tracks the run-lifecycle moments distinct from top-level
// created_at/updated_at.
type Timestamps struct {
	StartedAt           *time.Time `json:"started_at,omitempty"`
	LastStepCompletedAt *time.Time `json:"last_step_completed_at,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
}

// Run is the run record persisted at run.json.
type Run struct {
	RunID            string          `json:"run_id"`
	WorkflowID       string          `json:"workflow_id"`
	SelectedWorkflow string          `json:"selected_workflow"`
	CurrentStep      int             `json:"current_step"`
	Status           Status          `json:"status"`
	TaskQueue        []TaskQueueItem `json:"task_queue"`
	Owners           Owners          `json:"owners"`
	Timestamps       Timestamps      `json:"timestamps"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Metadata         map[string]any  `json:"metadata"`
}

// CreateOptions configures CreateRun.
type CreateOptions struct {
	WorkflowID       string
	SelectedWorkflow string
	Metadata         map[string]any
}

// ValidationStatus is an artifact's schema-validation outcome.
type ValidationStatus string

const (
	ValidationPending ValidationStatus = "pending"
	ValidationPass    ValidationStatus = "pass"
	ValidationFail    ValidationStatus = "fail"
)

// PublishStatus is an artifact's publishing outcome.
type PublishStatus string

const (
	PublishPending PublishStatus = "pending"
	PublishSuccess PublishStatus = "success"
	PublishFailed  PublishStatus = "failed"
)

// PublishAttempt records one publish attempt for forensics.
type PublishAttempt struct {
	At    time.Time `json:"at"`
	Ok    bool      `json:"ok"`
	Error string    `json:"error,omitempty"`
}

// Artifact is one entry of an artifact registry.
type Artifact struct {
	Name             string           `json:"name"`
	ID               string           `json:"id,omitempty"`
	Step             int              `json:"step"`
	Agent            string           `json:"agent"`
	Path             string           `json:"path"`
	Version          int              `json:"version"`
	Dependencies     []string         `json:"dependencies,omitempty"`
	ValidationStatus ValidationStatus `json:"validationStatus"`
	Schema           string           `json:"schema,omitempty"`
	Metadata         map[string]any   `json:"metadata,omitempty"`

	Publishable     bool             `json:"publishable"`
	Published       bool             `json:"published"`
	PublishedAt     *time.Time       `json:"published_at,omitempty"`
	PublishTargets  []string         `json:"publish_targets,omitempty"`
	PublishAttempts []PublishAttempt `json:"publish_attempts,omitempty"`
	PublishStatus   PublishStatus    `json:"publish_status"`
	PublishError    string           `json:"publish_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Registry is the artifact-registry.json document: a simple name-keyed map.
// internal/registry builds the O(1)-indexed view on top of this document.
type Registry struct {
	Artifacts map[string]*Artifact `json:"artifacts"`
}

// NewRegistry returns an empty registry document.
func NewRegistry() *Registry {
	return &Registry{Artifacts: make(map[string]*Artifact)}
}

// IdempotencyPolicy governs RegisterArtifact behaviour on name collision.
type IdempotencyPolicy string

const (
	PolicyOverwrite IdempotencyPolicy = "overwrite"
	PolicyVersion   IdempotencyPolicy = "version"
	PolicySkip      IdempotencyPolicy = "skip"
)

// PublishingUpdate mutates only the publishing-related fields of an artifact.
type PublishingUpdate struct {
	Published     *bool
	PublishStatus *PublishStatus
	PublishError  *string
	Attempt       *PublishAttempt
}
