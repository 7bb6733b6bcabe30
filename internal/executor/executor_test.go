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

package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/loomkit/maestro/pkg/merrors"
)

type fakeAdapter struct {
	available bool
	result    Result
	err       error
}

func (f *fakeAdapter) Available(ctx context.Context) bool { return f.available }
func (f *fakeAdapter) Execute(ctx context.Context, req Request) (Result, error) {
	return f.result, f.err
}

func TestProbePicksFirstAvailable(t *testing.T) {
	candidates := []Named{
		{Name: "first", Adapter: &fakeAdapter{available: false}},
		{Name: "second", Adapter: &fakeAdapter{available: true}},
		{Name: "third", Adapter: &fakeAdapter{available: true}},
	}

	got, err := Probe(context.Background(), candidates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "second" {
		t.Fatalf("expected second adapter chosen, got %s", got.Name)
	}
}

func TestProbeNoneAvailable(t *testing.T) {
	candidates := []Named{
		{Name: "first", Adapter: &fakeAdapter{available: false}},
		{Name: "second", Adapter: &fakeAdapter{available: false}},
	}

	_, err := Probe(context.Background(), candidates)
	var noneErr *merrors.NoExecutorAvailableError
	if !errors.As(err, &noneErr) {
		t.Fatalf("expected NoExecutorAvailableError, got %v", err)
	}
	if len(noneErr.Probed) != 2 {
		t.Fatalf("expected both candidates probed, got %v", noneErr.Probed)
	}
}

func TestApplyAntiFalseSuccessEmptyArtifacts(t *testing.T) {
	res := Result{Status: StatusCompleted}
	out := ApplyAntiFalseSuccess(res, func(string) bool { return true })
	if out.Status != StatusFailed {
		t.Fatalf("expected rewrite to failed, got %s", out.Status)
	}
}

func TestApplyAntiFalseSuccessMissingPath(t *testing.T) {
	res := Result{Status: StatusCompleted, ArtifactsWritten: []string{"/tmp/a", "/tmp/missing"}}
	out := ApplyAntiFalseSuccess(res, func(p string) bool { return p != "/tmp/missing" })
	if out.Status != StatusFailed {
		t.Fatalf("expected rewrite to failed, got %s", out.Status)
	}
}

func TestApplyAntiFalseSuccessGenuineSuccess(t *testing.T) {
	res := Result{Status: StatusCompleted, ArtifactsWritten: []string{"/tmp/a"}}
	out := ApplyAntiFalseSuccess(res, func(string) bool { return true })
	if out.Status != StatusCompleted {
		t.Fatalf("expected completed to survive rewrite, got %s", out.Status)
	}
}

func TestApplyAntiFalseSuccessIgnoresNonCompleted(t *testing.T) {
	res := Result{Status: StatusFailed, Error: "boom"}
	out := ApplyAntiFalseSuccess(res, func(string) bool { return false })
	if out.Status != StatusFailed || out.Error != "boom" {
		t.Fatalf("expected non-completed result untouched, got %+v", out)
	}
}
