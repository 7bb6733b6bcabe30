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

package config

import (
	"path/filepath"
	"testing"
)

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	runsDir := filepath.Join(t.TempDir(), "custom-runs")
	t.Setenv("MAESTRO_RUNS_DIR", runsDir)
	t.Setenv("MAESTRO_LOG_LEVEL", "debug")
	t.Setenv("MAESTRO_LOG_FORMAT", "json")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RunsDir != runsDir {
		t.Fatalf("RunsDir = %q, want %q", cfg.RunsDir, runsDir)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("unexpected log config: %+v", cfg.Log)
	}
}

func TestLoadDefaultsWithoutConfigFileOrEnv(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	t.Setenv("MAESTRO_RUNS_DIR", "")
	t.Setenv("MAESTRO_LOG_LEVEL", "")
	t.Setenv("MAESTRO_LOG_FORMAT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Fatalf("unexpected default log config: %+v", cfg.Log)
	}
	if cfg.RunsDir == "" {
		t.Fatal("expected a resolved default RunsDir")
	}
}

func TestConfigDirRespectsXDGConfigHome(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmp)

	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir: %v", err)
	}
	want := filepath.Join(tmp, "maestro")
	if dir != want {
		t.Fatalf("ConfigDir() = %q, want %q", dir, want)
	}
}
