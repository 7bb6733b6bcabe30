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

// Package config resolves the ambient settings every command and
// daemon-side package needs: where runs live on disk, and how verbose
// to log. Settings come from an XDG-resolved YAML file with MAESTRO_*
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk, YAML-backed settings file read from
// ConfigPath, overridable by the MAESTRO_* environment variables.
type Config struct {
	Version int `yaml:"version,omitempty"`

	// RunsDir roots every runstore.Store this process opens. Empty means
	// "resolve from environment/XDG at Load time".
	RunsDir string `yaml:"runs_dir,omitempty"`

	Log LogConfig `yaml:"log"`
}

// LogConfig configures internal/mlog.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // text, json
}

// Default returns the zero-value Config with the documented defaults
// filled in, used when no config file is present.
func Default() Config {
	return Config{
		Version: 1,
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads ConfigPath if present, falling back to Default(), then
// applies MAESTRO_RUNS_DIR / MAESTRO_LOG_LEVEL / MAESTRO_LOG_FORMAT
// overrides, then resolves RunsDir to an absolute path rooted at the
// XDG config/state convention if it is still unset.
func Load() (Config, error) {
	cfg := Default()

	path, err := ConfigPath()
	if err != nil {
		return Config{}, fmt.Errorf("resolving config path: %w", err)
	}

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)

	if cfg.RunsDir == "" {
		dir, err := defaultRunsDir()
		if err != nil {
			return Config{}, err
		}
		cfg.RunsDir = dir
	}

	return cfg, nil
}

// applyEnvOverrides mutates cfg in place from the MAESTRO_* environment
// variables. Env always wins over the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MAESTRO_RUNS_DIR"); v != "" {
		cfg.RunsDir = v
	}
	if v := os.Getenv("MAESTRO_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("MAESTRO_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// defaultRunsDir returns ~/.local/state/maestro (or
// $XDG_STATE_HOME/maestro), created if absent. This is the root a
// runstore.Store is opened on; the store itself maintains the
// runs/<run_id>/ layout underneath it. Run records are process
// state, not configuration, so they live under the XDG state directory
// rather than alongside config.yaml.
func defaultRunsDir() (string, error) {
	var base string
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		base = xdg
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "state")
	}
	dir := filepath.Join(base, "maestro")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating runs dir %s: %w", dir, err)
	}
	return dir, nil
}
