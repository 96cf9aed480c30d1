// Copyright 2026 The Coh-Metrix-Dementia Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for lmbuild.
//
// Settings are resolved in layers, later layers winning:
//
//  1. built-in defaults ([Default])
//  2. an optional YAML config file (LMBUILD_CONFIG environment
//     variable, or the --config flag)
//  3. LMBUILD_* environment variables ([Config.ApplyEnvironment])
//  4. command-line flags (applied by the command layer)
//
// Environment variables act as defaults for the estimator and corpus
// locations so that cron jobs and build scripts can omit repetitive
// flags; explicit flags always win.
package config

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings for a model build. Fields map one-to-one
// onto the YAML config file.
type Config struct {
	// Estimator is the n-gram estimator binary: an absolute path, or
	// a bare name resolved via PATH (see EstimatorPath).
	Estimator string `yaml:"estimator"`

	// CorpusDir is the directory scanned for corpus shard files.
	CorpusDir string `yaml:"corpus_dir"`

	// Pattern is the shard filename glob within CorpusDir.
	Pattern string `yaml:"pattern"`

	// Output is the destination path for the compressed model.
	Output string `yaml:"output"`

	// Order is the n-gram order passed to the estimator (-o).
	Order int `yaml:"order"`

	// MemoryPercent is the estimator's sorting memory budget as a
	// percentage of system memory (-S <pct>%). Range 1-100.
	MemoryPercent int `yaml:"memory_percent"`

	// TmpDir is where the estimator's scratch files (-T) and the
	// pipeline's staging file are created. Defaults to the system
	// temp directory.
	TmpDir string `yaml:"tmp_dir"`

	// Compression names the artifact codec: gzip, zstd, lz4, or none.
	Compression string `yaml:"compression"`

	// GracePeriod is how long a cancelled estimator gets between
	// SIGTERM and SIGKILL, as a duration string ("5s"). Zero means
	// immediate SIGKILL.
	GracePeriod string `yaml:"grace_period"`

	// ExtraArgs are appended verbatim to the estimator's argument
	// list, after the generated -o/-S/-T flags. Escape hatch for
	// estimator versions with additional or renamed options.
	ExtraArgs []string `yaml:"extra_args"`
}

// DefaultPattern matches the corpus shard naming convention.
const DefaultPattern = "ngram_corpus_*.txt"

// Default returns the built-in defaults. These are the base layer;
// the config file, environment, and flags refine them.
func Default() *Config {
	return &Config{
		Estimator:     "lmplz",
		Pattern:       DefaultPattern,
		Order:         3,
		MemoryPercent: 50,
		TmpDir:        os.TempDir(),
		Compression:   "gzip",
		GracePeriod:   "5s",
	}
}

// Load loads configuration from the LMBUILD_CONFIG environment
// variable if it is set, otherwise returns the defaults. A set but
// unreadable LMBUILD_CONFIG is an error rather than a silent
// fallback.
func Load() (*Config, error) {
	path := os.Getenv("LMBUILD_CONFIG")
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path, merging
// over the defaults. The only expansion performed is ${VAR} and
// ${VAR:-default} in path values, for portability of shared config
// files across machines.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// ApplyEnvironment overlays LMBUILD_* environment variables onto the
// config. Unset variables leave the current values untouched.
func (c *Config) ApplyEnvironment() {
	if value := os.Getenv("LMBUILD_ESTIMATOR"); value != "" {
		c.Estimator = value
	}
	if value := os.Getenv("LMBUILD_CORPUS_DIR"); value != "" {
		c.CorpusDir = value
	}
	if value := os.Getenv("LMBUILD_TMP_DIR"); value != "" {
		c.TmpDir = value
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// path-valued fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Estimator = expandVars(c.Estimator, vars)
	c.CorpusDir = expandVars(c.CorpusDir, vars)
	c.Output = expandVars(c.Output, vars)
	c.TmpDir = expandVars(c.TmpDir, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then the environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. All problems are
// reported at once rather than one per run.
func (c *Config) Validate() error {
	var errs []error

	if c.Estimator == "" {
		errs = append(errs, fmt.Errorf("estimator is required"))
	}
	if c.CorpusDir == "" {
		errs = append(errs, fmt.Errorf("corpus_dir is required"))
	}
	if c.Output == "" {
		errs = append(errs, fmt.Errorf("output is required"))
	}
	if c.Pattern == "" {
		errs = append(errs, fmt.Errorf("pattern is required"))
	}
	if c.Order < 1 {
		errs = append(errs, fmt.Errorf("order must be a positive integer, got %d", c.Order))
	}
	if c.MemoryPercent < 1 || c.MemoryPercent > 100 {
		errs = append(errs, fmt.Errorf("memory_percent must be in 1-100, got %d", c.MemoryPercent))
	}
	if _, err := c.GracePeriodDuration(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// GracePeriodDuration parses the grace period. An empty string means
// zero (immediate SIGKILL on cancellation).
func (c *Config) GracePeriodDuration() (time.Duration, error) {
	if c.GracePeriod == "" {
		return 0, nil
	}
	parsed, err := time.ParseDuration(c.GracePeriod)
	if err != nil {
		return 0, fmt.Errorf("invalid grace_period %q: %w", c.GracePeriod, err)
	}
	if parsed < 0 {
		return 0, fmt.Errorf("grace_period must not be negative, got %s", c.GracePeriod)
	}
	return parsed, nil
}

// EstimatorPath resolves the estimator to an executable path. Names
// containing a path separator are checked directly; bare names are
// looked up in PATH.
func (c *Config) EstimatorPath() (string, error) {
	if filepath.Base(c.Estimator) != c.Estimator {
		if _, err := os.Stat(c.Estimator); err != nil {
			return "", fmt.Errorf("estimator %s: %w", c.Estimator, err)
		}
		return c.Estimator, nil
	}

	path, err := exec.LookPath(c.Estimator)
	if err != nil {
		return "", fmt.Errorf("estimator %q not found in PATH", c.Estimator)
	}
	return path, nil
}
