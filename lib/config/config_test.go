// Copyright 2026 The Coh-Metrix-Dementia Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Estimator != "lmplz" {
		t.Errorf("expected estimator=lmplz, got %s", cfg.Estimator)
	}
	if cfg.Order != 3 {
		t.Errorf("expected order=3, got %d", cfg.Order)
	}
	if cfg.MemoryPercent != 50 {
		t.Errorf("expected memory_percent=50, got %d", cfg.MemoryPercent)
	}
	if cfg.Pattern != DefaultPattern {
		t.Errorf("expected pattern=%s, got %s", DefaultPattern, cfg.Pattern)
	}
	if cfg.Compression != "gzip" {
		t.Errorf("expected compression=gzip, got %s", cfg.Compression)
	}
}

func TestLoadWithoutEnvReturnsDefaults(t *testing.T) {
	t.Setenv("LMBUILD_CONFIG", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Order != 3 {
		t.Errorf("expected default order=3, got %d", cfg.Order)
	}
}

func TestLoadWithEnvConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "lmbuild.yaml")
	configContent := `
estimator: /opt/kenlm/bin/lmplz
corpus_dir: /data/corpus
output: /data/models/corpus.arpa.gz
order: 4
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv("LMBUILD_CONFIG", configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Estimator != "/opt/kenlm/bin/lmplz" {
		t.Errorf("estimator = %q", cfg.Estimator)
	}
	if cfg.Order != 4 {
		t.Errorf("order = %d", cfg.Order)
	}
	// Unset fields keep their defaults.
	if cfg.MemoryPercent != 50 {
		t.Errorf("memory_percent = %d, expected default 50", cfg.MemoryPercent)
	}
}

func TestLoadWithMissingEnvConfigFails(t *testing.T) {
	t.Setenv("LMBUILD_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unreadable LMBUILD_CONFIG")
	}
}

func TestLoadFileExpandsVariables(t *testing.T) {
	t.Setenv("HOME", "/home/builder")

	configPath := filepath.Join(t.TempDir(), "lmbuild.yaml")
	configContent := `
corpus_dir: ${HOME}/corpus
output: ${MODEL_DIR:-/srv/models}/corpus.arpa.gz
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.CorpusDir != "/home/builder/corpus" {
		t.Errorf("corpus_dir = %q", cfg.CorpusDir)
	}
	if cfg.Output != "/srv/models/corpus.arpa.gz" {
		t.Errorf("output = %q", cfg.Output)
	}
}

func TestApplyEnvironment(t *testing.T) {
	t.Setenv("LMBUILD_ESTIMATOR", "/env/lmplz")
	t.Setenv("LMBUILD_CORPUS_DIR", "/env/corpus")
	t.Setenv("LMBUILD_TMP_DIR", "")

	cfg := Default()
	cfg.TmpDir = "/configured/tmp"
	cfg.ApplyEnvironment()

	if cfg.Estimator != "/env/lmplz" {
		t.Errorf("estimator = %q, expected env override", cfg.Estimator)
	}
	if cfg.CorpusDir != "/env/corpus" {
		t.Errorf("corpus_dir = %q, expected env override", cfg.CorpusDir)
	}
	if cfg.TmpDir != "/configured/tmp" {
		t.Errorf("tmp_dir = %q, unset env var must not clobber", cfg.TmpDir)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.CorpusDir = "/data/corpus"
		cfg.Output = "/data/model.arpa.gz"
		return cfg
	}

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing estimator", func(c *Config) { c.Estimator = "" }, true},
		{"missing corpus dir", func(c *Config) { c.CorpusDir = "" }, true},
		{"missing output", func(c *Config) { c.Output = "" }, true},
		{"missing pattern", func(c *Config) { c.Pattern = "" }, true},
		{"zero order", func(c *Config) { c.Order = 0 }, true},
		{"negative order", func(c *Config) { c.Order = -2 }, true},
		{"memory percent too low", func(c *Config) { c.MemoryPercent = 0 }, true},
		{"memory percent too high", func(c *Config) { c.MemoryPercent = 150 }, true},
		{"bad grace period", func(c *Config) { c.GracePeriod = "soon" }, true},
		{"negative grace period", func(c *Config) { c.GracePeriod = "-1s" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGracePeriodDuration(t *testing.T) {
	cfg := Default()

	cfg.GracePeriod = ""
	if d, err := cfg.GracePeriodDuration(); err != nil || d != 0 {
		t.Errorf("empty grace period: d=%v err=%v", d, err)
	}

	cfg.GracePeriod = "30s"
	if d, err := cfg.GracePeriodDuration(); err != nil || d != 30*time.Second {
		t.Errorf("30s grace period: d=%v err=%v", d, err)
	}
}

func TestEstimatorPath(t *testing.T) {
	dir := t.TempDir()
	binary := filepath.Join(dir, "lmplz")
	if err := os.WriteFile(binary, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("writing stub: %v", err)
	}

	// Explicit path: checked directly.
	cfg := Default()
	cfg.Estimator = binary
	resolved, err := cfg.EstimatorPath()
	if err != nil {
		t.Fatalf("EstimatorPath: %v", err)
	}
	if resolved != binary {
		t.Errorf("resolved = %q, want %q", resolved, binary)
	}

	// Bare name: resolved via PATH.
	t.Setenv("PATH", dir)
	cfg.Estimator = "lmplz"
	resolved, err = cfg.EstimatorPath()
	if err != nil {
		t.Fatalf("EstimatorPath via PATH: %v", err)
	}
	if resolved != binary {
		t.Errorf("resolved = %q, want %q", resolved, binary)
	}

	// Missing binary.
	cfg.Estimator = "no-such-estimator"
	if _, err := cfg.EstimatorPath(); err == nil {
		t.Error("expected error for missing estimator")
	}
}
