// Copyright 2026 The Coh-Metrix-Dementia Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/p-h-c-s/coh-metrix-dementia/lib/compress"
	"github.com/p-h-c-s/coh-metrix-dementia/lib/estimator"
	"github.com/p-h-c-s/coh-metrix-dementia/lib/testutil"
)

// writeScript creates an executable shell script standing in for the
// estimator binary.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "estimator")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("writing script: %v", err)
	}
	return path
}

// writeShards populates dir with corpus shards named to match the
// default pattern.
func writeShards(t *testing.T, dir string, contents ...string) {
	t.Helper()
	for i, content := range contents {
		name := filepath.Join(dir, "ngram_corpus_"+string(rune('a'+i))+".txt")
		if err := os.WriteFile(name, []byte(content), 0o644); err != nil {
			t.Fatalf("writing shard: %v", err)
		}
	}
}

func baseConfig(t *testing.T, estimatorPath string) BuildConfig {
	t.Helper()
	return BuildConfig{
		Estimator:     estimatorPath,
		CorpusDir:     t.TempDir(),
		Pattern:       "ngram_corpus_*.txt",
		Output:        filepath.Join(t.TempDir(), "model.bin"),
		Order:         3,
		MemoryPercent: 50,
		TmpDir:        t.TempDir(),
		Codec:         compress.None,
	}
}

func TestRunEndToEnd(t *testing.T) {
	// A cat estimator makes the artifact equal the concatenated
	// corpus, which pins down the shard joining behavior.
	cfg := baseConfig(t, writeScript(t, "exec cat\n"))
	writeShards(t, cfg.CorpusDir, "the cat sat", "the dog ran\n")

	artifact, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	data, err := os.ReadFile(cfg.Output)
	if err != nil {
		t.Fatalf("reading artifact: %v", err)
	}
	expected := "the cat sat\nthe dog ran\n"
	if string(data) != expected {
		t.Errorf("artifact = %q, want %q", data, expected)
	}

	if artifact.ShardCount != 2 {
		t.Errorf("ShardCount = %d, want 2", artifact.ShardCount)
	}
	if artifact.CorpusBytes != int64(len(expected)) {
		t.Errorf("CorpusBytes = %d, want %d", artifact.CorpusBytes, len(expected))
	}
	if artifact.ModelBytes != int64(len(expected)) {
		t.Errorf("ModelBytes = %d, want %d", artifact.ModelBytes, len(expected))
	}
	if artifact.Size != int64(len(data)) {
		t.Errorf("Size = %d, want %d", artifact.Size, len(data))
	}
	if artifact.Digest == "" {
		t.Error("Digest is empty")
	}
}

func TestRunGzipArtifact(t *testing.T) {
	cfg := baseConfig(t, writeScript(t, "exec cat\n"))
	cfg.Codec = compress.Gzip
	writeShards(t, cfg.CorpusDir, "one fish two fish\n")

	if _, err := Run(context.Background(), cfg); err != nil {
		t.Fatalf("Run: %v", err)
	}

	file, err := os.Open(cfg.Output)
	if err != nil {
		t.Fatalf("opening artifact: %v", err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		t.Fatalf("artifact is not valid gzip: %v", err)
	}
	data, err := io.ReadAll(gz)
	if err != nil {
		t.Fatalf("decompressing artifact: %v", err)
	}
	if string(data) != "one fish two fish\n" {
		t.Errorf("decompressed = %q", data)
	}
}

func TestRunNoShards(t *testing.T) {
	cfg := baseConfig(t, writeScript(t, "exec cat\n"))

	_, err := Run(context.Background(), cfg)

	var noShards *NoShardsError
	if !errors.As(err, &noShards) {
		t.Fatalf("expected *NoShardsError, got %v", err)
	}
	if _, statErr := os.Stat(cfg.Output); !os.IsNotExist(statErr) {
		t.Error("destination should not exist after a no-shards failure")
	}
	assertNoStagingFiles(t, cfg.TmpDir)
}

func TestRunEstimatorFailureLeavesNothing(t *testing.T) {
	cfg := baseConfig(t, writeScript(t, "cat > /dev/null\necho 'bad input' >&2\nexit 1\n"))
	writeShards(t, cfg.CorpusDir, "text\n")

	_, err := Run(context.Background(), cfg)

	var exitError *estimator.ExitError
	if !errors.As(err, &exitError) {
		t.Fatalf("expected *estimator.ExitError, got %v", err)
	}
	if !strings.Contains(exitError.Stderr, "bad input") {
		t.Errorf("Stderr = %q, expected to contain 'bad input'", exitError.Stderr)
	}
	if _, statErr := os.Stat(cfg.Output); !os.IsNotExist(statErr) {
		t.Error("destination should not exist after an estimator failure")
	}
	assertNoStagingFiles(t, cfg.TmpDir)
}

func TestRunMissingEstimator(t *testing.T) {
	cfg := baseConfig(t, filepath.Join(t.TempDir(), "no-such-binary"))
	writeShards(t, cfg.CorpusDir, "text\n")

	_, err := Run(context.Background(), cfg)

	var launchError *estimator.LaunchError
	if !errors.As(err, &launchError) {
		t.Fatalf("expected *estimator.LaunchError, got %v", err)
	}
	assertNoStagingFiles(t, cfg.TmpDir)
}

func TestRunCancellation(t *testing.T) {
	cfg := baseConfig(t, writeScript(t, "sleep 60\n"))
	writeShards(t, cfg.CorpusDir, "text\n")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	// Run in a goroutine so a stuck teardown fails the test instead of
	// hanging it.
	errs := make(chan error, 1)
	go func() {
		_, err := Run(ctx, cfg)
		errs <- err
	}()
	err := testutil.RequireReceive(t, errs, 10*time.Second, "waiting for cancelled build")

	var cancelled *CancelledError
	if !errors.As(err, &cancelled) {
		t.Fatalf("expected *CancelledError, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected the deadline cause to be wrapped, got %v", err)
	}
	if _, statErr := os.Stat(cfg.Output); !os.IsNotExist(statErr) {
		t.Error("destination should not exist after cancellation")
	}
	assertNoStagingFiles(t, cfg.TmpDir)
}

func TestRunShardReadFailure(t *testing.T) {
	cfg := baseConfig(t, writeScript(t, "exec cat\n"))
	writeShards(t, cfg.CorpusDir, "first\n", "second\n")

	// Remove a discovered shard before the stream opens it.
	missing := filepath.Join(cfg.CorpusDir, "ngram_corpus_b.txt")
	if err := os.Remove(missing); err != nil {
		t.Fatalf("removing shard: %v", err)
	}
	// Re-create the match so discovery still finds two shards but the
	// second is unreadable.
	if err := os.Mkdir(missing, 0o755); err != nil {
		t.Fatalf("creating decoy: %v", err)
	}

	_, err := Run(context.Background(), cfg)

	var shardErr *ShardReadError
	if !errors.As(err, &shardErr) {
		t.Fatalf("expected *ShardReadError, got %v", err)
	}
	if shardErr.Path != missing {
		t.Errorf("Path = %q, want %q", shardErr.Path, missing)
	}
	if _, statErr := os.Stat(cfg.Output); !os.IsNotExist(statErr) {
		t.Error("destination should not exist after a shard read failure")
	}
}

func TestRunOverwritesPreviousArtifact(t *testing.T) {
	cfg := baseConfig(t, writeScript(t, "exec cat\n"))
	writeShards(t, cfg.CorpusDir, "new corpus\n")

	if err := os.WriteFile(cfg.Output, []byte("old model"), 0o644); err != nil {
		t.Fatalf("seeding old artifact: %v", err)
	}

	if _, err := Run(context.Background(), cfg); err != nil {
		t.Fatalf("Run: %v", err)
	}

	data, err := os.ReadFile(cfg.Output)
	if err != nil {
		t.Fatalf("reading artifact: %v", err)
	}
	if string(data) != "new corpus\n" {
		t.Errorf("artifact = %q, want replacement contents", data)
	}
}

func TestRunFailurePreservesPreviousArtifact(t *testing.T) {
	cfg := baseConfig(t, writeScript(t, "cat > /dev/null\nexit 1\n"))
	writeShards(t, cfg.CorpusDir, "new corpus\n")

	if err := os.WriteFile(cfg.Output, []byte("old model"), 0o644); err != nil {
		t.Fatalf("seeding old artifact: %v", err)
	}

	if _, err := Run(context.Background(), cfg); err == nil {
		t.Fatal("expected estimator failure")
	}

	data, err := os.ReadFile(cfg.Output)
	if err != nil {
		t.Fatalf("reading artifact: %v", err)
	}
	if string(data) != "old model" {
		t.Errorf("previous artifact was disturbed: %q", data)
	}
}

func TestRunWritesManifest(t *testing.T) {
	cfg := baseConfig(t, writeScript(t, "exec cat\n"))
	cfg.WriteManifest = true
	writeShards(t, cfg.CorpusDir, "the cat sat\n")

	artifact, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	manifest, err := ReadManifest(ManifestPath(cfg.Output))
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if manifest.Version != manifestVersion {
		t.Errorf("Version = %d, want %d", manifest.Version, manifestVersion)
	}
	if manifest.ShardCount != 1 {
		t.Errorf("ShardCount = %d, want 1", manifest.ShardCount)
	}
	if manifest.ArtifactDigest != artifact.Digest {
		t.Errorf("manifest digest %q != artifact digest %q",
			manifest.ArtifactDigest, artifact.Digest)
	}
	if err := manifest.Verify(cfg.Output); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

// assertNoStagingFiles fails the test if any lmbuild staging file
// survived in the temp directory.
func assertNoStagingFiles(t *testing.T, tmpDir string) {
	t.Helper()
	leftovers, err := filepath.Glob(filepath.Join(tmpDir, "lmbuild-*.tmp"))
	if err != nil {
		t.Fatalf("globbing temp dir: %v", err)
	}
	if len(leftovers) != 0 {
		t.Errorf("staging files left behind: %v", leftovers)
	}
}
