// Copyright 2026 The Coh-Metrix-Dementia Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/p-h-c-s/coh-metrix-dementia/lib/compress"
	"github.com/p-h-c-s/coh-metrix-dementia/lib/corpus"
	"github.com/p-h-c-s/coh-metrix-dementia/lib/estimator"
	"github.com/p-h-c-s/coh-metrix-dementia/lib/version"
)

// BuildConfig carries the fully-resolved parameters for one model
// build. Resolution (config file, environment, flags, binary lookup)
// happens in the caller; the pipeline only validates what it needs to
// stage the artifact safely.
type BuildConfig struct {
	// Estimator is the resolved path to the estimator binary.
	Estimator string

	// CorpusDir is the directory scanned for corpus shards.
	CorpusDir string

	// Pattern is the shard filename glob, matched within CorpusDir.
	Pattern string

	// Output is the destination artifact path.
	Output string

	// Order is the n-gram order passed to the estimator.
	Order int

	// MemoryPercent is the estimator's sorting memory budget.
	MemoryPercent int

	// TmpDir holds both the estimator's scratch files and the staged
	// artifact, so the final rename stays on one filesystem when the
	// output lives there too.
	TmpDir string

	// Codec selects the compression applied to the model stream.
	Codec compress.Codec

	// GracePeriod is the SIGTERM-to-SIGKILL window on cancellation.
	GracePeriod time.Duration

	// ExtraArgs are passed through to the estimator verbatim.
	ExtraArgs []string

	// WriteManifest enables the CBOR build-record sidecar.
	WriteManifest bool

	// ProgressWriter, when non-nil, receives the estimator's stderr
	// progress output live.
	ProgressWriter io.Writer

	// Logger receives build progress events. Nil disables logging.
	Logger *slog.Logger
}

func (c *BuildConfig) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Artifact describes a completed build.
type Artifact struct {
	// Path is the installed artifact path.
	Path string

	// Size is the artifact size in bytes after compression.
	Size int64

	// ModelBytes is the uncompressed model size.
	ModelBytes int64

	// CorpusBytes is the total corpus text streamed to the estimator,
	// including shard-separating newlines.
	CorpusBytes int64

	// ShardCount is the number of corpus shards consumed.
	ShardCount int

	// Digest is the hex-encoded keyed BLAKE3 digest of the artifact.
	Digest string

	// Codec is the compression codec applied.
	Codec compress.Codec

	// Duration is the wall-clock build time.
	Duration time.Duration
}

// Run executes a complete build: discover shards, stream them through
// the estimator, compress the model output into a staging file, and
// atomically rename the result to the destination. The destination is
// either the previous contents or the complete new artifact; no
// failure path leaves a partial file there, and the staging file is
// removed on every error path.
func Run(ctx context.Context, cfg BuildConfig) (*Artifact, error) {
	log := cfg.logger()
	start := time.Now()

	shards, err := corpus.Discover(cfg.CorpusDir, cfg.Pattern)
	if err != nil {
		return nil, fmt.Errorf("discovering corpus shards: %w", err)
	}
	if len(shards) == 0 {
		return nil, &NoShardsError{Dir: cfg.CorpusDir, Pattern: cfg.Pattern}
	}
	log.Info("discovered corpus shards",
		"count", len(shards),
		"dir", cfg.CorpusDir,
		"pattern", cfg.Pattern)

	if err := os.MkdirAll(cfg.TmpDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating temp directory %s: %w", cfg.TmpDir, err)
	}
	if dir := filepath.Dir(cfg.Output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating output directory %s: %w", dir, err)
		}
	}

	staging, err := os.CreateTemp(cfg.TmpDir, "lmbuild-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("creating staging file in %s: %w", cfg.TmpDir, err)
	}
	stagingPath := staging.Name()

	success := false
	defer func() {
		if !success {
			staging.Close()
			os.Remove(stagingPath)
		}
	}()

	reader := corpus.NewReader(shards)
	defer reader.Close()

	// The model stream fans out below the compressor: compressed
	// bytes go to the staging file and the digest in one pass.
	digest := newDigestWriter()
	artifactSink := &countingWriter{w: io.MultiWriter(staging, digest)}
	compressor, err := compress.NewWriter(cfg.Codec, artifactSink)
	if err != nil {
		return nil, &CompressError{Err: err}
	}
	modelSink := &countingWriter{w: compressor}

	spec := estimator.Spec{
		Path:           cfg.Estimator,
		Order:          cfg.Order,
		MemoryPercent:  cfg.MemoryPercent,
		TmpDir:         cfg.TmpDir,
		ExtraArgs:      cfg.ExtraArgs,
		GracePeriod:    cfg.GracePeriod,
		ProgressWriter: cfg.ProgressWriter,
	}
	log.Info("launching estimator",
		"path", spec.Path,
		"order", spec.Order,
		"memory_percent", spec.MemoryPercent,
		"codec", cfg.Codec.String())

	if err := estimator.Run(ctx, spec, reader, modelSink); err != nil {
		// Release the compressor's resources; the staging file is
		// discarded so flush errors are irrelevant here.
		compressor.Close()
		return nil, classifyRunError(ctx, err, reader, modelSink)
	}

	// Flush compression framing, then make the staged bytes durable
	// before the rename publishes them.
	if err := compressor.Close(); err != nil {
		return nil, &CompressError{Err: err}
	}
	if err := staging.Sync(); err != nil {
		return nil, &CompressError{Err: err}
	}
	if err := staging.Close(); err != nil {
		return nil, &CompressError{Err: err}
	}

	if err := os.Rename(stagingPath, cfg.Output); err != nil {
		return nil, &FinalizeError{Path: cfg.Output, Err: err}
	}
	success = true

	artifact := &Artifact{
		Path:        cfg.Output,
		Size:        artifactSink.n,
		ModelBytes:  modelSink.n,
		CorpusBytes: reader.BytesRead(),
		ShardCount:  len(shards),
		Digest:      digest.Sum(),
		Codec:       cfg.Codec,
		Duration:    time.Since(start),
	}

	if cfg.WriteManifest {
		manifest := &Manifest{
			Version:        manifestVersion,
			Tool:           "lmbuild",
			ToolVersion:    version.Info(),
			CreatedAt:      time.Now().UTC(),
			Order:          cfg.Order,
			MemoryPercent:  cfg.MemoryPercent,
			Codec:          cfg.Codec.String(),
			ShardCount:     artifact.ShardCount,
			CorpusBytes:    artifact.CorpusBytes,
			ModelBytes:     artifact.ModelBytes,
			ArtifactSize:   artifact.Size,
			ArtifactDigest: artifact.Digest,
		}
		manifestPath := ManifestPath(cfg.Output)
		if err := WriteManifest(manifestPath, manifest); err != nil {
			// The artifact itself is installed and valid; report the
			// sidecar failure without retracting it.
			return artifact, &FinalizeError{Path: manifestPath, Err: err}
		}
	}

	log.Info("model artifact installed",
		"path", artifact.Path,
		"size", artifact.Size,
		"model_bytes", artifact.ModelBytes,
		"corpus_bytes", artifact.CorpusBytes,
		"shards", artifact.ShardCount,
		"duration", artifact.Duration.Round(time.Millisecond))

	return artifact, nil
}

// classifyRunError maps an estimator.Run failure to the pipeline's
// typed errors by inspecting which side of the subprocess broke.
// Estimator launch and exit errors pass through unchanged.
func classifyRunError(ctx context.Context, err error, reader *corpus.Reader, sink *countingWriter) error {
	// A shard read failure surfaces through exec's stdin copier as a
	// generic pipe error; the reader remembers the real cause.
	if readerErr := reader.Err(); readerErr != nil {
		return &ShardReadError{Path: reader.FailedShard(), Err: readerErr}
	}
	if ctx.Err() != nil {
		return &CancelledError{Err: context.Cause(ctx)}
	}
	if sink.err != nil {
		return &CompressError{Err: sink.err}
	}
	return err
}

// countingWriter counts bytes written through it and remembers the
// first write error.
type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	if err != nil && c.err == nil {
		c.err = err
	}
	return n, err
}
