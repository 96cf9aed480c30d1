// Copyright 2026 The Coh-Metrix-Dementia Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"

	"github.com/p-h-c-s/coh-metrix-dementia/lib/codec"
)

// ManifestSuffix is appended to the artifact path to form the
// manifest path.
const ManifestSuffix = ".manifest"

// manifestVersion identifies the manifest record layout.
const manifestVersion = 1

// artifactDomainKey is the BLAKE3 keyed-hashing domain for artifact
// digests. A fixed constant — changing it invalidates every recorded
// digest. The bytes are the ASCII domain name zero-padded to the
// 32 bytes keyed mode requires, so the key is readable in hex dumps.
var artifactDomainKey = [32]byte{
	'l', 'm', 'b', 'u', 'i', 'l', 'd', '.', 'a', 'r', 't', 'i', 'f', 'a', 'c', 't',
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Manifest is the build record written next to a model artifact. It
// captures enough provenance to answer "what produced this file"
// without re-running the build, and enough integrity data (size plus
// keyed BLAKE3 digest) to verify the artifact later.
type Manifest struct {
	Version       int       `cbor:"version"`
	Tool          string    `cbor:"tool"`
	ToolVersion   string    `cbor:"tool_version"`
	CreatedAt     time.Time `cbor:"created_at"`
	Order         int       `cbor:"order"`
	MemoryPercent int       `cbor:"memory_percent"`
	Codec         string    `cbor:"codec"`
	ShardCount    int       `cbor:"shard_count"`
	CorpusBytes   int64     `cbor:"corpus_bytes"`
	ModelBytes    int64     `cbor:"model_bytes"`
	ArtifactSize  int64     `cbor:"artifact_size"`
	// ArtifactDigest is the hex-encoded keyed BLAKE3 digest of the
	// compressed artifact bytes.
	ArtifactDigest string `cbor:"artifact_digest"`
}

// ManifestPath returns the manifest path for an artifact path.
func ManifestPath(artifactPath string) string {
	return artifactPath + ManifestSuffix
}

// WriteManifest encodes the manifest as deterministic CBOR and writes
// it atomically (temp file plus rename in the destination directory).
func WriteManifest(path string, manifest *Manifest) error {
	data, err := codec.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(path), ".manifest-*")
	if err != nil {
		return fmt.Errorf("creating temp manifest: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing manifest: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming manifest to %s: %w", path, err)
	}

	success = true
	return nil
}

// ReadManifest loads and decodes a manifest file.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}

	var manifest Manifest
	if err := codec.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decoding manifest %s: %w", path, err)
	}
	return &manifest, nil
}

// Verify checks an artifact file against the manifest's recorded size
// and digest. Returns nil when both match.
func (m *Manifest) Verify(artifactPath string) error {
	file, err := os.Open(artifactPath)
	if err != nil {
		return fmt.Errorf("opening artifact %s: %w", artifactPath, err)
	}
	defer file.Close()

	digest := newDigestWriter()
	size, err := io.Copy(digest, file)
	if err != nil {
		return fmt.Errorf("hashing artifact %s: %w", artifactPath, err)
	}

	if size != m.ArtifactSize {
		return fmt.Errorf("artifact %s is %d bytes, manifest records %d",
			artifactPath, size, m.ArtifactSize)
	}
	if computed := digest.Sum(); computed != m.ArtifactDigest {
		return fmt.Errorf("artifact %s digest %s does not match manifest digest %s",
			artifactPath, computed, m.ArtifactDigest)
	}
	return nil
}

// digestWriter computes the artifact-domain keyed BLAKE3 digest of
// everything written through it.
type digestWriter struct {
	hasher *blake3.Hasher
}

func newDigestWriter() *digestWriter {
	hasher, err := blake3.NewKeyed(artifactDomainKey[:])
	if err != nil {
		// NewKeyed only fails on wrong key length, which the fixed
		// array size rules out.
		panic("pipeline: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	return &digestWriter{hasher: hasher}
}

func (d *digestWriter) Write(p []byte) (int, error) {
	return d.hasher.Write(p)
}

// Sum returns the hex-encoded digest of the bytes written so far.
func (d *digestWriter) Sum() string {
	return hex.EncodeToString(d.hasher.Sum(nil))
}
