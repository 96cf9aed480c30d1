// Copyright 2026 The Coh-Metrix-Dementia Authors
// SPDX-License-Identifier: Apache-2.0

// Package compress provides the streaming compression codecs used for
// model artifacts. All codecs operate as bounded-memory stream
// wrappers: no codec buffers the full model, so compression overlaps
// with estimator output regardless of model size.
package compress

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec identifies the compression algorithm applied to the model
// artifact.
type Codec uint8

const (
	// None writes the ARPA stream unmodified. Useful for debugging
	// and for identity-compressor test setups.
	None Codec = 0

	// Gzip is the default. ARPA models are highly repetitive text;
	// gzip keeps the artifact readable by zcat and by every tooling
	// chain that consumed the original compressed models.
	Gzip Codec = 1

	// Zstd trades compatibility for better ratios and faster decode
	// on large models.
	Zstd Codec = 2

	// LZ4 (frame format) minimizes compression CPU at the cost of
	// ratio, for builds where the estimator is the bottleneck and
	// artifact size is secondary.
	LZ4 Codec = 3
)

// String returns the codec's configuration name.
func (c Codec) String() string {
	switch c {
	case None:
		return "none"
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// Parse resolves a configuration name to a Codec.
func Parse(name string) (Codec, error) {
	switch name {
	case "none":
		return None, nil
	case "gzip":
		return Gzip, nil
	case "zstd":
		return Zstd, nil
	case "lz4":
		return LZ4, nil
	default:
		return 0, fmt.Errorf("unknown compression codec: %q", name)
	}
}

// Extension returns the conventional filename suffix for the codec,
// including the leading dot, or "" for None.
func (c Codec) Extension() string {
	switch c {
	case Gzip:
		return ".gz"
	case Zstd:
		return ".zst"
	case LZ4:
		return ".lz4"
	default:
		return ""
	}
}

// NewWriter wraps w in a streaming compressor for the codec. Closing
// the returned writer flushes codec framing but does not close w —
// the caller owns the underlying file and its sync/close ordering.
func NewWriter(c Codec, w io.Writer) (io.WriteCloser, error) {
	switch c {
	case None:
		return nopWriteCloser{w}, nil

	case Gzip:
		return gzip.NewWriter(w), nil

	case Zstd:
		writer, err := zstd.NewWriter(w)
		if err != nil {
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		return writer, nil

	case LZ4:
		return lz4.NewWriter(w), nil

	default:
		return nil, fmt.Errorf("unsupported compression codec: %d", uint8(c))
	}
}

// NewReader wraps r in the matching streaming decompressor. Used by
// artifact verification and tests; the build path never decompresses.
func NewReader(c Codec, r io.Reader) (io.ReadCloser, error) {
	switch c {
	case None:
		return io.NopCloser(r), nil

	case Gzip:
		reader, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		return reader, nil

	case Zstd:
		reader, err := zstd.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("zstd reader: %w", err)
		}
		return reader.IOReadCloser(), nil

	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil

	default:
		return nil, fmt.Errorf("unsupported compression codec: %d", uint8(c))
	}
}

// nopWriteCloser adapts a plain writer to io.WriteCloser for the None
// codec.
type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
