// Copyright 2026 The Coh-Metrix-Dementia Authors
// SPDX-License-Identifier: Apache-2.0

// Package pipeline orchestrates a language-model build end to end:
// shard discovery, streaming the corpus through the external
// estimator, compressing the model output, and atomically installing
// the artifact with an optional CBOR build manifest.
//
// The pipeline never buffers the corpus or the model in memory or in
// intermediate files beyond the single staging file; data flows
// shards -> estimator stdin, estimator stdout -> compressor -> staging
// file, and the staging file is renamed into place only after the
// estimator exits cleanly and the compressed stream is flushed and
// synced.
package pipeline
