// Copyright 2026 The Coh-Metrix-Dementia Authors
// SPDX-License-Identifier: Apache-2.0

// Package corpus locates corpus shard files and presents their
// concatenated content as a single byte stream.
//
// Discovery is deterministic: shards are matched by a filename glob
// and sorted lexicographically, so repeated runs over an unchanged
// corpus directory feed byte-identical input to the estimator.
//
// The reader holds at most one shard file open at a time, releasing
// each handle as the shard is exhausted. Memory use is bounded by the
// caller's read buffer regardless of corpus size.
package corpus
