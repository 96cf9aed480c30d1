// Copyright 2026 The Coh-Metrix-Dementia Authors
// SPDX-License-Identifier: Apache-2.0

package corpus

import (
	"fmt"
	"path/filepath"
	"sort"
)

// Discover returns the shard files under dir whose base name matches
// the glob pattern, sorted lexicographically by full path. A missing
// or empty directory yields an empty set, not an error — the caller
// decides whether zero shards is fatal.
func Discover(dir, pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		// filepath.Glob only fails on malformed patterns.
		return nil, fmt.Errorf("invalid shard pattern %q: %w", pattern, err)
	}

	// Glob output is already sorted on all current platforms, but the
	// ordering is load-bearing here: sort explicitly so determinism
	// does not depend on filepath internals.
	sort.Strings(matches)
	return matches, nil
}
