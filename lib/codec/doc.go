// Copyright 2026 The Coh-Metrix-Dementia Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides deterministic CBOR encoding and decoding for
// lmbuild's on-disk metadata (the build manifest). Encoding uses Core
// Deterministic Encoding so that the same logical record always
// produces identical bytes.
package codec
