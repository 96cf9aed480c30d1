// Copyright 2026 The Coh-Metrix-Dementia Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers. These centralize
// the raw stderr output that happens before the structured logger is
// initialized or after main() has decided to exit; everything else in
// the tree logs through slog.
package process
