// Copyright 2026 The Coh-Metrix-Dementia Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command framework for the lmbuild binary:
// a small command tree dispatched by positional arguments, pflag flag
// sets bound from struct tags, typo suggestions for unknown commands
// and flags, and a structured logger constructor.
//
// The framework is deliberately minimal. Commands declare their
// parameters as a tagged struct, obtain a FlagSet via
// [FlagsFromParams], and implement Run. Help output is synthesized
// from the command metadata.
package cli
