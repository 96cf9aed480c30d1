// Copyright 2026 The Coh-Metrix-Dementia Authors
// SPDX-License-Identifier: Apache-2.0

package pipeline

import "fmt"

// The build pipeline reports failures as typed errors naming the
// stage and the path involved, so callers can map outcomes to exit
// codes and operators can diagnose without re-running. Estimator
// launch and exit failures pass through from the estimator package
// ([estimator.LaunchError], [estimator.ExitError]).

// NoShardsError reports that shard discovery matched nothing. It is
// returned before any subprocess is launched: an estimator run on
// empty input would produce a degenerate model, not an error.
type NoShardsError struct {
	Dir     string
	Pattern string
}

func (e *NoShardsError) Error() string {
	return fmt.Sprintf("no corpus shards matching %q under %s", e.Pattern, e.Dir)
}

// ShardReadError reports an I/O failure while streaming a corpus
// shard into the estimator.
type ShardReadError struct {
	Path string
	Err  error
}

func (e *ShardReadError) Error() string {
	return fmt.Sprintf("reading corpus shard %s: %v", e.Path, e.Err)
}

func (e *ShardReadError) Unwrap() error { return e.Err }

// CompressError reports a failure writing or compressing the model
// output stream.
type CompressError struct {
	Err error
}

func (e *CompressError) Error() string {
	return fmt.Sprintf("compressing model stream: %v", e.Err)
}

func (e *CompressError) Unwrap() error { return e.Err }

// FinalizeError reports a failure moving the staged artifact (or its
// manifest) into place at the destination path.
type FinalizeError struct {
	Path string
	Err  error
}

func (e *FinalizeError) Error() string {
	return fmt.Sprintf("finalizing %s: %v", e.Path, e.Err)
}

func (e *FinalizeError) Unwrap() error { return e.Err }

// CancelledError reports that the build was aborted by the caller's
// context, distinguishing deliberate aborts from system failures. It
// wraps the context's cause.
type CancelledError struct {
	Err error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("build cancelled: %v", e.Err)
}

func (e *CancelledError) Unwrap() error { return e.Err }
