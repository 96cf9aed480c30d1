// Copyright 2026 The Coh-Metrix-Dementia Authors
// SPDX-License-Identifier: Apache-2.0

// Package estimator launches the external n-gram estimator as a
// subprocess and supervises its lifecycle. The estimator (KenLM lmplz
// or compatible) reads concatenated corpus text on stdin and writes
// an ARPA-format model on stdout; this package treats both streams as
// opaque bytes.
package estimator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"syscall"
	"time"
)

// maxStderrCapture bounds the retained estimator stderr. Estimators
// print progress continuously; only the tail matters for diagnosing a
// failure, so the capture keeps the most recent bytes.
const maxStderrCapture = 64 * 1024

// Spec describes a single estimator invocation.
type Spec struct {
	// Path is the resolved estimator binary path.
	Path string

	// Order is the n-gram order (-o).
	Order int

	// MemoryPercent is the sorting memory budget (-S <pct>%).
	MemoryPercent int

	// TmpDir is the estimator's scratch directory (-T).
	TmpDir string

	// ExtraArgs are appended verbatim after the generated flags.
	ExtraArgs []string

	// GracePeriod is how long the process group gets between SIGTERM
	// and SIGKILL when the context is cancelled. Zero means immediate
	// SIGKILL: estimator scratch state is worthless once the build is
	// abandoned.
	GracePeriod time.Duration

	// ProgressWriter, when non-nil, receives a live copy of the
	// estimator's stderr (progress meters) in addition to the bounded
	// capture used for error reporting.
	ProgressWriter io.Writer
}

// Args returns the estimator's argument list (excluding the binary
// itself): the lmplz contract of -o/-S/-T plus any extra args.
func (s Spec) Args() []string {
	args := []string{
		"-o", strconv.Itoa(s.Order),
		"-S", fmt.Sprintf("%d%%", s.MemoryPercent),
		"-T", s.TmpDir,
	}
	return append(args, s.ExtraArgs...)
}

// LaunchError reports that the estimator process could not be started
// at all: missing binary, permission denied, resource exhaustion.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("starting estimator %s: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// ExitError reports that the estimator started but exited non-zero or
// was killed by a signal. Stderr holds the tail of the process's
// standard error output.
type ExitError struct {
	Path     string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("estimator %s exited with code %d", e.Path, e.ExitCode)
	}
	return fmt.Sprintf("estimator %s exited with code %d: %s", e.Path, e.ExitCode, e.Stderr)
}

// Run executes the estimator with stdin wired to the corpus stream
// and stdout wired to the artifact writer. It blocks until the
// process is reaped on every path, including cancellation.
//
// The child runs in its own process group so that cancellation kills
// the estimator and any workers it forked; without that, surviving
// children would hold the stdout pipe open and stall the pipeline.
//
// The returned error is nil on exit status 0, a *LaunchError if the
// process never started, a *ExitError on non-zero exit, or the
// context error when the run was cancelled.
func Run(ctx context.Context, spec Spec, stdin io.Reader, stdout io.Writer) error {
	cmd := exec.CommandContext(ctx, spec.Path, spec.Args()...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout

	stderr := newTailBuffer(maxStderrCapture)
	if spec.ProgressWriter != nil {
		cmd.Stderr = io.MultiWriter(spec.ProgressWriter, stderr)
	} else {
		cmd.Stderr = stderr
	}

	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = cancelProcessGroup(cmd, spec.GracePeriod)

	if err := cmd.Start(); err != nil {
		return &LaunchError{Path: spec.Path, Err: err}
	}

	err := cmd.Wait()
	if err == nil {
		return nil
	}

	// Cancellation takes precedence: a killed estimator reports a
	// signal exit, but the root cause is the caller's abort.
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var exitError *exec.ExitError
	if errors.As(err, &exitError) {
		return &ExitError{
			Path:     spec.Path,
			ExitCode: exitError.ExitCode(),
			Stderr:   stderr.String(),
		}
	}

	// Non-exit failure: an I/O error on one of the wired streams.
	// The caller classifies it against its own stream state.
	return err
}

// cancelProcessGroup returns the Cancel function for cmd. With a zero
// grace period the whole group is SIGKILLed immediately. With a
// positive grace period the group gets SIGTERM first and a background
// escalation to SIGKILL after the period elapses.
func cancelProcessGroup(cmd *exec.Cmd, gracePeriod time.Duration) func() error {
	if gracePeriod <= 0 {
		return func() error {
			return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
	}

	return func() error {
		processGroupID := -cmd.Process.Pid
		if err := syscall.Kill(processGroupID, syscall.SIGTERM); err != nil {
			// SIGTERM failed (group already gone), escalate.
			return syscall.Kill(processGroupID, syscall.SIGKILL)
		}
		go func() {
			time.Sleep(gracePeriod)
			// Best-effort: ESRCH from an exited group is harmless.
			_ = syscall.Kill(processGroupID, syscall.SIGKILL)
		}()
		return nil
	}
}

// tailBuffer retains the last limit bytes written to it.
type tailBuffer struct {
	limit int
	data  []byte
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	if len(b.data) > b.limit {
		// Keep the tail; failure diagnostics print last.
		b.data = b.data[len(b.data)-b.limit:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	return string(b.data)
}
