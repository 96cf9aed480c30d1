// Copyright 2026 The Coh-Metrix-Dementia Authors
// SPDX-License-Identifier: Apache-2.0

package corpus

import (
	"io"
	"io/fs"
	"os"
)

// Reader streams the concatenated content of a shard set. Shards are
// opened lazily in order, one file handle at a time; each handle is
// closed as soon as its shard is exhausted.
//
// Estimators consume one sentence per line. A shard whose last byte
// is not a newline would otherwise merge its final line with the
// first line of the next shard, so the reader emits a single '\n'
// after any non-empty shard that does not end with one.
//
// Reader is not safe for concurrent use.
type Reader struct {
	shards []string
	index  int

	current *os.File

	// sawData and lastByte track whether the current shard needs a
	// terminating newline injected at its EOF.
	sawData        bool
	lastByte       byte
	pendingNewline bool

	bytesRead   int64
	err         error
	failedShard string
	closed      bool
}

// NewReader returns a Reader over the given shard paths. The slice is
// not copied; callers must not mutate it while reading.
func NewReader(shards []string) *Reader {
	return &Reader{shards: shards}
}

// Read implements io.Reader. The first I/O failure is sticky: it is
// recorded along with the failing shard path and returned from every
// subsequent call.
func (r *Reader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	if r.closed {
		return 0, fs.ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}

	for {
		if r.pendingNewline {
			p[0] = '\n'
			r.pendingNewline = false
			r.bytesRead++
			return 1, nil
		}

		if r.current == nil {
			if r.index >= len(r.shards) {
				return 0, io.EOF
			}
			file, err := os.Open(r.shards[r.index])
			if err != nil {
				r.fail(r.shards[r.index], err)
				return 0, r.err
			}
			r.current = file
			r.sawData = false
		}

		n, err := r.current.Read(p)
		if n > 0 {
			r.sawData = true
			r.lastByte = p[n-1]
			r.bytesRead += int64(n)
			return n, nil
		}

		switch {
		case err == io.EOF:
			shard := r.shards[r.index]
			closeErr := r.current.Close()
			r.current = nil
			r.index++
			if closeErr != nil {
				r.fail(shard, closeErr)
				return 0, r.err
			}
			if r.sawData && r.lastByte != '\n' {
				r.pendingNewline = true
			}

		case err != nil:
			shard := r.shards[r.index]
			r.current.Close()
			r.current = nil
			r.fail(shard, err)
			return 0, r.err
		}
	}
}

// Close releases the currently open shard handle, if any. Safe to
// call multiple times and on any exit path, including mid-stream
// cancellation.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.current != nil {
		err := r.current.Close()
		r.current = nil
		return err
	}
	return nil
}

// BytesRead returns the total bytes delivered so far, including
// injected shard-terminating newlines. This is the exact byte count
// the estimator received on stdin.
func (r *Reader) BytesRead() int64 {
	return r.bytesRead
}

// Err returns the first I/O error encountered, or nil.
func (r *Reader) Err() error {
	return r.err
}

// FailedShard returns the path of the shard on which Err occurred,
// or "" if no error has occurred.
func (r *Reader) FailedShard() string {
	return r.failedShard
}

func (r *Reader) fail(shard string, err error) {
	r.err = err
	r.failedShard = shard
}
