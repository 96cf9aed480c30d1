// Copyright 2026 The Coh-Metrix-Dementia Authors
// SPDX-License-Identifier: Apache-2.0

package corpus

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"testing"
)

func TestReaderConcatenatesInOrder(t *testing.T) {
	dir := t.TempDir()
	a := writeShard(t, dir, "a.txt", "the cat sat")
	b := writeShard(t, dir, "b.txt", "the dog ran")

	reader := NewReader([]string{a, b})
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}

	expected := "the cat sat\nthe dog ran\n"
	if string(content) != expected {
		t.Errorf("content = %q, want %q", content, expected)
	}
	if reader.BytesRead() != int64(len(expected)) {
		t.Errorf("BytesRead = %d, want %d", reader.BytesRead(), len(expected))
	}
}

func TestReaderPreservesExistingNewlines(t *testing.T) {
	dir := t.TempDir()
	a := writeShard(t, dir, "a.txt", "one\ntwo\n")
	b := writeShard(t, dir, "b.txt", "three\n")

	reader := NewReader([]string{a, b})
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(content) != "one\ntwo\nthree\n" {
		t.Errorf("content = %q", content)
	}
}

func TestReaderSkipsEmptyShards(t *testing.T) {
	dir := t.TempDir()
	a := writeShard(t, dir, "a.txt", "")
	b := writeShard(t, dir, "b.txt", "text\n")
	c := writeShard(t, dir, "c.txt", "")

	reader := NewReader([]string{a, b, c})
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(content) != "text\n" {
		t.Errorf("content = %q", content)
	}
}

func TestReaderSmallBuffer(t *testing.T) {
	// One-byte reads exercise every state transition in the reader:
	// shard opens, EOF advances, and newline injection.
	dir := t.TempDir()
	a := writeShard(t, dir, "a.txt", "ab")
	b := writeShard(t, dir, "b.txt", "cd\n")

	reader := NewReader([]string{a, b})
	defer reader.Close()

	var out strings.Builder
	buffer := make([]byte, 1)
	for {
		n, err := reader.Read(buffer)
		if n > 0 {
			out.Write(buffer[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
	}

	if out.String() != "ab\ncd\n" {
		t.Errorf("content = %q", out.String())
	}
}

func TestReaderManyShards(t *testing.T) {
	dir := t.TempDir()
	var shards []string
	var expected strings.Builder
	for i := 0; i < 200; i++ {
		line := fmt.Sprintf("sentence %03d\n", i)
		shards = append(shards, writeShard(t, dir, fmt.Sprintf("ngram_corpus_%03d.txt", i), line))
		expected.WriteString(line)
	}

	reader := NewReader(shards)
	defer reader.Close()

	content, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(content) != expected.String() {
		t.Error("200-shard concatenation mismatch")
	}
}

func TestReaderRecordsFailingShard(t *testing.T) {
	dir := t.TempDir()
	a := writeShard(t, dir, "a.txt", "ok\n")
	missing := writeShard(t, dir, "b.txt", "gone\n")
	if err := os.Remove(missing); err != nil {
		t.Fatalf("removing shard: %v", err)
	}

	reader := NewReader([]string{a, missing})
	defer reader.Close()

	_, err := io.ReadAll(reader)
	if err == nil {
		t.Fatal("expected read error for missing shard")
	}
	if reader.Err() == nil {
		t.Error("Err() should report the failure")
	}
	if reader.FailedShard() != missing {
		t.Errorf("FailedShard = %q, want %q", reader.FailedShard(), missing)
	}

	// The error is sticky.
	if _, err := reader.Read(make([]byte, 1)); err == nil {
		t.Error("expected sticky error on subsequent reads")
	}
}

func TestReaderCloseMidStream(t *testing.T) {
	dir := t.TempDir()
	a := writeShard(t, dir, "a.txt", strings.Repeat("line\n", 1000))
	b := writeShard(t, dir, "b.txt", "never read\n")

	reader := NewReader([]string{a, b})

	buffer := make([]byte, 16)
	if _, err := reader.Read(buffer); err != nil {
		t.Fatalf("Read: %v", err)
	}

	if err := reader.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := reader.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if _, err := reader.Read(buffer); !errors.Is(err, fs.ErrClosed) {
		t.Errorf("Read after Close = %v, want fs.ErrClosed", err)
	}
}
