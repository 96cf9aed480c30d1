// Copyright 2026 The Coh-Metrix-Dementia Authors
// SPDX-License-Identifier: Apache-2.0

// lmbuild builds compressed n-gram language models from corpus shard
// files by streaming them through an external estimator (KenLM lmplz
// or compatible) and atomically installing the result.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/p-h-c-s/coh-metrix-dementia/lib/cli"
	"github.com/p-h-c-s/coh-metrix-dementia/lib/estimator"
	"github.com/p-h-c-s/coh-metrix-dementia/lib/pipeline"
	"github.com/p-h-c-s/coh-metrix-dementia/lib/process"
	"github.com/p-h-c-s/coh-metrix-dementia/lib/version"
)

// Exit codes. Scripts and cron wrappers branch on these, so they are
// part of the tool's contract.
const (
	exitOK        = 0
	exitUsage     = 1 // usage, config, or unexpected errors
	exitCorpus    = 2 // no shards matched, or a shard read failed
	exitEstimator = 3 // estimator failed to launch or exited non-zero
	exitCompress  = 4 // compression or staging write failure
	exitFinalize  = 5 // artifact or manifest install failure
	exitCancelled = 6 // build aborted by signal
)

func main() {
	root := &cli.Command{
		Name:    "lmbuild",
		Summary: "Build n-gram language models from corpus shards.",
		Description: "lmbuild streams corpus shard files through an external n-gram\n" +
			"estimator (KenLM lmplz or compatible), compresses the resulting\n" +
			"ARPA model, and atomically installs it at the output path.",
		Subcommands: []*cli.Command{
			newBuildCommand(),
			newShardsCommand(),
			newVerifyCommand(),
			newVersionCommand(),
		},
	}

	args := os.Args[1:]
	if len(args) > 0 && (args[0] == "--version" || args[0] == "-V") {
		fmt.Println(version.Info())
		return
	}

	if err := root.Execute(args); err != nil {
		// ExitError means the command already reported its outcome.
		var handled interface{ ExitCode() int }
		if errors.As(err, &handled) {
			os.Exit(handled.ExitCode())
		}
		process.FatalCode(err, exitCodeFor(err))
	}
}

// exitCodeFor maps pipeline failures to the documented exit codes.
// Anything unclassified is a usage or internal error.
func exitCodeFor(err error) int {
	var noShards *pipeline.NoShardsError
	var shardRead *pipeline.ShardReadError
	var launch *estimator.LaunchError
	var estimatorExit *estimator.ExitError
	var compressErr *pipeline.CompressError
	var finalize *pipeline.FinalizeError
	var cancelled *pipeline.CancelledError

	switch {
	case errors.As(err, &noShards), errors.As(err, &shardRead):
		return exitCorpus
	case errors.As(err, &launch), errors.As(err, &estimatorExit):
		return exitEstimator
	case errors.As(err, &compressErr):
		return exitCompress
	case errors.As(err, &finalize):
		return exitFinalize
	case errors.As(err, &cancelled):
		return exitCancelled
	}
	return exitUsage
}

func newVersionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information.",
		Run: func(args []string) error {
			fmt.Println(version.Full())
			return nil
		},
	}
}
