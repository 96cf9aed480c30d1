// Copyright 2026 The Coh-Metrix-Dementia Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/p-h-c-s/coh-metrix-dementia/lib/cli"
	"github.com/p-h-c-s/coh-metrix-dementia/lib/compress"
	"github.com/p-h-c-s/coh-metrix-dementia/lib/config"
	"github.com/p-h-c-s/coh-metrix-dementia/lib/pipeline"
)

type buildParams struct {
	Config      string        `flag:"config" desc:"path to YAML config file (default: $LMBUILD_CONFIG)"`
	Estimator   string        `flag:"estimator" desc:"estimator binary path or name resolved via PATH"`
	CorpusDir   string        `flag:"corpus-dir" desc:"directory scanned for corpus shards"`
	Pattern     string        `flag:"pattern" desc:"shard filename glob within the corpus directory"`
	Output      string        `flag:"output,o" desc:"destination path for the compressed model"`
	Order       int           `flag:"order,n" desc:"n-gram order"`
	Memory      int           `flag:"memory" desc:"estimator sorting memory budget, percent of system memory"`
	TmpDir      string        `flag:"tmp-dir" desc:"scratch directory for the estimator and the staging file"`
	Compression string        `flag:"compression" desc:"artifact codec: gzip, zstd, lz4, or none"`
	Timeout     time.Duration `flag:"timeout" desc:"abort the build after this long (0 means no limit)"`
	GracePeriod time.Duration `flag:"grace-period" desc:"SIGTERM-to-SIGKILL window on cancellation" default:"5s"`
	ExtraArgs   []string      `flag:"extra-arg" desc:"extra argument passed to the estimator (repeatable)"`
	NoManifest  bool          `flag:"no-manifest" desc:"skip writing the build manifest sidecar"`
	Quiet       bool          `flag:"quiet,q" desc:"suppress estimator progress output"`
	Verbose     bool          `flag:"verbose,v" desc:"enable debug logging"`
}

func newBuildCommand() *cli.Command {
	var params buildParams
	var flagSet *pflag.FlagSet

	return &cli.Command{
		Name:    "build",
		Summary: "Build a model from the corpus and install it.",
		Description: "Build discovers corpus shards, streams them through the estimator,\n" +
			"compresses the ARPA output, and atomically renames the result to the\n" +
			"output path. On failure the previous artifact, if any, is untouched.",
		Usage: "lmbuild build --corpus-dir DIR --output PATH [flags]",
		Examples: []cli.Example{
			{
				Description: "Trigram model from the default shard layout",
				Command:     "lmbuild build --corpus-dir /data/corpus --output /models/model.bin.gz",
			},
			{
				Description: "Higher order, zstd, custom estimator",
				Command:     "lmbuild build --corpus-dir /data/corpus --output /models/model.bin.zst --order 5 --compression zstd --estimator /opt/kenlm/bin/lmplz",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet = cli.FlagsFromParams("build", &params)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("build takes no positional arguments, got %q", args)
			}
			return runBuild(flagSet, &params)
		},
	}
}

func runBuild(flagSet *pflag.FlagSet, params *buildParams) error {
	cfg, err := resolveConfig(flagSet, params)
	if err != nil {
		return err
	}

	estimatorPath, err := cfg.EstimatorPath()
	if err != nil {
		return err
	}
	codec, err := compress.Parse(cfg.Compression)
	if err != nil {
		return err
	}
	gracePeriod, err := cfg.GracePeriodDuration()
	if err != nil {
		return err
	}

	logger := cli.NewLogger(params.Verbose).With("command", "build")

	var progress io.Writer
	if !params.Quiet {
		progress = os.Stderr
	}

	// SIGINT/SIGTERM cancel the build; the pipeline tears the
	// estimator down and removes the staging file before returning.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if params.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, params.Timeout)
		defer cancel()
	}

	artifact, err := pipeline.Run(ctx, pipeline.BuildConfig{
		Estimator:      estimatorPath,
		CorpusDir:      cfg.CorpusDir,
		Pattern:        cfg.Pattern,
		Output:         cfg.Output,
		Order:          cfg.Order,
		MemoryPercent:  cfg.MemoryPercent,
		TmpDir:         cfg.TmpDir,
		Codec:          codec,
		GracePeriod:    gracePeriod,
		ExtraArgs:      cfg.ExtraArgs,
		WriteManifest:  !params.NoManifest,
		ProgressWriter: progress,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	fmt.Printf("%s (%d bytes, %d shards, %s)\n",
		artifact.Path, artifact.Size, artifact.ShardCount,
		artifact.Duration.Round(time.Millisecond))
	return nil
}

// resolveConfig builds the effective configuration: defaults, then the
// config file, then LMBUILD_* environment variables, then explicitly
// set flags.
func resolveConfig(flagSet *pflag.FlagSet, params *buildParams) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if params.Config != "" {
		cfg, err = config.LoadFile(params.Config)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnvironment()

	if flagSet.Changed("estimator") {
		cfg.Estimator = params.Estimator
	}
	if flagSet.Changed("corpus-dir") {
		cfg.CorpusDir = params.CorpusDir
	}
	if flagSet.Changed("pattern") {
		cfg.Pattern = params.Pattern
	}
	if flagSet.Changed("output") {
		cfg.Output = params.Output
	}
	if flagSet.Changed("order") {
		cfg.Order = params.Order
	}
	if flagSet.Changed("memory") {
		cfg.MemoryPercent = params.Memory
	}
	if flagSet.Changed("tmp-dir") {
		cfg.TmpDir = params.TmpDir
	}
	if flagSet.Changed("compression") {
		cfg.Compression = params.Compression
	}
	if flagSet.Changed("grace-period") {
		cfg.GracePeriod = params.GracePeriod.String()
	}
	if flagSet.Changed("extra-arg") {
		cfg.ExtraArgs = params.ExtraArgs
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
