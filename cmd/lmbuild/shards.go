// Copyright 2026 The Coh-Metrix-Dementia Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/p-h-c-s/coh-metrix-dementia/lib/cli"
	"github.com/p-h-c-s/coh-metrix-dementia/lib/config"
	"github.com/p-h-c-s/coh-metrix-dementia/lib/corpus"
	"github.com/p-h-c-s/coh-metrix-dementia/lib/pipeline"
)

type shardsParams struct {
	Config    string `flag:"config" desc:"path to YAML config file (default: $LMBUILD_CONFIG)"`
	CorpusDir string `flag:"corpus-dir" desc:"directory scanned for corpus shards"`
	Pattern   string `flag:"pattern" desc:"shard filename glob within the corpus directory"`
	JSON      bool   `flag:"json" desc:"emit machine-readable JSON"`
}

// shardInfo is the JSON shape for one discovered shard.
type shardInfo struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

func newShardsCommand() *cli.Command {
	var params shardsParams
	var flagSet *pflag.FlagSet

	return &cli.Command{
		Name:    "shards",
		Summary: "List the corpus shards a build would consume.",
		Description: "Shards lists the discovered corpus files in the order they would be\n" +
			"streamed to the estimator, with per-shard and total sizes. Use it to\n" +
			"check the corpus before committing to a long build.",
		Usage: "lmbuild shards --corpus-dir DIR [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet = cli.FlagsFromParams("shards", &params)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("shards takes no positional arguments, got %q", args)
			}
			return runShards(flagSet, &params)
		},
	}
}

func runShards(flagSet *pflag.FlagSet, params *shardsParams) error {
	var cfg *config.Config
	var err error
	if params.Config != "" {
		cfg, err = config.LoadFile(params.Config)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	cfg.ApplyEnvironment()

	if flagSet.Changed("corpus-dir") {
		cfg.CorpusDir = params.CorpusDir
	}
	if flagSet.Changed("pattern") {
		cfg.Pattern = params.Pattern
	}
	if cfg.CorpusDir == "" {
		return fmt.Errorf("corpus_dir is required")
	}

	shards, err := corpus.Discover(cfg.CorpusDir, cfg.Pattern)
	if err != nil {
		return err
	}
	if len(shards) == 0 {
		return &pipeline.NoShardsError{Dir: cfg.CorpusDir, Pattern: cfg.Pattern}
	}

	infos := make([]shardInfo, 0, len(shards))
	var total int64
	for _, shard := range shards {
		fileInfo, err := os.Stat(shard)
		if err != nil {
			return fmt.Errorf("stat %s: %w", shard, err)
		}
		infos = append(infos, shardInfo{Path: shard, Size: fileInfo.Size()})
		total += fileInfo.Size()
	}

	if params.JSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(infos)
	}

	tw := tabwriter.NewWriter(os.Stdout, 2, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "SHARD\tSIZE\n")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%d\n", info.Path, info.Size)
	}
	fmt.Fprintf(tw, "total (%d shards)\t%d\n", len(infos), total)
	return tw.Flush()
}
