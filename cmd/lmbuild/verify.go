// Copyright 2026 The Coh-Metrix-Dementia Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/p-h-c-s/coh-metrix-dementia/lib/cli"
	"github.com/p-h-c-s/coh-metrix-dementia/lib/pipeline"
)

type verifyParams struct {
	Manifest string `flag:"manifest" desc:"manifest path (default: <artifact>.manifest)"`
}

func newVerifyCommand() *cli.Command {
	var params verifyParams
	var flagSet *pflag.FlagSet

	return &cli.Command{
		Name:    "verify",
		Summary: "Check an installed artifact against its build manifest.",
		Description: "Verify recomputes the artifact's size and digest and compares them\n" +
			"against the manifest written at build time. Exit code 1 signals a\n" +
			"mismatch or a missing artifact.",
		Usage: "lmbuild verify ARTIFACT [flags]",
		Examples: []cli.Example{
			{
				Description: "Verify an installed model",
				Command:     "lmbuild verify /models/model.bin.gz",
			},
		},
		Flags: func() *pflag.FlagSet {
			flagSet = cli.FlagsFromParams("verify", &params)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("verify takes exactly one artifact path, got %d arguments", len(args))
			}
			return runVerify(args[0], &params)
		},
	}
}

func runVerify(artifactPath string, params *verifyParams) error {
	manifestPath := params.Manifest
	if manifestPath == "" {
		manifestPath = pipeline.ManifestPath(artifactPath)
	}

	manifest, err := pipeline.ReadManifest(manifestPath)
	if err != nil {
		return err
	}

	if err := manifest.Verify(artifactPath); err != nil {
		fmt.Fprintf(os.Stderr, "FAIL: %v\n", err)
		return &cli.ExitError{Code: 1}
	}

	fmt.Printf("OK: %s matches manifest (%d bytes, built %s by %s)\n",
		artifactPath, manifest.ArtifactSize,
		manifest.CreatedAt.Format("2006-01-02 15:04:05 MST"),
		manifest.ToolVersion)
	return nil
}
