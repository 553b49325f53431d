// Copyright (C) 2024 The Patas Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package cmd wires the cobra CLI surface onto internal/scheduler. It
// is a thin assembler: parse flags, build config.Cluster/config.Experiment
// values, and hand off to internal/scheduler.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/diegofps/patas/internal/build"
)

// NewRoot builds the top-level "patas" command with all subcommands wired.
func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:     build.AppName,
		Short:   "Distributed grid-experiment execution engine",
		Version: build.Version,
		SilenceUsage: true,
	}

	root.AddCommand(newExploreCommand())
	root.AddCommand(newWorkerCommand())
	return root
}

// Execute runs the root command and exits the process with a non-zero
// status on any configuration, startup, or run error, per spec.md §6's
// exit code contract.
func Execute() {
	if err := NewRoot().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
