// Copyright (C) 2024 The Patas Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/diegofps/patas/internal/logger"
	"github.com/diegofps/patas/internal/worker"
)

// newWorkerCommand builds the hidden subprocess entrypoint the
// scheduler re-execs itself into via worker.Spawn. It is never invoked
// directly by an operator.
func newWorkerCommand() *cobra.Command {
	return &cobra.Command{
		Use:    worker.ReexecArg,
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			boot, err := worker.LoadBootConfig()
			if err != nil {
				return err
			}
			log := logger.New(logger.Config{Quiet: boot.Quiet})
			return worker.Run(cmd.Context(), boot, os.Stdin, os.Stdout, log)
		},
	}
}
