// Copyright (C) 2024 The Patas Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package executor runs a task's shell commands against a target: either
// the local machine, or a persistent interactive session on a remote
// node reached over SSH.
package executor

import "context"

// Executor runs a combined initrc+command script and reports its
// outcome. Implementations differ only in where the script runs.
type Executor interface {
	// Execute runs initrc followed by commands as one shell script and
	// blocks until it terminates (or ctx is canceled). ok reports
	// whether the script's exit status was 0.
	Execute(ctx context.Context, initrc, commands []string) (ok bool, stdout []byte, exitStatus string)
	// IsAlive reports whether this executor's underlying session is
	// still usable for another Execute call.
	IsAlive() bool
}
