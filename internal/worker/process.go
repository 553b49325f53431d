// Copyright (C) 2024 The Patas Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package worker

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/diegofps/patas/internal/backoff"
	"github.com/diegofps/patas/internal/executor"
	"github.com/diegofps/patas/internal/logger"
	"github.com/diegofps/patas/internal/task"
)

// sshPTYFallbackInterval and sshPTYFallbackMaxRetries bound the reconnect
// spacing used when a node's native SSH dial fails and execution falls
// back to the pty-driven shell (spec.md §9).
const (
	sshPTYFallbackInterval   = 2 * time.Second
	sshPTYFallbackMaxRetries = 5
)

// ID derives this worker's global identity string from its boot config,
// used as the WorkerID on every Message it emits.
func (b BootConfig) ID() string {
	return fmt.Sprintf("w%d", b.WorkerInLab)
}

// Run is the worker subprocess's main loop: build an executor for the
// node, announce readiness, then alternate between waiting for a
// command and executing it. It returns when it receives KindTerminate
// or the pipe is closed. This is the body invoked by the hidden
// "__worker__" subcommand in cmd/.
func Run(ctx context.Context, boot BootConfig, in io.Reader, out io.Writer, log logger.Logger) error {
	dec := NewDecoder(in)
	enc := NewEncoder(out)

	exec, err := newExecutorFor(ctx, boot)
	if err != nil {
		return fmt.Errorf("worker %s: building executor: %w", boot.ID(), err)
	}

	if err := enc.Send(Message{Kind: KindReady, WorkerID: boot.ID()}); err != nil {
		return err
	}

	for {
		msg, err := dec.Recv()
		if err != nil {
			return nil
		}

		switch msg.Kind {
		case KindTerminate:
			enc.Send(Message{Kind: KindEnded, WorkerID: boot.ID()})
			return nil

		case KindExecute:
			if !exec.IsAlive() {
				rebuilt, rebuildErr := newExecutorFor(ctx, boot)
				if rebuildErr != nil {
					log.Errorf("worker %s: rebuilding executor: %v", boot.ID(), rebuildErr)
				} else {
					exec = rebuilt
				}
			}

			attempt := runTask(ctx, exec, boot, msg.Task)
			msg.Task.RecordAttempt(attempt)

			if err := enc.Send(Message{Kind: KindFinished, WorkerID: boot.ID(), Task: msg.Task}); err != nil {
				return err
			}
			if err := enc.Send(Message{Kind: KindReady, WorkerID: boot.ID()}); err != nil {
				return err
			}
		}
	}
}

// newExecutorFor builds the executor for boot's node. Remote nodes are
// dialed through the native SSH client first; if that dial fails (for
// instance, a bastion whose login banner requires a real pty), it falls
// back to the pty-driven shell per spec.md §9, retrying the handshake on
// sshPTYFallbackInterval up to sshPTYFallbackMaxRetries times.
func newExecutorFor(ctx context.Context, boot BootConfig) (executor.Executor, error) {
	if boot.Node.IsLocal() {
		return executor.NewLocal(), nil
	}

	exec, err := executor.NewSSH(boot.Node)
	if err == nil {
		return exec, nil
	}

	policy := &backoff.ConstantPolicy{Interval: sshPTYFallbackInterval, MaxRetries: sshPTYFallbackMaxRetries}
	fallback, fallbackErr := executor.NewSSHPTYFallback(ctx, boot.Node, policy)
	if fallbackErr != nil {
		return nil, fmt.Errorf("native ssh failed (%v), pty fallback also failed: %w", err, fallbackErr)
	}
	return fallback, nil
}

// runTask builds the per-task initrc (spec.md §4.D's PATAS_* exports and
// set -e), runs it, and returns the resulting attempt record.
func runTask(ctx context.Context, exec executor.Executor, boot BootConfig, t *task.Task) task.Attempt {
	env := taskEnv(boot, t)

	initrc := []string{"set -e", fmt.Sprintf("cd %q", t.WorkDir)}
	for k, v := range env {
		initrc = append(initrc, fmt.Sprintf("export %s=%q", k, v))
	}

	start := time.Now()
	ok, stdout, status := exec.Execute(ctx, initrc, t.Commands)
	end := time.Now()

	return task.Attempt{
		Worker:     boot.ID(),
		Env:        env,
		StartedAt:  start,
		EndedAt:    end,
		Stdout:     stdout,
		ExitStatus: status,
		Success:    ok,
	}
}

// taskEnv builds the exact PATAS_* environment documented in spec.md
// §4.D, including one PATAS_VAR_<name> per variable in the task's
// combination.
func taskEnv(boot BootConfig, t *task.Task) map[string]string {
	env := map[string]string{
		"PATAS_CLUSTER_NAME":      boot.ClusterName,
		"PATAS_NODE_NAME":         boot.Node.Name,
		"PATAS_CLUSTER_IN_LAB":    strconv.Itoa(boot.ClusterInLab),
		"PATAS_NODE_IN_LAB":       strconv.Itoa(boot.NodeInLab),
		"PATAS_NODE_IN_CLUSTER":   strconv.Itoa(boot.NodeInCluster),
		"PATAS_WORKER_IN_LAB":     strconv.Itoa(boot.WorkerInLab),
		"PATAS_WORKER_IN_CLUSTER": strconv.Itoa(boot.WorkerInCluster),
		"PATAS_WORKER_IN_NODE":    strconv.Itoa(boot.WorkerInNode),
		"PATAS_WORK_DIR":          t.WorkDir,
		"PATAS_ATTEMPT":           strconv.Itoa(t.Tries + 1),
	}
	for name, value := range t.Combination {
		env["PATAS_VAR_"+name] = value
	}
	return env
}
