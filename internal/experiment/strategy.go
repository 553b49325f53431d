// Copyright (C) 2024 The Patas Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package experiment implements the task-generation strategies the
// scheduler drives: grid (Cartesian-product) experiments, and the
// intentionally-unimplemented cdeepso variant.
package experiment

import (
	"io"

	"github.com/diegofps/patas/internal/task"
)

// TaskSink is the subset of Scheduler an experiment's OnStart uses to
// place newly generated tasks into the todo/done/filtered queues.
type TaskSink interface {
	Enqueue(t *task.Task, filtered bool)
}

// Scheduler is the subset of the scheduler an experiment's
// OnTaskCompleted hook is given. It is currently a marker: the grid
// strategy's own result-tree write is all that's needed, but the
// interface keeps the door open for strategies (like a future cdeepso)
// that need to ask the scheduler something about the run in progress.
type Scheduler interface{}

// Strategy is the polymorphic surface the scheduler drives every
// experiment variant through, per spec.md §9's design note.
type Strategy interface {
	Name() string
	NumberOfTasks() int
	ShowSummary(w io.Writer)
	CheckSignature(outputFolder string) (bool, error)
	WriteInfo(outputFolder string) error
	CleanOutput(outputFolder string) error
	OnStart(sink TaskSink) error
	OnTaskCompleted(sched Scheduler, t *task.Task) error
	OnFinish() error
}
