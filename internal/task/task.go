// Copyright (C) 2024 The Patas Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package task defines the unit of work dispatched by the scheduler to a
// worker: one concrete (combination, repeat) pair of a grid experiment,
// along with its retry history.
package task

import "time"

// Attempt records one execution of a Task's commands on a worker.
type Attempt struct {
	Worker     string
	Env        map[string]string
	StartedAt  time.Time
	EndedAt    time.Time
	Stdout     []byte
	ExitStatus string
	Success    bool
}

// Duration is how long the attempt ran.
func (a Attempt) Duration() time.Duration {
	return a.EndedAt.Sub(a.StartedAt)
}

// Task is one fully-resolved unit of work: repetition RepeatID of one
// combination of variable values, with its retry history.
type Task struct {
	ExperimentName string
	CombinationID  int
	RepeatID       int
	TaskID         int

	Commands []string
	WorkDir  string
	MaxTries int

	Combination map[string]string

	AssignedTo string
	Tries      int
	Success    bool
	GivenUp    bool
	Attempts   []Attempt
}

// New builds a Task in its initial, unattempted state.
func New(expName string, combinationID, repeatID, taskID int, commands []string, workdir string, maxTries int, combination map[string]string) *Task {
	return &Task{
		ExperimentName: expName,
		CombinationID:  combinationID,
		RepeatID:       repeatID,
		TaskID:         taskID,
		Commands:       commands,
		WorkDir:        workdir,
		MaxTries:       maxTries,
		Combination:    combination,
	}
}

// IsTerminal reports whether this task has reached a final state: either
// it succeeded, or it has exhausted its tries and given up.
func (t *Task) IsTerminal() bool {
	return t.Success || t.GivenUp
}

// CanRetry reports whether another attempt is permitted.
func (t *Task) CanRetry() bool {
	return !t.IsTerminal() && t.Tries < t.MaxTries
}

// RecordAttempt appends the outcome of one execution and updates the
// task's terminal state. tries is always incremented; the task becomes
// terminal either on success, or once tries reaches MaxTries (the given
// up case). A task that succeeds early keeps Tries below MaxTries.
func (t *Task) RecordAttempt(a Attempt) {
	t.Tries++
	t.Success = a.Success
	t.Attempts = append(t.Attempts, a)
	if !t.Success && t.Tries >= t.MaxTries {
		t.GivenUp = true
	}
}
