// Copyright (C) 2024 The Patas Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package experiment

import (
	"fmt"
	"io"

	"github.com/robfig/cron/v3"

	"github.com/diegofps/patas/internal/task"
)

// ErrCDeepSOUnimplemented is returned by Cdeepso.OnStart. The source
// declares this strategy (population-based search with a fitness
// regex) but ships no scheduling algorithm; per spec.md §9 this
// implementation does not guess one.
var ErrCDeepSOUnimplemented = fmt.Errorf("cdeepso experiment strategy is not implemented")

// Cdeepso is the stub for the population-based search strategy referenced
// in spec.md §1/§9. Its OnStart always fails with
// ErrCDeepSOUnimplemented; the scheduler treats that as a startup
// config error and aborts before any task runs.
type Cdeepso struct {
	ExperimentName string
	// Every is the optional recurrence expression accepted on the CLI
	// surface (--every) and validated here for forward-compatibility,
	// even though nothing currently acts on it.
	Every string
}

// NewCdeepso validates every (if non-empty) as a standard cron
// expression and returns a Cdeepso strategy carrying it.
func NewCdeepso(name, every string) (*Cdeepso, error) {
	if every != "" {
		if _, err := cron.ParseStandard(every); err != nil {
			return nil, fmt.Errorf("invalid --every expression %q: %w", every, err)
		}
	}
	return &Cdeepso{ExperimentName: name, Every: every}, nil
}

func (c *Cdeepso) Name() string          { return c.ExperimentName }
func (c *Cdeepso) NumberOfTasks() int    { return 0 }
func (c *Cdeepso) ShowSummary(w io.Writer) {
	fmt.Fprintf(w, "experiment %q: cdeepso strategy is not implemented\n", c.ExperimentName)
}

func (c *Cdeepso) CheckSignature(string) (bool, error) { return true, nil }
func (c *Cdeepso) WriteInfo(string) error              { return nil }
func (c *Cdeepso) CleanOutput(string) error            { return nil }

// OnStart always aborts: see ErrCDeepSOUnimplemented.
func (c *Cdeepso) OnStart(TaskSink) error {
	return fmt.Errorf("%w: experiment %q", ErrCDeepSOUnimplemented, c.ExperimentName)
}

func (c *Cdeepso) OnTaskCompleted(Scheduler, *task.Task) error { return nil }
func (c *Cdeepso) OnFinish() error                             { return nil }
