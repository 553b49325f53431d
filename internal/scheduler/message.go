// Copyright (C) 2024 The Patas Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"fmt"
	"time"

	"github.com/fatih/color"
)

// tick is a snapshot of every queue's depth at one point in the main
// dispatch loop, printed as a single colorized status line when the
// scheduler is not running quiet — the Go equivalent of scheduler.py's
// per-event console line.
type tick struct {
	At       time.Time
	Todo     int
	Doing    int
	Done     int
	GivenUp  int
	Filtered int
}

func (t tick) String() string {
	return fmt.Sprintf(
		"[%s] %s todo=%d %s doing=%d %s done=%d %s given_up=%d %s filtered=%d",
		t.At.Format("15:04:05"),
		color.New(color.FgWhite).Sprint("▸"), t.Todo,
		color.New(color.FgBlue).Sprint("▸"), t.Doing,
		color.New(color.FgGreen).Sprint("▸"), t.Done,
		color.New(color.FgRed).Sprint("▸"), t.GivenUp,
		color.New(color.FgHiBlack).Sprint("▸"), t.Filtered,
	)
}

// EstimateCompletion returns the estimated wall-clock time to finish
// tasks tasks across workers workers, assuming every task costs
// unitCost, per grid_exec.py's estimate() helper.
func EstimateCompletion(tasks, workers int, unitCost time.Duration) time.Duration {
	if workers <= 0 {
		workers = 1
	}
	rounds := (tasks + workers - 1) / workers
	return time.Duration(rounds) * unitCost
}
