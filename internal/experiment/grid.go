// Copyright (C) 2024 The Patas Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package experiment

import (
	"fmt"
	"io"
	"strings"

	"github.com/diegofps/patas/internal/config"
	"github.com/diegofps/patas/internal/resulttree"
	"github.com/diegofps/patas/internal/signature"
	"github.com/diegofps/patas/internal/task"
)

// ErrUnknownPlaceholder is a config error: a command template references
// a variable name that doesn't exist in the experiment.
var ErrUnknownPlaceholder = fmt.Errorf("unknown command placeholder")

// Grid implements Strategy for a grid (Cartesian-product) experiment:
// every combination of its variables' values, repeated Repeat times.
type Grid struct {
	Def        config.Experiment
	OutputRoot string

	signature string
}

// NewGrid builds a Grid strategy over an already-loaded experiment
// definition, to be run under outputRoot.
func NewGrid(def config.Experiment, outputRoot string) *Grid {
	return &Grid{Def: def, OutputRoot: outputRoot}
}

// Name implements Strategy.
func (g *Grid) Name() string { return g.Def.Name }

// NumberOfTasks implements Strategy.
func (g *Grid) NumberOfTasks() int { return g.Def.NumberOfTasks() }

// ShowSummary prints a one-line description of the experiment and its
// task count, mirroring grid_exec.py's startup banner.
func (g *Grid) ShowSummary(w io.Writer) {
	fmt.Fprintf(w, "experiment %q: %d combinations x %d repeat = %d tasks\n",
		g.Def.Name, g.Def.NumberOfCombinations(), g.Def.Repeat, g.Def.NumberOfTasks())
}

// CheckSignature computes this experiment's current signature and
// compares it against any previously recorded one under outputFolder.
// It returns true when they match or no prior info.yml exists.
func (g *Grid) CheckSignature(outputFolder string) (bool, error) {
	sig, err := g.computeSignature()
	if err != nil {
		return false, err
	}
	g.signature = sig

	prior, err := resulttree.ReadExperimentInfo(outputFolder, g.Def.Name)
	if err != nil {
		return false, err
	}
	if prior == nil {
		return true, nil
	}
	return prior.Signature == sig, nil
}

func (g *Grid) computeSignature() (string, error) {
	return signature.Compute(g.Def.Cmd, g.Def.Workdir, g.Def.Repeat, g.Def.Vars)
}

// WriteInfo writes this experiment's fresh info.yml.
func (g *Grid) WriteInfo(outputFolder string) error {
	if g.signature == "" {
		sig, err := g.computeSignature()
		if err != nil {
			return err
		}
		g.signature = sig
	}
	return resulttree.WriteExperimentInfo(outputFolder, g.Def.Name, resulttree.ExperimentInfo{
		Name:      g.Def.Name,
		Signature: g.signature,
		Workdir:   g.Def.Workdir,
		Repeat:    g.Def.Repeat,
		MaxTries:  g.Def.MaxTries,
	})
}

// CleanOutput wipes this experiment's entire output subtree, called
// only after a signature mismatch has been confirmed.
func (g *Grid) CleanOutput(outputFolder string) error {
	return resulttree.CleanExperimentSubtree(outputFolder, g.Def.Name)
}

// OnStart generates every (combination, repeat) task and routes each
// into sink as todo or done (filtered tasks are reported via sink too;
// see Enqueue's filtered argument).
func (g *Grid) OnStart(sink TaskSink) error {
	combos, err := g.combinations()
	if err != nil {
		return err
	}

	taskID := 0
	for combIdx, combo := range combos {
		for repeatIdx := 0; repeatIdx < g.Def.Repeat; repeatIdx++ {
			commands, err := substitute(g.Def.Cmd, combo)
			if err != nil {
				return err
			}

			t := task.New(g.Def.Name, combIdx, repeatIdx, taskID, commands, g.Def.Workdir, g.Def.MaxTries, combo)

			if !g.included(taskID) {
				sink.Enqueue(t, true)
				taskID++
				continue
			}

			success, failure := resulttree.HasTerminalMarker(g.OutputRoot, g.Def.Name, taskID)
			if (success || failure) && !g.Def.RedoTasks {
				t.Success = success
				t.GivenUp = failure
				t.Tries = g.Def.MaxTries
			}

			sink.Enqueue(t, false)
			taskID++
		}
	}
	return nil
}

// included reports whether taskID survives this experiment's task
// filters (empty filter list means every task is included).
func (g *Grid) included(taskID int) bool {
	if len(g.Def.TaskFilters) == 0 {
		return true
	}
	for _, f := range g.Def.TaskFilters {
		if f.Contains(taskID) {
			return true
		}
	}
	return false
}

// combinations enumerates the Cartesian product of g.Def.Vars in
// declaration order, with the rightmost (last) variable varying
// fastest, per spec.md §4.E.
func (g *Grid) combinations() ([]map[string]string, error) {
	vars := g.Def.Vars
	n := len(vars)
	if n == 0 {
		return []map[string]string{{}}, nil
	}

	values := make([][]string, n)
	for i, v := range vars {
		values[i] = v.Values()
	}

	total := g.Def.NumberOfCombinations()
	combos := make([]map[string]string, total)

	divisors := make([]int, n)
	divisors[n-1] = 1
	for i := n - 2; i >= 0; i-- {
		divisors[i] = divisors[i+1] * len(values[i+1])
	}

	for c := 0; c < total; c++ {
		combo := make(map[string]string, n)
		for i, v := range vars {
			size := len(values[i])
			digit := (c / divisors[i]) % size
			combo[v.VarName()] = values[i][digit]
		}
		combos[c] = combo
	}
	return combos, nil
}

// substitute replaces every {name} placeholder in each template with
// combo's corresponding value. An unresolved placeholder is a config
// error, per spec.md §4.E.
func substitute(templates []string, combo map[string]string) ([]string, error) {
	out := make([]string, len(templates))
	for i, tmpl := range templates {
		resolved, err := substituteOne(tmpl, combo)
		if err != nil {
			return nil, err
		}
		out[i] = resolved
	}
	return out, nil
}

func substituteOne(tmpl string, combo map[string]string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(tmpl); {
		if tmpl[i] != '{' {
			b.WriteByte(tmpl[i])
			i++
			continue
		}
		end := strings.IndexByte(tmpl[i:], '}')
		if end < 0 {
			b.WriteByte(tmpl[i])
			i++
			continue
		}
		name := tmpl[i+1 : i+end]
		value, ok := combo[name]
		if !ok {
			return "", fmt.Errorf("%w: {%s} in %q", ErrUnknownPlaceholder, name, tmpl)
		}
		b.WriteString(value)
		i += end + 1
	}
	return b.String(), nil
}

// OnTaskCompleted writes the task's terminal state to the result tree.
func (g *Grid) OnTaskCompleted(_ Scheduler, t *task.Task) error {
	return resulttree.WriteTaskResult(g.OutputRoot, t)
}

// OnFinish is a no-op for grid experiments: every task's terminal state
// was already written incrementally by OnTaskCompleted.
func (g *Grid) OnFinish() error { return nil }
