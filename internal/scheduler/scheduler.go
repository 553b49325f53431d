// Copyright (C) 2024 The Patas Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler drives a run end to end: instantiating workers,
// generating tasks via each experiment's strategy, dispatching and
// retrying them, and terminating cleanly once every task has reached a
// terminal state.
package scheduler

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/diegofps/patas/internal/config"
	"github.com/diegofps/patas/internal/experiment"
	"github.com/diegofps/patas/internal/logger"
	"github.com/diegofps/patas/internal/task"
	"github.com/diegofps/patas/internal/worker"
)

// ErrNoWorkers is a startup error: no node survived the configured
// filters, so there is nothing to run tasks on.
var ErrNoWorkers = fmt.Errorf("no workers matched the configured node filters")

// ErrSignatureDriftDeclined is a startup error: an experiment's
// on-disk signature diverged from its current configuration and the
// operator declined to wipe it.
var ErrSignatureDriftDeclined = fmt.Errorf("signature drift declined by operator")

// Options configures one scheduler Run.
type Options struct {
	Cluster      config.Cluster
	Experiments  []experiment.Strategy
	OutputFolder string
	// NodeFilters is OR-of-filters, each an AND-of-tags; empty means
	// every node is included.
	NodeFilters [][]string
	AssumeYes   bool
	Quiet       bool
	UnitCost    time.Duration
	Log         logger.Logger
	Out         io.Writer
	// Confirm asks the operator a yes/no question; overridable for
	// tests. Defaults to reading one line from os.Stdin.
	Confirm func(prompt string) bool
}

// Scheduler drives one Options-described run.
type Scheduler struct {
	opts Options
	log  logger.Logger
	out  io.Writer

	byName map[string]experiment.Strategy

	workers []*worker.Handle
	inbound chan worker.Message

	todo     []*task.Task
	doing    map[string]*task.Task
	done     []*task.Task
	givenUp  []*task.Task
	filtered []*task.Task
	idle     []string
}

// New builds a Scheduler from opts, filling in defaults for Log/Out/Confirm.
func New(opts Options) *Scheduler {
	if opts.Log == nil {
		opts.Log = logger.New(logger.Config{Quiet: opts.Quiet})
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Confirm == nil {
		opts.Confirm = defaultConfirm
	}

	byName := make(map[string]experiment.Strategy, len(opts.Experiments))
	for _, e := range opts.Experiments {
		byName[e.Name()] = e
	}

	return &Scheduler{
		opts:   opts,
		log:    opts.Log,
		out:    opts.Out,
		byName: byName,
		doing:  make(map[string]*task.Task),
	}
}

func defaultConfirm(prompt string) bool {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "" || line == "y" || line == "yes"
}

// Enqueue implements experiment.TaskSink: each experiment's OnStart
// calls this once per generated task, routing it into filtered, done
// (already terminal from a prior run), or todo.
func (s *Scheduler) Enqueue(t *task.Task, filtered bool) {
	switch {
	case filtered:
		s.filtered = append(s.filtered, t)
	case t.IsTerminal():
		s.done = append(s.done, t)
	default:
		s.todo = append(s.todo, t)
	}
}

// Run executes the full 8-step algorithm described in spec.md §4.F.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := os.MkdirAll(s.opts.OutputFolder, 0o755); err != nil {
		return fmt.Errorf("creating output folder: %w", err)
	}

	if err := s.showSummariesAndConfirmDrift(); err != nil {
		return err
	}

	for _, e := range s.opts.Experiments {
		if err := e.WriteInfo(s.opts.OutputFolder); err != nil {
			return fmt.Errorf("writing info for %q: %w", e.Name(), err)
		}
	}

	if err := s.startWorkers(); err != nil {
		return err
	}
	defer s.drainWorkers()

	for _, e := range s.opts.Experiments {
		if err := e.OnStart(s); err != nil {
			s.terminateAndDrain()
			return fmt.Errorf("starting experiment %q: %w", e.Name(), err)
		}
	}

	if err := s.dispatchLoop(ctx); err != nil {
		return err
	}

	for _, e := range s.opts.Experiments {
		if err := e.OnFinish(); err != nil {
			s.log.Errorf("experiment %q: OnFinish: %v", e.Name(), err)
		}
	}

	s.terminateAndDrain()
	s.printSummary()
	return nil
}

func (s *Scheduler) showSummariesAndConfirmDrift() error {
	var drifted []experiment.Strategy

	for _, e := range s.opts.Experiments {
		e.ShowSummary(s.out)
		eta := EstimateCompletion(e.NumberOfTasks(), s.opts.Cluster.NumberOfWorkers(), s.opts.UnitCost)
		fmt.Fprintf(s.out, "  estimated completion: %s\n", eta)

		matches, err := e.CheckSignature(s.opts.OutputFolder)
		if err != nil {
			return fmt.Errorf("checking signature for %q: %w", e.Name(), err)
		}
		if !matches {
			drifted = append(drifted, e)
		}
	}

	if len(drifted) == 0 {
		return nil
	}

	if !s.opts.AssumeYes {
		names := make([]string, len(drifted))
		for i, e := range drifted {
			names[i] = e.Name()
		}
		prompt := fmt.Sprintf("Configuration changed for %s; prior results will be deleted. Do you want to continue? [Y/n] ", strings.Join(names, ", "))
		if !s.opts.Confirm(prompt) {
			return ErrSignatureDriftDeclined
		}
	}

	for _, e := range drifted {
		if err := e.CleanOutput(s.opts.OutputFolder); err != nil {
			return fmt.Errorf("wiping stale output for %q: %w", e.Name(), err)
		}
	}
	return nil
}

// startWorkers walks cluster x nodes x node.workers, applying node
// filters, and spawns one worker subprocess per slot.
func (s *Scheduler) startWorkers() error {
	s.inbound = make(chan worker.Message, 64)

	workerInLab := 0
	for nodeInCluster, node := range s.opts.Cluster.Nodes {
		if !nodeIncluded(node, s.opts.NodeFilters) {
			continue
		}
		for workerInNode := 0; workerInNode < node.Workers; workerInNode++ {
			boot := worker.BootConfig{
				WorkerInLab:     workerInLab,
				WorkerInCluster: workerInLab,
				WorkerInNode:    workerInNode,
				NodeInLab:       nodeInCluster,
				NodeInCluster:   nodeInCluster,
				ClusterInLab:    0,
				ClusterName:     s.opts.Cluster.Name,
				Node:            node,
				Quiet:           s.opts.Quiet,
			}

			h, err := worker.Spawn(boot)
			if err != nil {
				return fmt.Errorf("spawning worker on node %q: %w", node.Name, err)
			}
			s.workers = append(s.workers, h)
			go h.Pump(s.inbound, s.log)
			workerInLab++
		}
	}

	if len(s.workers) == 0 {
		return ErrNoWorkers
	}
	return nil
}

// nodeIncluded reports whether node survives filters: AND-of-tags
// within one filter, OR across filters; an empty filter list includes
// every node.
func nodeIncluded(node config.Node, filters [][]string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if node.HasAllTags(f) {
			return true
		}
	}
	return false
}

// dispatchLoop is the scheduler's single event loop, consuming ready
// and finished events until both todo and doing are empty.
func (s *Scheduler) dispatchLoop(ctx context.Context) error {
	for len(s.todo) > 0 || len(s.doing) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-s.inbound:
			switch msg.Kind {
			case worker.KindReady:
				s.onReady(msg.WorkerID)
			case worker.KindFinished:
				if err := s.onFinished(msg.WorkerID, msg.Task); err != nil {
					s.log.Errorf("%v", err)
				}
			}
		}
		s.emitTick()
	}
	return nil
}

func (s *Scheduler) onReady(w string) {
	if len(s.todo) == 0 {
		s.idle = append(s.idle, w)
		return
	}
	t := s.popTodo()
	t.AssignedTo = w
	s.doing[w] = t
	s.send(w, worker.Message{Kind: worker.KindExecute, Task: t})
}

func (s *Scheduler) onFinished(w string, t *task.Task) error {
	if _, ok := s.doing[w]; !ok {
		return fmt.Errorf("finished event from %s with no matching doing entry (task %d)", w, t.TaskID)
	}
	delete(s.doing, w)

	strategyName := t.ExperimentName
	e, known := s.byName[strategyName]

	switch {
	case t.Success:
		s.done = append(s.done, t)
		if known {
			if err := e.OnTaskCompleted(s, t); err != nil {
				s.log.Errorf("experiment %q: OnTaskCompleted: %v", strategyName, err)
			}
		}

	case t.GivenUp:
		s.givenUp = append(s.givenUp, t)
		if known {
			if err := e.OnTaskCompleted(s, t); err != nil {
				s.log.Errorf("experiment %q: OnTaskCompleted: %v", strategyName, err)
			}
		}
		s.log.Errorf("task %d (experiment %q) given up after %d tries", t.TaskID, strategyName, t.Tries)

	case len(s.idle) > 0:
		w2 := s.idle[len(s.idle)-1]
		s.idle = s.idle[:len(s.idle)-1]
		t.AssignedTo = w2
		s.doing[w2] = t
		s.send(w2, worker.Message{Kind: worker.KindExecute, Task: t})

	default:
		s.todo = append(s.todo, t)
	}
	return nil
}

// popTodo pops the most recently enqueued task (LIFO), matching
// scheduler.py's list.pop() semantics.
func (s *Scheduler) popTodo() *task.Task {
	n := len(s.todo)
	t := s.todo[n-1]
	s.todo = s.todo[:n-1]
	return t
}

func (s *Scheduler) send(workerID string, msg worker.Message) {
	for _, h := range s.workers {
		if h.ID == workerID {
			if err := h.Send(msg); err != nil {
				s.log.Errorf("sending to worker %s: %v", workerID, err)
			}
			return
		}
	}
}

func (s *Scheduler) emitTick() {
	if s.opts.Quiet {
		return
	}
	t := tick{
		At:       time.Now(),
		Todo:     len(s.todo),
		Doing:    len(s.doing),
		Done:     len(s.done),
		GivenUp:  len(s.givenUp),
		Filtered: len(s.filtered),
	}
	fmt.Fprintln(s.out, t.String())
}

func (s *Scheduler) terminateAndDrain() {
	for _, h := range s.workers {
		s.send(h.ID, worker.Message{Kind: worker.KindTerminate})
	}

	ended := 0
	for ended < len(s.workers) {
		msg := <-s.inbound
		if msg.Kind == worker.KindEnded {
			ended++
		}
	}
}

func (s *Scheduler) drainWorkers() {
	for _, h := range s.workers {
		h.Wait()
	}
}

func (s *Scheduler) printSummary() {
	fmt.Fprintf(s.out, "done=%d given_up=%d filtered=%d\n", len(s.done), len(s.givenUp), len(s.filtered))
}
