// Copyright (C) 2024 The Patas Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/diegofps/patas/internal/config"
	"github.com/diegofps/patas/internal/experiment"
	"github.com/diegofps/patas/internal/logger"
	"github.com/diegofps/patas/internal/scheduler"
)

// exploreFlags mirrors the CLI surface in spec.md §6, kept as one flat
// struct since flag parsing here is intentionally thin: it only
// assembles scheduler.Options and calls into internal/scheduler.
type exploreFlags struct {
	clusterFile    string
	experimentFile string
	nodeSpecs      []string
	listVars       []string
	arithVars      []string
	geomVars       []string
	repeat         int
	maxTries       int
	workdir        string
	cmd            string
	filterTasks    []string
	filterNodes    []string
	name           string
	redo           bool
	assumeYes      bool
	quiet          bool
	output         string
	strategyType   string
	every          string
}

func newExploreCommand() *cobra.Command {
	f := &exploreFlags{}

	c := &cobra.Command{
		Use:   "explore",
		Short: "Run one or more grid experiments across a cluster",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplore(cmd.Context(), f)
		},
	}

	fl := c.Flags()
	fl.StringVar(&f.clusterFile, "cluster", "", "cluster YAML file")
	fl.StringVar(&f.experimentFile, "experiment", "", "experiment YAML file")
	fl.StringArrayVar(&f.nodeSpecs, "node", nil, "NAME USER@HOST:PORT WORKERS TAG... (repeatable)")
	fl.StringArrayVar(&f.listVars, "vl", nil, "NAME V1 V2... list variable (repeatable)")
	fl.StringArrayVar(&f.arithVars, "va", nil, "NAME MIN MAX STEP arithmetic variable (repeatable)")
	fl.StringArrayVar(&f.geomVars, "vg", nil, "NAME MIN MAX FACTOR geometric variable (repeatable)")
	fl.IntVar(&f.repeat, "repeat", 1, "repetitions per combination")
	fl.IntVar(&f.maxTries, "max-tries", 3, "maximum attempts per task")
	fl.StringVar(&f.workdir, "workdir", "", "working directory for commands")
	fl.StringVar(&f.cmd, "cmd", "", "command template")
	fl.StringArrayVar(&f.filterTasks, "filter-tasks", nil, "[EXPNAME:]A:B task id range (repeatable)")
	fl.StringArrayVar(&f.filterNodes, "filter-nodes", nil, "TAG... node filter (repeatable)")
	fl.StringVar(&f.name, "name", "experiment", "experiment name")
	fl.BoolVar(&f.redo, "redo", false, "re-run tasks even if already terminal")
	fl.BoolVarP(&f.assumeYes, "yes", "y", false, "skip interactive confirmation")
	fl.BoolVarP(&f.quiet, "quiet", "q", false, "suppress per-tick status output")
	fl.StringVarP(&f.output, "output", "o", "output", "output folder")
	fl.StringVar(&f.strategyType, "type", "grid", "experiment strategy: grid|cdeepso")
	fl.StringVar(&f.every, "every", "", "cdeepso: recurrence expression (validated, not acted on)")

	return c
}

func runExplore(ctx context.Context, f *exploreFlags) error {
	log := logger.New(logger.Config{Quiet: f.quiet, Color: true})

	cluster, err := buildCluster(f)
	if err != nil {
		return err
	}

	def, err := buildExperiment(f)
	if err != nil {
		return err
	}

	strategy, err := buildStrategy(f, *def)
	if err != nil {
		return err
	}

	nodeFilters, err := parseNodeFilters(f.filterNodes)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(scheduler.Options{
		Cluster:      *cluster,
		Experiments:  []experiment.Strategy{strategy},
		OutputFolder: f.output,
		NodeFilters:  nodeFilters,
		AssumeYes:    f.assumeYes,
		Quiet:        f.quiet,
		UnitCost:     time.Second,
		Log:          log,
	})

	if err := sched.Run(ctx); err != nil {
		return fmt.Errorf("run interrupted: %w", err)
	}
	return nil
}

// buildCluster assembles a config.Cluster either from --cluster FILE or
// from one or more --node specs, per spec.md §6's node address format
// "[user@]host[:port]".
func buildCluster(f *exploreFlags) (*config.Cluster, error) {
	if f.clusterFile != "" {
		return config.LoadCluster(f.clusterFile)
	}

	cluster := &config.Cluster{Name: "default"}
	for _, spec := range f.nodeSpecs {
		node, err := parseNodeSpec(spec)
		if err != nil {
			return nil, err
		}
		cluster.Nodes = append(cluster.Nodes, node)
	}
	if len(cluster.Nodes) == 0 {
		cluster.Nodes = []config.Node{{Hostname: "localhost"}}
	}
	cluster.Normalize()
	return cluster, nil
}

// parseNodeSpec parses "NAME USER@HOST:PORT WORKERS TAG...".
func parseNodeSpec(spec string) (config.Node, error) {
	fields := strings.Fields(spec)
	if len(fields) < 2 {
		return config.Node{}, fmt.Errorf("invalid --node %q: expected NAME USER@HOST:PORT [WORKERS] [TAG...]", spec)
	}

	node := config.Node{Name: fields[0]}
	user, host, port, err := parseAddress(fields[1])
	if err != nil {
		return config.Node{}, fmt.Errorf("invalid --node %q: %w", spec, err)
	}
	node.User = user
	node.Hostname = host
	node.Port = port

	if len(fields) >= 3 {
		workers, err := strconv.Atoi(fields[2])
		if err != nil {
			return config.Node{}, fmt.Errorf("invalid --node %q: workers must be an integer", spec)
		}
		node.Workers = workers
	}
	if len(fields) > 3 {
		node.Tags = fields[3:]
	}
	return node, nil
}

// parseAddress parses "[user@]host[:port]".
func parseAddress(addr string) (user, host string, port int, err error) {
	if at := strings.Index(addr, "@"); at >= 0 {
		user = addr[:at]
		addr = addr[at+1:]
	}
	host = addr
	port = 22
	if colon := strings.LastIndex(addr, ":"); colon >= 0 {
		host = addr[:colon]
		port, err = strconv.Atoi(addr[colon+1:])
		if err != nil {
			return "", "", 0, fmt.Errorf("invalid port in %q", addr)
		}
	}
	return user, host, port, nil
}

// buildExperiment assembles a config.Experiment either from --experiment
// FILE or from the --cmd/--vl/--va/--vg/--repeat/--max-tries/--workdir/
// --filter-tasks flags.
func buildExperiment(f *exploreFlags) (*config.Experiment, error) {
	if f.experimentFile != "" {
		return config.LoadExperiment(f.experimentFile)
	}

	def := &config.Experiment{
		Name:     f.name,
		Workdir:  f.workdir,
		Repeat:   f.repeat,
		MaxTries: f.maxTries,
	}
	if f.cmd != "" {
		def.Cmd = []string{f.cmd}
	}
	def.Normalize()

	for _, spec := range f.listVars {
		fields := strings.Fields(spec)
		if len(fields) < 2 {
			return nil, fmt.Errorf("invalid --vl %q: expected NAME V1 V2...", spec)
		}
		values := make([]any, len(fields)-1)
		for i, v := range fields[1:] {
			values[i] = v
		}
		def.Vars = append(def.Vars, &config.ListVariable{Name: fields[0], RawValues: values})
	}
	for _, spec := range f.arithVars {
		v, err := parseNumericVar(spec, "--va")
		if err != nil {
			return nil, err
		}
		def.Vars = append(def.Vars, &config.ArithmeticVariable{Name: v.name, Min: v.a, Max: v.b, Step: v.c})
	}
	for _, spec := range f.geomVars {
		v, err := parseNumericVar(spec, "--vg")
		if err != nil {
			return nil, err
		}
		def.Vars = append(def.Vars, &config.GeometricVariable{Name: v.name, Min: v.a, Max: v.b, Factor: v.c})
	}

	filters, err := parseTaskFilters(f.filterTasks, def.Name)
	if err != nil {
		return nil, err
	}
	def.TaskFilters = filters

	return def, nil
}

type numericVarSpec struct {
	name    string
	a, b, c float64
}

func parseNumericVar(spec, flag string) (numericVarSpec, error) {
	fields := strings.Fields(spec)
	if len(fields) != 4 {
		return numericVarSpec{}, fmt.Errorf("invalid %s %q: expected NAME MIN MAX STEP_OR_FACTOR", flag, spec)
	}
	values := make([]float64, 3)
	for i, raw := range fields[1:] {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return numericVarSpec{}, fmt.Errorf("invalid %s %q: %w", flag, spec, err)
		}
		values[i] = f
	}
	return numericVarSpec{name: fields[0], a: values[0], b: values[1], c: values[2]}, nil
}

// parseTaskFilters parses every --filter-tasks value and keeps only the
// ones that apply to defName (bare A:B applies to every experiment).
func parseTaskFilters(specs []string, defName string) ([]config.TaskFilter, error) {
	var filters []config.TaskFilter
	for _, spec := range specs {
		expName, filter, err := config.ParseTaskFilter(spec)
		if err != nil {
			return nil, err
		}
		if expName == "" || expName == defName {
			filters = append(filters, filter)
		}
	}
	return filters, nil
}

// parseNodeFilters turns repeated --filter-nodes TAG... invocations into
// the OR-of-AND structure Scheduler.Options.NodeFilters expects.
func parseNodeFilters(specs []string) ([][]string, error) {
	var filters [][]string
	for _, spec := range specs {
		tags := strings.Fields(spec)
		if len(tags) == 0 {
			continue
		}
		filters = append(filters, tags)
	}
	return filters, nil
}

// buildStrategy dispatches on --type per spec.md §9's design note.
func buildStrategy(f *exploreFlags, def config.Experiment) (experiment.Strategy, error) {
	switch f.strategyType {
	case "", "grid":
		return experiment.NewGrid(def, f.output), nil
	case "cdeepso":
		return experiment.NewCdeepso(def.Name, f.every)
	default:
		return nil, fmt.Errorf("unknown --type %q: expected grid or cdeepso", f.strategyType)
	}
}
