// Copyright (C) 2024 The Patas Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
	"github.com/goccy/go-yaml"
)

// ErrUnknownVariableType is returned when a vars[].type is not one of
// list/arithmetic/geometric.
var ErrUnknownVariableType = fmt.Errorf("unknown variable type")

// ErrMissingField is returned when a required top-level field is absent.
var ErrMissingField = fmt.Errorf("missing required field")

type clusterFile struct {
	Name  string `yaml:"name"`
	Nodes []Node `yaml:"nodes"`
}

// LoadCluster decodes a cluster YAML file per spec.md §6.
func LoadCluster(path string) (*Cluster, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading cluster file: %w", err)
	}

	var cf clusterFile
	if err := yaml.Unmarshal(raw, &cf); err != nil {
		return nil, fmt.Errorf("parsing cluster file: %w", err)
	}
	if cf.Nodes == nil {
		return nil, fmt.Errorf("%w: nodes", ErrMissingField)
	}

	cluster := &Cluster{Name: cf.Name, Nodes: cf.Nodes}
	cluster.Normalize()
	for i := range cluster.Nodes {
		cluster.Nodes[i].PrivateKey = expandHome(cluster.Nodes[i].PrivateKey)
	}
	return cluster, nil
}

type variableFile struct {
	Type   string `yaml:"type"`
	Name   string `yaml:"name"`
	Values []any  `yaml:"values"`
	Min    float64 `yaml:"min"`
	Max    float64 `yaml:"max"`
	Step   float64 `yaml:"step"`
	Factor float64 `yaml:"factor"`
}

type experimentFile struct {
	Name      string         `yaml:"name"`
	Workdir   string         `yaml:"workdir"`
	CmdRaw    any            `yaml:"cmd"`
	Repeat    int            `yaml:"repeat"`
	MaxTries  int            `yaml:"max_tries"`
	RedoTasks bool           `yaml:"redo_tasks"`
	Vars      []variableFile `yaml:"vars"`
}

// LoadExperiment decodes an experiment YAML file per spec.md §6.
func LoadExperiment(path string) (*Experiment, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading experiment file: %w", err)
	}

	var ef experimentFile
	if err := yaml.Unmarshal(raw, &ef); err != nil {
		return nil, fmt.Errorf("parsing experiment file: %w", err)
	}
	if ef.Name == "" {
		return nil, fmt.Errorf("%w: name", ErrMissingField)
	}
	if ef.CmdRaw == nil {
		return nil, fmt.Errorf("%w: cmd", ErrMissingField)
	}

	cmds, err := normalizeCmd(ef.CmdRaw)
	if err != nil {
		return nil, err
	}

	vars := make([]Variable, 0, len(ef.Vars))
	for _, vf := range ef.Vars {
		v, err := buildVariable(vf)
		if err != nil {
			return nil, err
		}
		vars = append(vars, v)
	}

	exp := &Experiment{
		Name:      ef.Name,
		Workdir:   expandHome(ef.Workdir),
		Cmd:       cmds,
		Repeat:    ef.Repeat,
		MaxTries:  ef.MaxTries,
		RedoTasks: ef.RedoTasks,
		Vars:      vars,
	}
	exp.Normalize()
	if exp.Workdir == "" {
		if wd, err := os.Getwd(); err == nil {
			exp.Workdir = wd
		}
	}
	return exp, nil
}

func normalizeCmd(raw any) ([]string, error) {
	switch v := raw.(type) {
	case string:
		return []string{v}, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: cmd entries must be strings", ErrMissingField)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: cmd must be a string or list of strings", ErrMissingField)
	}
}

func buildVariable(vf variableFile) (Variable, error) {
	switch vf.Type {
	case "list":
		return &ListVariable{Name: vf.Name, RawValues: vf.Values}, nil
	case "arithmetic":
		return &ArithmeticVariable{Name: vf.Name, Min: vf.Min, Max: vf.Max, Step: vf.Step}, nil
	case "geometric":
		return &GeometricVariable{Name: vf.Name, Min: vf.Min, Max: vf.Max, Factor: vf.Factor}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariableType, vf.Type)
	}
}

// expandHome rewrites a leading "~" or "~/" in path to the invoking
// user's home directory, mirroring spec.md §6's "$HOME prefix rewrite"
// rule for workdir/private_key. An empty path is returned unchanged.
func expandHome(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home := xdg.Home
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return home + path[1:]
	}
	return path
}

// ParseTaskFilter parses the CLI's "[EXPNAME:]A:B" task-filter syntax.
// A bare "A:B" applies to every experiment (empty expName); an explicit
// "NAME:A:B" applies only to the named experiment, per spec.md §9.
func ParseTaskFilter(s string) (expName string, filter TaskFilter, err error) {
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 2:
		filter.From, err = strconv.Atoi(parts[0])
		if err != nil {
			return "", filter, fmt.Errorf("invalid task filter %q: %w", s, err)
		}
		filter.To, err = strconv.Atoi(parts[1])
		if err != nil {
			return "", filter, fmt.Errorf("invalid task filter %q: %w", s, err)
		}
		return "", filter, nil
	case 3:
		filter.From, err = strconv.Atoi(parts[1])
		if err != nil {
			return "", filter, fmt.Errorf("invalid task filter %q: %w", s, err)
		}
		filter.To, err = strconv.Atoi(parts[2])
		if err != nil {
			return "", filter, fmt.Errorf("invalid task filter %q: %w", s, err)
		}
		return parts[0], filter, nil
	default:
		return "", filter, fmt.Errorf("invalid task filter %q: expected A:B or NAME:A:B", s)
	}
}
