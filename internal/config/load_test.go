// Copyright (C) 2024 The Patas Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadCluster(t *testing.T) {
	path := writeTemp(t, "cluster.yml", `
name: lab
nodes:
  - hostname: localhost
    workers: 2
  - hostname: gpu01.internal
    user: patas
    tags: [gpu]
`)
	c, err := LoadCluster(path)
	require.NoError(t, err)
	assert.Equal(t, "lab", c.Name)
	require.Len(t, c.Nodes, 2)
	assert.Equal(t, 2, c.Nodes[0].Workers)
	assert.Equal(t, "gpu01.internal", c.Nodes[1].Name)
	assert.Equal(t, 22, c.Nodes[1].Port)
	assert.Equal(t, []string{"gpu"}, c.Nodes[1].Tags)
}

func TestLoadCluster_MissingNodes(t *testing.T) {
	path := writeTemp(t, "cluster.yml", "name: lab\n")
	_, err := LoadCluster(path)
	require.Error(t, err)
}

func TestLoadExperiment(t *testing.T) {
	path := writeTemp(t, "exp.yml", `
name: sweep
cmd: "echo {lr} {batch}"
repeat: 2
max_tries: 5
redo_tasks: true
vars:
  - type: list
    name: lr
    values: [0.1, 0.01]
  - type: arithmetic
    name: batch
    min: 0
    max: 2
    step: 1
`)
	e, err := LoadExperiment(path)
	require.NoError(t, err)
	assert.Equal(t, "sweep", e.Name)
	assert.Equal(t, []string{"echo {lr} {batch}"}, e.Cmd)
	assert.Equal(t, 2, e.Repeat)
	assert.Equal(t, 5, e.MaxTries)
	assert.True(t, e.RedoTasks)
	require.Len(t, e.Vars, 2)
	assert.Equal(t, "lr", e.Vars[0].VarName())
	assert.Equal(t, []string{"0.1", "0.01"}, e.Vars[0].Values())
	assert.Equal(t, []string{"0", "1"}, e.Vars[1].Values())
	assert.Equal(t, 4, e.NumberOfCombinations())
	assert.Equal(t, 8, e.NumberOfTasks())
}

func TestLoadExperiment_CmdList(t *testing.T) {
	path := writeTemp(t, "exp.yml", `
name: sweep
cmd:
  - "echo hi"
  - "echo bye"
`)
	e, err := LoadExperiment(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"echo hi", "echo bye"}, e.Cmd)
}

func TestLoadExperiment_MissingName(t *testing.T) {
	path := writeTemp(t, "exp.yml", "cmd: echo hi\n")
	_, err := LoadExperiment(path)
	require.ErrorIs(t, err, ErrMissingField)
}

func TestLoadExperiment_UnknownVariableType(t *testing.T) {
	path := writeTemp(t, "exp.yml", `
name: sweep
cmd: echo hi
vars:
  - type: bogus
    name: x
`)
	_, err := LoadExperiment(path)
	require.ErrorIs(t, err, ErrUnknownVariableType)
}

func TestParseTaskFilter(t *testing.T) {
	name, f, err := ParseTaskFilter("0:10")
	require.NoError(t, err)
	assert.Equal(t, "", name)
	assert.Equal(t, TaskFilter{From: 0, To: 10}, f)

	name, f, err = ParseTaskFilter("sweep:5:20")
	require.NoError(t, err)
	assert.Equal(t, "sweep", name)
	assert.Equal(t, TaskFilter{From: 5, To: 20}, f)

	_, _, err = ParseTaskFilter("bogus")
	require.Error(t, err)
}
