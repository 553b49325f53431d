// Copyright (C) 2024 The Patas Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package experiment

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diegofps/patas/internal/config"
	"github.com/diegofps/patas/internal/resulttree"
	"github.com/diegofps/patas/internal/task"
)

type fakeSink struct {
	todo     []*task.Task
	filtered []*task.Task
}

func (s *fakeSink) Enqueue(t *task.Task, filtered bool) {
	if filtered {
		s.filtered = append(s.filtered, t)
		return
	}
	s.todo = append(s.todo, t)
}

func newGridDef(name string) config.Experiment {
	def := config.Experiment{
		Name: name,
		Cmd:  []string{"echo {n}"},
		Vars: []config.Variable{
			&config.ListVariable{Name: "n", RawValues: []any{"a", "b", "c"}},
		},
	}
	def.Normalize()
	return def
}

func TestGrid_OnStart_OneVariableOneRepeat(t *testing.T) {
	output := t.TempDir()
	g := NewGrid(newGridDef("sweep"), output)

	sink := &fakeSink{}
	require.NoError(t, g.OnStart(sink))

	require.Len(t, sink.todo, 3)
	assert.Empty(t, sink.filtered)
	assert.Equal(t, []string{"echo a"}, sink.todo[0].Commands)
	assert.Equal(t, []string{"echo b"}, sink.todo[1].Commands)
	assert.Equal(t, []string{"echo c"}, sink.todo[2].Commands)
	assert.Equal(t, 0, sink.todo[0].TaskID)
	assert.Equal(t, 1, sink.todo[1].TaskID)
	assert.Equal(t, 2, sink.todo[2].TaskID)
}

func TestGrid_RightmostVariableFastestVarying(t *testing.T) {
	def := config.Experiment{
		Name: "sweep",
		Cmd:  []string{"echo {a} {b}"},
		Vars: []config.Variable{
			&config.ListVariable{Name: "a", RawValues: []any{"x", "y"}},
			&config.ListVariable{Name: "b", RawValues: []any{"1", "2"}},
		},
	}
	def.Normalize()
	g := NewGrid(def, t.TempDir())

	sink := &fakeSink{}
	require.NoError(t, g.OnStart(sink))
	require.Len(t, sink.todo, 4)
	assert.Equal(t, []string{"echo x 1"}, sink.todo[0].Commands)
	assert.Equal(t, []string{"echo x 2"}, sink.todo[1].Commands)
	assert.Equal(t, []string{"echo y 1"}, sink.todo[2].Commands)
	assert.Equal(t, []string{"echo y 2"}, sink.todo[3].Commands)
}

func TestGrid_ZeroVariables(t *testing.T) {
	def := config.Experiment{Name: "sweep", Cmd: []string{"echo hi"}, Repeat: 3}
	def.Normalize()
	g := NewGrid(def, t.TempDir())

	sink := &fakeSink{}
	require.NoError(t, g.OnStart(sink))
	assert.Len(t, sink.todo, 3)
}

func TestGrid_UnknownPlaceholder(t *testing.T) {
	def := config.Experiment{
		Name: "sweep",
		Cmd:  []string{"echo {missing}"},
		Vars: []config.Variable{&config.ListVariable{Name: "n", RawValues: []any{"a"}}},
	}
	def.Normalize()
	g := NewGrid(def, t.TempDir())

	err := g.OnStart(&fakeSink{})
	require.ErrorIs(t, err, ErrUnknownPlaceholder)
}

func TestGrid_TaskFilter(t *testing.T) {
	def := config.Experiment{
		Name: "sweep",
		Cmd:  []string{"echo {n}"},
		Vars: []config.Variable{
			&config.ListVariable{Name: "n", RawValues: []any{"0", "1", "2", "3", "4"}},
		},
		TaskFilters: []config.TaskFilter{{From: 1, To: 4}},
	}
	def.Normalize()
	g := NewGrid(def, t.TempDir())

	sink := &fakeSink{}
	require.NoError(t, g.OnStart(sink))
	require.Len(t, sink.todo, 3)
	require.Len(t, sink.filtered, 2)
	assert.Equal(t, 0, sink.filtered[0].TaskID)
	assert.Equal(t, 4, sink.filtered[1].TaskID)
}

func TestGrid_FilterEverything(t *testing.T) {
	def := newGridDef("sweep")
	def.TaskFilters = []config.TaskFilter{{From: 0, To: 0}}
	g := NewGrid(def, t.TempDir())

	sink := &fakeSink{}
	require.NoError(t, g.OnStart(sink))
	assert.Empty(t, sink.todo)
	assert.Len(t, sink.filtered, 3)
}

func TestGrid_CheckSignature_NoPriorRunMatches(t *testing.T) {
	g := NewGrid(newGridDef("sweep"), t.TempDir())
	matches, err := g.CheckSignature(g.OutputRoot)
	require.NoError(t, err)
	assert.True(t, matches)
}

func TestGrid_CheckSignature_DetectsDrift(t *testing.T) {
	output := t.TempDir()
	g := NewGrid(newGridDef("sweep"), output)
	require.NoError(t, g.WriteInfo(output))

	changed := newGridDef("sweep")
	changed.Cmd = []string{"echo changed {n}"}
	g2 := NewGrid(changed, output)

	matches, err := g2.CheckSignature(output)
	require.NoError(t, err)
	assert.False(t, matches)
}

func TestGrid_OnStart_ShortCircuitsTaskWithTerminalMarker(t *testing.T) {
	output := t.TempDir()
	def := newGridDef("sweep")
	g := NewGrid(def, output)

	// Task 1 ("b") already succeeded in a previous run.
	prior := task.New("sweep", 1, 0, 1, []string{"echo b"}, "", def.MaxTries, map[string]string{"n": "b"})
	prior.RecordAttempt(task.Attempt{Success: true, ExitStatus: "0"})
	require.NoError(t, resulttree.WriteTaskResult(output, prior))

	sink := &fakeSink{}
	require.NoError(t, g.OnStart(sink))

	require.Len(t, sink.todo, 3)
	assert.False(t, sink.todo[0].Success)
	assert.Equal(t, 0, sink.todo[0].Tries)

	assert.True(t, sink.todo[1].Success)
	assert.False(t, sink.todo[1].GivenUp)
	assert.Equal(t, def.MaxTries, sink.todo[1].Tries)

	assert.False(t, sink.todo[2].Success)
	assert.Equal(t, 0, sink.todo[2].Tries)
}

func TestGrid_OnStart_RedoTasksIgnoresTerminalMarker(t *testing.T) {
	output := t.TempDir()
	def := newGridDef("sweep")
	def.RedoTasks = true
	g := NewGrid(def, output)

	prior := task.New("sweep", 1, 0, 1, []string{"echo b"}, "", def.MaxTries, map[string]string{"n": "b"})
	prior.RecordAttempt(task.Attempt{Success: true, ExitStatus: "0"})
	require.NoError(t, resulttree.WriteTaskResult(output, prior))

	sink := &fakeSink{}
	require.NoError(t, g.OnStart(sink))

	require.Len(t, sink.todo, 3)
	assert.False(t, sink.todo[1].Success, "redo_tasks must ignore the pre-existing terminal marker")
	assert.Equal(t, 0, sink.todo[1].Tries)
}

func TestGrid_ShowSummary(t *testing.T) {
	g := NewGrid(newGridDef("sweep"), t.TempDir())
	var buf bytes.Buffer
	g.ShowSummary(&buf)
	assert.Contains(t, buf.String(), "sweep")
	assert.Contains(t, buf.String(), "3")
}
