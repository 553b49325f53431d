// Copyright (C) 2024 The Patas Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskFilter_Contains(t *testing.T) {
	f := TaskFilter{From: 2, To: 5}
	assert.False(t, f.Contains(1))
	assert.True(t, f.Contains(2))
	assert.True(t, f.Contains(4))
	assert.False(t, f.Contains(5))
}

func TestExperiment_Normalize(t *testing.T) {
	e := Experiment{}
	e.Normalize()
	assert.Equal(t, 1, e.Repeat)
	assert.Equal(t, 3, e.MaxTries)
}

func TestExperiment_NumberOfCombinationsAndTasks(t *testing.T) {
	e := Experiment{
		Repeat: 2,
		Vars: []Variable{
			&ListVariable{Name: "a", RawValues: []any{1, 2, 3}},
			&ListVariable{Name: "b", RawValues: []any{"x", "y"}},
		},
	}
	assert.Equal(t, 6, e.NumberOfCombinations())
	assert.Equal(t, 12, e.NumberOfTasks())
}

func TestExperiment_NoVariables(t *testing.T) {
	e := Experiment{Repeat: 3}
	assert.Equal(t, 1, e.NumberOfCombinations())
	assert.Equal(t, 3, e.NumberOfTasks())
}
