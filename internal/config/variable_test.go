// Copyright (C) 2024 The Patas Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListVariable_Values(t *testing.T) {
	v := &ListVariable{Name: "lr", RawValues: []any{0.1, 0.01, "auto"}}
	assert.Equal(t, "lr", v.VarName())
	assert.Equal(t, "list", v.Kind())
	assert.Equal(t, []string{"0.1", "0.01", "auto"}, v.Values())
}

func TestArithmeticVariable_Values(t *testing.T) {
	v := &ArithmeticVariable{Name: "x", Min: 0, Max: 1, Step: 0.25}
	assert.Equal(t, []string{"0", "0.25", "0.5", "0.75"}, v.Values())
}

func TestArithmeticVariable_ZeroStep(t *testing.T) {
	v := &ArithmeticVariable{Name: "x", Min: 0, Max: 1, Step: 0}
	assert.Empty(t, v.Values())
}

func TestGeometricVariable_Values(t *testing.T) {
	v := &GeometricVariable{Name: "batch", Min: 1, Max: 20, Factor: 2}
	assert.Equal(t, []string{"1", "2", "4", "8", "16"}, v.Values())
}

func TestGeometricVariable_InvalidFactorOrMin(t *testing.T) {
	assert.Empty(t, (&GeometricVariable{Min: 1, Max: 10, Factor: 1}).Values())
	assert.Empty(t, (&GeometricVariable{Min: 0, Max: 10, Factor: 2}).Values())
	assert.Empty(t, (&GeometricVariable{Min: -1, Max: 10, Factor: 2}).Values())
}
