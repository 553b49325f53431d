// Copyright (C) 2024 The Patas Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diegofps/patas/internal/config"
)

func buildExperimentFixture() config.Experiment {
	return config.Experiment{Name: "sweep", Cmd: []string{"echo hi"}, Repeat: 1, MaxTries: 1}
}

func TestParseAddress(t *testing.T) {
	user, host, port, err := parseAddress("alice@gpu01.internal:2222")
	require.NoError(t, err)
	assert.Equal(t, "alice", user)
	assert.Equal(t, "gpu01.internal", host)
	assert.Equal(t, 2222, port)

	user, host, port, err = parseAddress("localhost")
	require.NoError(t, err)
	assert.Empty(t, user)
	assert.Equal(t, "localhost", host)
	assert.Equal(t, 22, port)
}

func TestParseAddress_InvalidPort(t *testing.T) {
	_, _, _, err := parseAddress("host:notaport")
	assert.Error(t, err)
}

func TestParseNodeSpec(t *testing.T) {
	node, err := parseNodeSpec("gpu01 alice@gpu01.internal:2222 4 gpu fast")
	require.NoError(t, err)
	assert.Equal(t, "gpu01", node.Name)
	assert.Equal(t, "alice", node.User)
	assert.Equal(t, "gpu01.internal", node.Hostname)
	assert.Equal(t, 2222, node.Port)
	assert.Equal(t, 4, node.Workers)
	assert.Equal(t, []string{"gpu", "fast"}, node.Tags)
}

func TestParseNodeSpec_TooFewFields(t *testing.T) {
	_, err := parseNodeSpec("onlyname")
	assert.Error(t, err)
}

func TestParseNumericVar(t *testing.T) {
	v, err := parseNumericVar("lr 0.01 0.1 0.01", "--va")
	require.NoError(t, err)
	assert.Equal(t, "lr", v.name)
	assert.Equal(t, 0.01, v.a)
	assert.Equal(t, 0.1, v.b)
	assert.Equal(t, 0.01, v.c)
}

func TestParseNumericVar_WrongArity(t *testing.T) {
	_, err := parseNumericVar("lr 0.01 0.1", "--va")
	assert.Error(t, err)
}

func TestParseTaskFilters_BareAppliesToAnyExperiment(t *testing.T) {
	filters, err := parseTaskFilters([]string{"0:4", "sweep:4:8"}, "sweep")
	require.NoError(t, err)
	require.Len(t, filters, 2)

	filters, err = parseTaskFilters([]string{"other:4:8"}, "sweep")
	require.NoError(t, err)
	assert.Empty(t, filters)
}

func TestParseNodeFilters(t *testing.T) {
	filters, err := parseNodeFilters([]string{"gpu fast", "cpu"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"gpu", "fast"}, {"cpu"}}, filters)
}

func TestBuildStrategy_UnknownType(t *testing.T) {
	f := &exploreFlags{strategyType: "bogus"}
	_, err := buildStrategy(f, buildExperimentFixture())
	assert.Error(t, err)
}

func TestBuildStrategy_DefaultsToGrid(t *testing.T) {
	f := &exploreFlags{strategyType: ""}
	s, err := buildStrategy(f, buildExperimentFixture())
	require.NoError(t, err)
	assert.Equal(t, "sweep", s.Name())
}
