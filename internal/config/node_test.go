// Copyright (C) 2024 The Patas Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNode_Normalize(t *testing.T) {
	n := Node{Hostname: "worker1.internal"}
	n.Normalize()
	assert.Equal(t, "worker1.internal", n.Name)
	assert.Equal(t, 22, n.Port)
	assert.Equal(t, 1, n.Workers)
}

func TestNode_Credential(t *testing.T) {
	assert.Equal(t, "host", Node{Hostname: "host"}.Credential())
	assert.Equal(t, "alice@host", Node{Hostname: "host", User: "alice"}.Credential())
}

func TestNode_IsLocal(t *testing.T) {
	assert.True(t, Node{Hostname: "localhost"}.IsLocal())
	assert.True(t, Node{Hostname: "127.0.0.1"}.IsLocal())
	assert.False(t, Node{Hostname: "remote.example.com"}.IsLocal())
}

func TestNode_HasAllTags(t *testing.T) {
	n := Node{Tags: []string{"gpu", "fast"}}
	assert.True(t, n.HasAllTags(nil))
	assert.True(t, n.HasAllTags([]string{"gpu"}))
	assert.True(t, n.HasAllTags([]string{"gpu", "fast"}))
	assert.False(t, n.HasAllTags([]string{"gpu", "slow"}))
}

func TestCluster_Normalize(t *testing.T) {
	c := Cluster{Nodes: []Node{{Hostname: "a"}, {Hostname: "b", Workers: 4}}}
	c.Normalize()
	assert.Equal(t, "default", c.Name)
	assert.Equal(t, 1, c.Nodes[0].Workers)
	assert.Equal(t, 2, c.NumberOfNodes())
	assert.Equal(t, 5, c.NumberOfWorkers())
}
