// Copyright (C) 2024 The Patas Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package signature computes a stable fingerprint over the parts of an
// experiment's configuration that determine its result tree's shape:
// commands, variables, working directory, and repeat count. A change in
// any of these invalidates previously computed results.
package signature

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// varSnapshot is the canonical representation of one Variable used when
// computing a signature.
type varSnapshot struct {
	Name   string   `json:"name"`
	Kind   string   `json:"kind"`
	Values []string `json:"values"`
}

// namedVariable is the minimal surface this package needs from
// config.Variable, declared locally to avoid an import-cycle between
// internal/config and internal/signature.
type namedVariable interface {
	VarName() string
	Values() []string
	Kind() string
}

// Compute returns the hex-encoded SHA-256 signature of the given
// experiment material. Variables are hashed in declaration order:
// order is semantically significant (grid.combinations() builds its
// mixed-radix divisors from declaration order, so reordering two
// variables changes which commands map to which task id), so the
// signature must change too. V is any type exposing the
// VarName/Values/Kind surface of config.Variable; this package takes it
// as a generic constraint rather than importing internal/config, to
// avoid a config<->signature import cycle.
func Compute[V namedVariable](commands []string, workdir string, repeat int, vars []V) (string, error) {
	snapshots := make([]varSnapshot, 0, len(vars))
	for _, v := range vars {
		snapshots = append(snapshots, varSnapshot{
			Name:   v.VarName(),
			Kind:   v.Kind(),
			Values: v.Values(),
		})
	}

	payload := struct {
		Commands []string      `json:"commands"`
		Workdir  string        `json:"workdir"`
		Repeat   int           `json:"repeat"`
		Vars     []varSnapshot `json:"vars"`
	}{
		Commands: commands,
		Workdir:  workdir,
		Repeat:   repeat,
		Vars:     snapshots,
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:]), nil
}
