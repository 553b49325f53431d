// Copyright (C) 2024 The Patas Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package resulttree writes and reads the on-disk layout under an
// experiment's output folder: experiment/task info files, per-attempt
// stdout, and the terminal success/failure marker.
package resulttree

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/diegofps/patas/internal/task"
)

// ExperimentInfo is the YAML-serialized descriptor written at
// <output>/<experiment>/info.yml.
type ExperimentInfo struct {
	Name      string `yaml:"name"`
	Signature string `yaml:"signature"`
	Workdir   string `yaml:"workdir"`
	Repeat    int    `yaml:"repeat"`
	MaxTries  int    `yaml:"max_tries"`
}

// AttemptInfo is the per-attempt record kept in a task's info.yml. It
// omits stdout bodies, which live in their own files.
type AttemptInfo struct {
	Worker     string            `yaml:"worker"`
	Env        map[string]string `yaml:"env"`
	StartedAt  time.Time         `yaml:"started_at"`
	EndedAt    time.Time         `yaml:"ended_at"`
	DurationMS int64             `yaml:"duration_ms"`
	ExitStatus string            `yaml:"exit_status"`
	Success    bool              `yaml:"success"`
}

// TaskInfo is the YAML-serialized descriptor written at
// <output>/<experiment>/<task_id>/info.yml.
type TaskInfo struct {
	TaskID        int               `yaml:"task_id"`
	CombinationID int               `yaml:"combination_id"`
	RepeatID      int               `yaml:"repeat_id"`
	Combination   map[string]string `yaml:"combination"`
	Commands      []string          `yaml:"commands"`
	Tries         int               `yaml:"tries"`
	Success       bool              `yaml:"success"`
	Attempts      []AttemptInfo     `yaml:"attempts"`
}

// ExperimentDir returns <output>/<experimentName>.
func ExperimentDir(output, experimentName string) string {
	return filepath.Join(output, experimentName)
}

// TaskDir returns <output>/<experimentName>/<taskID>.
func TaskDir(output, experimentName string, taskID int) string {
	return filepath.Join(ExperimentDir(output, experimentName), fmt.Sprintf("%d", taskID))
}

// WriteExperimentInfo writes the experiment-level info.yml.
func WriteExperimentInfo(output, experimentName string, info ExperimentInfo) error {
	dir := ExperimentDir(output, experimentName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating experiment folder %s: %w", dir, err)
	}
	encoded, err := yaml.Marshal(info)
	if err != nil {
		return fmt.Errorf("encoding experiment info: %w", err)
	}
	path := filepath.Join(dir, "info.yml")
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// ReadExperimentInfo reads a previously written experiment info.yml. It
// returns (nil, nil) if the file does not exist (a fresh output folder).
func ReadExperimentInfo(output, experimentName string) (*ExperimentInfo, error) {
	path := filepath.Join(ExperimentDir(output, experimentName), "info.yml")
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var info ExperimentInfo
	if err := yaml.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &info, nil
}

// CleanExperimentSubtree removes an experiment's entire output subtree,
// used when its signature has drifted from a prior run.
func CleanExperimentSubtree(output, experimentName string) error {
	dir := ExperimentDir(output, experimentName)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("removing %s: %w", dir, err)
	}
	return nil
}

// HasTerminalMarker reports whether a task directory already carries a
// .success or .failure marker, and which.
func HasTerminalMarker(output, experimentName string, taskID int) (success, failure bool) {
	dir := TaskDir(output, experimentName, taskID)
	_, successErr := os.Stat(filepath.Join(dir, ".success"))
	_, failureErr := os.Stat(filepath.Join(dir, ".failure"))
	return successErr == nil, failureErr == nil
}

// WriteTaskResult writes a task's terminal state: wipes any stale
// contents from a previous retry round, then writes one stdout file per
// attempt (success.stdout for the final ok attempt, failN.stdout for
// each failed one), then info.yml, and finally the terminal marker —
// last, so a reader never observes a marker without its info/stdout
// files already in place.
func WriteTaskResult(output string, t *task.Task) error {
	dir := TaskDir(output, t.ExperimentName, t.TaskID)

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clearing stale task folder %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating task folder %s: %w", dir, err)
	}

	info := TaskInfo{
		TaskID:        t.TaskID,
		CombinationID: t.CombinationID,
		RepeatID:      t.RepeatID,
		Combination:   t.Combination,
		Commands:      t.Commands,
		Tries:         t.Tries,
		Success:       t.Success,
	}

	failIdx := 0
	for _, a := range t.Attempts {
		info.Attempts = append(info.Attempts, AttemptInfo{
			Worker:     a.Worker,
			Env:        a.Env,
			StartedAt:  a.StartedAt,
			EndedAt:    a.EndedAt,
			DurationMS: a.Duration().Milliseconds(),
			ExitStatus: a.ExitStatus,
			Success:    a.Success,
		})

		if a.Success {
			if err := writeStdout(dir, "success.stdout", a.Stdout); err != nil {
				return err
			}
		} else {
			if err := writeStdout(dir, fmt.Sprintf("fail%d.stdout", failIdx), a.Stdout); err != nil {
				return err
			}
			failIdx++
		}
	}

	encoded, err := yaml.Marshal(info)
	if err != nil {
		return fmt.Errorf("encoding task info: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "info.yml"), encoded, 0o644); err != nil {
		return fmt.Errorf("writing task info.yml: %w", err)
	}

	marker := ".failure"
	if t.Success {
		marker = ".success"
	}
	if err := os.WriteFile(filepath.Join(dir, marker), nil, 0o644); err != nil {
		return fmt.Errorf("writing terminal marker: %w", err)
	}
	return nil
}

func writeStdout(dir, name string, data []byte) error {
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return fmt.Errorf("writing %s/%s: %w", dir, name, err)
	}
	return nil
}
