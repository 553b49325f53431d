// Copyright (C) 2024 The Patas Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package worker

import (
	"bytes"
	"encoding/base64"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/diegofps/patas/internal/logger"
)

// BootEnvVar is the environment variable a worker subprocess reads its
// BootConfig from: gob-encoded, then base64-wrapped so the binary frame
// survives as a well-formed (NUL-free) environment value.
const BootEnvVar = "PATAS_WORKER_BOOT"

// ReexecArg is the hidden subcommand argument cmd/ dispatches to Run.
const ReexecArg = "__worker__"

// Handle is the scheduler's view of one worker: a spawned subprocess
// plus the pipes used to exchange Messages with it.
type Handle struct {
	ID  string
	cmd *exec.Cmd
	enc *Encoder
	dec *Decoder
}

// Spawn re-execs the current binary as a worker subprocess, passing boot
// via BootEnvVar, and wires its stdin/stdout as the Message pipes.
func Spawn(boot BootConfig) (*Handle, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(boot); err != nil {
		return nil, fmt.Errorf("encoding boot config: %w", err)
	}

	cmd := exec.Command(os.Args[0], ReexecArg)
	cmd.Env = append(os.Environ(), BootEnvVar+"="+base64.StdEncoding.EncodeToString(buf.Bytes()))
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting worker subprocess: %w", err)
	}

	return &Handle{
		ID:  boot.ID(),
		cmd: cmd,
		enc: NewEncoder(stdin),
		dec: NewDecoder(stdout),
	}, nil
}

// Send forwards a Message to the worker's stdin.
func (h *Handle) Send(m Message) error { return h.enc.Send(m) }

// Recv blocks for the worker's next Message.
func (h *Handle) Recv() (Message, error) { return h.dec.Recv() }

// Wait blocks until the subprocess exits.
func (h *Handle) Wait() error { return h.cmd.Wait() }

// Pump relays every Message the worker emits onto inbound, tagging
// logged errors with the worker's id, until the worker's stdout closes.
// This is the Go analogue of fanning many one-to-one queues into the
// scheduler's single many-to-one inbound queue.
func (h *Handle) Pump(inbound chan<- Message, log logger.Logger) {
	for {
		msg, err := h.Recv()
		if err != nil {
			if err != io.EOF {
				log.Errorf("worker %s: pipe error: %v", h.ID, err)
			}
			return
		}
		inbound <- msg
	}
}

// LoadBootConfig decodes this process's BootConfig from BootEnvVar. It
// is called from the hidden "__worker__" subcommand before invoking Run.
func LoadBootConfig() (BootConfig, error) {
	raw := os.Getenv(BootEnvVar)
	if raw == "" {
		return BootConfig{}, fmt.Errorf("%s not set; this binary must be re-exec'd by the scheduler", BootEnvVar)
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return BootConfig{}, fmt.Errorf("decoding boot config: %w", err)
	}
	var boot BootConfig
	if err := gob.NewDecoder(bytes.NewReader(decoded)).Decode(&boot); err != nil {
		return BootConfig{}, fmt.Errorf("decoding boot config: %w", err)
	}
	return boot, nil
}
