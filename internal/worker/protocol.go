// Copyright (C) 2024 The Patas Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package worker runs one executor in its own OS process, consuming
// execute/terminate commands and emitting ready/finished/ended events
// over encoding/gob-framed pipes — the Go analogue of the original's
// cross-process multiprocessing.Queue.
package worker

import (
	"encoding/gob"
	"io"

	"github.com/diegofps/patas/internal/config"
	"github.com/diegofps/patas/internal/task"
)

// Kind tags a Message's payload, mirroring the tagged-variant queue
// messages described in spec.md §9.
type Kind int

const (
	// KindExecute carries a task for the worker to run.
	KindExecute Kind = iota
	// KindTerminate asks the worker to exit its loop.
	KindTerminate
	// KindReady reports that the worker is idle and awaiting a task.
	KindReady
	// KindFinished carries a task augmented with a new attempt record.
	KindFinished
	// KindEnded reports that the worker has exited cleanly after terminate.
	KindEnded
)

// Message is one frame exchanged between the scheduler and a worker.
// WorkerID is set on the kinds a worker emits (Ready, Finished, Ended);
// Task is set on Execute and Finished; Terminate carries neither.
type Message struct {
	Kind     Kind
	WorkerID string
	Task     *task.Task
}

// BootConfig is everything a worker subprocess needs to build its
// executor, passed once at spawn time.
type BootConfig struct {
	WorkerInLab     int
	WorkerInCluster int
	WorkerInNode    int
	NodeInLab       int
	NodeInCluster   int
	ClusterInLab    int
	ClusterName     string
	Node            config.Node
	Quiet           bool
}

// Encoder writes framed Messages to an underlying stream.
type Encoder struct {
	enc *gob.Encoder
}

// NewEncoder wraps w.
func NewEncoder(w io.Writer) *Encoder { return &Encoder{enc: gob.NewEncoder(w)} }

// Send encodes one Message.
func (e *Encoder) Send(m Message) error { return e.enc.Encode(m) }

// Decoder reads framed Messages from an underlying stream.
type Decoder struct {
	dec *gob.Decoder
}

// NewDecoder wraps r.
func NewDecoder(r io.Reader) *Decoder { return &Decoder{dec: gob.NewDecoder(r)} }

// Recv decodes the next Message, or returns io.EOF when the peer closed
// its side of the pipe.
func (d *Decoder) Recv() (Message, error) {
	var m Message
	err := d.dec.Decode(&m)
	return m, err
}
