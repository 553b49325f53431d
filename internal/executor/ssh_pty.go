// Copyright (C) 2024 The Patas Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package executor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/creack/pty"
	"github.com/google/uuid"

	"github.com/diegofps/patas/internal/backoff"
	"github.com/diegofps/patas/internal/config"
)

// SSHPTY is the fallback persistent-shell executor used when a node
// cannot be reached through SSH's native Go client (for instance, a
// jump host or bastion whose login banner or MFA flow requires a real
// interactive terminal). It reproduces spec.md §4.C's original
// pty-and-spawn protocol: a local bash attached to a pty drives `ssh -t`,
// and SSH_ON/SSH_OFF markers on its own stdout report whether the
// remote connection came up.
type SSHPTY struct {
	node   config.Node
	cmd    *exec.Cmd
	master *os.File
	reader *bufio.Reader
	alive  bool
	cmdOn  string
	cmdOff string
}

// NewSSHPTYFallback spawns a local bash over a pty and connects it to
// node via `ssh -t`, retrying the handshake under policy (via a
// backoff.Retrier) until SSH_ON is observed or retries are exhausted.
func NewSSHPTYFallback(ctx context.Context, node config.Node, policy backoff.Policy) (*SSHPTY, error) {
	e := &SSHPTY{
		node:   node,
		cmdOn:  "CMD_ON_" + uuid.NewString(),
		cmdOff: "CMD_OFF_" + uuid.NewString(),
	}

	retrier := backoff.NewRetrier(policy)

	var lastErr error
	for {
		if err := e.spawn(); err != nil {
			lastErr = err
		} else if ok := e.awaitSSHOn(); ok {
			e.alive = true
			return e, nil
		} else {
			lastErr = fmt.Errorf("ssh handshake to %s failed (SSH_OFF observed)", node.Hostname)
			e.teardown()
		}

		if err := retrier.Next(ctx); err != nil {
			return nil, fmt.Errorf("connecting to %s: %w", node.Hostname, lastErr)
		}
	}
}

func (e *SSHPTY) spawn() error {
	e.cmd = exec.Command("bash")
	master, err := pty.Start(e.cmd)
	if err != nil {
		return err
	}
	e.master = master
	e.reader = bufio.NewReader(master)

	sshCmd := sshCommandLine(e.node)
	line := fmt.Sprintf("%s 'echo SSH_ON; bash'; echo SSH_OFF\n", sshCmd)
	_, err = io.WriteString(e.master, line)
	return err
}

func sshCommandLine(node config.Node) string {
	parts := []string{"ssh", "-t"}
	if node.PrivateKey != "" {
		parts = append(parts, "-i", node.PrivateKey)
	}
	if node.Port != 0 && node.Port != 22 {
		parts = append(parts, "-p", fmt.Sprintf("%d", node.Port))
	}
	parts = append(parts, node.Credential())
	return strings.Join(parts, " ")
}

func (e *SSHPTY) awaitSSHOn() bool {
	for {
		line, err := e.reader.ReadString('\n')
		if err != nil {
			return false
		}
		if strings.Contains(line, "SSH_OFF") {
			return false
		}
		if strings.Contains(line, "SSH_ON") {
			return true
		}
	}
}

// IsAlive reports whether the pty-backed shell is still usable.
func (e *SSHPTY) IsAlive() bool { return e.alive }

// Execute mirrors SSH.Execute's marker protocol over the pty-backed
// shell instead of a native ssh.Session.
func (e *SSHPTY) Execute(ctx context.Context, initrc, commands []string) (bool, []byte, string) {
	if !e.alive {
		return false, nil, "255"
	}

	script := strings.Join(initrc, "; ")
	if script != "" {
		script += "; "
	}
	script += fmt.Sprintf("echo %s; %s; echo -en \"\\n $? %s\"\n", e.cmdOn, strings.Join(commands, "; "), e.cmdOff)

	if _, err := io.WriteString(e.master, script); err != nil {
		e.alive = false
		return false, nil, "255"
	}

	type result struct {
		ok     bool
		stdout []byte
		status string
	}
	done := make(chan result, 1)

	go func() {
		var captured []string
		inRegion := false
		for {
			line, err := e.reader.ReadString('\n')
			if err != nil {
				done <- result{false, nil, "255"}
				return
			}
			trimmed := strings.TrimRight(line, "\r\n")
			if strings.Contains(trimmed, "SSH_OFF") {
				done <- result{false, nil, "255"}
				return
			}
			if !inRegion {
				if strings.Contains(trimmed, e.cmdOn) {
					inRegion = true
				}
				continue
			}
			if idx := strings.Index(trimmed, e.cmdOff); idx >= 0 {
				status := parseExitStatus(trimmed[:idx])
				done <- result{status == "0", []byte(strings.Join(captured, "\n")), status}
				return
			}
			captured = append(captured, trimmed)
		}
	}()

	select {
	case <-ctx.Done():
		e.alive = false
		return false, nil, "255"
	case r := <-done:
		if r.status == "255" && r.stdout == nil {
			e.alive = false
		}
		return r.ok, r.stdout, r.status
	}
}

func (e *SSHPTY) teardown() {
	if e.master != nil {
		e.master.Close()
	}
	if e.cmd != nil && e.cmd.Process != nil {
		e.cmd.Process.Kill()
	}
}

// Close kills the local bash and releases the pty.
func (e *SSHPTY) Close() error {
	e.alive = false
	e.teardown()
	return nil
}
