// Copyright (C) 2024 The Patas Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package executor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/ssh"

	"github.com/diegofps/patas/internal/config"
)

// ErrNoPrivateKey is returned when a node has no private_key configured;
// this implementation authenticates by key only, never by password.
var ErrNoPrivateKey = fmt.Errorf("node has no private_key configured")

// SSH drives commands over one persistent interactive shell on a remote
// node, reached over a single long-lived SSH connection. It replaces
// spec.md §4.C's SSH_ON/SSH_OFF handshake with ssh.Dial's native error
// return (already authoritative for connection failure), while keeping
// the CMD_ON/CMD_OFF marker framing to delimit each command's output.
type SSH struct {
	node    config.Node
	client  *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser
	reader  *bufio.Reader
	alive   bool
	cmdOn   string
	cmdOff  string
}

// NewSSH dials node and starts one persistent interactive shell.
func NewSSH(node config.Node) (*SSH, error) {
	auth, err := authMethodsFor(node)
	if err != nil {
		return nil, err
	}

	clientConfig := &ssh.ClientConfig{
		User:            node.User,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}

	addr := fmt.Sprintf("%s:%d", node.Hostname, node.Port)
	client, err := ssh.Dial("tcp", addr, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}

	session, stdin, reader, err := openShell(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("starting shell on %s: %w", addr, err)
	}

	return &SSH{
		node:    node,
		client:  client,
		session: session,
		stdin:   stdin,
		reader:  reader,
		alive:   true,
		cmdOn:   "CMD_ON_" + uuid.NewString(),
		cmdOff:  "CMD_OFF_" + uuid.NewString(),
	}, nil
}

func openShell(client *ssh.Client) (*ssh.Session, io.WriteCloser, *bufio.Reader, error) {
	session, err := client.NewSession()
	if err != nil {
		return nil, nil, nil, err
	}
	if err := session.RequestPty("xterm", 80, 40, ssh.TerminalModes{}); err != nil {
		session.Close()
		return nil, nil, nil, err
	}
	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return nil, nil, nil, err
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		session.Close()
		return nil, nil, nil, err
	}
	if err := session.Shell(); err != nil {
		session.Close()
		return nil, nil, nil, err
	}
	return session, stdin, bufio.NewReader(stdout), nil
}

func authMethodsFor(node config.Node) ([]ssh.AuthMethod, error) {
	if node.PrivateKey == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoPrivateKey, node.Name)
	}
	keyBytes, err := os.ReadFile(node.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("reading private key for %s: %w", node.Name, err)
	}
	signer, err := ssh.ParsePrivateKey(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("parsing private key for %s: %w", node.Name, err)
	}
	return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
}

// IsAlive reports whether the persistent shell is still usable.
func (e *SSH) IsAlive() bool { return e.alive }

// Execute writes initrc and commands to the persistent shell framed by
// this executor's CMD_ON/CMD_OFF markers, and blocks until the CMD_OFF
// marker (and its trailing exit status) is read back, or ctx is done.
func (e *SSH) Execute(ctx context.Context, initrc, commands []string) (bool, []byte, string) {
	if !e.alive {
		return false, nil, "255"
	}

	script := strings.Join(initrc, "; ")
	if script != "" {
		script += "; "
	}
	script += fmt.Sprintf("echo %s; %s; echo -en \"\\n $? %s\"\n", e.cmdOn, strings.Join(commands, "; "), e.cmdOff)

	if _, err := io.WriteString(e.stdin, script); err != nil {
		e.alive = false
		return false, nil, "255"
	}

	return e.readUntilCmdOff(ctx)
}

func (e *SSH) readUntilCmdOff(ctx context.Context) (bool, []byte, string) {
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

func parseExitStatus(trailer string) string {
	fields := strings.Fields(trailer)
	if len(fields) == 0 {
		return "255"
	}
	last := fields[len(fields)-1]
	if _, err := strconv.Atoi(last); err != nil {
		return "255"
	}
	return last
}

// Close tears down the persistent shell and the underlying connection.
func (e *SSH) Close() error {
	e.alive = false
	if e.session != nil {
		e.session.Close()
	}
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}
