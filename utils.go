package zfs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

const (
	// Binary is the name of the ZFS command line tool invoked for every operation.
	Binary = "zfs"
	// sshBinary is the client used to reach a remote endpoint's zfs binary.
	sshBinary = "ssh"
)

// endpoint describes where zfs commands for a store are run: locally, or over
// ssh on a remote host. The zero value is the local machine.
type endpoint struct {
	user string
	host string
	port int
}

// commandArgs returns the binary and argument list to actually exec: either
// the zfs binary directly (local), or ssh wrapping it (remote). This is the
// only place locality is decided, so every SnapshotStore operation is
// identical in both the local and remote cases.
func (e endpoint) commandArgs(bin string, args ...string) (string, []string) {
	if e.host == "" {
		return bin, args
	}

	host := e.host
	if e.user != "" {
		host = e.user + "@" + e.host
	}

	sshArgs := make([]string, 0, len(args)+4)
	if e.port != 0 {
		sshArgs = append(sshArgs, "-p", strconv.Itoa(e.port))
	}
	sshArgs = append(sshArgs, host, bin)
	sshArgs = append(sshArgs, args...)
	return sshBinary, sshArgs
}

func (e endpoint) String() string {
	if e.host == "" {
		return "local"
	}
	if e.user != "" {
		return fmt.Sprintf("%s@%s", e.user, e.host)
	}
	return e.host
}

// command runs a single zfs (or ssh zfs) invocation and parses its output as
// tab-separated fields, one line per record - the format every `-H` zfs
// subcommand this package uses emits.
type command struct {
	ctx    context.Context
	ep     endpoint
	bin    string
	stdin  io.Reader
	stdout io.Writer
}

func (c *command) Run(arg ...string) ([][]string, error) {
	bin := c.bin
	if bin == "" {
		bin = Binary
	}
	name, args := c.ep.commandArgs(bin, arg...)
	cmd := exec.CommandContext(c.ctx, name, args...)
	cmd.SysProcAttr = procAttributes()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	if c.stdout != nil {
		cmd.Stdout = c.stdout
	}
	cmd.Stderr = &stderr
	if c.stdin != nil {
		cmd.Stdin = c.stdin
	}

	err := cmd.Run()
	if err != nil {
		return nil, newStoreError(cmd, stderr.String(), err)
	}

	if c.stdout != nil {
		return nil, nil
	}

	out := stdout.String()
	if out == "" {
		return nil, nil
	}
	lines := strings.Split(out, "\n")
	// the last line is always blank
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	output := make([][]string, len(lines))
	for i, l := range lines {
		output[i] = strings.Split(l, "\t")
	}
	return output, nil
}

// startCommand builds (but does not start) an *exec.Cmd for a long-running
// send/receive invocation whose stdio the caller wires up itself.
func startCommand(ctx context.Context, ep endpoint, bin string, arg ...string) *exec.Cmd {
	name, args := ep.commandArgs(bin, arg...)
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.SysProcAttr = procAttributes()
	return cmd
}

func propsSlice(properties map[string]string) []string {
	args := make([]string, 0, len(properties)*2)
	for k, v := range properties {
		args = append(args, "-o", fmt.Sprintf("%s=%s", k, v))
	}
	return args
}
