package zfs

import (
	"context"
	"io"
	"os/exec"
	"syscall"
	"time"

	"github.com/klauspost/compress/zstd"
)

// SendOptions customize a SnapshotStore.SendSnapshot invocation.
type SendOptions struct {
	// BytesPerSecond rate-limits the outgoing stream, 0 disables limiting.
	BytesPerSecond int64
	// CompressionLevel, when non-zero, wraps the stream in a zstd encoder
	// before it leaves this process (e.g. before crossing an ssh transport).
	CompressionLevel zstd.EncoderLevel
	// IncludeProperties passes -p to zfs send.
	IncludeProperties bool
	// Raw passes -w to zfs send, for encrypted datasets.
	Raw bool
}

// ReceiveOptions customize a SnapshotStore.ReceiveSnapshot invocation.
type ReceiveOptions struct {
	// BytesPerSecond rate-limits the incoming stream, 0 disables limiting.
	BytesPerSecond int64
	// Decompressed must be set when the incoming stream was zstd-compressed
	// by the sender's SendOptions.CompressionLevel.
	Decompressed bool
	// Properties are applied to the destination dataset via `-o`.
	Properties map[string]string
	// Resumable requests a resumable receive (-s).
	Resumable bool
}

// Process is a running zfs send/receive (or ssh-wrapped) child process. It is
// always already started by the time a SnapshotStore method returns one.
type Process struct {
	cmd    *exec.Cmd
	Stdout io.Reader
	Stderr io.ReadCloser

	done    chan struct{}
	waitErr error
}

func startProcess(cmd *exec.Cmd, stdout io.Reader, stderr io.ReadCloser) (*Process, error) {
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	p := &Process{cmd: cmd, Stdout: stdout, Stderr: stderr, done: make(chan struct{})}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

// Wait blocks until the process exits and returns its error, if any.
func (p *Process) Wait() error {
	<-p.done
	return p.waitErr
}

// Done returns a channel closed when the process has exited, for use in a
// select alongside a poll ticker.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Exited reports whether the process has already exited.
func (p *Process) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Terminate sends SIGTERM and escalates to SIGKILL if the process hasn't
// exited within grace. Used to tear down the partner side of a send/receive
// pipe when one half of it fails.
func (p *Process) Terminate(grace time.Duration) {
	if p.cmd == nil || p.cmd.Process == nil {
		return
	}
	_ = p.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-p.done:
	case <-time.After(grace):
		_ = p.cmd.Process.Kill()
		<-p.done
	}
}

func sendArgs(longName, baseLongName string, opts SendOptions) []string {
	args := make([]string, 0, 8)
	if opts.Raw {
		args = append(args, "-w")
	}
	if opts.IncludeProperties {
		args = append(args, "-p")
	}
	if baseLongName != "" {
		args = append(args, "-i", baseLongName)
	}
	args = append(args, longName)
	return append([]string{"send"}, args...)
}

func receiveArgs(dataset string, opts ReceiveOptions) []string {
	args := make([]string, 0, 4+len(opts.Properties)*2)
	if opts.Resumable {
		args = append(args, "-s")
	}
	args = append(args, propsSlice(opts.Properties)...)
	args = append(args, dataset)
	return append([]string{"receive"}, args...)
}

// wrapSendStdout applies rate-limiting and optional compression to a send
// process's stdout before the caller pipes it to the receiving side.
func wrapSendStdout(ctx context.Context, r io.Reader, opts SendOptions) (io.Reader, func(), error) {
	r = rateLimitReader(r, opts.BytesPerSecond)
	if opts.CompressionLevel == 0 {
		return r, func() {}, nil
	}
	pr, pw := io.Pipe()
	encOut, closeEnc, err := zstdWriter(pw, opts.CompressionLevel)
	if err != nil {
		return nil, func() {}, err
	}
	go func() {
		_, copyErr := io.Copy(encOut, r)
		closeEnc()
		pw.CloseWithError(copyErr)
	}()
	return pr, func() {}, nil
}

// wrapReceiveStdin mirrors wrapSendStdout on the receiving side.
func wrapReceiveStdin(r io.Reader, opts ReceiveOptions) (io.Reader, func(), error) {
	r = rateLimitReader(r, opts.BytesPerSecond)
	return zstdReader(r, opts.Decompressed)
}
