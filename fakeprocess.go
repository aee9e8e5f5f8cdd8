package zfs

import "io"

// NewFakeProcess returns an already-finished Process wrapping stdout, for
// SnapshotStore fakes (such as zfstest.Store) that simulate send/receive
// without spawning a real zfs child. waitErr is what Wait returns.
func NewFakeProcess(stdout io.Reader, waitErr error) *Process {
	done := make(chan struct{})
	close(done)
	return &Process{Stdout: stdout, done: done, waitErr: waitErr}
}
