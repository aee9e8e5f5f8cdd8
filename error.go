package zfs

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const (
	datasetNotFoundMessage       = "dataset does not exist"
	datasetBusyMessage           = "pool or dataset is busy"
	datasetNoLongerExistsMessage = "no longer exists"
	snapshotHasDependentsMessage = "snapshot has dependent clones"
	datasetExistsMessage1        = "destination '"
	datasetExistsMessage2        = "' exists"
	holdTagExistsMessage         = "tag already exists on this dataset"
	noSuchHoldMessage            = "no such tag on this dataset"
)

var (
	// ErrDatasetNotFound is returned when the dataset or snapshot does not exist.
	ErrDatasetNotFound = errors.New("dataset not found")

	// ErrDatasetExists is returned when the destination dataset already exists.
	ErrDatasetExists = errors.New("dataset already exists")

	// ErrPoolOrDatasetBusy is returned when an action fails because ZFS is busy with another operation.
	ErrPoolOrDatasetBusy = errors.New("pool or dataset busy")

	// ErrSnapshotHasDependentClones is returned when destroying a snapshot that has dependent clones.
	ErrSnapshotHasDependentClones = errors.New("snapshot has dependent clones")

	// ErrHoldExists is returned when placing a hold tag that is already held.
	ErrHoldExists = errors.New("hold tag already exists")

	// ErrNoSuchHold is returned when releasing a hold tag that isn't held.
	ErrNoSuchHold = errors.New("no such hold tag")
)

// StoreError is returned when the `zfs` or `ssh` child process invoked by a
// SnapshotStore exits with a non-zero status and the stderr text didn't match
// any of the more specific sentinel errors above.
type StoreError struct {
	Err    error
	Debug  string
	Stderr string
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %q => %s", e.Err, e.Debug, e.Stderr)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func newStoreError(cmd *exec.Cmd, stderr string, err error) error {
	debug := strings.Join(append([]string{cmd.Path}, cmd.Args[1:]...), " ")
	stderr = strings.TrimSpace(stderr)

	switch {
	case strings.Contains(stderr, datasetNotFoundMessage):
		return fmt.Errorf("%s: %w", debug, ErrDatasetNotFound)
	case strings.Contains(stderr, datasetNoLongerExistsMessage):
		return fmt.Errorf("%s: %w", debug, ErrDatasetNotFound)
	case strings.Contains(stderr, datasetBusyMessage):
		return fmt.Errorf("%s: %w", debug, ErrPoolOrDatasetBusy)
	case strings.Contains(stderr, datasetExistsMessage1) && strings.Contains(stderr, datasetExistsMessage2):
		return fmt.Errorf("%s: %w", debug, ErrDatasetExists)
	case strings.Contains(stderr, snapshotHasDependentsMessage):
		return fmt.Errorf("%s: %w", debug, ErrSnapshotHasDependentClones)
	case strings.Contains(stderr, holdTagExistsMessage):
		return fmt.Errorf("%s: %w", debug, ErrHoldExists)
	case strings.Contains(stderr, noSuchHoldMessage):
		return fmt.Errorf("%s: %w", debug, ErrNoSuchHold)
	}

	return &StoreError{
		Err:    err,
		Debug:  debug,
		Stderr: stderr,
	}
}
