package zfs

import (
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreErrorString(t *testing.T) {
	err := &StoreError{
		Err:    errors.New("exit status 1"),
		Debug:  "/sbin/zfs list tank",
		Stderr: "cannot open 'tank': dataset does not exist",
	}
	require.Equal(t, `exit status 1: "/sbin/zfs list tank" => cannot open 'tank': dataset does not exist`, err.Error())
	require.True(t, errors.Is(err, err.Unwrap()))
}

func TestNewStoreErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		target error
	}{
		{"not found", "cannot open 'tank/ds0': dataset does not exist", ErrDatasetNotFound},
		{"busy", "cannot unmount '/disks/252799': pool or dataset is busy", ErrPoolOrDatasetBusy},
		{"exists", "cannot receive new filesystem stream: destination 'tank/ds0' exists", ErrDatasetExists},
		{"dependent clones", "cannot destroy 'tank/ds0@s1': snapshot has dependent clones", ErrSnapshotHasDependentClones},
		{"hold exists", "cannot hold snapshot 'tank/ds0@s1': tag already exists on this dataset", ErrHoldExists},
		{"no such hold", "cannot release hold from 'tank/ds0@s1': no such tag on this dataset", ErrNoSuchHold},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := newStoreError(&exec.Cmd{Path: "/sbin/zfs", Args: []string{"zfs", "destroy", "tank/ds0"}}, test.stderr, errors.New("exit status 1"))
			require.ErrorIs(t, err, test.target)
		})
	}
}

func TestNewStoreErrorFallback(t *testing.T) {
	err := newStoreError(&exec.Cmd{Path: "/sbin/zfs", Args: []string{"zfs", "list"}}, "something unexpected happened", errors.New("exit status 1"))
	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	require.Equal(t, "something unexpected happened", storeErr.Stderr)
}
