package zfstest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	zfs "github.com/zfsnappr/zfsnappr"
)

func TestCreateAndListSnapshot(t *testing.T) {
	store := New("local")
	ctx := context.Background()

	require.NoError(t, store.CreateSnapshot(ctx, "tank/data@s1", false, nil))
	snaps, err := store.ListSnapshots(ctx, zfs.ListSnapshotsOptions{Dataset: "tank/data"})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	require.Equal(t, "s1", snaps[0].ShortName)
}

func TestDestroyRefusesHeldSnapshot(t *testing.T) {
	store := New("local")
	ctx := context.Background()

	require.NoError(t, store.CreateSnapshot(ctx, "tank/data@s1", false, nil))
	require.NoError(t, store.Hold(ctx, []string{"tank/data@s1"}, "keep"))

	err := store.DestroySnapshots(ctx, "tank/data", []string{"s1"})
	require.ErrorIs(t, err, zfs.ErrSnapshotHasDependentClones)

	require.NoError(t, store.ReleaseHold(ctx, []string{"tank/data@s1"}, "keep"))
	require.NoError(t, store.DestroySnapshots(ctx, "tank/data", []string{"s1"}))
}

func TestSendReceiveRoundTrip(t *testing.T) {
	source := New("source")
	dest := New("dest")
	ctx := context.Background()

	source.AddSnapshot(zfs.Snapshot{
		Dataset:   "tank/data",
		ShortName: "s1",
		Timestamp: time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC),
		Tags:      zfs.NewTags("daily"),
	})

	sendProc, err := source.SendSnapshot(ctx, "tank/data@s1", "", zfs.SendOptions{})
	require.NoError(t, err)

	recvProc, err := dest.ReceiveSnapshot(ctx, "backup/data", sendProc, zfs.ReceiveOptions{})
	require.NoError(t, err)
	require.NoError(t, recvProc.Wait())

	snaps, err := dest.ListSnapshots(ctx, zfs.ListSnapshotsOptions{})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	require.Equal(t, "s1", snaps[0].ShortName)
	require.True(t, snaps[0].Tags.Contains("daily"))
}

func TestExcludeDatasets(t *testing.T) {
	store := New("local")
	ctx := context.Background()
	store.AddSnapshot(zfs.Snapshot{Dataset: "tank/keep", ShortName: "s1"})
	store.AddSnapshot(zfs.Snapshot{Dataset: "tank/skip", ShortName: "s1"})

	snaps, err := store.ListSnapshots(ctx, zfs.ListSnapshotsOptions{Recursive: true, ExcludeDatasets: []string{"tank/skip"}})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	require.Equal(t, "tank/keep", snaps[0].Dataset)
}
