package prune

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zfsnappr/zfsnappr/retention"
	"github.com/zfsnappr/zfsnappr/zfstest"

	zfs "github.com/zfsnappr/zfsnappr"
)

func TestRunDestroysUnkeptSnapshots(t *testing.T) {
	store := zfstest.New("local")
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		store.AddSnapshot(zfs.Snapshot{
			Dataset:   "tank/data",
			ShortName: "auto" + string(rune('1'+i)),
			Timestamp: now.Add(-time.Duration(i) * time.Hour),
			Tags:      zfs.UnsetTags(),
		})
	}

	orch := New(store, nil)
	result, err := orch.Run(context.Background(), mustList(t, store), retention.KeepPolicy{Last: 2}, now, Options{})
	require.NoError(t, err)
	require.Len(t, result.Keep, 2)
	require.Len(t, result.Destroy, 3)

	remaining, err := store.ListSnapshots(context.Background(), zfs.ListSnapshotsOptions{})
	require.NoError(t, err)
	require.Len(t, remaining, 2)
}

func TestRunRefusesDestroyAll(t *testing.T) {
	store := zfstest.New("local")
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	store.AddSnapshot(zfs.Snapshot{Dataset: "tank/data", ShortName: "auto", Timestamp: now, Tags: zfs.UnsetTags()})

	orch := New(store, nil)
	_, err := orch.Run(context.Background(), mustList(t, store), retention.KeepPolicy{}, now, Options{})
	require.ErrorIs(t, err, ErrRefuseDestroyAll)
}

func TestRunAllowDestroyAllBypassesGuard(t *testing.T) {
	store := zfstest.New("local")
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	store.AddSnapshot(zfs.Snapshot{Dataset: "tank/data", ShortName: "auto", Timestamp: now, Tags: zfs.UnsetTags()})

	orch := New(store, nil)
	result, err := orch.Run(context.Background(), mustList(t, store), retention.KeepPolicy{}, now, Options{AllowDestroyAll: true})
	require.NoError(t, err)
	require.Len(t, result.Destroy, 1)
}

func TestRunDryRunDestroysNothing(t *testing.T) {
	store := zfstest.New("local")
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	store.AddSnapshot(zfs.Snapshot{Dataset: "tank/data", ShortName: "auto", Timestamp: now, Tags: zfs.UnsetTags()})

	orch := New(store, nil)
	result, err := orch.Run(context.Background(), mustList(t, store), retention.KeepPolicy{}, now, Options{AllowDestroyAll: true, DryRun: true})
	require.NoError(t, err)
	require.Len(t, result.Destroy, 1)

	remaining, err := store.ListSnapshots(context.Background(), zfs.ListSnapshotsOptions{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
}

func TestRunGroupsByDataset(t *testing.T) {
	store := zfstest.New("local")
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	store.AddSnapshot(zfs.Snapshot{Dataset: "tank/a", ShortName: "s1", Timestamp: now, Tags: zfs.UnsetTags()})
	store.AddSnapshot(zfs.Snapshot{Dataset: "tank/b", ShortName: "s1", Timestamp: now, Tags: zfs.UnsetTags()})

	orch := New(store, nil)
	result, err := orch.Run(context.Background(), mustList(t, store), retention.KeepPolicy{Last: 1}, now, Options{GroupBy: GroupByDataset})
	require.NoError(t, err)
	require.Len(t, result.Keep, 2)
	require.Empty(t, result.Destroy)
}

func mustList(t *testing.T, store *zfstest.Store) []zfs.Snapshot {
	t.Helper()
	snaps, err := store.ListSnapshots(context.Background(), zfs.ListSnapshotsOptions{})
	require.NoError(t, err)
	return snaps
}
