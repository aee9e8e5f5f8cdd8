package replication

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zfsnappr/zfsnappr/zfstest"

	zfs "github.com/zfsnappr/zfsnappr"
)

func seedSource(t *testing.T, store *zfstest.Store, dataset string, n int, base time.Time) []zfs.Snapshot {
	t.Helper()
	var out []zfs.Snapshot
	for i := 0; i < n; i++ {
		snap := store.AddSnapshot(zfs.Snapshot{
			Dataset:   dataset,
			ShortName: "s" + string(rune('1'+i)),
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Tags:      zfs.NewTags("daily"),
		})
		out = append(out, snap)
	}
	return out
}

func TestReplicateInitialAndIncremental(t *testing.T) {
	ctx := context.Background()
	source := zfstest.New("source")
	dest := zfstest.New("dest")
	base := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	seedSource(t, source, "tank/data", 3, base)

	engine := New(source, dest, nil)
	err := engine.Replicate(ctx, "tank/data", "backup/data", Options{Initialize: true})
	require.NoError(t, err)

	destSnaps, err := dest.ListSnapshots(ctx, zfs.ListSnapshotsOptions{Dataset: "backup/data"})
	require.NoError(t, err)
	require.Len(t, destSnaps, 3)
	for _, snap := range destSnaps {
		require.True(t, snap.Tags.Contains("daily"))
	}
}

func TestReplicateDestinationMissingWithoutInit(t *testing.T) {
	ctx := context.Background()
	source := zfstest.New("source")
	dest := zfstest.New("dest")
	seedSource(t, source, "tank/data", 1, time.Now())

	engine := New(source, dest, nil)
	err := engine.Replicate(ctx, "tank/data", "backup/data", Options{})
	require.ErrorIs(t, err, ErrDestinationMissing)
}

func TestReplicateNoCommonSnapshot(t *testing.T) {
	ctx := context.Background()
	source := zfstest.New("source")
	dest := zfstest.New("dest")
	base := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	seedSource(t, source, "tank/data", 1, base)
	dest.AddSnapshot(zfs.Snapshot{Dataset: "backup/data", ShortName: "unrelated", GUID: 999, Timestamp: base})

	engine := New(source, dest, nil)
	err := engine.Replicate(ctx, "tank/data", "backup/data", Options{})
	require.ErrorIs(t, err, ErrNoCommonSnapshot)
}

func TestReplicateDestinationAhead(t *testing.T) {
	ctx := context.Background()
	source := zfstest.New("source")
	dest := zfstest.New("dest")
	base := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	snaps := seedSource(t, source, "tank/data", 2, base)

	common := snaps[0]
	dest.AddSnapshot(zfs.Snapshot{Dataset: "backup/data", ShortName: common.ShortName, GUID: common.GUID, Timestamp: common.Timestamp})
	dest.AddSnapshot(zfs.Snapshot{Dataset: "backup/data", ShortName: "ahead", Timestamp: base.Add(48 * time.Hour)})

	engine := New(source, dest, nil)
	err := engine.Replicate(ctx, "tank/data", "backup/data", Options{})
	require.ErrorIs(t, err, ErrDestinationAhead)
}

func TestReplicateTimestampCollision(t *testing.T) {
	ctx := context.Background()
	source := zfstest.New("source")
	dest := zfstest.New("dest")
	base := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)

	common := source.AddSnapshot(zfs.Snapshot{Dataset: "tank/data", ShortName: "s1", Timestamp: base})
	source.AddSnapshot(zfs.Snapshot{Dataset: "tank/data", ShortName: "s2", Timestamp: base.Add(time.Hour)})
	source.AddSnapshot(zfs.Snapshot{Dataset: "tank/data", ShortName: "s3", Timestamp: base.Add(time.Hour)})

	dest.AddSnapshot(zfs.Snapshot{Dataset: "backup/data", ShortName: common.ShortName, GUID: common.GUID, Timestamp: common.Timestamp})

	engine := New(source, dest, nil)
	err := engine.Replicate(ctx, "tank/data", "backup/data", Options{})
	require.ErrorIs(t, err, ErrTimestampCollision)
}

func TestReplicateAlreadyUpToDate(t *testing.T) {
	ctx := context.Background()
	source := zfstest.New("source")
	dest := zfstest.New("dest")
	base := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)

	common := source.AddSnapshot(zfs.Snapshot{Dataset: "tank/data", ShortName: "s1", Timestamp: base})
	dest.AddSnapshot(zfs.Snapshot{Dataset: "backup/data", ShortName: common.ShortName, GUID: common.GUID, Timestamp: common.Timestamp})

	engine := New(source, dest, nil)
	err := engine.Replicate(ctx, "tank/data", "backup/data", Options{})
	require.NoError(t, err)

	destSnaps, err := dest.ListSnapshots(ctx, zfs.ListSnapshotsOptions{Dataset: "backup/data"})
	require.NoError(t, err)
	require.Len(t, destSnaps, 1)
}

func TestReplicateHoldMigration(t *testing.T) {
	ctx := context.Background()
	source := zfstest.New("source")
	dest := zfstest.New("dest")
	base := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	snaps := seedSource(t, source, "tank/data", 3, base)

	engine := New(source, dest, nil)
	require.NoError(t, engine.Replicate(ctx, "tank/data", "backup/data", Options{Initialize: true}))

	sourceHolds, err := source.GetHolds(ctx, []string{snaps[0].LongName(), snaps[1].LongName(), snaps[2].LongName()})
	require.NoError(t, err)
	// Only the newest transferred snapshot should still carry this tool's hold.
	var held []string
	for _, h := range sourceHolds {
		held = append(held, h.Snapshot)
	}
	require.Equal(t, []string{snaps[2].LongName()}, held)
}

func TestReplicateRecursiveHierarchy(t *testing.T) {
	ctx := context.Background()
	source := zfstest.New("source")
	dest := zfstest.New("dest")
	base := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)

	source.AddSnapshot(zfs.Snapshot{Dataset: "tank", ShortName: "s1", Timestamp: base, Tags: zfs.UnsetTags()})
	source.AddSnapshot(zfs.Snapshot{Dataset: "tank/child", ShortName: "s1", Timestamp: base, Tags: zfs.UnsetTags()})

	engine := New(source, dest, nil)
	err := engine.Replicate(ctx, "tank", "backup", Options{Recursive: true, Initialize: true})
	require.NoError(t, err)

	rootSnaps, err := dest.ListSnapshots(ctx, zfs.ListSnapshotsOptions{Dataset: "backup"})
	require.NoError(t, err)
	require.Len(t, rootSnaps, 1)

	childSnaps, err := dest.ListSnapshots(ctx, zfs.ListSnapshotsOptions{Dataset: "backup/child"})
	require.NoError(t, err)
	require.Len(t, childSnaps, 1)
}
