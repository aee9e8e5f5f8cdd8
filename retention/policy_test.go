package retention

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	zfs "github.com/zfsnappr/zfsnappr"
)

func mkSnap(guid uint64, ts time.Time, tags zfs.Tags) zfs.Snapshot {
	return zfs.Snapshot{
		Dataset:   "tank/data",
		ShortName: "auto",
		GUID:      guid,
		Timestamp: ts,
		Tags:      tags,
	}
}

func TestApplyLastKeepsNewestN(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	var snaps []zfs.Snapshot
	for i := 0; i < 5; i++ {
		snaps = append(snaps, mkSnap(uint64(i+1), now.Add(-time.Duration(i)*time.Hour), zfs.UnsetTags()))
	}

	keep, destroy := Apply(snaps, KeepPolicy{Last: 2}, now, nil)
	require.Len(t, keep, 2)
	require.Len(t, destroy, 3)
	require.Equal(t, uint64(1), keep[0].GUID)
	require.Equal(t, uint64(2), keep[1].GUID)
}

func TestApplyDailyBucketKeepsOnePerDay(t *testing.T) {
	now := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	snaps := []zfs.Snapshot{
		mkSnap(1, now.AddDate(0, 0, -2), zfs.UnsetTags()),
		mkSnap(2, now.AddDate(0, 0, -1).Add(2*time.Hour), zfs.UnsetTags()),
		mkSnap(3, now.AddDate(0, 0, -1).Add(20*time.Hour), zfs.UnsetTags()),
		mkSnap(4, now, zfs.UnsetTags()),
	}

	keep, _ := Apply(snaps, KeepPolicy{Daily: 2}, now, nil)
	require.Len(t, keep, 2)
	kept := map[uint64]bool{keep[0].GUID: true, keep[1].GUID: true}
	require.True(t, kept[4])
	require.True(t, kept[3])
}

func TestApplyWithinKeepsRecentOnly(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	within, err := ParseDuration("1d")
	require.NoError(t, err)

	snaps := []zfs.Snapshot{
		mkSnap(1, now.Add(-2*time.Hour), zfs.UnsetTags()),
		mkSnap(2, now.AddDate(0, 0, -3), zfs.UnsetTags()),
	}

	keep, destroy := Apply(snaps, KeepPolicy{Within: within}, now, nil)
	require.Len(t, keep, 1)
	require.Equal(t, uint64(1), keep[0].GUID)
	require.Len(t, destroy, 1)
}

func TestApplyNamePatternForceKeep(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	snaps := []zfs.Snapshot{
		{Dataset: "tank/data", ShortName: "release-1.0", GUID: 1, Timestamp: now, Tags: zfs.UnsetTags()},
		{Dataset: "tank/data", ShortName: "auto-1", GUID: 2, Timestamp: now.Add(-time.Hour), Tags: zfs.UnsetTags()},
	}

	keep, _ := Apply(snaps, KeepPolicy{NamePattern: regexp.MustCompile(`release-.*`)}, now, nil)
	require.Len(t, keep, 1)
	require.Equal(t, uint64(1), keep[0].GUID)
}

func TestApplyTagPolicyKeepsMatchingAndWarnsOnUnset(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	snaps := []zfs.Snapshot{
		mkSnap(1, now, zfs.NewTags("keep")),
		mkSnap(2, now.Add(-time.Hour), zfs.NewTags("discard")),
		mkSnap(3, now.Add(-2*time.Hour), zfs.UnsetTags()),
	}

	keep, destroy := Apply(snaps, KeepPolicy{Tags: []string{"keep"}}, now, nil)
	keptGUIDs := map[uint64]bool{}
	for _, s := range keep {
		keptGUIDs[s.GUID] = true
	}
	require.True(t, keptGUIDs[1])
	require.True(t, keptGUIDs[3], "externally-created snapshot must be force-kept")
	require.Len(t, destroy, 1)
	require.Equal(t, uint64(2), destroy[0].GUID)
}

func TestApplyPreservesInputOrder(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	snaps := []zfs.Snapshot{
		mkSnap(3, now.Add(-2*time.Hour), zfs.UnsetTags()),
		mkSnap(1, now, zfs.UnsetTags()),
		mkSnap(2, now.Add(-time.Hour), zfs.UnsetTags()),
	}

	keep, _ := Apply(snaps, KeepPolicy{Last: 3}, now, nil)
	require.Equal(t, []uint64{3, 1, 2}, []uint64{keep[0].GUID, keep[1].GUID, keep[2].GUID})
}

func TestApplyBreaksTimestampTieByGUIDDescending(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	tied := now.Add(-time.Hour)
	snaps := []zfs.Snapshot{
		mkSnap(10, tied, zfs.UnsetTags()),
		mkSnap(20, tied, zfs.UnsetTags()),
		mkSnap(1, now.Add(-2*time.Hour), zfs.UnsetTags()),
	}

	keep, destroy := Apply(snaps, KeepPolicy{Last: 1}, now, nil)
	require.Len(t, keep, 1)
	require.Equal(t, uint64(20), keep[0].GUID, "of two same-timestamp snapshots, the higher guid must be the bucket representative")
	require.Len(t, destroy, 2)
}
