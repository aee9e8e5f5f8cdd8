package filter

import (
	"testing"

	"github.com/stretchr/testify/require"

	zfs "github.com/zfsnappr/zfsnappr"
)

func TestApplyTagGroupOr(t *testing.T) {
	snaps := []zfs.Snapshot{
		{ShortName: "a", Tags: zfs.NewTags("daily")},
		{ShortName: "b", Tags: zfs.NewTags("weekly")},
		{ShortName: "c", Tags: zfs.NewTags("monthly")},
	}
	out := Apply(snaps, Options{Tags: []TagGroup{{"daily"}, {"weekly"}}})
	require.Len(t, out, 2)
	require.Equal(t, "a", out[0].ShortName)
	require.Equal(t, "b", out[1].ShortName)
}

func TestApplyTagGroupAnd(t *testing.T) {
	snaps := []zfs.Snapshot{
		{ShortName: "a", Tags: zfs.NewTags("daily", "keep")},
		{ShortName: "b", Tags: zfs.NewTags("daily")},
	}
	out := Apply(snaps, Options{Tags: []TagGroup{{"daily", "keep"}}})
	require.Len(t, out, 1)
	require.Equal(t, "a", out[0].ShortName)
}

func TestApplyUnsetToken(t *testing.T) {
	snaps := []zfs.Snapshot{
		{ShortName: "unset", Tags: zfs.UnsetTags()},
		{ShortName: "empty", Tags: zfs.NewTags()},
		{ShortName: "tagged", Tags: zfs.NewTags("daily")},
	}
	out := Apply(snaps, Options{Tags: []TagGroup{{"UNSET"}}})
	require.Len(t, out, 1)
	require.Equal(t, "unset", out[0].ShortName)
}

func TestApplyEmptyStringToken(t *testing.T) {
	snaps := []zfs.Snapshot{
		{ShortName: "unset", Tags: zfs.UnsetTags()},
		{ShortName: "empty", Tags: zfs.NewTags()},
	}
	out := Apply(snaps, Options{Tags: []TagGroup{{""}}})
	require.Len(t, out, 1)
	require.Equal(t, "empty", out[0].ShortName)
}

func TestApplyDatasetAndShortnameFilters(t *testing.T) {
	snaps := []zfs.Snapshot{
		{Dataset: "tank/a", ShortName: "s1"},
		{Dataset: "tank/b", ShortName: "s1"},
		{Dataset: "tank/a", ShortName: "s2"},
	}
	out := Apply(snaps, Options{Datasets: []string{"tank/a"}, ShortNames: []string{"s1"}})
	require.Len(t, out, 1)
	require.Equal(t, "tank/a", out[0].Dataset)
	require.Equal(t, "s1", out[0].ShortName)
}

func TestParseTagGroups(t *testing.T) {
	groups := ParseTagGroups([]string{"daily,keep", "weekly"})
	require.Equal(t, []TagGroup{{"daily", "keep"}, {"weekly"}}, groups)
}
