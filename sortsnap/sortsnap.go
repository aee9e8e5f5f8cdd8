// Package sortsnap orders snapshots into the canonical sequence every other
// stage (list, prune, replication) relies on: oldest first, with ties
// broken deterministically so that behavior never depends on map iteration
// order or on the order the backing store happened to list things in.
package sortsnap

import (
	"sort"

	zfs "github.com/zfsnappr/zfsnappr"
)

// Sort returns a new slice of snaps ordered by (timestamp, dataset depth,
// dataset name, guid), ascending unless reverse is true. The input slice is
// not modified.
func Sort(snaps []zfs.Snapshot, reverse bool) []zfs.Snapshot {
	out := make([]zfs.Snapshot, len(snaps))
	copy(out, snaps)

	less := func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if da, db := a.Depth(), b.Depth(); da != db {
			return da < db
		}
		if a.Dataset != b.Dataset {
			return a.Dataset < b.Dataset
		}
		return a.GUID < b.GUID
	}

	if reverse {
		sort.SliceStable(out, func(i, j int) bool { return less(j, i) })
	} else {
		sort.SliceStable(out, less)
	}
	return out
}
