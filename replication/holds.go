package replication

import (
	"context"
	"fmt"

	zfs "github.com/zfsnappr/zfsnappr"
)

func holdTagSource(destDatasetGUID uint64) string {
	return fmt.Sprintf("zfsnappr-sendbase-%d", destDatasetGUID)
}

func holdTagDest(sourceDatasetGUID uint64) string {
	return fmt.Sprintf("zfsnappr-recvbase-%d", sourceDatasetGUID)
}

// commonPair is the same snapshot, as seen on each side, with matching GUID.
type commonPair struct {
	Source, Dest zfs.Snapshot
}

// determineLatestCommon finds the snapshot with the highest (timestamp, guid)
// that exists, by guid, on both sides.
func determineLatestCommon(sourceSnaps, destSnaps []zfs.Snapshot) (commonPair, bool) {
	destByGUID := make(map[uint64]zfs.Snapshot, len(destSnaps))
	for _, s := range destSnaps {
		destByGUID[s.GUID] = s
	}

	var best commonPair
	found := false
	for _, s := range sourceSnaps {
		d, ok := destByGUID[s.GUID]
		if !ok {
			continue
		}
		if !found || s.Timestamp.After(best.Source.Timestamp) ||
			(s.Timestamp.Equal(best.Source.Timestamp) && s.GUID > best.Source.GUID) {
			best = commonPair{Source: s, Dest: d}
			found = true
		}
	}
	return best, found
}

// ensureHolds makes the latest common snapshot (if any) the only
// system-owned hold on each side, creating it if missing and releasing every
// other hold carrying these tags. When there is no common snapshot, it
// releases every hold carrying these tags on both sides instead.
func (e *Engine) ensureHolds(ctx context.Context, sourceDataset, destDataset string, sourceSnaps, destSnaps []zfs.Snapshot, sourceTag, destTag string, common commonPair, haveCommon bool) error {
	sourceHolds, err := e.Source.GetHolds(ctx, longNames(sourceSnaps))
	if err != nil {
		return fmt.Errorf("getting source holds: %w", err)
	}
	destHolds, err := e.Dest.GetHolds(ctx, longNames(destSnaps))
	if err != nil {
		return fmt.Errorf("getting destination holds: %w", err)
	}

	sourceTagged := holdSet(sourceHolds, sourceTag)
	destTagged := holdSet(destHolds, destTag)

	if !haveCommon {
		if err := e.releaseAll(ctx, e.Source, sourceTagged, sourceTag, sourceDataset); err != nil {
			return err
		}
		return e.releaseAll(ctx, e.Dest, destTagged, destTag, destDataset)
	}

	if !sourceTagged[common.Source.LongName()] {
		e.Logger.Info("replication.Engine: Creating hold on latest common snapshot", "side", "source", "snapshot", common.Source.LongName())
		if err := e.Source.Hold(ctx, []string{common.Source.LongName()}, sourceTag); err != nil {
			return fmt.Errorf("holding source common snapshot: %w", err)
		}
	}
	if !destTagged[common.Dest.LongName()] {
		e.Logger.Info("replication.Engine: Creating hold on latest common snapshot", "side", "dest", "snapshot", common.Dest.LongName())
		if err := e.Dest.Hold(ctx, []string{common.Dest.LongName()}, destTag); err != nil {
			return fmt.Errorf("holding destination common snapshot: %w", err)
		}
	}

	delete(sourceTagged, common.Source.LongName())
	delete(destTagged, common.Dest.LongName())
	if err := e.releaseAll(ctx, e.Source, sourceTagged, sourceTag, sourceDataset); err != nil {
		return err
	}
	return e.releaseAll(ctx, e.Dest, destTagged, destTag, destDataset)
}

func (e *Engine) releaseAll(ctx context.Context, store zfs.SnapshotStore, tagged map[string]bool, tag, dataset string) error {
	if len(tagged) == 0 {
		return nil
	}
	names := make([]string, 0, len(tagged))
	for name := range tagged {
		names = append(names, name)
	}
	e.Logger.Info("replication.Engine: Releasing obsolete holds", "dataset", dataset, "count", len(names))
	if err := store.ReleaseHold(ctx, names, tag); err != nil {
		return fmt.Errorf("releasing obsolete holds on %s: %w", dataset, err)
	}
	return nil
}

func holdSet(holds []zfs.Hold, tag string) map[string]bool {
	out := make(map[string]bool)
	for _, h := range holds {
		if h.Tag == tag {
			out[h.Snapshot] = true
		}
	}
	return out
}

func longNames(snaps []zfs.Snapshot) []string {
	out := make([]string, len(snaps))
	for i, s := range snaps {
		out[i] = s.LongName()
	}
	return out
}
