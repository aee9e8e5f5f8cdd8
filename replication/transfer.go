package replication

import (
	"context"
	"fmt"
	"time"

	"github.com/zfsnappr/zfsnappr/sortsnap"

	zfs "github.com/zfsnappr/zfsnappr"
)

// replicateOne replicates a single dataset: sourceSnaps is this dataset's
// snapshots only, newest-first. existingDest is consulted (and updated) for
// the destination-existence check.
func (e *Engine) replicateOne(ctx context.Context, sourceDataset string, sourceSnaps []zfs.Snapshot, destDataset string, existingDest map[string]bool, opts Options) error {
	if len(sourceSnaps) == 0 {
		e.Logger.Info("replication.Engine.Replicate: Dataset has no snapshots to replicate, skipping", "dataset", sourceDataset)
		return nil
	}

	if !existingDest[destDataset] {
		if !opts.Initialize {
			return fail(sourceDataset, destDataset, ErrDestinationMissing)
		}
		if err := e.initialize(ctx, sourceDataset, destDataset, sourceSnaps); err != nil {
			return fail(sourceDataset, destDataset, err)
		}
		existingDest[destDataset] = true
	}

	sourceDS, err := e.Source.GetDataset(ctx, sourceDataset)
	if err != nil {
		return fail(sourceDataset, destDataset, fmt.Errorf("getting source dataset: %w", err))
	}
	destDS, err := e.Dest.GetDataset(ctx, destDataset)
	if err != nil {
		return fail(sourceDataset, destDataset, fmt.Errorf("getting destination dataset: %w", err))
	}

	destSnaps, err := e.Dest.ListSnapshots(ctx, zfs.ListSnapshotsOptions{Dataset: destDataset})
	if err != nil {
		return fail(sourceDataset, destDataset, fmt.Errorf("listing destination snapshots: %w", err))
	}
	destSnaps = sortsnap.Sort(destSnaps, true)

	sourceTag := holdTagSource(destDS.GUID)
	destTag := holdTagDest(sourceDS.GUID)

	common, haveCommon := determineLatestCommon(sourceSnaps, destSnaps)

	if err := e.ensureHolds(ctx, sourceDataset, destDataset, sourceSnaps, destSnaps, sourceTag, destTag, common, haveCommon); err != nil {
		return fail(sourceDataset, destDataset, err)
	}

	if len(destSnaps) == 0 {
		return fail(sourceDataset, destDataset, ErrDestinationEmpty)
	}
	if !haveCommon {
		return fail(sourceDataset, destDataset, ErrNoCommonSnapshot)
	}
	if common.Dest.GUID != destSnaps[0].GUID {
		return fail(sourceDataset, destDataset, ErrDestinationAhead)
	}

	commonIdx := -1
	for i, s := range sourceSnaps {
		if s.GUID == common.Source.GUID {
			commonIdx = i
			break
		}
	}
	if commonIdx < 0 {
		return fail(sourceDataset, destDataset, ErrNoCommonSnapshot)
	}

	sequence := make([]zfs.Snapshot, commonIdx+1)
	for i, s := range sourceSnaps[:commonIdx+1] {
		sequence[commonIdx-i] = s
	}

	if len(sequence) < 2 {
		e.Logger.Info("replication.Engine.Replicate: Destination already up to date", "dataset", sourceDataset)
		return nil
	}

	for i := 0; i+1 < len(sequence); i++ {
		if sequence[i].Timestamp.Equal(sequence[i+1].Timestamp) {
			return fail(sourceDataset, destDataset, fmt.Errorf("%w: %s and %s", ErrTimestampCollision, sequence[i].ShortName, sequence[i+1].ShortName))
		}
	}

	if opts.Rollback {
		if err := e.Dest.Rollback(ctx, destSnaps[0].LongName(), false); err != nil {
			return fail(sourceDataset, destDataset, fmt.Errorf("rolling back destination: %w", err))
		}
	}

	e.EmitEvent(TransferStartedEvent, sourceDataset, destDataset, len(sequence)-1)
	for i := 0; i+1 < len(sequence); i++ {
		base, target := sequence[i], sequence[i+1]
		e.Logger.Info("replication.Engine.Replicate: Transferring snapshot", "dataset", sourceDataset, "base", base.ShortName, "target", target.ShortName)
		if err := e.transferStep(ctx, destDataset, base, target, sourceTag, destTag); err != nil {
			e.EmitEvent(TransferFailedEvent, sourceDataset, destDataset, target.LongName(), err)
			return fail(sourceDataset, destDataset, fmt.Errorf("transferring %s: %w", target.LongName(), err))
		}
		e.EmitEvent(TransferProgressEvent, sourceDataset, destDataset, target.LongName())
	}
	e.EmitEvent(TransferCompletedEvent, sourceDataset, destDataset)
	return nil
}

// initialize performs the first, full send of a dataset that doesn't exist
// yet on the destination, using the oldest snapshot available on the source.
func (e *Engine) initialize(ctx context.Context, sourceDataset, destDataset string, sourceSnaps []zfs.Snapshot) error {
	oldest := sourceSnaps[len(sourceSnaps)-1]

	sourceDS, err := e.Source.GetDataset(ctx, sourceDataset)
	if err != nil {
		return fmt.Errorf("getting source dataset: %w", err)
	}

	props := map[string]string{
		zfs.PropertyReadOnly: zfs.ValueOn,
		zfs.PropertyATime:    zfs.ValueOff,
	}
	if sourceDS.Type == zfs.DatasetFilesystem {
		props[zfs.PropertyCanMount] = zfs.ValueOff
		props[zfs.PropertyMountPoint] = zfs.ValueNone
	}

	e.Logger.Info("replication.Engine.Replicate: Sending initial snapshot", "dataset", sourceDataset, "snapshot", oldest.ShortName)

	sendProc, err := e.Source.SendSnapshot(ctx, oldest.LongName(), "", zfs.SendOptions{})
	if err != nil {
		return fmt.Errorf("initial send: %w", err)
	}
	recvProc, err := e.Dest.ReceiveSnapshot(ctx, destDataset, sendProc, zfs.ReceiveOptions{Properties: props})
	if err != nil {
		sendProc.Terminate(e.terminateGrace())
		return fmt.Errorf("initial receive: %w", err)
	}
	if err := e.supervise(ctx, sendProc, recvProc); err != nil {
		return fmt.Errorf("initial transfer: %w", err)
	}

	destLongName := destDataset + "@" + oldest.ShortName
	if oldest.Tags.IsSet() {
		if err := e.Dest.SetProperty(ctx, destLongName, e.tagsProperty(), oldest.Tags.String()); err != nil {
			return fmt.Errorf("copying tags onto %s: %w", destLongName, err)
		}
	}
	return nil
}

// transferStep sends the incremental delta from base to target, waits for
// both ends, copies tags onto the new destination snapshot, then migrates
// the sendbase/recvbase holds from base to target on both sides.
func (e *Engine) transferStep(ctx context.Context, destDataset string, base, target zfs.Snapshot, sourceTag, destTag string) error {
	sendProc, err := e.Source.SendSnapshot(ctx, target.LongName(), base.LongName(), zfs.SendOptions{})
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	recvProc, err := e.Dest.ReceiveSnapshot(ctx, destDataset, sendProc, zfs.ReceiveOptions{})
	if err != nil {
		sendProc.Terminate(e.terminateGrace())
		return fmt.Errorf("receive: %w", err)
	}
	if err := e.supervise(ctx, sendProc, recvProc); err != nil {
		return err
	}

	destLongName := destDataset + "@" + target.ShortName
	if target.Tags.IsSet() {
		if err := e.Dest.SetProperty(ctx, destLongName, e.tagsProperty(), target.Tags.String()); err != nil {
			return fmt.Errorf("copying tags onto %s: %w", destLongName, err)
		}
	}

	if err := e.Source.Hold(ctx, []string{target.LongName()}, sourceTag); err != nil {
		return fmt.Errorf("holding new source base: %w", err)
	}
	if err := e.Dest.Hold(ctx, []string{destLongName}, destTag); err != nil {
		return fmt.Errorf("holding new destination base: %w", err)
	}
	e.EmitEvent(HoldCreatedEvent, target.LongName(), destLongName)

	// base is guaranteed held already (it was the previous step's target, or
	// the latest common snapshot ensureHolds placed), so releasing it here is
	// always safe.
	if err := e.Source.ReleaseHold(ctx, []string{base.LongName()}, sourceTag); err != nil {
		return fmt.Errorf("releasing previous source base: %w", err)
	}
	baseDestLongName := destDataset + "@" + base.ShortName
	if err := e.Dest.ReleaseHold(ctx, []string{baseDestLongName}, destTag); err != nil {
		return fmt.Errorf("releasing previous destination base: %w", err)
	}
	e.EmitEvent(HoldReleasedEvent, base.LongName(), baseDestLongName)
	return nil
}

// supervise polls both processes until each has exited, terminating the
// partner as soon as one side fails.
func (e *Engine) supervise(ctx context.Context, sendProc, recvProc *zfs.Process) error {
	interval := e.PollInterval
	if interval <= 0 {
		interval = zfs.DefaultPollInterval
	}
	grace := e.terminateGrace()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if sendProc.Exited() && recvProc.Exited() {
			sendErr := sendProc.Wait()
			recvErr := recvProc.Wait()
			if sendErr != nil {
				return fmt.Errorf("send: %w", sendErr)
			}
			if recvErr != nil {
				return fmt.Errorf("receive: %w", recvErr)
			}
			return nil
		}
		if sendProc.Exited() {
			if err := sendProc.Wait(); err != nil {
				recvProc.Terminate(grace)
				return fmt.Errorf("send: %w", err)
			}
		}
		if recvProc.Exited() {
			if err := recvProc.Wait(); err != nil {
				sendProc.Terminate(grace)
				return fmt.Errorf("receive: %w", err)
			}
		}

		select {
		case <-ctx.Done():
			sendProc.Terminate(grace)
			recvProc.Terminate(grace)
			return ctx.Err()
		case <-sendProc.Done():
		case <-recvProc.Done():
		case <-ticker.C:
		}
	}
}

func (e *Engine) terminateGrace() time.Duration {
	if e.TerminateGrace <= 0 {
		return zfs.DefaultTerminateGrace
	}
	return e.TerminateGrace
}

func (e *Engine) tagsProperty() string {
	if e.TagsProperty == "" {
		return zfs.DefaultTagsProperty
	}
	return e.TagsProperty
}
