// Package prune drives RetentionPolicy over a snapshot collection and turns
// the resulting destroy list into SnapshotStore.DestroySnapshots calls,
// enforcing the safety guard that keeps a misconfigured policy from wiping a
// dataset.
package prune

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	eventemitter "github.com/vansante/go-event-emitter"

	"github.com/zfsnappr/zfsnappr/retention"

	zfs "github.com/zfsnappr/zfsnappr"
)

// ErrRefuseDestroyAll is returned when a policy would keep zero snapshots
// and the caller did not explicitly name snapshots to destroy.
var ErrRefuseDestroyAll = errors.New("policy keeps no snapshots and allow-destroy-all was not set")

// GroupBy selects how the input snapshot collection is partitioned before
// RetentionPolicy is applied to each partition independently.
type GroupBy int

const (
	// GroupByNone applies the policy to the whole input as one group.
	GroupByNone GroupBy = iota
	// GroupByDataset applies the policy independently per dataset.
	GroupByDataset
)

// Options configures one Run call.
type Options struct {
	GroupBy GroupBy
	// DryRun computes and reports the keep/destroy partition without issuing
	// any destroy calls.
	DryRun bool
	// AllowDestroyAll bypasses the RefuseDestroyAll guard. Set this when the
	// operator named snapshots explicitly on the command line.
	AllowDestroyAll bool
}

// Result is what actually happened (or would happen, under DryRun).
type Result struct {
	Keep    []zfs.Snapshot
	Destroy []zfs.Snapshot
	// Failed holds snapshots that were supposed to be destroyed but whose
	// destroy call failed; the orchestrator logs these and continues.
	Failed []zfs.Snapshot
}

// Orchestrator groups snapshots, applies a KeepPolicy, enforces the
// destroy-all guard, and issues destroy calls against a Store.
type Orchestrator struct {
	*eventemitter.Emitter

	Store  zfs.SnapshotStore
	Logger *slog.Logger
}

// New builds an Orchestrator. logger may be nil, in which case slog.Default
// is used.
func New(store zfs.SnapshotStore, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		Emitter: eventemitter.NewEmitter(false),
		Store:   store,
		Logger:  logger,
	}
}

// Run evaluates policy over snapshots (grouped per opts.GroupBy), enforces
// the safety guard, and, unless opts.DryRun, destroys everything the policy
// didn't keep. now is the reference time for the policy's duration buckets.
func (o *Orchestrator) Run(ctx context.Context, snapshots []zfs.Snapshot, policy retention.KeepPolicy, now time.Time, opts Options) (Result, error) {
	if len(snapshots) == 0 {
		o.Logger.Info("prune.Orchestrator.Run: No snapshots to evaluate")
		return Result{}, nil
	}

	groups := groupSnapshots(snapshots, opts.GroupBy)

	var keep, destroy []zfs.Snapshot
	for _, group := range groups {
		k, d := retention.Apply(group, policy, now, o.Logger)
		keep = append(keep, k...)
		destroy = append(destroy, d...)
	}

	if len(keep) == 0 && !opts.AllowDestroyAll {
		return Result{}, fmt.Errorf("prune.Orchestrator.Run: %w", ErrRefuseDestroyAll)
	}

	result := Result{Keep: keep, Destroy: destroy}

	if len(destroy) == 0 {
		o.Logger.Info("prune.Orchestrator.Run: Nothing to destroy", "kept", len(keep))
		return result, nil
	}
	if opts.DryRun {
		o.Logger.Info("prune.Orchestrator.Run: Dry run, not destroying anything",
			"kept", len(keep), "wouldDestroy", len(destroy))
		return result, nil
	}

	for _, snap := range destroy {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}

		o.EmitEvent(DestroyingSnapshotEvent, snap.LongName())
		err := o.Store.DestroySnapshots(ctx, snap.Dataset, []string{snap.ShortName})
		if err != nil {
			o.Logger.Warn("prune.Orchestrator.Run: Failed to destroy snapshot",
				"snapshot", snap.LongName(), "error", err)
			result.Failed = append(result.Failed, snap)
			o.EmitEvent(DestroyFailedEvent, snap.LongName(), err)
			continue
		}

		o.Logger.Debug("prune.Orchestrator.Run: Destroyed snapshot", "snapshot", snap.LongName())
		o.EmitEvent(DestroyedSnapshotEvent, snap.LongName())
	}

	return result, nil
}

func groupSnapshots(snapshots []zfs.Snapshot, by GroupBy) [][]zfs.Snapshot {
	if by != GroupByDataset {
		return [][]zfs.Snapshot{snapshots}
	}

	index := make(map[string]int)
	var groups [][]zfs.Snapshot
	for _, snap := range snapshots {
		i, ok := index[snap.Dataset]
		if !ok {
			i = len(groups)
			index[snap.Dataset] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], snap)
	}
	return groups
}
