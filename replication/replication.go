// Package replication implements the source→destination incremental
// snapshot transfer protocol: computing a common base, sequencing sends,
// and using holds on both ends so a concurrent prune can never destroy the
// snapshot a transfer depends on.
package replication

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	eventemitter "github.com/vansante/go-event-emitter"

	"github.com/zfsnappr/zfsnappr/sortsnap"

	zfs "github.com/zfsnappr/zfsnappr"
)

// Sentinel errors identifying why a dataset's replication aborted. Wrap
// these with Error to attach the dataset pair they occurred for.
var (
	ErrDestinationMissing = errors.New("destination dataset does not exist")
	ErrNoCommonSnapshot   = errors.New("source and destination have no common snapshot")
	ErrDestinationAhead   = errors.New("destination has snapshots newer than the latest common snapshot")
	ErrDestinationEmpty   = errors.New("destination has no snapshots")
	ErrTimestampCollision = errors.New("two snapshots to transfer share a timestamp")
	ErrNoSourceSnapshots  = errors.New("source has no snapshots to replicate")
)

// Error wraps a sentinel with the dataset pair it occurred for.
type Error struct {
	Source, Dest string
	Err          error
}

func (e *Error) Error() string {
	return fmt.Sprintf("replication %s -> %s: %v", e.Source, e.Dest, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func fail(source, dest string, err error) error {
	return &Error{Source: source, Dest: dest, Err: err}
}

// Options configures one Replicate call.
type Options struct {
	Recursive       bool
	Initialize      bool
	Rollback        bool
	ExcludeDatasets []string
}

// Engine drives replication between a source and destination SnapshotStore.
type Engine struct {
	*eventemitter.Emitter

	Source zfs.SnapshotStore
	Dest   zfs.SnapshotStore
	Logger *slog.Logger

	// PollInterval and TerminateGrace default to zfs.DefaultPollInterval and
	// zfs.DefaultTerminateGrace when zero.
	PollInterval   time.Duration
	TerminateGrace time.Duration

	// TagsProperty is the user property the tag-copy step writes on the
	// destination snapshot. Defaults to zfs.DefaultTagsProperty.
	TagsProperty string
}

// New builds an Engine with the default poll interval, terminate grace, and
// tags property.
func New(source, dest zfs.SnapshotStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		Emitter:        eventemitter.NewEmitter(false),
		Source:         source,
		Dest:           dest,
		Logger:         logger,
		PollInterval:   zfs.DefaultPollInterval,
		TerminateGrace: zfs.DefaultTerminateGrace,
		TagsProperty:   zfs.DefaultTagsProperty,
	}
}

// Replicate transfers sourceDataset to destDataset, recursing into child
// datasets when opts.Recursive is set. Phase 0 (enumerate) per spec §4.7:
// list source snapshots once, sort newest-first, cache the destination
// dataset set, then dispatch to the single-dataset or hierarchy path.
func (e *Engine) Replicate(ctx context.Context, sourceDataset, destDataset string, opts Options) error {
	sourceSnaps, err := e.Source.ListSnapshots(ctx, zfs.ListSnapshotsOptions{
		Dataset:         sourceDataset,
		Recursive:       opts.Recursive,
		ExcludeDatasets: opts.ExcludeDatasets,
	})
	if err != nil {
		return fail(sourceDataset, destDataset, fmt.Errorf("listing source snapshots: %w", err))
	}
	sourceSnaps = sortsnap.Sort(sourceSnaps, true)

	destDatasets, err := e.Dest.ListDatasets(ctx)
	if err != nil {
		return fail(sourceDataset, destDataset, fmt.Errorf("listing destination datasets: %w", err))
	}
	existingDest := make(map[string]bool, len(destDatasets))
	for _, ds := range destDatasets {
		existingDest[ds.Name] = true
	}

	if !opts.Recursive {
		return e.replicateOne(ctx, sourceDataset, sourceSnaps, destDataset, existingDest, opts)
	}
	return e.replicateHierarchy(ctx, sourceDataset, sourceSnaps, destDataset, existingDest, opts)
}

// replicateHierarchy groups source snapshots by dataset and replicates each
// group, parents before children, collecting per-dataset failures.
func (e *Engine) replicateHierarchy(ctx context.Context, sourceRoot string, sourceSnaps []zfs.Snapshot, destRoot string, existingDest map[string]bool, opts Options) error {
	groups := make(map[string][]zfs.Snapshot)
	for _, snap := range sourceSnaps {
		groups[snap.Dataset] = append(groups[snap.Dataset], snap)
	}

	datasets := make([]string, 0, len(groups))
	for ds := range groups {
		datasets = append(datasets, ds)
	}
	sort.Slice(datasets, func(i, j int) bool {
		di, dj := strings.Count(datasets[i], "/"), strings.Count(datasets[j], "/")
		if di != dj {
			return di < dj
		}
		return datasets[i] < datasets[j]
	})

	var failed []string
	for _, absSourceDataset := range datasets {
		if !strings.HasPrefix(absSourceDataset, sourceRoot) {
			continue
		}
		relDataset := strings.TrimPrefix(absSourceDataset, sourceRoot)
		absDestDataset := destRoot + relDataset

		err := e.replicateOne(ctx, absSourceDataset, groups[absSourceDataset], absDestDataset, existingDest, opts)
		if err != nil {
			e.Logger.Error("replication.Engine.Replicate: Dataset failed", "dataset", absSourceDataset, "error", err)
			failed = append(failed, absSourceDataset)
		}
	}

	if len(failed) > 0 {
		return fail(sourceRoot, destRoot, fmt.Errorf("replication failed for %d dataset(s): %s", len(failed), strings.Join(failed, ", ")))
	}
	return nil
}
