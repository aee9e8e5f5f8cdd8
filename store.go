package zfs

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// maxHoldsPerCall caps how many snapshot names are passed to a single `zfs
// holds` invocation, matching the original tool's batching (long argument
// lists otherwise risk exceeding the shell's ARG_MAX).
const maxHoldsPerCall = 5000

// ListSnapshotsOptions controls SnapshotStore.ListSnapshots.
type ListSnapshotsOptions struct {
	// Dataset restricts the listing to this dataset (and, if Recursive, its
	// descendants). Empty means every dataset on the pool(s) reachable by
	// this store.
	Dataset string
	// Recursive includes descendant datasets' snapshots.
	Recursive bool
	// ExcludeDatasets filters out snapshots whose dataset equals, or is a
	// descendant of, one of these names. Applied client-side: see
	// SPEC_FULL.md C.4.
	ExcludeDatasets []string
}

// SnapshotStore is the interface a SnapshotStore caller drives ZFS through.
// NewLocalStore and NewRemoteStore build the zfs-backed implementation; the
// commands it issues are identical in both cases - only whether they are
// prefixed with ssh differs.
type SnapshotStore interface {
	// Endpoint identifies where this store runs, for logging and for
	// deriving holds/replication naming.
	Endpoint() string

	ListSnapshots(ctx context.Context, opts ListSnapshotsOptions) ([]Snapshot, error)
	ListDatasets(ctx context.Context, extraColumns ...string) ([]Dataset, error)
	GetDataset(ctx context.Context, name string) (Dataset, error)

	CreateSnapshot(ctx context.Context, longName string, recursive bool, properties map[string]string) error
	DestroySnapshots(ctx context.Context, dataset string, shortNames []string) error
	RenameSnapshot(ctx context.Context, longName, newShortName string) error
	Rollback(ctx context.Context, longName string, destroyMoreRecent bool) error
	SetProperty(ctx context.Context, longName, key, value string) error
	GetProperty(ctx context.Context, longName, key string) (string, error)

	GetHolds(ctx context.Context, longNames []string) ([]Hold, error)
	Hold(ctx context.Context, longNames []string, tag string) error
	ReleaseHold(ctx context.Context, longNames []string, tag string) error

	SendSnapshot(ctx context.Context, longName, baseLongName string, opts SendOptions) (*Process, error)
	ReceiveSnapshot(ctx context.Context, dataset string, stdin *Process, opts ReceiveOptions) (*Process, error)
}

type store struct {
	ep            endpoint
	propertyNames PropertyNames
	logger        *slog.Logger
}

// NewLocalStore returns a SnapshotStore that runs zfs directly on this host.
func NewLocalStore(propertyNames PropertyNames, logger *slog.Logger) SnapshotStore {
	propertyNames.ApplyDefaults()
	return &store{propertyNames: propertyNames, logger: loggerOrDefault(logger)}
}

// NewRemoteStore returns a SnapshotStore that runs zfs on host via ssh, as
// user (optional) on the given port (0 means ssh's default).
func NewRemoteStore(user, host string, port int, propertyNames PropertyNames, logger *slog.Logger) SnapshotStore {
	propertyNames.ApplyDefaults()
	return &store{
		ep:            endpoint{user: user, host: host, port: port},
		propertyNames: propertyNames,
		logger:        loggerOrDefault(logger),
	}
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

func (s *store) Endpoint() string {
	return s.ep.String()
}

func (s *store) run(ctx context.Context, arg ...string) ([][]string, error) {
	c := command{ctx: ctx, ep: s.ep}
	return c.Run(arg...)
}

func (s *store) ListDatasets(ctx context.Context, extraColumns ...string) ([]Dataset, error) {
	columns := mergeColumns(datasetColumns, extraColumns...)
	out, err := s.run(ctx, "list", "-Hp", "-t", string(DatasetAll), "-o", strings.Join(columns, ","))
	if err != nil {
		return nil, err
	}
	datasets := make([]Dataset, 0, len(out))
	for _, fields := range out {
		ds, err := datasetFromFields(fields, columns)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, ds)
	}
	return datasets, nil
}

func (s *store) GetDataset(ctx context.Context, name string) (Dataset, error) {
	out, err := s.run(ctx, "list", "-Hp", "-o", strings.Join(datasetColumns, ","), name)
	if err != nil {
		return Dataset{}, err
	}
	if len(out) != 1 {
		return Dataset{}, fmt.Errorf("zfs: expected exactly one dataset for %q, got %d", name, len(out))
	}
	return datasetFromFields(out[0], datasetColumns)
}

func (s *store) ListSnapshots(ctx context.Context, opts ListSnapshotsOptions) ([]Snapshot, error) {
	columns := mergeColumns(snapshotColumns, s.propertyNames.Tags)
	args := []string{"list", "-Hp", "-t", string(DatasetSnapshot), "-o", strings.Join(columns, ",")}
	if opts.Recursive {
		args = append(args, "-r")
	}
	if opts.Dataset != "" {
		args = append(args, opts.Dataset)
	}

	out, err := s.run(ctx, args...)
	if err != nil {
		return nil, err
	}

	snaps := make([]Snapshot, 0, len(out))
	for _, fields := range out {
		snap, err := snapshotFromFields(fields, columns, s.propertyNames.Tags)
		if err != nil {
			return nil, err
		}
		if excluded(snap.Dataset, opts.ExcludeDatasets) {
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

func excluded(dataset string, excludeDatasets []string) bool {
	for _, ex := range excludeDatasets {
		if dataset == ex || strings.HasPrefix(dataset, ex+"/") {
			return true
		}
	}
	return false
}

func (s *store) CreateSnapshot(ctx context.Context, longName string, recursive bool, properties map[string]string) error {
	args := make([]string, 1, 4+len(properties)*2)
	args[0] = "snapshot"
	if recursive {
		args = append(args, "-r")
	}
	args = append(args, propsSlice(properties)...)
	args = append(args, longName)
	_, err := s.run(ctx, args...)
	return err
}

// DestroySnapshots destroys one or more snapshots of the same dataset in a
// single comma-batched `zfs destroy dataset@a,b,c` invocation.
func (s *store) DestroySnapshots(ctx context.Context, dataset string, shortNames []string) error {
	if len(shortNames) == 0 {
		return nil
	}
	target := dataset + "@" + strings.Join(shortNames, ",")
	_, err := s.run(ctx, "destroy", target)
	return err
}

func (s *store) RenameSnapshot(ctx context.Context, longName, newShortName string) error {
	dataset, _, ok := splitLongName(longName)
	if !ok {
		return fmt.Errorf("zfs: %q is not a snapshot name", longName)
	}
	_, err := s.run(ctx, "rename", longName, dataset+"@"+newShortName)
	return err
}

func (s *store) Rollback(ctx context.Context, longName string, destroyMoreRecent bool) error {
	args := make([]string, 1, 3)
	args[0] = "rollback"
	if destroyMoreRecent {
		args = append(args, "-r")
	}
	args = append(args, longName)
	_, err := s.run(ctx, args...)
	return err
}

func (s *store) SetProperty(ctx context.Context, longName, key, value string) error {
	_, err := s.run(ctx, "set", key+"="+value, longName)
	return err
}

func (s *store) GetProperty(ctx context.Context, longName, key string) (string, error) {
	out, err := s.run(ctx, "get", "-Hp", "-o", "value", key, longName)
	if err != nil {
		return "", err
	}
	if len(out) != 1 || len(out[0]) != 1 {
		return "", fmt.Errorf("zfs: expected exactly one value for %s %s, got %v", longName, key, out)
	}
	return out[0][0], nil
}

func (s *store) GetHolds(ctx context.Context, longNames []string) ([]Hold, error) {
	holds := make([]Hold, 0, len(longNames))
	for _, batch := range batchStrings(longNames, maxHoldsPerCall) {
		if len(batch) == 0 {
			continue
		}
		args := append([]string{"holds", "-Hp"}, batch...)
		out, err := s.run(ctx, args...)
		if err != nil {
			return nil, err
		}
		for _, fields := range out {
			if len(fields) < 2 {
				continue
			}
			holds = append(holds, Hold{Snapshot: fields[0], Tag: fields[1]})
		}
	}
	return holds, nil
}

func (s *store) Hold(ctx context.Context, longNames []string, tag string) error {
	for _, batch := range batchStrings(longNames, maxHoldsPerCall) {
		if len(batch) == 0 {
			continue
		}
		args := append([]string{"hold", tag}, batch...)
		if _, err := s.run(ctx, args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *store) ReleaseHold(ctx context.Context, longNames []string, tag string) error {
	for _, batch := range batchStrings(longNames, maxHoldsPerCall) {
		if len(batch) == 0 {
			continue
		}
		args := append([]string{"release", tag}, batch...)
		if _, err := s.run(ctx, args...); err != nil {
			return err
		}
	}
	return nil
}

func (s *store) SendSnapshot(ctx context.Context, longName, baseLongName string, opts SendOptions) (*Process, error) {
	cmd := startCommand(ctx, s.ep, Binary, sendArgs(longName, baseLongName, opts)...)
	rawStdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	stdout, _, err := wrapSendStdout(ctx, rawStdout, opts)
	if err != nil {
		return nil, err
	}
	return startProcess(cmd, stdout, stderr)
}

func (s *store) ReceiveSnapshot(ctx context.Context, dataset string, upstream *Process, opts ReceiveOptions) (*Process, error) {
	cmd := startCommand(ctx, s.ep, Binary, receiveArgs(dataset, opts)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	src, closeSrc, err := wrapReceiveStdin(upstream.Stdout, opts)
	if err != nil {
		return nil, err
	}
	go func() {
		defer closeSrc()
		defer stdin.Close()
		_, _ = io.Copy(stdin, src)
	}()

	return startProcess(cmd, nil, stderr)
}

func splitLongName(longName string) (dataset, shortName string, ok bool) {
	idx := strings.IndexByte(longName, '@')
	if idx < 0 {
		return "", "", false
	}
	return longName[:idx], longName[idx+1:], true
}

func batchStrings(items []string, size int) [][]string {
	if len(items) == 0 {
		return nil
	}
	batches := make([][]string, 0, (len(items)+size-1)/size)
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[i:end])
	}
	return batches
}
