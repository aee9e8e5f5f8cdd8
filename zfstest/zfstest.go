// Package zfstest provides an in-memory fake of zfs.SnapshotStore, so
// retention, prune, and replication logic can be tested without a real ZFS
// pool or a spawned zfs binary — the same role the teacher's test_util.go
// TestZPool played, minus the dependency on root privileges and loopback
// files.
package zfstest

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	zfs "github.com/zfsnappr/zfsnappr"
)

// Store is a fake zfs.SnapshotStore backed by in-memory maps. It is safe for
// concurrent use. The zero value is not usable; use New.
type Store struct {
	mu sync.Mutex

	endpoint string
	nextGUID uint64

	datasets  map[string]zfs.Dataset
	snapshots map[string]zfs.Snapshot    // keyed by longname
	holds     map[string]map[string]bool // longname -> tag -> held
}

// New returns an empty Store. endpoint is returned by Endpoint(), for
// logging/naming purposes only (it does not affect routing).
func New(endpoint string) *Store {
	return &Store{
		endpoint:  endpoint,
		datasets:  make(map[string]zfs.Dataset),
		snapshots: make(map[string]zfs.Snapshot),
		holds:     make(map[string]map[string]bool),
	}
}

func (s *Store) Endpoint() string { return s.endpoint }

// AddDataset seeds a filesystem dataset, assigning it the next GUID.
func (s *Store) AddDataset(name string) zfs.Dataset {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextGUID++
	ds := zfs.Dataset{Name: name, Type: zfs.DatasetFilesystem, GUID: s.nextGUID}
	s.datasets[name] = ds
	return ds
}

// AddSnapshot seeds a snapshot directly, bypassing CreateSnapshot, for test
// setup convenience. If the snapshot's dataset hasn't been added, it's
// created implicitly.
func (s *Store) AddSnapshot(snap zfs.Snapshot) zfs.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.GUID == 0 {
		s.nextGUID++
		snap.GUID = s.nextGUID
	}
	if _, ok := s.datasets[snap.Dataset]; !ok {
		s.nextGUID++
		s.datasets[snap.Dataset] = zfs.Dataset{Name: snap.Dataset, Type: zfs.DatasetFilesystem, GUID: s.nextGUID}
	}
	s.snapshots[snap.LongName()] = snap
	return snap
}

func (s *Store) ListSnapshots(_ context.Context, opts zfs.ListSnapshotsOptions) ([]zfs.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []zfs.Snapshot
	for _, snap := range s.snapshots {
		if opts.Dataset != "" {
			if opts.Recursive {
				if snap.Dataset != opts.Dataset && !strings.HasPrefix(snap.Dataset, opts.Dataset+"/") {
					continue
				}
			} else if snap.Dataset != opts.Dataset {
				continue
			}
		}
		if excludedDataset(snap.Dataset, opts.ExcludeDatasets) {
			continue
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LongName() < out[j].LongName() })
	return out, nil
}

func excludedDataset(dataset string, excludes []string) bool {
	for _, ex := range excludes {
		if dataset == ex || strings.HasPrefix(dataset, ex+"/") {
			return true
		}
	}
	return false
}

func (s *Store) ListDatasets(_ context.Context, _ ...string) ([]zfs.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]zfs.Dataset, 0, len(s.datasets))
	for _, ds := range s.datasets {
		out = append(out, ds)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetDataset(_ context.Context, name string) (zfs.Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ds, ok := s.datasets[name]; ok {
		return ds, nil
	}
	if snap, ok := s.snapshots[name]; ok {
		return zfs.Dataset{Name: name, Type: zfs.DatasetSnapshot, GUID: snap.GUID}, nil
	}
	return zfs.Dataset{}, fmt.Errorf("zfstest: dataset %s: %w", name, zfs.ErrDatasetNotFound)
}

func (s *Store) CreateSnapshot(_ context.Context, longName string, _ bool, properties map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dataset, shortName, ok := splitLongName(longName)
	if !ok {
		return fmt.Errorf("zfstest: %q is not a snapshot name", longName)
	}
	if _, exists := s.snapshots[longName]; exists {
		return fmt.Errorf("zfstest: snapshot %s: %w", longName, zfs.ErrDatasetExists)
	}
	if _, ok := s.datasets[dataset]; !ok {
		s.nextGUID++
		s.datasets[dataset] = zfs.Dataset{Name: dataset, Type: zfs.DatasetFilesystem, GUID: s.nextGUID}
	}

	s.nextGUID++
	snap := zfs.Snapshot{
		Dataset:   dataset,
		ShortName: shortName,
		GUID:      s.nextGUID,
		Tags:      zfs.UnsetTags(),
	}
	if tags, ok := properties["zfsnappr:tags"]; ok {
		snap.Tags = zfs.ParseTags(tags)
	}
	s.snapshots[longName] = snap
	return nil
}

func (s *Store) DestroySnapshots(_ context.Context, dataset string, shortNames []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, shortName := range shortNames {
		longName := dataset + "@" + shortName
		if held := s.holds[longName]; len(held) > 0 {
			return fmt.Errorf("zfstest: snapshot %s has holds: %w", longName, zfs.ErrSnapshotHasDependentClones)
		}
		if _, ok := s.snapshots[longName]; !ok {
			return fmt.Errorf("zfstest: snapshot %s: %w", longName, zfs.ErrDatasetNotFound)
		}
		delete(s.snapshots, longName)
	}
	return nil
}

func (s *Store) RenameSnapshot(_ context.Context, longName, newShortName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.snapshots[longName]
	if !ok {
		return fmt.Errorf("zfstest: snapshot %s: %w", longName, zfs.ErrDatasetNotFound)
	}
	delete(s.snapshots, longName)
	snap.ShortName = newShortName
	s.snapshots[snap.LongName()] = snap
	return nil
}

func (s *Store) Rollback(_ context.Context, longName string, _ bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.snapshots[longName]; !ok {
		return fmt.Errorf("zfstest: snapshot %s: %w", longName, zfs.ErrDatasetNotFound)
	}
	return nil
}

func (s *Store) SetProperty(_ context.Context, longName, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.snapshots[longName]
	if !ok {
		return fmt.Errorf("zfstest: snapshot %s: %w", longName, zfs.ErrDatasetNotFound)
	}
	if key == "zfsnappr:tags" {
		snap.Tags = zfs.ParseTags(value)
		s.snapshots[longName] = snap
	}
	return nil
}

func (s *Store) GetProperty(_ context.Context, longName, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, ok := s.snapshots[longName]
	if !ok {
		return "", fmt.Errorf("zfstest: snapshot %s: %w", longName, zfs.ErrDatasetNotFound)
	}
	if key == "zfsnappr:tags" {
		return snap.Tags.String(), nil
	}
	return zfs.ValueUnset, nil
}

func (s *Store) GetHolds(_ context.Context, longNames []string) ([]zfs.Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []zfs.Hold
	for _, longName := range longNames {
		for tag, held := range s.holds[longName] {
			if held {
				out = append(out, zfs.Hold{Snapshot: longName, Tag: tag})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Snapshot != out[j].Snapshot {
			return out[i].Snapshot < out[j].Snapshot
		}
		return out[i].Tag < out[j].Tag
	})
	return out, nil
}

func (s *Store) Hold(_ context.Context, longNames []string, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, longName := range longNames {
		if _, ok := s.snapshots[longName]; !ok {
			return fmt.Errorf("zfstest: snapshot %s: %w", longName, zfs.ErrDatasetNotFound)
		}
		if s.holds[longName] == nil {
			s.holds[longName] = make(map[string]bool)
		}
		if s.holds[longName][tag] {
			return fmt.Errorf("zfstest: snapshot %s tag %s: %w", longName, tag, zfs.ErrHoldExists)
		}
		s.holds[longName][tag] = true
	}
	return nil
}

func (s *Store) ReleaseHold(_ context.Context, longNames []string, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, longName := range longNames {
		if !s.holds[longName][tag] {
			return fmt.Errorf("zfstest: snapshot %s tag %s: %w", longName, tag, zfs.ErrNoSuchHold)
		}
		delete(s.holds[longName], tag)
	}
	return nil
}

// SendSnapshot fakes a send by serializing the snapshot's identity into the
// "stream": enough for ReceiveSnapshot on another *Store to reconstruct it,
// without actually encoding any filesystem data.
func (s *Store) SendSnapshot(_ context.Context, longName, baseLongName string, _ zfs.SendOptions) (*zfs.Process, error) {
	s.mu.Lock()
	snap, ok := s.snapshots[longName]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("zfstest: snapshot %s: %w", longName, zfs.ErrDatasetNotFound)
	}

	payload := fmt.Sprintf("%s\t%d\t%s\t%s", longName, snap.GUID, snap.Timestamp.Format("2006-01-02T15:04:05Z"), snap.Tags.String())
	return zfs.NewFakeProcess(strings.NewReader(payload), nil), nil
}

// ReceiveSnapshot fakes a receive by reading SendSnapshot's encoded payload
// off upstream and recreating the snapshot under dataset.
func (s *Store) ReceiveSnapshot(_ context.Context, dataset string, upstream *zfs.Process, _ zfs.ReceiveOptions) (*zfs.Process, error) {
	buf := make([]byte, 0, 256)
	chunk := make([]byte, 256)
	for {
		n, err := upstream.Stdout.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if err != nil {
			break
		}
	}
	fields := strings.SplitN(string(buf), "\t", 4)
	if len(fields) != 4 {
		return nil, fmt.Errorf("zfstest: malformed fake send payload %q", string(buf))
	}
	_, shortName, ok := splitLongName(fields[0])
	if !ok {
		return nil, fmt.Errorf("zfstest: malformed fake send payload %q", string(buf))
	}
	guid, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("zfstest: malformed guid in fake send payload: %w", err)
	}
	ts, err := timeParse(fields[2])
	if err != nil {
		return nil, fmt.Errorf("zfstest: malformed timestamp in fake send payload: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.datasets[dataset]; !ok {
		s.datasets[dataset] = zfs.Dataset{Name: dataset, Type: zfs.DatasetFilesystem, GUID: guid}
	}
	snap := zfs.Snapshot{Dataset: dataset, ShortName: shortName, GUID: guid, Timestamp: ts, Tags: zfs.ParseTags(fields[3])}
	s.snapshots[snap.LongName()] = snap

	return zfs.NewFakeProcess(strings.NewReader(""), nil), nil
}

func splitLongName(longName string) (dataset, shortName string, ok bool) {
	idx := strings.IndexByte(longName, '@')
	if idx < 0 {
		return "", "", false
	}
	return longName[:idx], longName[idx+1:], true
}

func timeParse(s string) (time.Time, error) {
	return time.Parse("2006-01-02T15:04:05Z", s)
}
