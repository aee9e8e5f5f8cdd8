package zfs

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Snapshot is a single ZFS snapshot of a dataset.
type Snapshot struct {
	Dataset   string    `json:"dataset"`
	ShortName string    `json:"shortName"`
	GUID      uint64    `json:"guid"`
	Timestamp time.Time `json:"timestamp"`
	// UserRefs is the number of holds currently placed on the snapshot.
	UserRefs int `json:"userRefs"`
	// Tags is Unset when the snapshot carries no managed tags property at all
	// (it was created outside of this tool), and Set (possibly empty) when it
	// was created or last tagged by it. See Tags for the distinction.
	Tags Tags `json:"tags"`
}

// LongName is the fully qualified "dataset@shortname" snapshot name.
func (s Snapshot) LongName() string {
	return s.Dataset + "@" + s.ShortName
}

// Depth is the number of '/' separators in the snapshot's dataset path (0 for
// a pool's root dataset).
func (s Snapshot) Depth() int {
	return strings.Count(s.Dataset, "/")
}

// Tags is a snapshot's tag set. The zero value represents "unset": a snapshot
// whose tags property has never been written by this tool, as opposed to one
// that was tagged with an explicitly empty set. Unset tags must never be
// confused with an empty Set, since prune treats them differently: whenever a
// tag rule is configured, an Unset snapshot is kept regardless of the rule's
// tags and a warning is logged, while a Set snapshot is kept by that rule only
// if it carries one of the rule's tags.
type Tags struct {
	values map[string]struct{}
	isSet  bool
}

// UnsetTags returns the zero Tags value explicitly.
func UnsetTags() Tags {
	return Tags{}
}

// NewTags returns a Set tag set containing the given tags (empty strings ignored).
func NewTags(tags ...string) Tags {
	m := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		m[t] = struct{}{}
	}
	return Tags{values: m, isSet: true}
}

// ParseTags parses a comma-separated tag property value, ignoring empty
// items. ValueUnset parses to UnsetTags(); "" parses to an empty Set.
func ParseTags(raw string) Tags {
	if raw == ValueUnset {
		return UnsetTags()
	}
	parts := strings.Split(raw, ",")
	return NewTags(parts...)
}

// IsSet reports whether the snapshot carries a managed tags property at all.
func (t Tags) IsSet() bool { return t.isSet }

// Len returns the number of tags, 0 for an Unset value.
func (t Tags) Len() int { return len(t.values) }

// Contains reports whether tag is present.
func (t Tags) Contains(tag string) bool {
	_, ok := t.values[tag]
	return ok
}

// Superset reports whether every tag in group is present in t. An Unset t is
// never a superset of a non-empty group.
func (t Tags) Superset(group []string) bool {
	for _, g := range group {
		if !t.Contains(g) {
			return false
		}
	}
	return true
}

// Slice returns the tags in sorted order.
func (t Tags) Slice() []string {
	out := make([]string, 0, len(t.values))
	for v := range t.values {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// String renders the tag set the way it is stored in the managed property:
// a sorted, comma-separated list, or ValueUnset when not set.
func (t Tags) String() string {
	if !t.isSet {
		return ValueUnset
	}
	return strings.Join(t.Slice(), ",")
}

// With returns a new Set Tags value with the given tags added.
func (t Tags) With(tags ...string) Tags {
	merged := make(map[string]struct{}, len(t.values)+len(tags))
	for v := range t.values {
		merged[v] = struct{}{}
	}
	for _, v := range tags {
		if v != "" {
			merged[v] = struct{}{}
		}
	}
	return Tags{values: merged, isSet: true}
}

// Hold is a user-reference hold on a snapshot, pinning it against destruction.
type Hold struct {
	Snapshot string `json:"snapshot"`
	Tag      string `json:"tag"`
}

func snapshotFromFields(fields []string, columns []string, tagsColumn string) (Snapshot, error) {
	if len(fields) != len(columns) {
		return Snapshot{}, fmt.Errorf("zfs: expected %d columns, got %d: %q", len(columns), len(fields), strings.Join(fields, "\t"))
	}

	var snap Snapshot
	var longName string
	for i, col := range columns {
		val := fields[i]
		switch col {
		case PropertyName:
			longName = val
			idx := strings.IndexByte(val, '@')
			if idx < 0 {
				return Snapshot{}, fmt.Errorf("zfs: %q is not a snapshot name", val)
			}
			snap.Dataset = val[:idx]
			snap.ShortName = val[idx+1:]
		case PropertyGUID:
			guid, err := parseUint(val)
			if err != nil {
				return Snapshot{}, fmt.Errorf("zfs: snapshot %s: parsing guid %q: %w", longName, val, err)
			}
			snap.GUID = guid
		case PropertyCreation:
			sec, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return Snapshot{}, fmt.Errorf("zfs: snapshot %s: parsing creation %q: %w", longName, val, err)
			}
			snap.Timestamp = time.Unix(sec, 0).UTC()
		case PropertyUserRefs:
			refs, err := parseUint(val)
			if err != nil {
				return Snapshot{}, fmt.Errorf("zfs: snapshot %s: parsing userrefs %q: %w", longName, val, err)
			}
			snap.UserRefs = int(refs)
		default:
			if col == tagsColumn {
				snap.Tags = ParseTags(val)
			}
		}
	}
	return snap, nil
}
