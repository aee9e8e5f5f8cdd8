// Package filter implements the tag-group and shortname-allowlist selection
// rules applied before sorting and retention: a snapshot survives the filter
// iff every configured criterion that is present accepts it.
package filter

import (
	"strings"

	zfs "github.com/zfsnappr/zfsnappr"
)

// unsetToken is the special tag-group member meaning "the snapshot's tags are
// wholly unset" (as opposed to "", meaning the snapshot's tags are set but
// empty).
const unsetToken = "UNSET"

// TagGroup is one set of tags a snapshot must carry all of to pass the tag
// filter via that group (AND within the group).
type TagGroup []string

// Options configures Apply. A nil or empty field means that criterion is not
// applied.
type Options struct {
	// Tags is a list of tag groups; a snapshot passes iff it satisfies at
	// least one group (OR across groups).
	Tags []TagGroup
	// Datasets restricts to snapshots of exactly these datasets.
	Datasets []string
	// ShortNames restricts to snapshots with exactly these shortnames.
	ShortNames []string
}

// ParseTagGroups parses the CLI's repeatable --tag flag, one comma-separated
// group per occurrence, the same grouping original_source's parse_tags does.
func ParseTagGroups(raw []string) []TagGroup {
	if len(raw) == 0 {
		return nil
	}
	groups := make([]TagGroup, 0, len(raw))
	for _, g := range raw {
		groups = append(groups, TagGroup(strings.Split(g, ",")))
	}
	return groups
}

// Apply returns the subset of snaps that satisfy every configured criterion.
func Apply(snaps []zfs.Snapshot, opts Options) []zfs.Snapshot {
	out := make([]zfs.Snapshot, 0, len(snaps))
	for _, snap := range snaps {
		if len(opts.Tags) > 0 && !matchesAnyTagGroup(snap.Tags, opts.Tags) {
			continue
		}
		if len(opts.Datasets) > 0 && !containsString(opts.Datasets, snap.Dataset) {
			continue
		}
		if len(opts.ShortNames) > 0 && !containsString(opts.ShortNames, snap.ShortName) {
			continue
		}
		out = append(out, snap)
	}
	return out
}

func matchesAnyTagGroup(tags zfs.Tags, groups []TagGroup) bool {
	for _, group := range groups {
		if matchesTagGroup(tags, group) {
			return true
		}
	}
	return false
}

func matchesTagGroup(tags zfs.Tags, group TagGroup) bool {
	// UNSET matches only a snapshot whose tags were never set at all.
	if len(group) == 1 && group[0] == unsetToken {
		return !tags.IsSet()
	}
	// A single empty-string member matches a snapshot that is Set but empty.
	if len(group) == 1 && group[0] == "" {
		return tags.IsSet() && tags.Len() == 0
	}
	if !tags.IsSet() {
		return false
	}
	return tags.Superset(group)
}

func containsString(haystack []string, needle string) bool {
	for _, h := range haystack {
		if h == needle {
			return true
		}
	}
	return false
}
