// Package retention implements the bucketed keep/destroy decision described
// in spec.md's RetentionPolicy: a snapshot survives if any configured rule —
// name pattern, tag, count bucket, or duration bucket — votes to keep it.
package retention

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"time"

	zfs "github.com/zfsnappr/zfsnappr"
)

// KeepPolicy is the full set of retention rules applied to one group of
// snapshots (normally: one dataset's snapshots).
type KeepPolicy struct {
	Last    int
	Hourly  int
	Daily   int
	Weekly  int
	Monthly int
	Yearly  int

	Within        Duration
	WithinHourly  Duration
	WithinDaily   Duration
	WithinWeekly  Duration
	WithinMonthly Duration
	WithinYearly  Duration

	// NamePattern, if set, keeps any snapshot whose shortname fully matches.
	NamePattern *regexp.Regexp
	// Tags keeps any snapshot carrying at least one of these tags. A
	// snapshot with Unset tags is always kept by a non-empty Tags policy,
	// with a warning logged, since it was created outside this tool and its
	// real tag membership can't be known.
	Tags []string
}

func hourBucket(t time.Time) int {
	return t.Year()*1_000_000 + int(t.Month())*10_000 + t.Day()*100 + t.Hour()
}

func dayBucket(t time.Time) int {
	return t.Year()*10_000 + int(t.Month())*100 + t.Day()
}

func weekBucket(t time.Time) int {
	year, week := t.ISOWeek()
	return year*100 + week
}

func monthBucket(t time.Time) int {
	return t.Year()*100 + int(t.Month())
}

func yearBucket(t time.Time) int {
	return t.Year()
}

type countBucket struct {
	count int
	used  int
	last  int
	have  bool
	fn    func(time.Time) int
}

func (b *countBucket) visit(t time.Time) (keep bool) {
	if b.count == 0 {
		return false
	}
	value := b.fn(t)
	if b.have && value == b.last {
		return false
	}
	b.have = true
	b.last = value
	if b.used < b.count {
		b.used++
		return true
	}
	return false
}

type withinBucket struct {
	within Duration
	last   int
	have   bool
	fn     func(time.Time) int
}

// visit keeps t iff it falls within the window AND its bucket value differs
// from the last one seen (buckets are visited newest-first, so "differs"
// means "this is the newest snapshot of a bucket not seen yet").
func (b *withinBucket) visit(t time.Time, now time.Time) (keep bool) {
	if b.within.IsZero() || !t.After(b.within.Before(now)) {
		return false
	}
	value := b.fn(t)
	if b.have && value == b.last {
		return false
	}
	b.have = true
	b.last = value
	return true
}

// lastBucket mirrors the original's unique_bucket: every visit is a new
// bucket value, so it keeps exactly the first policy.Last snapshots visited
// (newest first), unconditionally, never coalescing two snapshots together.
type lastBucket struct {
	count int
	used  int
}

func (b *lastBucket) visit() bool {
	if b.used >= b.count {
		return false
	}
	b.used++
	return true
}

// Apply evaluates policy against snapshots and returns the snapshots to keep
// and to destroy, each in the same relative order as the input. now is the
// reference time for every Within* duration bucket.
func Apply(snapshots []zfs.Snapshot, policy KeepPolicy, now time.Time, logger *slog.Logger) (keep, destroy []zfs.Snapshot) {
	if logger == nil {
		logger = slog.Default()
	}

	// Newest first by (timestamp desc, guid desc), so each bucket's
	// representative is its newest snapshot and ties pick the higher guid.
	newestFirst := make([]zfs.Snapshot, len(snapshots))
	copy(newestFirst, snapshots)
	sort.SliceStable(newestFirst, func(i, j int) bool {
		a, b := newestFirst[i], newestFirst[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.GUID > b.GUID
	})

	last := &lastBucket{count: policy.Last}
	counts := []*countBucket{
		{count: policy.Hourly, fn: hourBucket},
		{count: policy.Daily, fn: dayBucket},
		{count: policy.Weekly, fn: weekBucket},
		{count: policy.Monthly, fn: monthBucket},
		{count: policy.Yearly, fn: yearBucket},
	}
	withins := []*withinBucket{
		{within: policy.WithinHourly, fn: hourBucket},
		{within: policy.WithinDaily, fn: dayBucket},
		{within: policy.WithinWeekly, fn: weekBucket},
		{within: policy.WithinMonthly, fn: monthBucket},
		{within: policy.WithinYearly, fn: yearBucket},
	}
	keepSet := make(map[uint64]bool, len(newestFirst))

	for _, snap := range newestFirst {
		keepSnap := false

		if policy.NamePattern != nil && fullMatch(policy.NamePattern, snap.ShortName) {
			keepSnap = true
		}

		if len(policy.Tags) > 0 {
			if !snap.Tags.IsSet() {
				logger.Warn(fmt.Sprintf("retention: snapshot %s was created externally and will be kept regardless of tag policy", snap.LongName()))
				keepSnap = true
			} else {
				for _, tag := range policy.Tags {
					if snap.Tags.Contains(tag) {
						keepSnap = true
						break
					}
				}
			}
		}

		if last.visit() {
			keepSnap = true
		}
		for _, b := range counts {
			if b.visit(snap.Timestamp) {
				keepSnap = true
			}
		}
		if !policy.Within.IsZero() && snap.Timestamp.After(policy.Within.Before(now)) {
			keepSnap = true
		}
		for _, b := range withins {
			if b.visit(snap.Timestamp, now) {
				keepSnap = true
			}
		}

		if keepSnap {
			keepSet[snap.GUID] = true
		}
	}

	keep = make([]zfs.Snapshot, 0, len(snapshots))
	destroy = make([]zfs.Snapshot, 0, len(snapshots))
	for _, snap := range snapshots {
		if keepSet[snap.GUID] {
			keep = append(keep, snap)
		} else {
			destroy = append(destroy, snap)
		}
	}
	return keep, destroy
}

// fullMatch reports whether pattern matches the whole of s, the Go equivalent
// of Python's re.fullmatch used by the original for policy.name.
func fullMatch(pattern *regexp.Regexp, s string) bool {
	anchored, err := regexp.Compile(`^(?:` + pattern.String() + `)$`)
	if err != nil {
		return false
	}
	return anchored.MatchString(s)
}
