package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zfsnappr/zfsnappr/filter"
	zfs "github.com/zfsnappr/zfsnappr"
)

// tagSeparator splits a snapshot's shortname for --*-from-name, the same way
// the original tool derives tags embedded in the name itself.
const tagSeparator = "_"

func newTagCommand() *cobra.Command {
	var (
		dataset      string
		recursive    bool
		tags         []string
		setFromProp  string
		setFromName  bool
		addFromProp  string
		addFromName  bool
	)

	cmd := &cobra.Command{
		Use:   "tag [shortname...]",
		Short: "Set or add tags on snapshots, from literal values, a property, or the snapshot name",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, ds, err := resolveStore(dataset)
			if err != nil {
				return err
			}
			if ds == "" {
				return fmt.Errorf("tag: --dataset is required")
			}

			type operation struct {
				extract func(zfs.Snapshot) (zfs.Tags, bool)
				set     bool // true = SET, false = ADD
			}
			var ops []operation
			if setFromName {
				ops = append(ops, operation{extractFromName, true})
			}
			if setFromProp != "" {
				ops = append(ops, operation{extractFromProp(store, setFromProp), true})
			}
			if addFromName {
				ops = append(ops, operation{extractFromName, false})
			}
			if addFromProp != "" {
				ops = append(ops, operation{extractFromProp(store, addFromProp), false})
			}
			if len(ops) == 0 {
				logger.Info("cmd.tag: No tag operations specified, nothing to do")
				return nil
			}

			ctx := context.Background()
			snaps, err := store.ListSnapshots(ctx, zfs.ListSnapshotsOptions{Dataset: ds, Recursive: recursive})
			if err != nil {
				return fmt.Errorf("listing snapshots: %w", err)
			}
			snaps = filter.Apply(snaps, filter.Options{
				Tags:       filter.ParseTagGroups(tags),
				ShortNames: args,
			})
			if len(snaps) == 0 {
				logger.Info("cmd.tag: No snapshots, nothing to do")
				return nil
			}

			for _, snap := range snaps {
				result := snap.Tags
				for _, op := range ops {
					newTags, ok := op.extract(snap)
					if op.set {
						if ok {
							result = newTags
						} else {
							result = zfs.NewTags()
						}
						continue
					}
					if ok {
						result = result.With(newTags.Slice()...)
					}
				}
				if result.String() == snap.Tags.String() {
					continue
				}
				if err := store.SetProperty(ctx, snap.LongName(), propertyNames.Tags, result.String()); err != nil {
					return fmt.Errorf("tagging %s: %w", snap.LongName(), err)
				}
				logger.Info("cmd.tag: Tagged snapshot", "snapshot", snap.LongName(), "tags", result.String())
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&dataset, "dataset", "d", "", "dataset or endpoint specifier (required)")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "include descendant datasets")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "restrict to snapshots matching this tag group (repeatable)")
	cmd.Flags().StringVar(&setFromProp, "set-from-prop", "", "set tags from this property's comma-separated value")
	cmd.Flags().BoolVar(&setFromName, "set-from-name", false, "set tags from the shortname's \"_\"-separated suffix")
	cmd.Flags().StringVar(&addFromProp, "add-from-prop", "", "add tags from this property's comma-separated value")
	cmd.Flags().BoolVar(&addFromName, "add-from-name", false, "add tags from the shortname's \"_\"-separated suffix")
	return cmd
}

// extractFromName splits "base_tag1_tag2" into tags ["tag1", "tag2"],
// ignoring empty segments. ok is false when the name carries no tags.
func extractFromName(snap zfs.Snapshot) (zfs.Tags, bool) {
	parts := strings.Split(snap.ShortName, tagSeparator)
	var found []string
	for _, p := range parts[1:] {
		if p != "" {
			found = append(found, p)
		}
	}
	if len(found) == 0 {
		return zfs.Tags{}, false
	}
	return zfs.NewTags(found...), true
}

// extractFromProp reads the given property off each snapshot and parses it
// as a tag set, the same way get_from_prop treats ValueUnset as "no tags".
func extractFromProp(store zfs.SnapshotStore, property string) func(zfs.Snapshot) (zfs.Tags, bool) {
	return func(snap zfs.Snapshot) (zfs.Tags, bool) {
		value, err := store.GetProperty(context.Background(), snap.LongName(), property)
		if err != nil || value == zfs.ValueUnset || value == "" {
			return zfs.Tags{}, false
		}
		return zfs.ParseTags(value), true
	}
}
