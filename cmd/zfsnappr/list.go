package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zfsnappr/zfsnappr/filter"
	"github.com/zfsnappr/zfsnappr/sortsnap"

	zfs "github.com/zfsnappr/zfsnappr"
)

func newListCommand() *cobra.Command {
	var (
		dataset   string
		recursive bool
		tags      []string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print dataset, shortname, tags, timestamp, and holds as a padded table",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, ds, err := resolveStore(dataset)
			if err != nil {
				return err
			}

			snaps, err := store.ListSnapshots(context.Background(), zfs.ListSnapshotsOptions{
				Dataset:   ds,
				Recursive: recursive,
			})
			if err != nil {
				return fmt.Errorf("listing snapshots: %w", err)
			}
			snaps = filter.Apply(snaps, filter.Options{Tags: filter.ParseTagGroups(tags)})
			snaps = sortsnap.Sort(snaps, true)

			return printSnapshotTable(cmd, store, snaps)
		},
	}

	cmd.Flags().StringVarP(&dataset, "dataset", "d", "", "dataset or endpoint specifier to list (default: every dataset)")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "include descendant datasets")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "restrict to snapshots matching this tag group (comma-separated AND, repeatable for OR)")
	return cmd
}

func printSnapshotTable(cmd *cobra.Command, store zfs.SnapshotStore, snaps []zfs.Snapshot) error {
	ctx := context.Background()
	longNames := make([]string, len(snaps))
	for i, s := range snaps {
		longNames[i] = s.LongName()
	}
	holds, err := store.GetHolds(ctx, longNames)
	if err != nil {
		return fmt.Errorf("getting holds: %w", err)
	}
	holdsBySnap := make(map[string][]string, len(snaps))
	for _, h := range holds {
		holdsBySnap[h.Snapshot] = append(holdsBySnap[h.Snapshot], h.Tag)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 2, 4, 2, ' ', 0)
	defer w.Flush()
	fmt.Fprintln(w, "DATASET\tSHORTNAME\tTAGS\tCREATED\tHOLDS")
	for _, s := range snaps {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
			s.Dataset, s.ShortName, s.Tags.String(), s.Timestamp.Format("2006-01-02 15:04:05"), len(holdsBySnap[s.LongName()]))
	}
	return nil
}
