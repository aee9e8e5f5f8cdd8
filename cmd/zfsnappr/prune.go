package main

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/spf13/cobra"

	"github.com/zfsnappr/zfsnappr/filter"
	"github.com/zfsnappr/zfsnappr/prune"
	"github.com/zfsnappr/zfsnappr/retention"
	"github.com/zfsnappr/zfsnappr/sortsnap"

	zfs "github.com/zfsnappr/zfsnappr"
)

func newPruneCommand() *cobra.Command {
	var (
		dataset   string
		recursive bool
		dryRun    bool
		tags      []string
		groupBy   string

		policy retention.KeepPolicy
		within retention.Duration

		keepTags   []string
		keepName   string
	)

	cmd := &cobra.Command{
		Use:   "prune [shortname...]",
		Short: "Destroy snapshots that a retention policy does not keep",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, ds, err := resolveStore(dataset)
			if err != nil {
				return err
			}

			if keepName != "" {
				re, err := regexp.Compile(keepName)
				if err != nil {
					return fmt.Errorf("--keep-name: %w", err)
				}
				policy.NamePattern = re
			}
			policy.Tags = keepTags
			policy.Within = within

			ctx := context.Background()
			snaps, err := store.ListSnapshots(ctx, zfs.ListSnapshotsOptions{Dataset: ds, Recursive: recursive})
			if err != nil {
				return fmt.Errorf("listing snapshots: %w", err)
			}
			snaps = filter.Apply(snaps, filter.Options{
				Tags:       filter.ParseTagGroups(tags),
				ShortNames: args,
			})
			snaps = sortsnap.Sort(snaps, false)
			if len(snaps) == 0 {
				logger.Info("cmd.prune: No matching snapshots, nothing to do")
				return nil
			}

			var groupByOpt prune.GroupBy
			switch groupBy {
			case "dataset":
				groupByOpt = prune.GroupByDataset
			case "":
				groupByOpt = prune.GroupByNone
			default:
				return fmt.Errorf("--group-by: unknown value %q (want \"dataset\" or \"\")", groupBy)
			}

			orch := prune.New(store, logger)
			result, err := orch.Run(ctx, snaps, policy, time.Now(), prune.Options{
				GroupBy:         groupByOpt,
				DryRun:          dryRun,
				AllowDestroyAll: len(args) > 0,
			})
			if err != nil {
				return err
			}

			logger.Info("cmd.prune: Done", "kept", len(result.Keep), "destroyed", len(result.Destroy), "failed", len(result.Failed))
			return nil
		},
	}

	cmd.Flags().StringVarP(&dataset, "dataset", "d", "", "dataset or endpoint specifier to prune")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "include descendant datasets")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "report what would be destroyed without destroying anything")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "restrict the prune scope to snapshots matching this tag group (repeatable)")
	cmd.Flags().StringVar(&groupBy, "group-by", "", `apply the retention policy per-group: "dataset" or "" (one combined group)`)

	cmd.Flags().IntVar(&policy.Last, "keep-last", 0, "keep the N most recent snapshots")
	cmd.Flags().IntVar(&policy.Hourly, "keep-hourly", 0, "keep one snapshot per hour for N hours")
	cmd.Flags().IntVar(&policy.Daily, "keep-daily", 0, "keep one snapshot per day for N days")
	cmd.Flags().IntVar(&policy.Weekly, "keep-weekly", 0, "keep one snapshot per ISO week for N weeks")
	cmd.Flags().IntVar(&policy.Monthly, "keep-monthly", 0, "keep one snapshot per month for N months")
	cmd.Flags().IntVar(&policy.Yearly, "keep-yearly", 0, "keep one snapshot per year for N years")

	cmd.Flags().Var(&durationValue{&within}, "keep-within", "keep every snapshot newer than this duration")
	cmd.Flags().Var(&durationValue{&policy.WithinHourly}, "keep-within-hourly", "keep one snapshot per hour within this duration")
	cmd.Flags().Var(&durationValue{&policy.WithinDaily}, "keep-within-daily", "keep one snapshot per day within this duration")
	cmd.Flags().Var(&durationValue{&policy.WithinWeekly}, "keep-within-weekly", "keep one snapshot per ISO week within this duration")
	cmd.Flags().Var(&durationValue{&policy.WithinMonthly}, "keep-within-monthly", "keep one snapshot per month within this duration")
	cmd.Flags().Var(&durationValue{&policy.WithinYearly}, "keep-within-yearly", "keep one snapshot per year within this duration")

	cmd.Flags().StringVar(&keepName, "keep-name", "", "keep snapshots whose shortname fully matches this regular expression")
	cmd.Flags().StringArrayVar(&keepTags, "keep-tag", nil, "keep snapshots carrying this tag")

	return cmd
}
