package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zfsnappr/zfsnappr/replication"
)

func newPushCommand() *cobra.Command {
	var (
		sourceDataset   string
		recursive       bool
		dryRun          bool
		initialize      bool
		rollback        bool
		excludeDatasets []string
	)

	cmd := &cobra.Command{
		Use:   "push DEST",
		Short: "Replicate a local (or -d addressed) dataset to a remote destination",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sourceStore, srcDataset, err := resolveStore(sourceDataset)
			if err != nil {
				return fmt.Errorf("resolving source: %w", err)
			}
			destStore, destDataset, err := resolveStore(args[0])
			if err != nil {
				return fmt.Errorf("resolving destination: %w", err)
			}

			if dryRun {
				logger.Warn("cmd.push: --dry-run is not supported by the replication engine, ignoring")
			}

			engine := replication.New(sourceStore, destStore, logger)
			engine.TagsProperty = propertyNames.Tags
			err = engine.Replicate(context.Background(), srcDataset, destDataset, replication.Options{
				Recursive:       recursive,
				Initialize:      initialize,
				Rollback:        rollback,
				ExcludeDatasets: excludeDatasets,
			})
			if err != nil {
				return fmt.Errorf("push: %w", err)
			}
			logger.Info("cmd.push: Done", "source", srcDataset, "destination", destDataset)
			return nil
		},
	}

	cmd.Flags().StringVarP(&sourceDataset, "dataset", "d", "", "source dataset or endpoint specifier (default: local)")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "replicate descendant datasets too")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "report what would be transferred without transferring")
	cmd.Flags().BoolVar(&initialize, "init", false, "perform an initial full send if the destination dataset does not exist")
	cmd.Flags().BoolVar(&rollback, "rollback", false, "roll the destination back to its newest snapshot before transferring")
	cmd.Flags().StringArrayVar(&excludeDatasets, "exclude-dataset", nil, "dataset to exclude from a recursive replication (repeatable)")
	return cmd
}
