package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	zfs "github.com/zfsnappr/zfsnappr"
)

func newCreateCommand() *cobra.Command {
	var (
		dataset   string
		recursive bool
		tags      []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a snapshot with a random 10-character shortname",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dataset == "" {
				return fmt.Errorf("create: --dataset is required")
			}
			store, ds, err := resolveStore(dataset)
			if err != nil {
				return err
			}

			shortName := randomShortName()
			longName := ds + "@" + shortName

			props := map[string]string{propertyNames.Tags: zfs.NewTags(tags...).String()}
			if err := store.CreateSnapshot(context.Background(), longName, recursive, props); err != nil {
				return fmt.Errorf("creating %s: %w", longName, err)
			}

			logger.Info("cmd.create: Created snapshot", "snapshot", longName, "recursive", recursive)
			fmt.Fprintln(cmd.OutOrStdout(), shortName)
			return nil
		},
	}

	cmd.Flags().StringVarP(&dataset, "dataset", "d", "", "dataset or endpoint specifier to snapshot (required)")
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "snapshot descendant datasets too")
	cmd.Flags().StringArrayVarP(&tags, "tag", "t", nil, "tag to attach to the new snapshot (repeatable)")
	return cmd
}
