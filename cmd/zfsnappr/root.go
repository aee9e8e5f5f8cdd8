package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/zfsnappr/zfsnappr/internal/logging"

	zfs "github.com/zfsnappr/zfsnappr"
)

var (
	logger        *slog.Logger
	propertyNames zfs.PropertyNames

	flagVerbosity int
	flagConfig    string
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "zfsnappr",
		Short:         "Snapshot lifecycle manager for ZFS: retention, pruning, and SSH-piped replication",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if flagVerbosity > 0 {
				level = slog.LevelDebug
			}
			logger = slog.New(logging.NewHandler(os.Stderr, level))

			if flagConfig != "" {
				data, err := os.ReadFile(flagConfig)
				if err != nil {
					return fmt.Errorf("reading config %s: %w", flagConfig, err)
				}
				if err := yaml.Unmarshal(data, &propertyNames); err != nil {
					return fmt.Errorf("parsing config %s: %w", flagConfig, err)
				}
			}
			propertyNames.ApplyDefaults()
			return nil
		},
	}

	root.PersistentFlags().CountVarP(&flagVerbosity, "verbose", "v", "issue DEBUG output")
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "YAML file overriding managed property names (default: zfsnappr:tags)")

	root.AddCommand(
		newListCommand(),
		newCreateCommand(),
		newPruneCommand(),
		newPushCommand(),
		newPullCommand(),
		newTagCommand(),
		newVersionCommand(),
	)
	return root
}
