// Command zfsnappr manages ZFS snapshot retention and SSH-piped replication:
// create, list, tag, prune, push, and pull subcommands over local or remote
// datasets addressed by "[user@]host[:port]/dataset" specifiers.
package main

import (
	"log/slog"
	"os"

	"github.com/zfsnappr/zfsnappr/internal/logging"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if logger == nil {
			// PersistentPreRunE never ran (e.g. a flag-parsing failure), so
			// fall back to a bare handler at the default level.
			logger = slog.New(logging.NewHandler(os.Stderr, slog.LevelInfo))
		}
		logging.Critical(logger, err.Error())
		os.Exit(1)
	}
}
