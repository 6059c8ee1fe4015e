package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/walkability/internal/config"
)

// app carries the state shared by every subcommand of one invocation.
type app struct {
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var configFile string

	root := &cobra.Command{
		Use:   "walkability",
		Short: "Walkability index ingestion",
		Long: `Imports national walkability extracts keyed by census block group, stores one
record per block group plus per-county aggregates, and reports on what is stored.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			c, err := config.Load(configFile)
			if err != nil {
				return eris.Wrap(err, "load config")
			}
			if err := config.InitLogger(c.Log); err != nil {
				return eris.Wrap(err, "init logger")
			}
			if err := c.Validate(); err != nil {
				return err
			}
			a.cfg = c
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			_ = zap.L().Sync()
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ./config.yaml)")

	root.AddCommand(
		newMigrateCmd(a),
		newImportCmd(a),
		newSeedCmd(a),
		newHeadersCmd(a),
		newCountiesCmd(a),
		newStatsCmd(a),
		newExportCmd(a),
		newSearchCmd(a),
		newRunsCmd(a),
		newConfigCmd(a),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
