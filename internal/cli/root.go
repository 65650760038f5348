package cli

import (
	"github.com/spf13/cobra"

	"github.com/pathsplit/pathsplit/internal/config"
	"github.com/pathsplit/pathsplit/internal/logging"
)

// options are the values shared by every command.
type options struct {
	dbPath  string
	verbose bool
	cfg     *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "pathsplit",
		Short: "pathsplit - weighted path splitting, message personalization and A/B results",
		Long: `pathsplit splits executions across weighted paths, records which path ran
and whether it converted, and reports the results. It also personalizes
message templates with customer, cart and order data.

Single Go binary, embedded SQLite.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Console only until the config, .env included, names a log folder.
			logging.Init(opts.verbose, "")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			opts.cfg = cfg
			if cfg.LogDir != "" {
				logging.Init(opts.verbose, cfg.LogDir)
			}
			if !cmd.Flags().Changed("db") {
				opts.dbPath = cfg.DBPath
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.dbPath, "db", "./pathsplit.db", "database path (env PATHSPLIT_DB_PATH)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "V", false, "debug logging")

	root.AddCommand(
		newInitCmd(opts),
		newServeCmd(opts),
		newCreateCmd(opts),
		newListCmd(opts),
		newAddCmd(opts),
		newArchiveCmd(opts),
		newUnarchiveCmd(opts),
		newSplitCmd(opts),
		newPickCmd(opts),
		newRecordCmd(opts),
		newResultsCmd(opts),
		newWinnerCmd(opts),
		newCompareCmd(opts),
		newExportCmd(opts),
		newRenderCmd(opts),
		newTemplateCmd(opts),
		newSegmentCmd(opts),
		newTokenCmd(opts),
	)
	return root
}

func Execute() error {
	return newRootCmd().Execute()
}
