package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pathsplit/pathsplit/internal/server"
	"github.com/pathsplit/pathsplit/internal/store"
)

func newServeCmd(opts *options) *cobra.Command {
	var (
		port  int
		quiet bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the pathsplit HTTP server.

The server provides:
  - Path selection and outcome recording per experiment
  - Token-protected JSON and Markdown reports
  - Template rendering, validation and selection
  - Health check and Prometheus metrics

Example:
  pathsplit serve --port 8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("port") && opts.cfg != nil {
				port = opts.cfg.Port
			}

			engine, err := opts.engine()
			if err != nil {
				return err
			}

			s, err := store.Open(opts.dbPath)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			defer s.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(s, port, opts.tokenFilePath(), server.WithEngine(engine))
			if quiet {
				log.Info().Int("port", port).Str("token", srv.Token()).Msg("report token")
				return srv.StartQuiet(ctx)
			}
			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "port to listen on (env PATHSPLIT_PORT)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "log the token instead of printing the startup banner")
	return cmd
}
