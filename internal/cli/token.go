package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

func newTokenCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Show the report URL with access token",
		Long: `Show the report URL with the running server's access token.

Use this when you've scrolled past the startup message or need to share
the report link.

Example:
  pathsplit token`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(opts.tokenFilePath())
			if err != nil {
				if os.IsNotExist(err) {
					return fmt.Errorf("no server running. Start with: pathsplit serve")
				}
				return fmt.Errorf("failed to read token file: %w", err)
			}

			token := string(data)
			if token == "" {
				return fmt.Errorf("token file is empty. Restart the server with: pathsplit serve")
			}

			port := 8080
			if opts.cfg != nil {
				port = opts.cfg.Port
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Reports: http://localhost:%s/api/experiments?token=%s\n", strconv.Itoa(port), token)
			fmt.Fprintln(out)
			fmt.Fprintf(out, "API clients can send: Authorization: Bearer %s\n", token)
			return nil
		},
	}
}
