package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pathsplit/pathsplit/internal/store"
	"github.com/pathsplit/pathsplit/internal/variant"
)

func newWinnerCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "winner <name> <pathId>",
		Short: "Declare a winner for an experiment",
		Long: `Declare a winning path and complete the experiment.

After declaring a winner, the server's select endpoint always returns the
winning path.

Example:
  pathsplit winner checkout b`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, pathID := args[0], args[1]

			return opts.withStore(func(s *store.SQLiteStore) error {
				ctx := context.Background()

				exp, err := s.GetExperiment(ctx, name)
				if err != nil {
					return notFound(err, "experiment", name)
				}

				if exp.State == store.StateCompleted {
					return fmt.Errorf("experiment is already completed (winner: %s)", exp.Winner)
				}

				i := variant.Find(exp.Variants, pathID)
				if i < 0 {
					return fmt.Errorf("variant '%s' not found in experiment '%s'", pathID, name)
				}
				if exp.Variants[i].IsArchived {
					return fmt.Errorf("variant '%s' is archived", pathID)
				}

				if err := s.UpdateExperimentState(ctx, name, store.StateCompleted, pathID); err != nil {
					return fmt.Errorf("failed to set winner: %w", err)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Declared winner for experiment '%s': %s (\"%s\")\n", name, pathID, exp.Variants[i].Label)
				fmt.Fprintln(out, "Experiment has been marked as completed.")
				return nil
			})
		},
	}
}
