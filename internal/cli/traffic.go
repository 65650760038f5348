package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pathsplit/pathsplit/internal/store"
	"github.com/pathsplit/pathsplit/internal/variant"
)

func newPickCmd(opts *options) *cobra.Command {
	var (
		seed  uint64
		count int
	)

	cmd := &cobra.Command{
		Use:   "pick <name>",
		Short: "Select a path without recording it",
		Long: `Select a path the way the server would. Nothing is recorded, so this is
safe for checking a split. --seed makes the picks reproducible.

Example:
  pathsplit pick checkout --count 10 --seed 42`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			var rng variant.RandomSource
			if cmd.Flags().Changed("seed") {
				rng = variant.NewRandomSource(seed)
			}
			selector := variant.NewSelector(rng)

			return opts.withStore(func(s *store.SQLiteStore) error {
				exp, err := s.GetExperiment(context.Background(), name)
				if err != nil {
					return notFound(err, "experiment", name)
				}

				out := cmd.OutOrStdout()
				for i := 0; i < count; i++ {
					pathID, err := selector.Select(exp.Variants)
					if err != nil {
						return err
					}
					fmt.Fprintln(out, pathID)
				}
				return nil
			})
		},
	}

	cmd.Flags().Uint64Var(&seed, "seed", 0, "seed for reproducible picks")
	cmd.Flags().IntVarP(&count, "count", "n", 1, "number of picks")
	return cmd
}

func newRecordCmd(opts *options) *cobra.Command {
	var (
		converted bool
		visitorID string
	)

	cmd := &cobra.Command{
		Use:   "record <name> <pathId>",
		Short: "Record one execution of a path",
		Long: `Record that a path ran, and whether it converted.

Example:
  pathsplit record checkout b --converted`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, pathID := args[0], args[1]

			return opts.withStore(func(s *store.SQLiteStore) error {
				rows, err := s.RecordOutcome(context.Background(), name, pathID, converted, visitorID)
				if errors.Is(err, store.ErrUnknownPath) {
					return fmt.Errorf("variant '%s' not found in experiment '%s'", pathID, name)
				}
				if err != nil {
					return notFound(err, "experiment", name)
				}

				for _, r := range rows {
					if r.PathID == pathID {
						fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s: %d executions, %d conversions\n", pathID, r.Executions, r.Conversions)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&converted, "converted", "c", false, "the execution converted")
	cmd.Flags().StringVar(&visitorID, "visitor", "", "visitor id to log with the outcome")
	return cmd
}
