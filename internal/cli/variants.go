package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pathsplit/pathsplit/internal/store"
	"github.com/pathsplit/pathsplit/internal/variant"
)

// editVariants loads an experiment, applies edit and stores the result.
func editVariants(cmd *cobra.Command, opts *options, name string, edit func([]variant.Variant) ([]variant.Variant, error)) error {
	return opts.withStore(func(s *store.SQLiteStore) error {
		ctx := context.Background()

		exp, err := s.GetExperiment(ctx, name)
		if err != nil {
			return notFound(err, "experiment", name)
		}

		vs, err := edit(exp.Variants)
		if err != nil {
			return err
		}
		if err := s.UpdateVariants(ctx, name, vs); err != nil {
			return fmt.Errorf("failed to update variants: %w", err)
		}
		log.Debug().Str("experiment", name).Int("variants", len(vs)).Msg("variants updated")

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Variants for '%s':\n", name)
		printVariants(out, vs)
		return nil
	})
}

func newAddCmd(opts *options) *cobra.Command {
	var percentage float64

	cmd := &cobra.Command{
		Use:   "add <name> <label> [pathId]",
		Short: "Add a variant to an experiment",
		Long: `Add a variant and rescale the split. Without --percentage the new variant
gets an even share of the active variants.

Example:
  pathsplit add checkout "Gift Wrap" gift --percentage 20`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			label := args[1]
			pathID := slugify(label)
			if len(args) == 3 {
				pathID = args[2]
			}
			return editVariants(cmd, opts, args[0], func(vs []variant.Variant) ([]variant.Variant, error) {
				return variant.Add(vs, label, pathID, percentage)
			})
		},
	}

	cmd.Flags().Float64VarP(&percentage, "percentage", "p", 0, "weight of the new variant before rescaling")
	return cmd
}

func newArchiveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "archive <name> <pathId>",
		Short: "Stop sending traffic to a variant",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editVariants(cmd, opts, args[0], func(vs []variant.Variant) ([]variant.Variant, error) {
				if variant.Find(vs, args[1]) < 0 {
					return nil, fmt.Errorf("variant '%s' not found", args[1])
				}
				return variant.Archive(vs, args[1])
			})
		},
	}
}

func newUnarchiveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "unarchive <name> <pathId>",
		Short: "Restore an archived variant with a 10% share",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editVariants(cmd, opts, args[0], func(vs []variant.Variant) ([]variant.Variant, error) {
				if variant.Find(vs, args[1]) < 0 {
					return nil, fmt.Errorf("variant '%s' not found", args[1])
				}
				return variant.Unarchive(vs, args[1])
			})
		},
	}
}

func newSplitCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "split <name> <pathId=percentage>...",
		Short: "Change variant weights",
		Long: `Set new weights for one or more active variants and rescale the split.

Example:
  pathsplit split checkout a=70 b=30`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			updates, err := parseUpdates(args[1:])
			if err != nil {
				return err
			}
			return editVariants(cmd, opts, args[0], func(vs []variant.Variant) ([]variant.Variant, error) {
				return variant.UpdatePercentages(vs, updates)
			})
		},
	}
}

func parseUpdates(args []string) ([]variant.PercentageUpdate, error) {
	updates := make([]variant.PercentageUpdate, 0, len(args))
	for _, arg := range args {
		pathID, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("expected pathId=percentage, got %q", arg)
		}
		pct, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid percentage in %q: %w", arg, err)
		}
		updates = append(updates, variant.PercentageUpdate{PathID: pathID, Percentage: pct})
	}
	return updates, nil
}
