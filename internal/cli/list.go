package cli

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pathsplit/pathsplit/internal/store"
	"github.com/pathsplit/pathsplit/internal/variant"
)

func newListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all experiments",
		Long:  `List all experiments with their status and totals.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(func(s *store.SQLiteStore) error {
				return runList(cmd, s)
			})
		},
	}
}

func runList(cmd *cobra.Command, s *store.SQLiteStore) error {
	ctx := context.Background()
	out := cmd.OutOrStdout()

	experiments, err := s.ListExperiments(ctx)
	if err != nil {
		return fmt.Errorf("failed to list experiments: %w", err)
	}

	if len(experiments) == 0 {
		fmt.Fprintln(out, "No experiments yet.")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Create one with:")
		fmt.Fprintln(out, `  pathsplit create checkout --variants "Control,Free Shipping"`)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATE\tVARIANTS\tEXECUTIONS\tCONVERSIONS\tWINNER\tCREATED")

	for _, exp := range experiments {
		rows, err := s.GetVariantStats(ctx, exp.Name)
		if err != nil {
			return fmt.Errorf("failed to get stats for experiment %s: %w", exp.Name, err)
		}

		executions, conversions := 0, 0
		for _, r := range rows {
			executions += r.Executions
			conversions += r.Conversions
		}

		winner := "-"
		if exp.Winner != "" {
			winner = exp.Winner
		}

		fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\t%s\t%s\t%s\n",
			exp.Name,
			strings.ToUpper(string(exp.State)),
			len(variant.Active(exp.Variants)),
			len(exp.Variants),
			humanize.Comma(int64(executions)),
			humanize.Comma(int64(conversions)),
			winner,
			exp.CreatedAt.Format("2006-01-02"),
		)
	}

	return w.Flush()
}
