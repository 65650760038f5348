package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pathsplit/pathsplit/internal/report"
	"github.com/pathsplit/pathsplit/internal/stats"
	"github.com/pathsplit/pathsplit/internal/store"
)

func newResultsCmd(opts *options) *cobra.Command {
	var markdown bool

	cmd := &cobra.Command{
		Use:   "results <name>",
		Short: "Show detailed results for an experiment",
		Long: `Show conversion rates, relative performance and 95% Wilson intervals.
--markdown prints the shareable Markdown report instead.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			return opts.withStore(func(s *store.SQLiteStore) error {
				ctx := context.Background()

				exp, err := s.GetExperiment(ctx, name)
				if err != nil {
					return notFound(err, "experiment", name)
				}
				rows, err := s.GetVariantStats(ctx, name)
				if err != nil {
					return fmt.Errorf("failed to get stats: %w", err)
				}

				rep := stats.GenerateReport(rows, exp.Variants)
				if markdown {
					fmt.Fprint(cmd.OutOrStdout(), report.Render(rep))
					return nil
				}
				printResults(cmd, exp, rep)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&markdown, "markdown", "m", false, "print the Markdown report")
	return cmd
}

func printResults(cmd *cobra.Command, exp *store.Experiment, rep stats.Report) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "EXPERIMENT: %s\n", exp.Name)
	fmt.Fprintf(out, "STATE: %s\n", exp.State)
	if exp.Description != "" {
		fmt.Fprintf(out, "GOAL: %s\n", exp.Description)
	}
	if exp.Winner != "" {
		fmt.Fprintf(out, "WINNER: %s\n", exp.Winner)
	}
	fmt.Fprintf(out, "CREATED: %s\n", exp.CreatedAt.Format("2006-01-02"))
	fmt.Fprintln(out)

	if len(rep.Variants) == 0 {
		fmt.Fprintln(out, "No outcomes recorded yet.")
		return
	}

	lead, hasLead := rep.Leading()

	fmt.Fprintln(out, "VARIANT           EXECUTIONS  CONVERSIONS  RATE     RELATIVE  95% CI")
	fmt.Fprintln(out, strings.Repeat("─", 78))

	for _, v := range rep.Variants {
		indicator := ""
		if hasLead && v.PathID == lead.PathID && len(rep.Variants) > 1 {
			indicator = " ← LEADING"
		}
		if v.IsArchived {
			indicator = " (archived)"
		}

		ciStr := fmt.Sprintf("[%.1f%%, %.1f%%]", v.CI.Lower*100, v.CI.Upper*100)
		if v.Executions == 0 {
			ciStr = "N/A"
		}

		fmt.Fprintf(out, "%-16s  %-10s  %-11s  %-7s  %-8s  %s%s\n",
			truncate(v.Label, 16),
			humanize.Comma(int64(v.Executions)),
			humanize.Comma(int64(v.Conversions)),
			formatPercent(v.ConversionRate),
			formatPercent(v.RelativePerformance),
			ciStr,
			indicator,
		)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Overall: %s executions, %s conversions, %s\n",
		humanize.Comma(int64(rep.TotalExecutions)),
		humanize.Comma(int64(rep.TotalConversions)),
		formatPercent(rep.OverallRate),
	)

	if len(rep.Variants) > 1 {
		if !hasLead {
			fmt.Fprintln(out, "Not enough data to determine a leader")
			return
		}
		conf := rep.Confidence() * 100
		fmt.Fprintf(out, "Leading: \"%s\"\n", lead.Label)
		if conf >= 95 {
			fmt.Fprintf(out, "Statistical confidence: %.0f%%\n", conf)
		} else {
			fmt.Fprintf(out, "Statistical confidence: %.0f%% (collect more data)\n", conf)
		}
	}
}

// truncate shortens s to n runes, ending in "..." when cut.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// formatPercent prints a value that is already a percentage.
func formatPercent(pct float64) string {
	if pct == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.2f%%", pct)
}
