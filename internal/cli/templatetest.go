package cli

import (
	"context"
	"fmt"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pathsplit/pathsplit/internal/stats"
	"github.com/pathsplit/pathsplit/internal/store"
	"github.com/pathsplit/pathsplit/internal/templates"
)

func newTemplateTestCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Manage A/B tests between two templates",
	}
	cmd.AddCommand(
		newTemplateTestCreateCmd(opts),
		newTemplateTestListCmd(opts),
		newTemplateTestStartCmd(opts),
		newTemplateTestStopCmd(opts),
		newTemplateTestDeleteCmd(opts),
	)
	return cmd
}

func newTemplateTestCreateCmd(opts *options) *cobra.Command {
	var (
		split   int
		segment string
		metric  string
		start   bool
	)

	cmd := &cobra.Command{
		Use:   "create <name> <templateA> <templateB>",
		Short: "Create a draft test between two stored templates",
		Long: `Create a test that splits customers between two templates. --split is the
percentage that receives templateA. A test limited to --segment only applies
to customers in that segment.

Examples:
  pathsplit template test create "Cart copy" tmpl_a tmpl_b
  pathsplit template test create "VIP copy" tmpl_a tmpl_b --segment seg_high_value_cart --split 70 --start`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, a, b := args[0], args[1], args[2]
			if !slices.Contains(stats.PrimaryMetrics, stats.PrimaryMetric(metric)) {
				return fmt.Errorf("unknown metric '%s'", metric)
			}

			return opts.withStore(func(s *store.SQLiteStore) error {
				ctx := context.Background()
				for _, id := range []string{a, b} {
					if _, err := s.GetTemplate(ctx, id); err != nil {
						return notFound(err, "template", id)
					}
				}

				t, err := templates.NewTemplateTest(name, a, b)
				if err != nil {
					return err
				}
				t.SplitRatio = split
				t.Segment = segment
				t.PrimaryMetric = stats.PrimaryMetric(metric)
				if start {
					t.Status = templates.StatusActive
				}
				if err := t.Validate(); err != nil {
					return err
				}

				if err := s.SaveTemplateTest(ctx, t); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created test %s (%s): %d%% %s, %d%% %s [%s]\n",
					t.ID, t.Name, t.SplitRatio, a, 100-t.SplitRatio, b, t.Status)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&split, "split", 50, "percentage of customers sent templateA (1-99)")
	cmd.Flags().StringVar(&segment, "segment", "", "only apply the test to this segment id")
	cmd.Flags().StringVar(&metric, "metric", string(stats.ConversionRate), "primary metric for picking the winner")
	cmd.Flags().BoolVar(&start, "start", false, "activate the test immediately")
	return cmd
}

func newTemplateTestListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List template tests, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(func(s *store.SQLiteStore) error {
				list, err := s.ListTemplateTests(context.Background())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(list) == 0 {
					fmt.Fprintln(out, "No template tests yet.")
					return nil
				}

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tSTATUS\tSPLIT\tSEGMENT\tWINNER\tSTARTED")
				for _, t := range list {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\t%s\t%s\n",
						t.ID, t.Name, t.Status, t.SplitRatio, 100-t.SplitRatio,
						orDash(t.Segment), orDash(t.Winner), humanize.Time(t.StartDate))
				}
				return w.Flush()
			})
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func newTemplateTestStartCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "start <id>",
		Short: "Activate a draft test",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateTemplateTest(cmd, opts, args[0], func(t *templates.TemplateTest) error {
				if t.Status != templates.StatusDraft {
					return fmt.Errorf("test '%s' is %s, only draft tests can start", t.ID, t.Status)
				}
				t.Status = templates.StatusActive
				t.StartDate = time.Now().UTC()
				return nil
			})
		},
	}
}

func newTemplateTestStopCmd(opts *options) *cobra.Command {
	var (
		winner string
		cancel bool
	)

	cmd := &cobra.Command{
		Use:   "stop <id>",
		Short: "Complete a test, optionally naming the winning template",
		Long: `Complete a test. A completed test with --winner keeps sending the winner to
customers it applies to; --cancel ends it without a result.

Examples:
  pathsplit template test stop abtest_123 --winner tmpl_b
  pathsplit template test stop abtest_123 --cancel`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return updateTemplateTest(cmd, opts, args[0], func(t *templates.TemplateTest) error {
				if t.Status == templates.StatusCompleted || t.Status == templates.StatusCancelled {
					return fmt.Errorf("test '%s' is already %s", t.ID, t.Status)
				}
				if winner != "" && winner != t.TemplateA && winner != t.TemplateB {
					return fmt.Errorf("winner '%s' is not part of test '%s'", winner, t.ID)
				}
				t.Status = templates.StatusCompleted
				if cancel {
					t.Status = templates.StatusCancelled
				}
				t.Winner = winner
				t.EndDate = time.Now().UTC()
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&winner, "winner", "", "id of the winning template")
	cmd.Flags().BoolVar(&cancel, "cancel", false, "cancel instead of completing")
	cmd.MarkFlagsMutuallyExclusive("winner", "cancel")
	return cmd
}

// updateTemplateTest loads a test, applies change and saves it back.
func updateTemplateTest(cmd *cobra.Command, opts *options, id string, change func(*templates.TemplateTest) error) error {
	return opts.withStore(func(s *store.SQLiteStore) error {
		ctx := context.Background()
		t, err := s.GetTemplateTest(ctx, id)
		if err != nil {
			return notFound(err, "template test", id)
		}
		if err := change(t); err != nil {
			return err
		}
		if err := s.SaveTemplateTest(ctx, *t); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Test %s is now %s\n", t.ID, t.Status)
		return nil
	})
}

func newTemplateTestDeleteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a template test",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(func(s *store.SQLiteStore) error {
				if err := s.DeleteTemplateTest(context.Background(), args[0]); err != nil {
					return notFound(err, "template test", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted template test %s\n", args[0])
				return nil
			})
		},
	}
}
