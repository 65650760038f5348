package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pathsplit/pathsplit/internal/stats"
)

// armsFile is the YAML layout read by compare --file.
type armsFile struct {
	A stats.ArmCounts `yaml:"a"`
	B stats.ArmCounts `yaml:"b"`
}

func newCompareCmd(opts *options) *cobra.Command {
	var (
		armA, armB    string
		file          string
		sample        bool
		metric        string
		minSample     int
		minConfidence float64
		asJSON        bool
	)

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare two message arms and pick a winner",
		Long: `Compare the counters of two template arms with a two-proportion z-test on
the primary metric. Counters come from --a/--b, a YAML file with "a" and "b"
keys, or --sample.

Metrics: deliveryRate, readRate, clickRate, responseRate, conversionRate,
unsubscribeRate (lower wins), revenuePerMessage (never decided).

Examples:
  pathsplit compare --a "sent=500,delivered=485,clicks=118" --b "sent=500,delivered=490,clicks=145" --metric clickRate
  pathsplit compare --file arms.yaml --min-confidence 90
  pathsplit compare --sample`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			primary, err := stats.ParsePrimaryMetric(metric)
			if err != nil {
				return err
			}

			var a, b stats.ArmCounts
			switch {
			case sample:
				a, b = stats.SampleArms()
			case file != "":
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", file, err)
				}
				var arms armsFile
				if err := yaml.Unmarshal(data, &arms); err != nil {
					return fmt.Errorf("failed to parse %s: %w", file, err)
				}
				a, b = arms.A, arms.B
			default:
				if a, err = parseArm(armA); err != nil {
					return fmt.Errorf("--a: %w", err)
				}
				if b, err = parseArm(armB); err != nil {
					return fmt.Errorf("--b: %w", err)
				}
			}
			for _, arm := range []stats.ArmCounts{a, b} {
				if err := arm.Validate(); err != nil {
					return err
				}
			}

			winnerOpts := stats.DefaultWinnerOptions()
			if opts.cfg != nil {
				winnerOpts = stats.WinnerOptions{MinSampleSize: opts.cfg.MinSample, MinConfidence: opts.cfg.MinConfidence}
			}
			if cmd.Flags().Changed("min-sample") {
				winnerOpts.MinSampleSize = minSample
			}
			if cmd.Flags().Changed("min-confidence") {
				winnerOpts.MinConfidence = minConfidence
			}

			m, r := stats.CalculateMetrics(a, b)
			decision := stats.DetermineWinner(m, r, primary, winnerOpts)

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Metrics  stats.Metrics  `json:"metrics"`
					Rates    stats.Rates    `json:"rates"`
					Decision stats.Decision `json:"decision"`
				}{m, r, decision})
			}
			return printComparison(cmd, primary, m, r, decision)
		},
	}

	cmd.Flags().StringVar(&armA, "a", "", "arm A counters as key=value pairs")
	cmd.Flags().StringVar(&armB, "b", "", "arm B counters as key=value pairs")
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with a and b counters")
	cmd.Flags().BoolVar(&sample, "sample", false, "use built-in sample counters")
	cmd.Flags().StringVarP(&metric, "metric", "m", string(stats.ConversionRate), "primary metric")
	cmd.Flags().IntVar(&minSample, "min-sample", 100, "minimum total sent (env PATHSPLIT_MIN_SAMPLE)")
	cmd.Flags().Float64Var(&minConfidence, "min-confidence", 95, "minimum confidence percent (env PATHSPLIT_MIN_CONFIDENCE)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.MarkFlagsMutuallyExclusive("file", "sample", "a")
	cmd.MarkFlagsMutuallyExclusive("file", "sample", "b")

	return cmd
}

// parseArm reads "sent=500,delivered=485,...". Unset counters are zero.
func parseArm(s string) (stats.ArmCounts, error) {
	var arm stats.ArmCounts
	if strings.TrimSpace(s) == "" {
		return arm, fmt.Errorf("counters are required, e.g. \"sent=500,delivered=485\"")
	}

	ints := map[string]*int{
		"sent":         &arm.Sent,
		"delivered":    &arm.Delivered,
		"reads":        &arm.Reads,
		"clicks":       &arm.Clicks,
		"responses":    &arm.Responses,
		"conversions":  &arm.Conversions,
		"unsubscribes": &arm.Unsubscribes,
	}
	for _, kv := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(kv), "=")
		if !ok {
			return arm, fmt.Errorf("expected key=value, got %q", kv)
		}
		if key == "revenue" {
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return arm, fmt.Errorf("revenue: %w", err)
			}
			arm.Revenue = f
			continue
		}
		dst, known := ints[key]
		if !known {
			return arm, fmt.Errorf("unknown counter %q", key)
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return arm, fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}
	return arm, nil
}

func printComparison(cmd *cobra.Command, primary stats.PrimaryMetric, m stats.Metrics, r stats.Rates, d stats.Decision) error {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Sent: %d / %d   Delivered: %d / %d\n\n", m.Sent.A, m.Sent.B, m.Delivered.A, m.Delivered.B)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METRIC\tA\tB\tOVERALL\tA - B")
	for _, metric := range stats.PrimaryMetrics {
		c, _ := r.Get(metric)
		marker := ""
		if metric == primary {
			marker = " *"
		}
		unit := "%"
		if metric == stats.RevenuePerMessage {
			unit = ""
		}
		fmt.Fprintf(w, "%s%s\t%.2f%s\t%.2f%s\t%.2f%s\t%+.2f%s\n",
			metric, marker, c.A, unit, c.B, unit, c.Overall, unit, c.Difference, unit)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	switch d.Winner {
	case stats.WinnerA, stats.WinnerB:
		fmt.Fprintf(out, "Winner: %s (%.1f%% confident on %s)\n", strings.ToUpper(d.Winner), d.Confidence, primary)
	case stats.WinnerTie:
		fmt.Fprintf(out, "Result: tie (%.1f%% confident on %s)\n", d.Confidence, primary)
	default:
		if d.Confidence > 0 {
			fmt.Fprintf(out, "Result: inconclusive (%.1f%% confidence on %s)\n", d.Confidence, primary)
		} else {
			fmt.Fprintf(out, "Result: inconclusive (not enough data for %s)\n", primary)
		}
	}
	return nil
}
