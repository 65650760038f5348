package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pathsplit/pathsplit/internal/store"
	"github.com/pathsplit/pathsplit/internal/variant"
)

func newCreateCmd(opts *options) *cobra.Command {
	var (
		variants    string
		weights     string
		description string
		strict      bool
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new experiment",
		Long: `Create a new experiment with the specified name and variants.

Each variant is "Label" or "Label:pathId". Without a path id the label is
slugified. Weights default to an even split and are rescaled to sum to 100
unless --strict is given, in which case they must already sum to 100.

Examples:
  pathsplit create checkout --variants "Control,Free Shipping"
  pathsplit create checkout --variants "Control:a,Free Shipping:b" --weights "70,30"
  pathsplit create checkout --variants "A,B,C" --weights "50,25,25" --strict`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			vs, err := parseVariants(variants, weights)
			if err != nil {
				return err
			}
			if strict {
				if err := variant.ValidateSplit(vs); err != nil {
					return err
				}
			} else {
				if vs, err = variant.Normalize(vs); err != nil {
					return err
				}
			}

			return opts.withStore(func(s *store.SQLiteStore) error {
				exp, err := s.CreateExperiment(context.Background(), name, description, vs)
				if err != nil {
					return fmt.Errorf("failed to create experiment: %w", err)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Created experiment '%s' with %d variants:\n", exp.Name, len(exp.Variants))
				printVariants(out, exp.Variants)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&variants, "variants", "v", "", "comma-separated variants, each Label or Label:pathId (required)")
	cmd.Flags().StringVarP(&weights, "weights", "w", "", "comma-separated percentages, one per variant")
	cmd.Flags().StringVarP(&description, "description", "d", "", "what the experiment measures")
	cmd.Flags().BoolVar(&strict, "strict", false, "require weights to sum to 100 instead of rescaling")
	cmd.MarkFlagRequired("variants")

	return cmd
}

// parseVariants reads "Label[:pathId]" items and optional weights. Without
// weights every variant gets an equal share.
func parseVariants(spec, weights string) ([]variant.Variant, error) {
	var vs []variant.Variant
	for _, item := range strings.Split(spec, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		label, pathID, ok := strings.Cut(item, ":")
		label = strings.TrimSpace(label)
		if ok {
			pathID = strings.TrimSpace(pathID)
		} else {
			pathID = slugify(label)
		}
		if pathID == "" {
			return nil, fmt.Errorf("variant %q has no usable path id", item)
		}
		if variant.Find(vs, pathID) >= 0 {
			return nil, fmt.Errorf("variant %q: %w", pathID, variant.ErrDuplicatePath)
		}
		vs = append(vs, variant.Variant{Label: label, PathID: pathID})
	}

	if len(vs) < 2 {
		return nil, fmt.Errorf("need at least 2 variants. Example: --variants \"A,B\"")
	}

	if weights == "" {
		for i := range vs {
			vs[i].Percentage = 100 / float64(len(vs))
		}
	} else {
		parts := strings.Split(weights, ",")
		if len(parts) != len(vs) {
			return nil, fmt.Errorf("got %d weights for %d variants", len(parts), len(vs))
		}
		for i, p := range parts {
			w, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid weight %q: %w", p, err)
			}
			vs[i].Percentage = w
		}
	}

	for _, v := range vs {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}
	return vs, nil
}

func printVariants(out io.Writer, vs []variant.Variant) {
	for _, v := range vs {
		status := ""
		if v.IsArchived {
			status = "  (archived)"
		}
		fmt.Fprintf(out, "  %-12s %-24s %5s%%%s\n", v.PathID, v.Label, strconv.FormatFloat(v.Percentage, 'f', -1, 64), status)
	}
}
