package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/pathsplit/pathsplit/internal/store"
	"github.com/pathsplit/pathsplit/internal/variant"
)

const (
	splitEven   = "Even split"
	splitCustom = "Custom percentages"
)

// wizardAnswers are the responses collected by the init wizard.
type wizardAnswers struct {
	Name        string
	Description string
	Labels      []string
	Percentages []float64 // Empty for an even split
}

func newInitCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create your first experiment interactively",
		Long: `Walk through creating an experiment: its name, its variants and how
traffic is split between them.

Example:
  pathsplit init`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			answers, err := promptExperiment()
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				os.Exit(0)
			}
			if err != nil {
				return err
			}

			vs, err := answers.variants()
			if err != nil {
				return err
			}

			return opts.withStore(func(s *store.SQLiteStore) error {
				exp, err := s.CreateExperiment(context.Background(), answers.Name, answers.Description, vs)
				if err != nil {
					return fmt.Errorf("failed to create experiment: %w", err)
				}
				printNextSteps(cmd, exp)
				return nil
			})
		},
	}
}

func promptExperiment() (wizardAnswers, error) {
	var a wizardAnswers
	var err error

	required := func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New("required")
		}
		return nil
	}

	if a.Name, err = (&promptui.Prompt{Label: "Experiment name", Validate: required}).Run(); err != nil {
		return a, err
	}
	if a.Description, err = (&promptui.Prompt{Label: "What does a conversion mean (optional)"}).Run(); err != nil {
		return a, err
	}

	labels, err := (&promptui.Prompt{
		Label:   "Variant labels, comma-separated",
		Default: "Control,Variant B",
		Validate: func(s string) error {
			if len(splitLabels(s)) < 2 {
				return errors.New("need at least 2 variants")
			}
			return nil
		},
	}).Run()
	if err != nil {
		return a, err
	}
	a.Labels = splitLabels(labels)

	_, mode, err := (&promptui.Select{Label: "Traffic split", Items: []string{splitEven, splitCustom}}).Run()
	if err != nil {
		return a, err
	}
	if mode == splitEven {
		return a, nil
	}

	for _, label := range a.Labels {
		pct, err := (&promptui.Prompt{
			Label: fmt.Sprintf("Percentage for %q", label),
			Validate: func(s string) error {
				f, err := strconv.ParseFloat(s, 64)
				if err != nil || f < 0 || f > 100 {
					return errors.New("enter a number between 0 and 100")
				}
				return nil
			},
		}).Run()
		if err != nil {
			return a, err
		}
		f, _ := strconv.ParseFloat(pct, 64)
		a.Percentages = append(a.Percentages, f)
	}
	return a, nil
}

func splitLabels(s string) []string {
	var labels []string
	for _, l := range strings.Split(s, ",") {
		if l = strings.TrimSpace(l); l != "" {
			labels = append(labels, l)
		}
	}
	return labels
}

// variants turns the answers into a normalized variant set.
func (a wizardAnswers) variants() ([]variant.Variant, error) {
	var weights []string
	for _, p := range a.Percentages {
		weights = append(weights, strconv.FormatFloat(p, 'f', -1, 64))
	}
	vs, err := parseVariants(strings.Join(a.Labels, ","), strings.Join(weights, ","))
	if err != nil {
		return nil, err
	}
	return variant.Normalize(vs)
}

func printNextSteps(cmd *cobra.Command, exp *store.Experiment) {
	out := cmd.OutOrStdout()

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Created experiment '%s':\n", exp.Name)
	printVariants(out, exp.Variants)
	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("-", 60))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "1. Start the server")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "   pathsplit serve")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "2. Ask for a path on every execution")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "   curl -X POST http://localhost:8080/api/experiments/%s/select\n", exp.Name)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "3. Report what happened")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "   curl -X POST http://localhost:8080/api/experiments/%s/outcomes \\\n", exp.Name)
	fmt.Fprintf(out, "     -d '{\"pathId\":\"%s\",\"conversion\":true}'\n", exp.Variants[0].PathID)
	fmt.Fprintln(out)
	fmt.Fprintln(out, strings.Repeat("-", 60))
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  results <name>          Show experiment statistics")
	fmt.Fprintln(out, "  winner <name> <path>    Declare a winner")
	fmt.Fprintln(out, "  list                    List all experiments")
	fmt.Fprintln(out, "  token                   Show the report URL")
}
