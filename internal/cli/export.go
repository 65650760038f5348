package cli

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pathsplit/pathsplit/internal/store"
)

func newExportCmd(opts *options) *cobra.Command {
	var exportFormat string

	cmd := &cobra.Command{
		Use:   "export <name>",
		Short: "Export raw outcome data",
		Long: `Export every recorded outcome in CSV or JSON format, newest first.

Examples:
  pathsplit export checkout --format csv > checkout.csv
  pathsplit export checkout --format json > checkout.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			if exportFormat != "csv" && exportFormat != "json" {
				return fmt.Errorf("invalid format: must be 'csv' or 'json'")
			}

			return opts.withStore(func(s *store.SQLiteStore) error {
				ctx := context.Background()

				if _, err := s.GetExperiment(ctx, name); err != nil {
					return notFound(err, "experiment", name)
				}

				outcomes, err := s.GetOutcomes(ctx, name)
				if err != nil {
					return fmt.Errorf("failed to get outcomes: %w", err)
				}

				if exportFormat == "csv" {
					return exportCSV(cmd.OutOrStdout(), outcomes)
				}
				return exportJSON(cmd.OutOrStdout(), name, outcomes)
			})
		},
	}

	cmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "output format (csv or json)")
	return cmd
}

func exportCSV(out io.Writer, outcomes []*store.Outcome) error {
	w := csv.NewWriter(out)

	if err := w.Write([]string{"timestamp", "path_id", "conversion", "visitor_id"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, o := range outcomes {
		row := []string{
			strconv.FormatInt(o.CreatedAt.Unix(), 10),
			o.PathID,
			strconv.FormatBool(o.Conversion),
			o.VisitorID,
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	w.Flush()
	return w.Error()
}

type jsonExport struct {
	Experiment string        `json:"experiment"`
	Outcomes   []jsonOutcome `json:"outcomes"`
}

type jsonOutcome struct {
	Timestamp  int64  `json:"timestamp"`
	PathID     string `json:"path_id"`
	Conversion bool   `json:"conversion"`
	VisitorID  string `json:"visitor_id,omitempty"`
}

func exportJSON(out io.Writer, name string, outcomes []*store.Outcome) error {
	export := jsonExport{
		Experiment: name,
		Outcomes:   make([]jsonOutcome, len(outcomes)),
	}

	for i, o := range outcomes {
		export.Outcomes[i] = jsonOutcome{
			Timestamp:  o.CreatedAt.Unix(),
			PathID:     o.PathID,
			Conversion: o.Conversion,
			VisitorID:  o.VisitorID,
		}
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}
