package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pathsplit/pathsplit/internal/store"
	"github.com/pathsplit/pathsplit/internal/templates"
)

func newSegmentCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "segment",
		Short: "Manage customer segments used for template selection",
	}
	cmd.AddCommand(
		newSegmentSaveCmd(opts),
		newSegmentListCmd(opts),
		newSegmentDeleteCmd(opts),
	)
	return cmd
}

func newSegmentSaveCmd(opts *options) *cobra.Command {
	var (
		file    string
		samples bool
	)

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Store a segment from YAML, or the stock segments",
		Long: `Store a segment read from a YAML file, or the stock abandonment segments.
A file without an id gets a new one; a file with an id replaces that segment.

Once any segment is stored, template selection uses the stored segments
instead of the stock ones.

Example file:
  name: VIP
  priority: 20
  active: true
  rules:
    - field: customer.tier
      operator: equals
      value: vip

Examples:
  pathsplit segment save --file vip.yaml
  pathsplit segment save --samples`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (file == "") == !samples {
				return fmt.Errorf("give either --file or --samples")
			}

			var segments []templates.Segment
			if samples {
				segments = templates.SampleSegments()
			} else {
				seg, err := readSegment(file)
				if err != nil {
					return err
				}
				segments = []templates.Segment{seg}
			}

			return opts.withStore(func(s *store.SQLiteStore) error {
				out := cmd.OutOrStdout()
				for _, seg := range segments {
					if err := s.SaveSegment(context.Background(), seg); err != nil {
						return err
					}
					fmt.Fprintf(out, "Saved segment %s (%s)\n", seg.ID, seg.Name)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML segment definition")
	cmd.Flags().BoolVar(&samples, "samples", false, "store the stock abandonment segments")
	return cmd
}

// segmentFile is the YAML form of a segment. Active defaults to true.
type segmentFile struct {
	ID          string           `yaml:"id"`
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	Priority    int              `yaml:"priority"`
	Tags        []string         `yaml:"tags"`
	Active      *bool            `yaml:"active"`
	Rules       []templates.Rule `yaml:"rules"`
}

func readSegment(path string) (templates.Segment, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return templates.Segment{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var def segmentFile
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return templates.Segment{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	seg, err := templates.NewSegment(def.Name, def.Priority, def.Rules...)
	if err != nil {
		return templates.Segment{}, err
	}
	if def.ID != "" {
		seg.ID = def.ID
	}
	seg.Description = def.Description
	seg.Tags = def.Tags
	if def.Active != nil {
		seg.Active = *def.Active
	}
	return seg, nil
}

func newSegmentListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List segments, highest priority first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(func(s *store.SQLiteStore) error {
				segments, err := s.ListSegments(context.Background())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(segments) == 0 {
					fmt.Fprintln(out, "No stored segments; template selection uses the stock segments:")
					segments = templates.SampleSegments()
				}

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tPRIORITY\tACTIVE\tRULES")
				for _, seg := range segments {
					fmt.Fprintf(w, "%s\t%s\t%d\t%t\t%d\n", seg.ID, seg.Name, seg.Priority, seg.Active, len(seg.Rules))
				}
				return w.Flush()
			})
		},
	}
}

func newSegmentDeleteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored segment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(func(s *store.SQLiteStore) error {
				if err := s.DeleteSegment(context.Background(), args[0]); err != nil {
					return notFound(err, "segment", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted segment %s\n", args[0])
				return nil
			})
		},
	}
}
