package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pathsplit/pathsplit/internal/store"
	"github.com/pathsplit/pathsplit/internal/templates"
)

func newTemplateCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Manage message templates",
	}
	cmd.AddCommand(
		newTemplateSaveCmd(opts),
		newTemplateListCmd(opts),
		newTemplateShowCmd(opts),
		newTemplateDeleteCmd(opts),
		newTemplateTestCmd(opts),
	)
	return cmd
}

func newTemplateSaveCmd(opts *options) *cobra.Command {
	var (
		id, name, content, file string
		description, segment    string
		sample                  string
		inactive                bool
	)

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Create or update a template",
		Long: `Create a template, or update the one named by --id. Variables are derived
from the content. --sample stores one of the built-in cart, browse or
wishlist templates.

Examples:
  pathsplit template save --name "Reminder" --content "Hi {{firstName}}"
  pathsplit template save --name "Reminder" --file reminder.txt --segment seg_vip
  pathsplit template save --id tmpl_123 --content "Hello {{firstName}}"
  pathsplit template save --sample cart`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file != "" {
				raw, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", file, err)
				}
				content = strings.TrimRight(string(raw), "\n")
			}

			return opts.withStore(func(s *store.SQLiteStore) error {
				ctx := context.Background()

				var t templates.Template
				var err error
				switch {
				case sample != "":
					t, err = templates.Sample(sample)
				case id != "":
					var existing *templates.Template
					if existing, err = s.GetTemplate(ctx, id); err != nil {
						return notFound(err, "template", id)
					}
					t, err = templates.Update(*existing, changesFromFlags(cmd, name, description, content, segment, existing.Metadata, inactive))
				default:
					t, err = templates.New(name, content, templates.Metadata{Segment: segment})
					t.Description = description
					t.Active = !inactive
				}
				if err != nil {
					return err
				}

				if err := s.SaveTemplate(ctx, t); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved template %s (%s) with variables: %s\n", t.ID, t.Name, strings.Join(t.Variables, ", "))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "id of the template to update")
	cmd.Flags().StringVarP(&name, "name", "n", "", "template name")
	cmd.Flags().StringVarP(&content, "content", "c", "", "template content")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read content from a file")
	cmd.Flags().StringVarP(&description, "description", "d", "", "template description")
	cmd.Flags().StringVar(&segment, "segment", "", "segment id the template is written for")
	cmd.Flags().StringVar(&sample, "sample", "", "store a built-in template: cart, browse or wishlist")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "save the template as inactive")
	cmd.MarkFlagsMutuallyExclusive("content", "file")
	cmd.MarkFlagsMutuallyExclusive("sample", "id")
	return cmd
}

// changesFromFlags turns the flags the user set into template changes.
func changesFromFlags(cmd *cobra.Command, name, description, content, segment string, meta templates.Metadata, inactive bool) templates.Changes {
	var c templates.Changes
	if cmd.Flags().Changed("name") {
		c.Name = &name
	}
	if cmd.Flags().Changed("description") {
		c.Description = &description
	}
	if cmd.Flags().Changed("content") || cmd.Flags().Changed("file") {
		c.Content = &content
	}
	if cmd.Flags().Changed("segment") {
		meta.Segment = segment
		c.Metadata = &meta
	}
	if cmd.Flags().Changed("inactive") {
		active := !inactive
		c.Active = &active
	}
	return c
}

func newTemplateListCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List templates, most recently updated first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(func(s *store.SQLiteStore) error {
				list, err := s.ListTemplates(context.Background())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(list) == 0 {
					fmt.Fprintln(out, "No templates yet. Try: pathsplit template save --sample cart")
					return nil
				}

				w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tACTIVE\tSEGMENT\tVARIABLES\tUPDATED")
				for _, t := range list {
					segment := t.Metadata.Segment
					if segment == "" {
						segment = "-"
					}
					fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%d\t%s\n",
						t.ID, t.Name, t.Active, segment, len(t.Variables), humanize.Time(t.UpdatedAt))
				}
				return w.Flush()
			})
		},
	}
}

func newTemplateShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a template as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(func(s *store.SQLiteStore) error {
				t, err := s.GetTemplate(context.Background(), args[0])
				if err != nil {
					return notFound(err, "template", args[0])
				}
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				defer enc.Close()
				return enc.Encode(t)
			})
		},
	}
}

func newTemplateDeleteCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(func(s *store.SQLiteStore) error {
				if err := s.DeleteTemplate(context.Background(), args[0]); err != nil {
					return notFound(err, "template", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted template %s\n", args[0])
				return nil
			})
		},
	}
}
