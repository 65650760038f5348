package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pathsplit/pathsplit/internal/personalize"
	"github.com/pathsplit/pathsplit/internal/store"
	"github.com/pathsplit/pathsplit/internal/templates"
)

func newRenderCmd(opts *options) *cobra.Command {
	var (
		templateID string
		dataFile   string
		validate   bool
	)

	cmd := &cobra.Command{
		Use:   "render [content]",
		Short: "Personalize a template with customer data",
		Long: `Render inline content or a stored template against a JSON or YAML data
file with customer, cart, order and custom sections. Without --data the
built-in sample customer is used.

Examples:
  pathsplit render "Hi {{firstName}}, your cart is worth {{cartTotal}}"
  pathsplit render --template tmpl_123 --data customer.yaml
  pathsplit render "Hi {{nickname}}" --validate`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 0) == (templateID == "") {
				return fmt.Errorf("give either inline content or --template")
			}

			engine, err := opts.engine()
			if err != nil {
				return err
			}

			data := personalize.SampleData(time.Now().Add(-2 * time.Hour).UTC().Format(time.RFC3339))
			if dataFile != "" {
				if data, err = loadData(dataFile); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()

			if templateID == "" {
				content := args[0]
				if validate {
					if err := validationError(personalize.Validate(content, engine.Catalog())); err != nil {
						return err
					}
				}
				fmt.Fprintln(out, engine.Render(content, data))
				return nil
			}

			return opts.withStore(func(s *store.SQLiteStore) error {
				t, err := s.GetTemplate(context.Background(), templateID)
				if err != nil {
					return notFound(err, "template", templateID)
				}
				if validate {
					if err := validationError(templates.Validate(*t, engine.Catalog())); err != nil {
						return err
					}
				}
				fmt.Fprintln(out, templates.Render(engine, *t, data))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&templateID, "template", "t", "", "stored template id")
	cmd.Flags().StringVar(&dataFile, "data", "", "JSON or YAML data file")
	cmd.Flags().BoolVar(&validate, "validate", false, "fail when the template uses unknown variables")
	return cmd
}

// loadData decodes a data file, choosing YAML for .yaml and .yml files.
func loadData(path string) (personalize.Data, error) {
	var data personalize.Data

	raw, err := os.ReadFile(path)
	if err != nil {
		return data, fmt.Errorf("failed to read data file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &data)
	default:
		err = json.Unmarshal(raw, &data)
	}
	if err != nil {
		return data, fmt.Errorf("failed to parse data file: %w", err)
	}
	return data, nil
}

func validationError(v personalize.Validation) error {
	if v.Valid {
		return nil
	}
	if len(v.MissingVariables) == 0 {
		return fmt.Errorf("template is empty")
	}
	return fmt.Errorf("unknown variables: %s", strings.Join(v.MissingVariables, ", "))
}
