// Package personalize renders {{variable}} and {{variable:formatter(args)}}
// placeholders against customer, cart, order and custom data.
//
// Rendering never fails. Placeholders for unknown variables are left as
// written, missing values fall back to the variable's default, and unknown
// formatters print the raw value.
package personalize

import (
	"regexp"

	"github.com/pathsplit/pathsplit/internal/format"
	"github.com/pathsplit/pathsplit/internal/pathexpr"
)

var token = regexp.MustCompile(`\{\{([^{}:]+)(?::([^{}]+))?\}\}`)

// Engine renders templates with a catalog and a formatter registry.
type Engine struct {
	catalog    Catalog
	formatters *format.Registry
}

// Option configures an Engine.
type Option func(*Engine)

// WithCatalog replaces the default catalog.
func WithCatalog(c Catalog) Option {
	return func(e *Engine) {
		e.catalog = c
	}
}

// WithFormatters replaces the default formatter registry.
func WithFormatters(r *format.Registry) Option {
	return func(e *Engine) {
		e.formatters = r
	}
}

// NewEngine returns an engine using the default catalog and formatters
// unless overridden.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		catalog:    DefaultCatalog(),
		formatters: format.NewRegistry(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the engine's catalog.
func (e *Engine) Catalog() Catalog {
	return e.catalog
}

// Render substitutes every placeholder in tmpl using the engine's catalog.
func (e *Engine) Render(tmpl string, data Data) string {
	return e.RenderWith(tmpl, data, e.catalog)
}

// RenderWith is Render with a caller supplied catalog.
func (e *Engine) RenderWith(tmpl string, data Data, catalog Catalog) string {
	if tmpl == "" {
		return ""
	}

	return token.ReplaceAllStringFunc(tmpl, func(match string) string {
		m := token.FindStringSubmatch(match)
		name, spec := m[1], m[2]

		v, ok := catalog.Lookup(name)
		if !ok {
			return match
		}

		value, found := pathexpr.Resolve(data.Source(v.DataType), v.Path)
		if !found {
			value = v.DefaultValue
		}

		formatter, opts := v.Formatter, format.Options{}
		if spec != "" {
			formatter, opts = format.ParseSpec(spec)
		}
		return e.formatters.Format(value, formatter, opts)
	})
}

// Preview is the result of rendering a template for display.
type Preview struct {
	Output    string   `json:"output"`
	Variables []string `json:"variables"`
}

// Preview renders tmpl and reports which variables it references.
func (e *Engine) Preview(tmpl string, data Data) Preview {
	return Preview{
		Output:    e.Render(tmpl, data),
		Variables: ExtractVariables(tmpl),
	}
}

// ExtractVariables returns the distinct placeholder names in tmpl in order
// of first appearance.
func ExtractVariables(tmpl string) []string {
	vars := []string{}
	if tmpl == "" {
		return vars
	}

	seen := make(map[string]bool)
	for _, m := range token.FindAllStringSubmatch(tmpl, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			vars = append(vars, m[1])
		}
	}
	return vars
}

// Validation reports whether every placeholder in a template is known.
type Validation struct {
	Valid            bool     `json:"valid"`
	MissingVariables []string `json:"missingVariables"`
}

// Validate checks tmpl against catalog. An empty template is invalid with
// nothing missing.
func Validate(tmpl string, catalog Catalog) Validation {
	if tmpl == "" {
		return Validation{Valid: false, MissingVariables: []string{}}
	}

	missing := []string{}
	for _, name := range ExtractVariables(tmpl) {
		if _, ok := catalog.Lookup(name); !ok {
			missing = append(missing, name)
		}
	}
	return Validation{Valid: len(missing) == 0, MissingVariables: missing}
}
