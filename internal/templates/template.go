// Package templates manages personalized message templates, the customer
// segments they target and two-template tests between them.
package templates

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/pathsplit/pathsplit/internal/personalize"
)

// ErrNoActiveTemplates is returned when selection has nothing to choose from.
var ErrNoActiveTemplates = errors.New("no active templates available")

var validate = validator.New()

// Sample template kinds.
const (
	KindCart     = "cart"
	KindBrowse   = "browse"
	KindWishlist = "wishlist"
)

// Metadata is free-form descriptive data attached to a template. Segment
// holds the id of the customer segment the template is written for.
type Metadata struct {
	Segment       string            `json:"segment,omitempty" yaml:"segment,omitempty"`
	Tags          []string          `json:"tags,omitempty" yaml:"tags,omitempty"`
	DefaultValues map[string]string `json:"defaultValues,omitempty" yaml:"defaultValues,omitempty"`
	Language      string            `json:"language,omitempty" yaml:"language,omitempty"`
	Channel       string            `json:"channel,omitempty" yaml:"channel,omitempty"`
	Version       int               `json:"version,omitempty" yaml:"version,omitempty"`
	PreviewText   string            `json:"previewText,omitempty" yaml:"previewText,omitempty"`
}

// Template is a named message body with {{variable}} tokens. Variables is
// derived from Content and must only be set through New and Update.
type Template struct {
	ID          string    `json:"id" yaml:"id" validate:"required"`
	Name        string    `json:"name" yaml:"name" validate:"required,max=200"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Content     string    `json:"content" yaml:"content" validate:"required"`
	Variables   []string  `json:"variables" yaml:"variables"`
	Metadata    Metadata  `json:"metadata" yaml:"metadata"`
	Active      bool      `json:"active" yaml:"active"`
	CreatedAt   time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// NewID returns a fresh template id.
func NewID() string {
	return "tmpl_" + uuid.NewString()
}

// New builds an active template and derives its variables.
func New(name, content string, meta Metadata) (Template, error) {
	now := time.Now().UTC()
	t := Template{
		ID:        NewID(),
		Name:      name,
		Content:   content,
		Variables: personalize.ExtractVariables(content),
		Metadata:  meta,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := validate.Struct(t); err != nil {
		return Template{}, fmt.Errorf("invalid template: %w", err)
	}
	return t, nil
}

// Changes lists the fields Update may modify. Nil fields are left alone.
type Changes struct {
	Name        *string
	Description *string
	Content     *string
	Metadata    *Metadata
	Active      *bool
}

// Update returns a copy of t with changes applied, a new UpdatedAt and,
// when the content changed, freshly derived variables.
func Update(t Template, c Changes) (Template, error) {
	if c.Name != nil {
		t.Name = *c.Name
	}
	if c.Description != nil {
		t.Description = *c.Description
	}
	if c.Content != nil {
		t.Content = *c.Content
		t.Variables = personalize.ExtractVariables(t.Content)
	}
	if c.Metadata != nil {
		t.Metadata = *c.Metadata
	}
	if c.Active != nil {
		t.Active = *c.Active
	}
	t.UpdatedAt = time.Now().UTC()

	if err := validate.Struct(t); err != nil {
		return Template{}, fmt.Errorf("invalid template: %w", err)
	}
	return t, nil
}

// Validate checks that every variable t references exists in catalog. Empty
// content is invalid with nothing missing.
func Validate(t Template, catalog personalize.Catalog) personalize.Validation {
	return personalize.Validate(t.Content, catalog)
}

// Sample returns a ready-made abandonment template of the given kind.
func Sample(kind string) (Template, error) {
	var name, content string
	switch kind {
	case KindCart, "":
		kind = KindCart
		name = "Abandoned Cart Reminder"
		content = "Hi {{firstName}}, we noticed you left {{productName}} in your cart {{abandonedTime}}. Complete your purchase now and get free shipping!"
	case KindBrowse:
		name = "Product Browsing Follow-up"
		content = "Hi {{firstName}}, still thinking about {{productName}}? It's getting a lot of attention lately. Take another look before it sells out!"
	case KindWishlist:
		name = "Wishlist Reminder"
		content = "Hi {{firstName}}, {{productName}} from your wishlist is now back in stock! Grab it before it's gone again."
	default:
		return Template{}, fmt.Errorf("unknown sample template kind %q", kind)
	}

	t, err := New(name, content, Metadata{
		Segment: kind,
		Tags:    []string{kind, "default", "abandonment"},
		DefaultValues: map[string]string{
			"firstName":     "there",
			"productName":   "the items",
			"abandonedTime": "recently",
		},
		Language:    "en",
		Channel:     "sms",
		Version:     1,
		PreviewText: content[:50] + "...",
	})
	if err != nil {
		return Template{}, err
	}
	t.Description = fmt.Sprintf("Default %s abandonment template", kind)
	return t, nil
}

// Catalog returns base with the template's default values applied to the
// variables they name. Defaults for unknown variables are ignored.
func (t Template) Catalog(base personalize.Catalog) personalize.Catalog {
	if len(t.Metadata.DefaultValues) == 0 {
		return base
	}
	var overrides []personalize.Variable
	for name, def := range t.Metadata.DefaultValues {
		if v, ok := base.Lookup(name); ok {
			v.DefaultValue = def
			overrides = append(overrides, v)
		}
	}
	return base.Merge(overrides...)
}

// Render personalizes t's content with e, honouring the template's own
// default values.
func Render(e *personalize.Engine, t Template, data personalize.Data) string {
	return e.RenderWith(t.Content, data, t.Catalog(e.Catalog()))
}
