package templates

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/pathsplit/pathsplit/internal/personalize"
	"github.com/pathsplit/pathsplit/internal/stats"
	"github.com/pathsplit/pathsplit/internal/variant"
)

// TestStatus is the lifecycle state of a template test.
type TestStatus string

const (
	StatusDraft     TestStatus = "draft"
	StatusActive    TestStatus = "active"
	StatusCompleted TestStatus = "completed"
	StatusCancelled TestStatus = "cancelled"
)

// TemplateTest splits traffic between two templates. SplitRatio is the
// percentage that receives TemplateA.
type TemplateTest struct {
	ID            string              `json:"id" yaml:"id"`
	Name          string              `json:"name" yaml:"name" validate:"required"`
	Description   string              `json:"description,omitempty" yaml:"description,omitempty"`
	TemplateA     string              `json:"templateA" yaml:"templateA" validate:"required"`
	TemplateB     string              `json:"templateB" yaml:"templateB" validate:"required,nefield=TemplateA"`
	SplitRatio    int                 `json:"splitRatio" yaml:"splitRatio" validate:"min=1,max=99"`
	StartDate     time.Time           `json:"startDate" yaml:"startDate"`
	EndDate       time.Time           `json:"endDate,omitempty" yaml:"endDate,omitempty"`
	Status        TestStatus          `json:"status" yaml:"status" validate:"oneof=draft active completed cancelled"`
	Winner        string              `json:"winningTemplate,omitempty" yaml:"winningTemplate,omitempty"`
	Segment       string              `json:"segment,omitempty" yaml:"segment,omitempty"`
	PrimaryMetric stats.PrimaryMetric `json:"primaryMetric" yaml:"primaryMetric"`
}

// NewTemplateTest returns a draft test with an even split that starts now.
func NewTemplateTest(name, templateA, templateB string) (TemplateTest, error) {
	t := TemplateTest{
		ID:            "abtest_" + uuid.NewString(),
		Name:          name,
		TemplateA:     templateA,
		TemplateB:     templateB,
		SplitRatio:    50,
		StartDate:     time.Now().UTC(),
		Status:        StatusDraft,
		PrimaryMetric: stats.ConversionRate,
	}
	return t, t.Validate()
}

// Validate checks the struct tags.
func (t TemplateTest) Validate() error {
	if err := validate.Struct(t); err != nil {
		return fmt.Errorf("invalid template test: %w", err)
	}
	return nil
}

// Chooser picks templates using an injectable random source.
type Chooser struct {
	rng variant.RandomSource
	now func() time.Time
}

// NewChooser returns a Chooser. A nil rng uses math/rand/v2.
func NewChooser(rng variant.RandomSource) *Chooser {
	if rng == nil {
		rng = variant.DefaultSource()
	}
	return &Chooser{rng: rng, now: time.Now}
}

// WithClock overrides the time used for relative segment dates.
func (c *Chooser) WithClock(now func() time.Time) *Chooser {
	c.now = now
	return c
}

// Pick returns the template id to send for test. Inactive tests always send
// TemplateA; a decided test sends its winner.
func (c *Chooser) Pick(test TemplateTest) string {
	if test.Status != StatusActive {
		return test.TemplateA
	}
	if test.Winner != "" {
		return test.Winner
	}
	if c.rng.Float64()*100 < float64(test.SplitRatio) {
		return test.TemplateA
	}
	return test.TemplateB
}

// SelectOptions are the candidates SelectForCustomer chooses between.
type SelectOptions struct {
	Templates         []Template
	Segments          []Segment
	Tests             []TemplateTest
	DefaultTemplateID string
}

// Selection is the chosen template and what led to it.
type Selection struct {
	Template Template
	Test     *TemplateTest
	Segment  *Segment
}

// SelectForCustomer chooses the template for data in this order: the newest
// active test that applies to the customer's segment, the most recently
// updated template written for that segment, the default template, then the
// most recently updated active template.
func (c *Chooser) SelectForCustomer(data personalize.Data, opts SelectOptions) (Selection, error) {
	var segment *Segment
	if s, ok := BestSegment(data, opts.Segments, c.now()); ok {
		segment = &s
	}

	var active []Template
	for _, t := range opts.Templates {
		if t.Active {
			active = append(active, t)
		}
	}
	if len(active) == 0 {
		return Selection{}, ErrNoActiveTemplates
	}
	byID := func(id string) (Template, bool) {
		i := slices.IndexFunc(active, func(t Template) bool { return t.ID == id })
		if i < 0 {
			return Template{}, false
		}
		return active[i], true
	}

	var tests []TemplateTest
	for _, t := range opts.Tests {
		if t.Status != StatusActive {
			continue
		}
		if t.Segment != "" && (segment == nil || t.Segment != segment.ID) {
			continue
		}
		tests = append(tests, t)
	}
	if len(tests) > 0 {
		slices.SortStableFunc(tests, func(a, b TemplateTest) int {
			return b.StartDate.Compare(a.StartDate)
		})
		test := tests[0]
		if t, ok := byID(c.Pick(test)); ok {
			return Selection{Template: t, Test: &test, Segment: segment}, nil
		}
	}

	newestFirst := func(a, b Template) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	}

	if segment != nil {
		var forSegment []Template
		for _, t := range active {
			if t.Metadata.Segment == segment.ID {
				forSegment = append(forSegment, t)
			}
		}
		if len(forSegment) > 0 {
			slices.SortStableFunc(forSegment, newestFirst)
			return Selection{Template: forSegment[0], Segment: segment}, nil
		}
	}

	if opts.DefaultTemplateID != "" {
		if t, ok := byID(opts.DefaultTemplateID); ok {
			return Selection{Template: t, Segment: segment}, nil
		}
	}

	slices.SortStableFunc(active, newestFirst)
	return Selection{Template: active[0], Segment: segment}, nil
}
