package store

import (
	"context"

	"github.com/pathsplit/pathsplit/internal/stats"
	"github.com/pathsplit/pathsplit/internal/templates"
	"github.com/pathsplit/pathsplit/internal/variant"
)

// Store defines the interface for experiment storage operations
type Store interface {
	// Experiment operations
	CreateExperiment(ctx context.Context, name, description string, variants []variant.Variant) (*Experiment, error)
	GetExperiment(ctx context.Context, name string) (*Experiment, error)
	ListExperiments(ctx context.Context) ([]*Experiment, error)
	UpdateVariants(ctx context.Context, name string, variants []variant.Variant) error
	UpdateExperimentState(ctx context.Context, name string, state ExperimentState, winner string) error
	DeleteExperiment(ctx context.Context, name string) error

	// Outcome operations
	RecordOutcome(ctx context.Context, name, pathID string, conversion bool, visitorID string) ([]stats.VariantStat, error)
	GetVariantStats(ctx context.Context, name string) ([]stats.VariantStat, error)
	GetOutcomes(ctx context.Context, name string) ([]*Outcome, error)

	// Template operations
	SaveTemplate(ctx context.Context, t templates.Template) error
	GetTemplate(ctx context.Context, id string) (*templates.Template, error)
	ListTemplates(ctx context.Context) ([]templates.Template, error)
	DeleteTemplate(ctx context.Context, id string) error

	// Segment operations
	SaveSegment(ctx context.Context, seg templates.Segment) error
	GetSegment(ctx context.Context, id string) (*templates.Segment, error)
	ListSegments(ctx context.Context) ([]templates.Segment, error)
	DeleteSegment(ctx context.Context, id string) error

	// Template test operations
	SaveTemplateTest(ctx context.Context, t templates.TemplateTest) error
	GetTemplateTest(ctx context.Context, id string) (*templates.TemplateTest, error)
	ListTemplateTests(ctx context.Context) ([]templates.TemplateTest, error)
	DeleteTemplateTest(ctx context.Context, id string) error

	// Lifecycle
	Close() error
}

var _ Store = (*SQLiteStore)(nil)
