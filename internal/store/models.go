package store

import (
	"time"

	"github.com/pathsplit/pathsplit/internal/variant"
)

type ExperimentState string

const (
	StateRunning   ExperimentState = "running"
	StatePaused    ExperimentState = "paused"
	StateCompleted ExperimentState = "completed"
)

type Experiment struct {
	ID          int64
	Name        string
	Description string
	Variants    []variant.Variant // Decoded from JSON
	State       ExperimentState
	Winner      string // PathID of the declared winner, empty while undecided
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Outcome is one logged execution of an experiment.
type Outcome struct {
	ID         int64
	Experiment string
	PathID     string
	Conversion bool
	VisitorID  string
	CreatedAt  time.Time
}
