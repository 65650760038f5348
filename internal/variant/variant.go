// Package variant manages percentage-weighted, archivable traffic splits and
// picks one path per execution.
//
// Every operation returns a new slice; the input is never modified. Archived
// variants are kept with a zero weight so their statistics stay attached.
package variant

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
)

// sumTolerance is how far the active percentages may drift from 100 before
// Normalize rescales them.
const sumTolerance = 0.001

// strictTolerance is the allowance ValidateSplit grants hand-entered splits.
const strictTolerance = 0.1

// unarchivedPercentage is the flat weight a variant gets back when it is
// restored, before renormalization.
const unarchivedPercentage = 10

var (
	// ErrNoActiveVariants is returned when a decision needs at least one
	// non-archived variant.
	ErrNoActiveVariants = errors.New("no active variants configured")
	// ErrZeroWeight is returned when the active percentages sum to zero.
	ErrZeroWeight = errors.New("active variant percentages sum to zero")
	// ErrDuplicatePath is returned when adding a path id that already exists.
	ErrDuplicatePath = errors.New("path id already exists")
	// ErrInvalidPercentage is returned for a percentage outside 0..100.
	ErrInvalidPercentage = errors.New("percentage must be between 0 and 100")
	// ErrPercentageSum is returned by ValidateSplit when the split is not 100.
	ErrPercentageSum = errors.New("active percentages must sum to 100")
)

var validate = validator.New()

// Variant is one branch of a split.
type Variant struct {
	Label      string  `json:"label" yaml:"label" validate:"required"`
	PathID     string  `json:"pathId" yaml:"pathId" validate:"required"`
	Percentage float64 `json:"percentage" yaml:"percentage" validate:"gte=0,lte=100"`
	IsArchived bool    `json:"isArchived" yaml:"isArchived"`
}

// Validate checks the struct tags and the archived-means-zero rule.
func (v Variant) Validate() error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("variant %q: %w", v.PathID, err)
	}
	if v.IsArchived && v.Percentage != 0 {
		return fmt.Errorf("variant %q: archived variant must have zero percentage", v.PathID)
	}
	return nil
}

// PercentageUpdate sets a new weight for one path.
type PercentageUpdate struct {
	PathID     string  `json:"pathId"`
	Percentage float64 `json:"percentage"`
}

// Active returns the non-archived variants in order.
func Active(vs []Variant) []Variant {
	out := make([]Variant, 0, len(vs))
	for _, v := range vs {
		if !v.IsArchived {
			out = append(out, v)
		}
	}
	return out
}

// Find returns the index of pathID, or -1.
func Find(vs []Variant, pathID string) int {
	for i, v := range vs {
		if v.PathID == pathID {
			return i
		}
	}
	return -1
}

// Normalize rescales active percentages to sum to 100. Each value is rounded
// to one decimal and the rounding residual goes to the first active variant;
// any part of it that would take that variant outside 0..100 moves on to the
// next active variant. Empty and all-archived sets come back unchanged.
func Normalize(vs []Variant) ([]Variant, error) {
	out := clone(vs)

	first := -1
	sum := 0.0
	for i, v := range out {
		if v.IsArchived {
			out[i].Percentage = 0
			continue
		}
		if first < 0 {
			first = i
		}
		sum += v.Percentage
	}
	if first < 0 {
		return out, nil
	}
	if sum == 0 {
		return nil, ErrZeroWeight
	}
	if math.Abs(sum-100) <= sumTolerance {
		return out, nil
	}

	factor := 100 / sum
	rounded := 0.0
	for i, v := range out {
		if v.IsArchived {
			continue
		}
		out[i].Percentage = round1(v.Percentage * factor)
		rounded += out[i].Percentage
	}
	diff := round1(100 - rounded)
	for i := first; i < len(out) && diff != 0; i++ {
		if out[i].IsArchived {
			continue
		}
		next := round1(math.Min(100, math.Max(0, out[i].Percentage+diff)))
		diff = round1(diff - (next - out[i].Percentage))
		out[i].Percentage = next
	}
	return out, nil
}

// Add appends a variant with an even-split default weight and renormalizes.
// A percentage <= 0 means "use the default".
func Add(vs []Variant, label, pathID string, percentage float64) ([]Variant, error) {
	if Find(vs, pathID) >= 0 {
		return nil, fmt.Errorf("add %q: %w", pathID, ErrDuplicatePath)
	}
	if percentage > 100 {
		return nil, fmt.Errorf("add %q: %w", pathID, ErrInvalidPercentage)
	}
	if percentage <= 0 {
		percentage = 100
		if n := len(Active(vs)); n > 0 {
			percentage = math.Floor(100 / float64(n+1))
		}
	}

	nv := Variant{Label: label, PathID: pathID, Percentage: percentage}
	if err := nv.Validate(); err != nil {
		return nil, err
	}
	return Normalize(append(clone(vs), nv))
}

// Archive zeroes the weight of pathID and renormalizes the rest. Unknown
// path ids leave the set as is.
func Archive(vs []Variant, pathID string) ([]Variant, error) {
	out := clone(vs)
	if i := Find(out, pathID); i >= 0 {
		out[i].IsArchived = true
		out[i].Percentage = 0
	}
	return Normalize(out)
}

// Unarchive restores pathID with a flat 10 percent, then renormalizes.
func Unarchive(vs []Variant, pathID string) ([]Variant, error) {
	out := clone(vs)
	if i := Find(out, pathID); i >= 0 && out[i].IsArchived {
		out[i].IsArchived = false
		out[i].Percentage = unarchivedPercentage
	}
	return Normalize(out)
}

// UpdatePercentages applies updates to matching active variants and
// renormalizes. Updates for unknown or archived paths are ignored.
func UpdatePercentages(vs []Variant, updates []PercentageUpdate) ([]Variant, error) {
	out := clone(vs)
	for _, u := range updates {
		if u.Percentage < 0 || u.Percentage > 100 {
			return nil, fmt.Errorf("update %q to %v: %w", u.PathID, u.Percentage, ErrInvalidPercentage)
		}
		i := Find(out, u.PathID)
		if i < 0 || out[i].IsArchived {
			continue
		}
		out[i].Percentage = u.Percentage
	}
	return Normalize(out)
}

// ValidateSplit checks a hand-entered split without rescaling it: there must
// be at least one active variant and the active weights must be 100 ± 0.1.
func ValidateSplit(vs []Variant) error {
	active := Active(vs)
	if len(active) == 0 {
		return ErrNoActiveVariants
	}
	sum := 0.0
	for _, v := range vs {
		if err := v.Validate(); err != nil {
			return err
		}
		if !v.IsArchived {
			sum += v.Percentage
		}
	}
	if math.Abs(sum-100) > strictTolerance {
		return fmt.Errorf("got %.1f: %w", sum, ErrPercentageSum)
	}
	return nil
}

// Sum adds up the active percentages.
func Sum(vs []Variant) float64 {
	total := 0.0
	for _, v := range vs {
		if !v.IsArchived {
			total += v.Percentage
		}
	}
	return total
}

func clone(vs []Variant) []Variant {
	out := make([]Variant, len(vs))
	copy(out, vs)
	return out
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
