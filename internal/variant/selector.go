package variant

import (
	"math/rand/v2"
	"sync"
)

// RandomSource yields uniform floats in [0,1).
type RandomSource interface {
	Float64() float64
}

// RandomFunc adapts a plain function to RandomSource.
type RandomFunc func() float64

// Float64 calls f.
func (f RandomFunc) Float64() float64 { return f() }

// DefaultSource draws from the package-level math/rand/v2 generator, which
// is safe for concurrent use.
func DefaultSource() RandomSource {
	return RandomFunc(rand.Float64)
}

// lockedRand guards a *rand.Rand so one Selector can serve concurrent requests.
type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

// NewRandomSource returns a seeded, goroutine-safe source. It is not
// suitable for anything security related.
func NewRandomSource(seed uint64) RandomSource {
	return &lockedRand{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Selector picks one path per execution.
type Selector struct {
	rng RandomSource
}

// NewSelector returns a Selector drawing from rng. A nil rng uses the
// package-level math/rand/v2 generator.
func NewSelector(rng RandomSource) *Selector {
	if rng == nil {
		rng = DefaultSource()
	}
	return &Selector{rng: rng}
}

// Select normalizes the active variants and returns the path id whose
// cumulative percentage first reaches the draw. It never returns an empty
// id without an error.
func (s *Selector) Select(vs []Variant) (string, error) {
	active := Active(vs)
	if len(active) == 0 {
		return "", ErrNoActiveVariants
	}

	normalized, err := Normalize(active)
	if err != nil {
		return "", err
	}

	draw := s.rng.Float64() * 100
	cumulative := 0.0
	for _, v := range normalized {
		cumulative += v.Percentage
		if draw <= cumulative {
			return v.PathID, nil
		}
	}
	return normalized[0].PathID, nil
}
