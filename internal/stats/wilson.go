package stats

import "math"

// Interval is a closed range of proportions in [0,1].
type Interval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// WilsonInterval returns the Wilson score interval for successes out of
// trials at the given two-sided confidence (0-1). It behaves better than the
// normal approximation for small samples and rates near 0 or 1.
func WilsonInterval(successes, trials int, confidence float64) Interval {
	if trials <= 0 {
		return Interval{}
	}

	z := ZScore(confidence)
	p := float64(successes) / float64(trials)
	n := float64(trials)

	denominator := 1 + z*z/n
	center := (p + z*z/(2*n)) / denominator
	spread := (z / denominator) * math.Sqrt(p*(1-p)/n+z*z/(4*n*n))

	return Interval{
		Lower: math.Max(0, center-spread),
		Upper: math.Min(1, center+spread),
	}
}

// ZScore returns the critical value for a two-sided confidence level:
//   - 0.90 -> 1.645
//   - 0.95 -> 1.96
//   - 0.99 -> 2.576
//
// Other levels are found by inverting normalCDF.
func ZScore(confidence float64) float64 {
	switch confidence {
	case 0.90:
		return 1.645
	case 0.95:
		return 1.96
	case 0.99:
		return 2.576
	}
	if confidence <= 0 {
		return 0
	}
	if confidence >= 1 {
		return math.Inf(1)
	}
	return invertCDF((1 + confidence) / 2)
}

// invertCDF finds x with normalCDF(x) == p by bisection. normalCDF is
// monotonic, so 60 halvings of [0,10] are more than enough.
func invertCDF(p float64) float64 {
	lo, hi := 0.0, 10.0
	for range 60 {
		mid := (lo + hi) / 2
		if normalCDF(mid) < p {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}
