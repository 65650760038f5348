package stats

import "math"

// TwoProportionZ returns the pooled two-proportion z statistic for
// aSucc/aN against bSucc/bN. ok is false when either sample is empty or the
// pooled variance is zero.
func TwoProportionZ(aSucc, aN, bSucc, bN float64) (z float64, ok bool) {
	if aN <= 0 || bN <= 0 {
		return 0, false
	}

	pA := aSucc / aN
	pB := bSucc / bN

	// Pooled proportion under the null hypothesis pA == pB
	pooled := (aSucc + bSucc) / (aN + bN)
	se := math.Sqrt(pooled * (1 - pooled) * (1/aN + 1/bN))
	if se == 0 || math.IsNaN(se) {
		return 0, false
	}

	return (pA - pB) / se, true
}

// Confidence converts a z statistic into a two-tailed confidence percentage
// in [0,100]: the probability mass of the standard normal within ±|z|.
func Confidence(z float64) float64 {
	c := (2*normalCDF(math.Abs(z)) - 1) * 100
	return math.Max(0, math.Min(100, c))
}

// normalCDF is the Zelen & Severo (Abramowitz and Stegun 26.2.17)
// approximation of the standard normal CDF. Confidence values shown to users
// depend on these exact coefficients.
func normalCDF(x float64) float64 {
	t := 1 / (1 + 0.2316419*math.Abs(x))
	d := 0.3989423 * math.Exp(-x*x/2)
	p := d * t * (0.3193815 + t*(-0.3565638+t*(1.781478+t*(-1.821256+t*1.330274))))
	if x > 0 {
		return 1 - p
	}
	return p
}
