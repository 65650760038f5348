package stats

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Winner outcomes of DetermineWinner.
const (
	WinnerA            = "a"
	WinnerB            = "b"
	WinnerTie          = "tie"
	WinnerInconclusive = "inconclusive"
)

// PrimaryMetric names the rate DetermineWinner compares.
type PrimaryMetric string

const (
	DeliveryRate      PrimaryMetric = "deliveryRate"
	ReadRate          PrimaryMetric = "readRate"
	ClickRate         PrimaryMetric = "clickRate"
	ResponseRate      PrimaryMetric = "responseRate"
	ConversionRate    PrimaryMetric = "conversionRate"
	RevenuePerMessage PrimaryMetric = "revenuePerMessage"
	UnsubscribeRate   PrimaryMetric = "unsubscribeRate"
)

// PrimaryMetrics lists every accepted metric.
var PrimaryMetrics = []PrimaryMetric{
	DeliveryRate, ReadRate, ClickRate, ResponseRate, ConversionRate, RevenuePerMessage, UnsubscribeRate,
}

// ParsePrimaryMetric validates a metric name.
func ParsePrimaryMetric(s string) (PrimaryMetric, error) {
	for _, m := range PrimaryMetrics {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown primary metric %q", s)
}

// lowerIsBetter reports whether a smaller rate wins.
func (m PrimaryMetric) lowerIsBetter() bool {
	return m == UnsubscribeRate
}

// ArmCounts are the raw message counters of one arm of a two-template test.
type ArmCounts struct {
	Sent         int     `json:"sent" validate:"gte=0"`
	Delivered    int     `json:"delivered" validate:"gte=0,ltefield=Sent"`
	Reads        int     `json:"reads" validate:"gte=0"`
	Clicks       int     `json:"clicks" validate:"gte=0"`
	Responses    int     `json:"responses" validate:"gte=0"`
	Conversions  int     `json:"conversions" validate:"gte=0"`
	Revenue      float64 `json:"revenue" validate:"gte=0"`
	Unsubscribes int     `json:"unsubscribes" validate:"gte=0"`
}

// Validate rejects negative counters and more deliveries than sends.
func (a ArmCounts) Validate() error {
	if err := validate.Struct(a); err != nil {
		return fmt.Errorf("invalid arm counts: %w", err)
	}
	return nil
}

// Pair holds one counter for both arms and their sum.
type Pair[T int | float64] struct {
	A     T `json:"a"`
	B     T `json:"b"`
	Total T `json:"total"`
}

func pair[T int | float64](a, b T) Pair[T] {
	return Pair[T]{A: a, B: b, Total: a + b}
}

// Metrics are the combined counters of both arms.
type Metrics struct {
	Sent         Pair[int]     `json:"sent"`
	Delivered    Pair[int]     `json:"delivered"`
	Reads        Pair[int]     `json:"reads"`
	Clicks       Pair[int]     `json:"clicks"`
	Responses    Pair[int]     `json:"responses"`
	Conversions  Pair[int]     `json:"conversions"`
	Revenue      Pair[float64] `json:"revenue"`
	Unsubscribes Pair[int]     `json:"unsubscribes"`
}

// RateComparison is one rate for both arms, overall, and A minus B.
type RateComparison struct {
	A          float64 `json:"a"`
	B          float64 `json:"b"`
	Overall    float64 `json:"overall"`
	Difference float64 `json:"difference"`
}

// Rates are percentages except RevenuePerMessage, which is revenue per
// delivered message.
type Rates struct {
	DeliveryRate      RateComparison `json:"deliveryRate"`
	ReadRate          RateComparison `json:"readRate"`
	ClickRate         RateComparison `json:"clickRate"`
	ResponseRate      RateComparison `json:"responseRate"`
	ConversionRate    RateComparison `json:"conversionRate"`
	RevenuePerMessage RateComparison `json:"revenuePerMessage"`
	UnsubscribeRate   RateComparison `json:"unsubscribeRate"`
}

// Get returns the comparison for m.
func (r Rates) Get(m PrimaryMetric) (RateComparison, bool) {
	switch m {
	case DeliveryRate:
		return r.DeliveryRate, true
	case ReadRate:
		return r.ReadRate, true
	case ClickRate:
		return r.ClickRate, true
	case ResponseRate:
		return r.ResponseRate, true
	case ConversionRate:
		return r.ConversionRate, true
	case RevenuePerMessage:
		return r.RevenuePerMessage, true
	case UnsubscribeRate:
		return r.UnsubscribeRate, true
	}
	return RateComparison{}, false
}

// CalculateMetrics totals both arms and derives their rates. Delivery rate
// is over sent messages; every other rate is over delivered messages.
func CalculateMetrics(a, b ArmCounts) (Metrics, Rates) {
	m := Metrics{
		Sent:         pair(a.Sent, b.Sent),
		Delivered:    pair(a.Delivered, b.Delivered),
		Reads:        pair(a.Reads, b.Reads),
		Clicks:       pair(a.Clicks, b.Clicks),
		Responses:    pair(a.Responses, b.Responses),
		Conversions:  pair(a.Conversions, b.Conversions),
		Revenue:      pair(a.Revenue, b.Revenue),
		Unsubscribes: pair(a.Unsubscribes, b.Unsubscribes),
	}

	overDelivered := func(p Pair[int]) RateComparison {
		return compare(percent(p.A, m.Delivered.A), percent(p.B, m.Delivered.B), percent(p.Total, m.Delivered.Total))
	}

	r := Rates{
		DeliveryRate: compare(
			percent(m.Delivered.A, m.Sent.A),
			percent(m.Delivered.B, m.Sent.B),
			percent(m.Delivered.Total, m.Sent.Total),
		),
		ReadRate:        overDelivered(m.Reads),
		ClickRate:       overDelivered(m.Clicks),
		ResponseRate:    overDelivered(m.Responses),
		ConversionRate:  overDelivered(m.Conversions),
		UnsubscribeRate: overDelivered(m.Unsubscribes),
		RevenuePerMessage: compare(
			perUnit(m.Revenue.A, m.Delivered.A),
			perUnit(m.Revenue.B, m.Delivered.B),
			perUnit(m.Revenue.Total, m.Delivered.Total),
		),
	}
	return m, r
}

func compare(a, b, overall float64) RateComparison {
	return RateComparison{A: a, B: b, Overall: overall, Difference: a - b}
}

func perUnit(total float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

// WinnerOptions are the thresholds DetermineWinner applies.
type WinnerOptions struct {
	MinSampleSize int
	MinConfidence float64
}

// DefaultWinnerOptions requires 100 sent messages and 95% confidence.
func DefaultWinnerOptions() WinnerOptions {
	return WinnerOptions{MinSampleSize: 100, MinConfidence: 95}
}

// Decision is the outcome of a two-arm comparison.
type Decision struct {
	Winner     string  `json:"winner"`
	Confidence float64 `json:"confidence"`
}

// DetermineWinner runs a pooled two-proportion z-test on the primary metric.
// The result is inconclusive with zero confidence when fewer than
// MinSampleSize messages were sent, or when either arm has fewer than five
// expected successes or failures. It is inconclusive with the computed
// confidence when that falls below MinConfidence.
//
// revenuePerMessage is not a proportion and always comes back inconclusive.
func DetermineWinner(m Metrics, r Rates, primary PrimaryMetric, opts WinnerOptions) Decision {
	inconclusive := Decision{Winner: WinnerInconclusive}

	if m.Sent.Total < opts.MinSampleSize {
		return inconclusive
	}
	if _, ok := r.Get(primary); !ok {
		return inconclusive
	}

	var succA, succB, nA, nB int
	switch primary {
	case DeliveryRate:
		succA, succB, nA, nB = m.Delivered.A, m.Delivered.B, m.Sent.A, m.Sent.B
	case ReadRate:
		succA, succB = m.Reads.A, m.Reads.B
	case ClickRate:
		succA, succB = m.Clicks.A, m.Clicks.B
	case ResponseRate:
		succA, succB = m.Responses.A, m.Responses.B
	case ConversionRate:
		succA, succB = m.Conversions.A, m.Conversions.B
	case UnsubscribeRate:
		succA, succB = m.Unsubscribes.A, m.Unsubscribes.B
	default:
		return inconclusive
	}
	if primary != DeliveryRate {
		nA, nB = m.Delivered.A, m.Delivered.B
	}

	if !normalApproximationHolds(succA, nA) || !normalApproximationHolds(succB, nB) {
		return inconclusive
	}

	z, ok := TwoProportionZ(float64(succA), float64(nA), float64(succB), float64(nB))
	if !ok {
		return inconclusive
	}

	confidence := Confidence(z)
	if confidence < opts.MinConfidence {
		return Decision{Winner: WinnerInconclusive, Confidence: confidence}
	}

	pA := float64(succA) / float64(nA)
	pB := float64(succB) / float64(nB)
	if primary.lowerIsBetter() {
		pA, pB = pB, pA
	}
	switch {
	case pA > pB:
		return Decision{Winner: WinnerA, Confidence: confidence}
	case pB > pA:
		return Decision{Winner: WinnerB, Confidence: confidence}
	}
	return Decision{Winner: WinnerTie, Confidence: confidence}
}

// normalApproximationHolds requires at least five expected successes and
// five expected failures.
func normalApproximationHolds(successes, n int) bool {
	return n > 0 && successes >= 5 && n-successes >= 5
}

// SampleArms returns a realistic pair of arms for previews and demos.
func SampleArms() (ArmCounts, ArmCounts) {
	a := ArmCounts{Sent: 500, Delivered: 485, Reads: 392, Clicks: 118, Responses: 45, Conversions: 28, Revenue: 2800, Unsubscribes: 5}
	b := ArmCounts{Sent: 500, Delivered: 490, Reads: 402, Clicks: 145, Responses: 58, Conversions: 35, Revenue: 3675, Unsubscribes: 8}
	return a, b
}
