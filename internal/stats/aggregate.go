package stats

import (
	"github.com/pathsplit/pathsplit/internal/variant"
)

// UnknownVariantLabel is shown for stat rows whose path no longer exists in
// the variant set.
const UnknownVariantLabel = "Unknown Variant"

// VariantStat holds the running counters of one path.
type VariantStat struct {
	PathID      string `json:"pathId"`
	Executions  int    `json:"executions"`
	Conversions int    `json:"conversions"`
}

// Rate is conversions over executions as a percentage, 0 with no data.
func (s VariantStat) Rate() float64 {
	return percent(s.Conversions, s.Executions)
}

// RecordOutcome returns a copy of stats with one execution (and optionally one
// conversion) added to selected. Missing rows are created for every variant
// and for selected itself. Callers must serialize concurrent calls for the
// same variant set.
func RecordOutcome(stats []VariantStat, vs []variant.Variant, selected string, conversion bool) []VariantStat {
	out := make([]VariantStat, len(stats), len(stats)+len(vs)+1)
	copy(out, stats)

	index := make(map[string]int, len(out))
	for i, s := range out {
		index[s.PathID] = i
	}
	ensure := func(pathID string) int {
		if i, ok := index[pathID]; ok {
			return i
		}
		out = append(out, VariantStat{PathID: pathID})
		index[pathID] = len(out) - 1
		return len(out) - 1
	}

	for _, v := range vs {
		ensure(v.PathID)
	}

	i := ensure(selected)
	out[i].Executions++
	if conversion {
		out[i].Conversions++
	}
	return out
}

// Report summarizes a variant set's statistics.
type Report struct {
	TotalExecutions  int             `json:"totalExecutions"`
	TotalConversions int             `json:"totalConversions"`
	OverallRate      float64         `json:"overallConversionRate"`
	Variants         []VariantReport `json:"variantStats"`
}

// VariantReport is one stat row joined with its variant.
type VariantReport struct {
	PathID              string   `json:"pathId"`
	Label               string   `json:"label"`
	Percentage          float64  `json:"percentage"`
	IsArchived          bool     `json:"isArchived"`
	Executions          int      `json:"executions"`
	Conversions         int      `json:"conversions"`
	ConversionRate      float64  `json:"conversionRate"`
	RelativePerformance float64  `json:"relativePerformance"`
	CI                  Interval `json:"confidenceInterval"`
}

// GenerateReport joins stats with their variants. Rates are percentages;
// relative performance is 100 when the overall rate is zero.
func GenerateReport(stats []VariantStat, vs []variant.Variant) Report {
	r := Report{Variants: make([]VariantReport, 0, len(stats))}
	for _, s := range stats {
		r.TotalExecutions += s.Executions
		r.TotalConversions += s.Conversions
	}
	r.OverallRate = percent(r.TotalConversions, r.TotalExecutions)

	for _, s := range stats {
		vr := VariantReport{
			PathID:         s.PathID,
			Label:          UnknownVariantLabel,
			Executions:     s.Executions,
			Conversions:    s.Conversions,
			ConversionRate: s.Rate(),
			CI:             WilsonInterval(s.Conversions, s.Executions, 0.95),
		}
		if i := variant.Find(vs, s.PathID); i >= 0 {
			vr.Label = vs[i].Label
			vr.Percentage = vs[i].Percentage
			vr.IsArchived = vs[i].IsArchived
		}

		vr.RelativePerformance = 100
		if r.OverallRate > 0 {
			vr.RelativePerformance = vr.ConversionRate / r.OverallRate * 100
		}
		r.Variants = append(r.Variants, vr)
	}
	return r
}

// Leading returns the non-archived variant with the highest conversion rate
// among those with at least one execution. Ties go to the earlier row.
func (r Report) Leading() (VariantReport, bool) {
	var best VariantReport
	found := false
	for _, v := range r.Variants {
		if v.IsArchived || v.Executions == 0 {
			continue
		}
		if !found || v.ConversionRate > best.ConversionRate {
			best = v
			found = true
		}
	}
	return best, found
}

// Confidence is the report-level confidence bucket. Fewer than two rows
// yield 0.
func (r Report) Confidence() float64 {
	if len(r.Variants) < 2 {
		return 0
	}
	return ConfidenceBucket(r.TotalExecutions)
}

// ConfidenceBucket is a coarse stand-in for significance based only on the
// total execution count. It is not a statistical test.
func ConfidenceBucket(totalExecutions int) float64 {
	switch {
	case totalExecutions < 30:
		return 0.1
	case totalExecutions < 100:
		return 0.5
	case totalExecutions < 1000:
		return 0.8
	}
	return 0.95
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
