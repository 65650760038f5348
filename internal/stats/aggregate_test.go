package stats_test

import (
	"math"
	"testing"

	"github.com/pathsplit/pathsplit/internal/stats"
	"github.com/pathsplit/pathsplit/internal/variant"
)

func twoPaths() []variant.Variant {
	return []variant.Variant{
		{Label: "Control", PathID: "a", Percentage: 50},
		{Label: "Challenger", PathID: "b", Percentage: 50},
	}
}

func TestRecordOutcome_CreatesRowsLazily(t *testing.T) {
	got := stats.RecordOutcome(nil, twoPaths(), "b", true)

	if len(got) != 2 {
		t.Fatalf("expected 2 stat rows, got %d", len(got))
	}
	if got[0] != (stats.VariantStat{PathID: "a"}) {
		t.Errorf("unselected row changed: %+v", got[0])
	}
	if got[1] != (stats.VariantStat{PathID: "b", Executions: 1, Conversions: 1}) {
		t.Errorf("selected row = %+v", got[1])
	}
}

func TestRecordOutcome_NoConversion(t *testing.T) {
	in := []stats.VariantStat{{PathID: "a", Executions: 4, Conversions: 2}}
	got := stats.RecordOutcome(in, twoPaths(), "a", false)

	if got[0].Executions != 5 || got[0].Conversions != 2 {
		t.Errorf("got %+v, want 5 executions and 2 conversions", got[0])
	}
	if in[0].Executions != 4 {
		t.Error("input stats were modified")
	}
}

func TestRecordOutcome_ArchivedHistoryKept(t *testing.T) {
	vs := twoPaths()
	history := stats.RecordOutcome(nil, vs, "b", true)

	archived, err := variant.Archive(vs, "b")
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	got := stats.RecordOutcome(history, archived, "a", false)

	if got[1] != (stats.VariantStat{PathID: "b", Executions: 1, Conversions: 1}) {
		t.Errorf("archived path history changed: %+v", got[1])
	}
}

func TestRecordOutcome_UnknownSelected(t *testing.T) {
	got := stats.RecordOutcome(nil, twoPaths(), "ghost", false)

	if len(got) != 3 || got[2].PathID != "ghost" || got[2].Executions != 1 {
		t.Errorf("expected a new row for ghost, got %+v", got)
	}
}

func TestGenerateReport(t *testing.T) {
	rows := []stats.VariantStat{
		{PathID: "a", Executions: 100, Conversions: 10},
		{PathID: "b", Executions: 100, Conversions: 20},
		{PathID: "gone", Executions: 50, Conversions: 0},
	}

	r := stats.GenerateReport(rows, twoPaths())

	if r.TotalExecutions != 250 || r.TotalConversions != 30 {
		t.Errorf("totals = %d/%d, want 250/30", r.TotalExecutions, r.TotalConversions)
	}
	if math.Abs(r.OverallRate-12) > 1e-9 {
		t.Errorf("overall rate = %f, want 12", r.OverallRate)
	}
	if len(r.Variants) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(r.Variants))
	}

	b := r.Variants[1]
	if b.Label != "Challenger" || b.Percentage != 50 {
		t.Errorf("variant b not joined: %+v", b)
	}
	if math.Abs(b.ConversionRate-20) > 1e-9 {
		t.Errorf("b rate = %f, want 20", b.ConversionRate)
	}
	if math.Abs(b.RelativePerformance-20.0/12*100) > 1e-9 {
		t.Errorf("b relative = %f", b.RelativePerformance)
	}
	if b.CI.Lower >= 0.2 || b.CI.Upper <= 0.2 {
		t.Errorf("b interval [%f,%f] should contain 0.2", b.CI.Lower, b.CI.Upper)
	}

	if r.Variants[2].Label != stats.UnknownVariantLabel {
		t.Errorf("expected %q, got %q", stats.UnknownVariantLabel, r.Variants[2].Label)
	}
}

func TestGenerateReport_NoConversions(t *testing.T) {
	rows := []stats.VariantStat{{PathID: "a", Executions: 10}, {PathID: "b"}}

	r := stats.GenerateReport(rows, twoPaths())

	for _, v := range r.Variants {
		if v.RelativePerformance != 100 {
			t.Errorf("%s relative = %f, want 100", v.PathID, v.RelativePerformance)
		}
		if v.ConversionRate != 0 {
			t.Errorf("%s rate = %f, want 0", v.PathID, v.ConversionRate)
		}
	}
}

func TestGenerateReport_Empty(t *testing.T) {
	r := stats.GenerateReport(nil, twoPaths())

	if r.TotalExecutions != 0 || r.OverallRate != 0 || len(r.Variants) != 0 {
		t.Errorf("expected empty report, got %+v", r)
	}
	if _, ok := r.Leading(); ok {
		t.Error("expected no leading variant")
	}
}

func TestLeading_SkipsArchivedAndUnplayed(t *testing.T) {
	vs := append(twoPaths(), variant.Variant{Label: "Old", PathID: "c", IsArchived: true})
	rows := []stats.VariantStat{
		{PathID: "a", Executions: 100, Conversions: 10},
		{PathID: "b"},
		{PathID: "c", Executions: 10, Conversions: 9},
	}

	lead, ok := stats.GenerateReport(rows, vs).Leading()
	if !ok {
		t.Fatal("expected a leading variant")
	}
	if lead.PathID != "a" {
		t.Errorf("leading = %s, want a", lead.PathID)
	}
}

func TestLeading_TieKeepsFirst(t *testing.T) {
	rows := []stats.VariantStat{
		{PathID: "a", Executions: 10, Conversions: 1},
		{PathID: "b", Executions: 20, Conversions: 2},
	}

	lead, _ := stats.GenerateReport(rows, twoPaths()).Leading()
	if lead.PathID != "a" {
		t.Errorf("leading = %s, want a", lead.PathID)
	}
}

func TestConfidenceBucket(t *testing.T) {
	tests := []struct {
		executions int
		want       float64
	}{
		{0, 0.1},
		{29, 0.1},
		{30, 0.5},
		{99, 0.5},
		{100, 0.8},
		{999, 0.8},
		{1000, 0.95},
	}

	for _, tt := range tests {
		if got := stats.ConfidenceBucket(tt.executions); got != tt.want {
			t.Errorf("ConfidenceBucket(%d) = %v, want %v", tt.executions, got, tt.want)
		}
	}
}

func TestReportConfidence_SingleRow(t *testing.T) {
	r := stats.GenerateReport([]stats.VariantStat{{PathID: "a", Executions: 5000}}, twoPaths())
	if got := r.Confidence(); got != 0 {
		t.Errorf("confidence = %v, want 0", got)
	}
}
