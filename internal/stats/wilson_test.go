package stats_test

import (
	"math"
	"testing"

	"github.com/pathsplit/pathsplit/internal/stats"
)

func TestWilsonInterval_NoTrials(t *testing.T) {
	ci := stats.WilsonInterval(0, 0, 0.95)
	if ci.Lower != 0 || ci.Upper != 0 {
		t.Errorf("expected [0,0], got [%f,%f]", ci.Lower, ci.Upper)
	}
}

func TestWilsonInterval_ContainsRate(t *testing.T) {
	ci := stats.WilsonInterval(100, 1000, 0.95)

	if ci.Lower >= 0.1 || ci.Upper <= 0.1 {
		t.Errorf("interval [%f,%f] should contain 0.1", ci.Lower, ci.Upper)
	}
	if math.Abs(ci.Lower-0.0829) > 0.001 || math.Abs(ci.Upper-0.1202) > 0.001 {
		t.Errorf("interval [%f,%f] not ~[0.0829,0.1202]", ci.Lower, ci.Upper)
	}
}

func TestWilsonInterval_Clamped(t *testing.T) {
	ci := stats.WilsonInterval(0, 5, 0.95)
	if ci.Lower != 0 {
		t.Errorf("lower = %f, want 0", ci.Lower)
	}

	ci = stats.WilsonInterval(5, 5, 0.95)
	if ci.Upper > 1 {
		t.Errorf("upper = %f, want <= 1", ci.Upper)
	}
}

func TestWilsonInterval_NarrowsWithMoreData(t *testing.T) {
	small := stats.WilsonInterval(10, 100, 0.95)
	large := stats.WilsonInterval(1000, 10000, 0.95)

	if large.Upper-large.Lower >= small.Upper-small.Lower {
		t.Errorf("expected narrower interval with more trials")
	}
}

func TestZScore(t *testing.T) {
	tests := []struct {
		confidence float64
		want       float64
	}{
		{0.90, 1.645},
		{0.95, 1.96},
		{0.99, 2.576},
		{0.80, 1.2816},
		{0.50, 0.6745},
	}

	for _, tt := range tests {
		got := stats.ZScore(tt.confidence)
		if math.Abs(got-tt.want) > 0.01 {
			t.Errorf("ZScore(%v) = %f, want ~%f", tt.confidence, got, tt.want)
		}
	}
}
