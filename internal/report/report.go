// Package report renders variant statistics as Markdown.
package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pathsplit/pathsplit/internal/stats"
)

// Render formats r as a Markdown summary: totals, the leading variant if any,
// a table of non-archived variants and the confidence bucket.
func Render(r stats.Report) string {
	var b strings.Builder

	b.WriteString("# A/B Test Results\n\n")
	fmt.Fprintf(&b, "Total Executions: %d\n", r.TotalExecutions)
	fmt.Fprintf(&b, "Total Conversions: %d\n", r.TotalConversions)
	fmt.Fprintf(&b, "Overall Conversion Rate: %.2f%%\n\n", r.OverallRate)

	if lead, ok := r.Leading(); ok {
		b.WriteString("## Winning Variant\n\n")
		fmt.Fprintf(&b, "\"%s\" with %.2f%% conversion rate\n\n", lead.Label, lead.ConversionRate)
	}

	b.WriteString("## Variant Performance\n\n")
	b.WriteString("| Variant | Traffic | Executions | Conversions | Conv. Rate | Relative Perf. |\n")
	b.WriteString("|---------|---------|------------|-------------|------------|---------------|\n")
	for _, v := range r.Variants {
		if v.IsArchived {
			continue
		}
		fmt.Fprintf(&b, "| %s | %s%% | %d | %d | %.2f%% | %.2f%% |\n",
			v.Label,
			strconv.FormatFloat(v.Percentage, 'f', -1, 64),
			v.Executions,
			v.Conversions,
			v.ConversionRate,
			v.RelativePerformance,
		)
	}

	confidence := r.Confidence()
	fmt.Fprintf(&b, "\n\nStatistical confidence: %.0f%%\n", confidence*100)

	switch {
	case confidence < 0.5:
		b.WriteString("\n**Note:** More data is needed for conclusive results.\n")
	case confidence >= 0.95:
		b.WriteString("\n**Note:** Results are statistically significant.\n")
	}

	return b.String()
}
