package format

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/text/currency"
)

const defaultCurrency = "USD"

// symbols covers the currencies that en-US renders with a symbol instead of
// the ISO code.
var symbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"INR": "₹",
	"CAD": "CA$",
	"AUD": "A$",
	"MXN": "MX$",
	"BRL": "R$",
	"CNY": "CN¥",
	"KRW": "₩",
}

func formatCurrency(value any, opts Options) string {
	amount, ok := toNumber(value)
	if !ok {
		return String(value)
	}

	code := opts["currency"]
	if code == "" {
		code = defaultCurrency
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return String(value)
	}
	code = unit.String()
	scale, _ := currency.Standard.Rounding(unit)

	pattern := "#,###."
	if scale > 0 {
		pattern += strings.Repeat("#", scale)
	}
	digits := humanize.FormatFloat(pattern, math.Abs(amount))

	sign := ""
	if amount < 0 && math.Round(-amount*math.Pow10(scale)) != 0 {
		sign = "-"
	}
	if sym, ok := symbols[code]; ok {
		return sign + sym + digits
	}
	return sign + code + " " + digits
}

// toNumber coerces numeric values and numeric strings.
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
