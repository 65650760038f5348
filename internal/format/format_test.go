package format_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pathsplit/pathsplit/internal/format"
)

var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func newRegistry() *format.Registry {
	return format.NewRegistry(format.WithClock(func() time.Time { return fixedNow }))
}

func TestFormat_NoFormatter(t *testing.T) {
	r := newRegistry()

	assert.Equal(t, "", r.Format(nil, "", nil))
	assert.Equal(t, "42.5", r.Format(42.5, "", nil))
	assert.Equal(t, "3", r.Format(3.0, "", nil))
	assert.Equal(t, "Jane", r.Format("Jane", "", nil))
}

func TestFormat_UnknownFormatterFallsBack(t *testing.T) {
	r := newRegistry()

	assert.Equal(t, "hello", r.Format("hello", "shout", format.Options{"x": "y"}))
}

func TestCurrency(t *testing.T) {
	r := newRegistry()

	tests := []struct {
		name  string
		value any
		opts  format.Options
		want  string
	}{
		{"float", 42.5, nil, "$42.50"},
		{"int", 7, nil, "$7.00"},
		{"numeric string", "19.999", nil, "$20.00"},
		{"grouping", 1234567.891, nil, "$1,234,567.89"},
		{"negative", -5.25, nil, "-$5.25"},
		{"euro", 10, format.Options{"currency": "EUR"}, "€10.00"},
		{"yen has no minor unit", 1500, format.Options{"currency": "JPY"}, "¥1,500"},
		{"code without symbol", 3, format.Options{"currency": "CHF"}, "CHF 3.00"},
		{"non numeric", "free", nil, "free"},
		{"invalid code", 3, format.Options{"currency": "ZZZ1"}, "3"},
		{"nil", nil, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Format(tt.value, format.Currency, tt.opts))
		})
	}
}

func TestDate(t *testing.T) {
	r := newRegistry()

	assert.Equal(t, "June 1, 2023", r.Format("2023-06-01T14:30:00Z", format.Date, nil))
	assert.Equal(t, "June 1, 2023", r.Format("2023-06-01", format.Date, nil))
	assert.Equal(t, "", r.Format("", format.Date, nil))
	assert.Equal(t, "not a date", r.Format("not a date", format.Date, nil))
}

func TestDate_Relative(t *testing.T) {
	r := newRegistry()

	got := r.Format(fixedNow.Add(-3*time.Hour).Format(time.RFC3339), format.Date, format.Options{"format": "relative"})
	assert.Equal(t, "3 hours ago", got)
}

func TestDate_EpochMillis(t *testing.T) {
	r := newRegistry()

	ms := float64(time.Date(2022, 1, 9, 0, 0, 0, 0, time.UTC).UnixMilli())
	assert.Equal(t, "January 9, 2022", r.Format(ms, format.Date, nil))
}

func TestList(t *testing.T) {
	r := newRegistry()

	assert.Equal(t, "a", r.Format([]any{"a"}, format.List, nil))
	assert.Equal(t, "a and b", r.Format([]any{"a", "b"}, format.List, nil))
	assert.Equal(t, "a, b and c", r.Format([]any{"a", "b", "c"}, format.List, nil))
	assert.Equal(t, "a / b and c", r.Format([]string{"a", "b", "c"}, format.List, format.Options{"joiner": " / "}))
	assert.Equal(t, "", r.Format([]any{}, format.List, nil))
	assert.Equal(t, "solo", r.Format("solo", format.List, nil))
}

func TestRelative(t *testing.T) {
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{0, "just now"},
		{59 * time.Second, "just now"},
		{time.Minute, "a minute ago"},
		{119 * time.Second, "a minute ago"},
		{45 * time.Minute, "45 minutes ago"},
		{119 * time.Minute, "an hour ago"},
		{5 * time.Hour, "5 hours ago"},
		{24 * time.Hour, "yesterday"},
		{47 * time.Hour, "yesterday"},
		{72 * time.Hour, "3 days ago"},
		{-time.Hour, "just now"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, format.Relative(fixedNow.Add(-tt.ago), fixedNow))
		})
	}
}

func TestTimeAgo(t *testing.T) {
	r := newRegistry()

	assert.Equal(t, "10 minutes ago", r.Format(fixedNow.Add(-10*time.Minute), format.TimeAgo, nil))
	assert.Equal(t, "", r.Format(nil, format.TimeAgo, nil))
	assert.Equal(t, "recently", r.Format("recently", format.TimeAgo, nil))
}

func TestParseSpec(t *testing.T) {
	tests := []struct {
		spec     string
		wantName string
		wantOpts format.Options
	}{
		{"currency", "currency", format.Options{}},
		{"currency(EUR)", "currency", format.Options{"currency": "EUR"}},
		{"date(relative)", "date", format.Options{"format": "relative"}},
		{"list(joiner: / ,x:1)", "list", format.Options{"joiner": "/", "x": "1"}},
		{"list(joiner)", "list", format.Options{"format": "joiner"}},
		{"currency(", "currency(", format.Options{}},
		{"bad spec!", "bad spec!", format.Options{}},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			name, opts := format.ParseSpec(tt.spec)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantOpts, opts)
		})
	}
}

func TestParseOptions_Malformed(t *testing.T) {
	assert.Equal(t, format.Options{}, format.ParseOptions(",,:"))
	assert.Equal(t, format.Options{"a": "b"}, format.ParseOptions("a:b,novalue,:x"))
}

func TestRegister(t *testing.T) {
	r := newRegistry()
	r.Register("upper", func(v any, _ format.Options) string {
		return "UP:" + format.String(v)
	})

	assert.True(t, r.Has("upper"))
	assert.Equal(t, "UP:x", r.Format("x", "upper", nil))
}
