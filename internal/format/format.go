// Package format holds the named value formatters used when rendering
// personalized templates. Formatters never fail: anything they cannot
// handle is rendered in its plain string form.
package format

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Options are the parsed arguments of an inline formatter such as
// currency(EUR) or list(joiner: / ).
type Options map[string]string

// Func converts a raw value into display text.
type Func func(value any, opts Options) string

// Clock returns the current time. Relative formatters read it so tests can
// pin "now".
type Clock func() time.Time

// Names of the built-in formatters.
const (
	Currency = "currency"
	Date     = "date"
	List     = "list"
	TimeAgo  = "timeAgo"
)

// Registry maps formatter names to functions. The zero value is not usable;
// construct one with NewRegistry.
type Registry struct {
	funcs map[string]Func
	now   Clock
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source used by relative formatters.
func WithClock(c Clock) Option {
	return func(r *Registry) {
		r.now = c
	}
}

// NewRegistry returns a registry preloaded with currency, date, list and
// timeAgo.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		funcs: make(map[string]Func),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.funcs[Currency] = formatCurrency
	r.funcs[Date] = r.formatDate
	r.funcs[List] = formatList
	r.funcs[TimeAgo] = r.formatTimeAgo
	return r
}

// Register adds or replaces a formatter.
func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

// Has reports whether a formatter with the given name exists.
func (r *Registry) Has(name string) bool {
	_, ok := r.funcs[name]
	return ok
}

// Names lists the registered formatter names in no particular order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	return names
}

// Format applies the named formatter. An empty or unknown name yields the
// value's plain string form.
func (r *Registry) Format(value any, name string, opts Options) string {
	if name == "" {
		return String(value)
	}
	fn, ok := r.funcs[name]
	if !ok {
		return String(value)
	}
	if opts == nil {
		opts = Options{}
	}
	return fn(value, opts)
}

// String renders a value the way it would appear when interpolated into
// text: nil is empty, whole floats drop the decimal point and slices are
// comma joined.
func String(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case json.Number:
		return val.String()
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = String(item)
		}
		return strings.Join(parts, ",")
	case []string:
		return strings.Join(val, ",")
	case map[string]any:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	case fmt.Stringer:
		return val.String()
	}
	return fmt.Sprint(v)
}

// truthy mirrors the "is there anything here" checks formatters use before
// attempting to parse a value.
func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case bool:
		return val
	case float64:
		return val != 0
	case int:
		return val != 0
	case int64:
		return val != 0
	}
	return true
}
