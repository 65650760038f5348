package templates

import (
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pathsplit/pathsplit/internal/format"
	"github.com/pathsplit/pathsplit/internal/pathexpr"
	"github.com/pathsplit/pathsplit/internal/personalize"
)

// Operator compares a customer field against a rule value.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "notEquals"
	OpContains    Operator = "contains"
	OpNotContains Operator = "notContains"
	OpStartsWith  Operator = "startsWith"
	OpEndsWith    Operator = "endsWith"
	OpGreaterThan Operator = "greaterThan"
	OpLessThan    Operator = "lessThan"
	OpBetween     Operator = "between"
	OpExists      Operator = "exists"
	OpNotExists   Operator = "notExists"
)

// ValueTypeDate marks a rule whose value may be a relative date such as
// "now-1h" or "now+7d".
const ValueTypeDate = "date"

var relativeDate = regexp.MustCompile(`^now([-+])(\d+)([dhms])$`)

// Rule is one condition of a segment. Field is a path prefixed by the data
// bundle it reads ("cart.totalValue"); unprefixed paths read the customer.
type Rule struct {
	Field     string   `json:"field" yaml:"field" validate:"required"`
	Operator  Operator `json:"operator" yaml:"operator" validate:"required,oneof=equals notEquals contains notContains startsWith endsWith greaterThan lessThan between exists notExists"`
	Value     any      `json:"value,omitempty" yaml:"value,omitempty"`
	ValueType string   `json:"valueType,omitempty" yaml:"valueType,omitempty" validate:"omitempty,oneof=string number boolean date array"`
}

// Segment is a named group of customers. A customer belongs to it when every
// rule matches.
type Segment struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name" validate:"required"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Rules       []Rule   `json:"rules" yaml:"rules" validate:"dive"`
	Priority    int      `json:"priority" yaml:"priority"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
	Active      bool     `json:"active" yaml:"active"`
}

// NewSegment returns an active segment with a fresh id.
func NewSegment(name string, priority int, rules ...Rule) (Segment, error) {
	s := Segment{
		ID:       "seg_" + uuid.NewString(),
		Name:     name,
		Rules:    rules,
		Priority: priority,
		Active:   true,
	}
	if err := validate.Struct(s); err != nil {
		return Segment{}, fmt.Errorf("invalid segment: %w", err)
	}
	return s, nil
}

// MatchesSegment reports whether data satisfies every rule of s. A segment
// without rules matches everyone. now anchors relative dates.
func MatchesSegment(data personalize.Data, s Segment, now time.Time) bool {
	for _, r := range s.Rules {
		if !r.Matches(data, now) {
			return false
		}
	}
	return true
}

// BestSegment returns the highest-priority active segment data matches.
// Equal priorities keep their input order.
func BestSegment(data personalize.Data, segments []Segment, now time.Time) (Segment, bool) {
	var best Segment
	found := false
	for _, s := range segments {
		if !s.Active || !MatchesSegment(data, s, now) {
			continue
		}
		if !found || s.Priority > best.Priority {
			best = s
			found = true
		}
	}
	return best, found
}

// Matches evaluates r against data.
func (r Rule) Matches(data personalize.Data, now time.Time) bool {
	field := r.resolve(data)

	if r.ValueType == ValueTypeDate {
		if rel, ok := r.Value.(string); ok {
			if m := relativeDate.FindStringSubmatch(rel); m != nil {
				return compareRelative(field, m, r.Operator, now)
			}
		}
	}

	switch r.Operator {
	case OpEquals:
		return equal(field, r.Value)
	case OpNotEquals:
		return !equal(field, r.Value)
	case OpContains:
		return contains(field, r.Value)
	case OpNotContains:
		return !contains(field, r.Value)
	case OpStartsWith:
		s, ok := field.(string)
		return ok && strings.HasPrefix(s, format.String(r.Value))
	case OpEndsWith:
		s, ok := field.(string)
		return ok && strings.HasSuffix(s, format.String(r.Value))
	case OpGreaterThan:
		c, ok := order(field, r.Value)
		return ok && c > 0
	case OpLessThan:
		c, ok := order(field, r.Value)
		return ok && c < 0
	case OpBetween:
		bounds, ok := r.Value.([]any)
		if !ok || len(bounds) != 2 {
			return false
		}
		lo, okLo := order(field, bounds[0])
		hi, okHi := order(field, bounds[1])
		return okLo && okHi && lo > 0 && hi < 0
	case OpExists:
		return field != nil
	case OpNotExists:
		return field == nil
	}
	return false
}

// resolve picks the bundle named by the field prefix and walks the rest.
func (r Rule) resolve(data personalize.Data) any {
	source, path := data.Customer, r.Field
	for _, b := range []struct {
		prefix string
		src    map[string]any
	}{
		{"customer.", data.Customer},
		{"cart.", data.Cart},
		{"order.", data.Order},
		{"custom.", data.Custom},
	} {
		if rest, ok := strings.CutPrefix(r.Field, b.prefix); ok {
			source, path = b.src, rest
			break
		}
	}
	if source == nil {
		return nil
	}
	v, _ := pathexpr.Resolve(source, path)
	return v
}

func compareRelative(field any, m []string, op Operator, now time.Time) bool {
	amount, err := strconv.Atoi(m[2])
	if err != nil {
		return false
	}
	unit := map[string]time.Duration{"d": 24 * time.Hour, "h": time.Hour, "m": time.Minute, "s": time.Second}[m[3]]
	offset := time.Duration(amount) * unit
	if m[1] == "-" {
		offset = -offset
	}
	target := now.Add(offset)

	t, ok := format.ParseTime(field)
	if !ok {
		return false
	}
	switch op {
	case OpGreaterThan:
		return t.After(target)
	case OpLessThan:
		return t.Before(target)
	}
	return t.Equal(target)
}

// equal compares numbers by value and everything else structurally.
func equal(a, b any) bool {
	if x, ok := number(a); ok {
		if y, ok := number(b); ok {
			return x == y
		}
	}
	if sa, ok := asList(a); ok {
		if sb, ok := asList(b); ok {
			return slices.EqualFunc(sa, sb, equal)
		}
	}
	return reflect.DeepEqual(a, b)
}

// contains handles list membership and substrings. Any other field contains
// nothing.
func contains(field, value any) bool {
	if items, ok := asList(field); ok {
		return slices.ContainsFunc(items, func(item any) bool { return equal(item, value) })
	}
	if s, ok := field.(string); ok {
		return strings.Contains(s, format.String(value))
	}
	return false
}

// order compares numbers numerically and strings lexically.
func order(a, b any) (int, bool) {
	if x, ok := number(a); ok {
		if y, ok := number(b); ok {
			switch {
			case x > y:
				return 1, true
			case x < y:
				return -1, true
			}
			return 0, true
		}
	}
	sa, okA := a.(string)
	sb, okB := b.(string)
	if okA && okB {
		return strings.Compare(sa, sb), true
	}
	return 0, false
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

// Ids of the stock segments. They are fixed so templates can target a stock
// segment across processes.
const (
	SegmentHighValueCart  = "seg_high_value_cart"
	SegmentRecentCart     = "seg_recent_cart"
	SegmentRepeatCustomer = "seg_repeat_customer"
	SegmentBrowsers       = "seg_product_browsers"
	SegmentWishlist       = "seg_wishlist"
)

// SampleSegments returns the stock abandonment segments.
func SampleSegments() []Segment {
	mk := func(id, name, desc string, priority int, tags []string, rules ...Rule) Segment {
		s, err := NewSegment(name, priority, rules...)
		if err != nil {
			panic(err)
		}
		s.ID = id
		s.Description = desc
		s.Tags = tags
		return s
	}
	abandoned := Rule{Field: "cart.abandonedAt", Operator: OpExists, Value: true}
	notCompleted := Rule{Field: "cart.completedAt", Operator: OpNotExists, Value: true}

	return []Segment{
		mk(SegmentHighValueCart, "High-Value Cart Abandoners", "Customers who abandoned carts with value over $100", 10,
			[]string{"cart", "high-value", "abandonment"},
			Rule{Field: "cart.totalValue", Operator: OpGreaterThan, Value: 100, ValueType: "number"},
			abandoned, notCompleted),
		mk(SegmentRecentCart, "Recent Cart Abandoners", "Customers who abandoned carts within the last hour", 5,
			[]string{"cart", "recent", "abandonment"},
			Rule{Field: "cart.abandonedAt", Operator: OpGreaterThan, Value: "now-1h", ValueType: ValueTypeDate},
			notCompleted),
		mk(SegmentRepeatCustomer, "Repeat Customers with Abandoned Cart", "Returning customers who have abandoned their cart", 8,
			[]string{"cart", "repeat-customer", "abandonment"},
			Rule{Field: "customer.orderCount", Operator: OpGreaterThan, Value: 0, ValueType: "number"},
			abandoned, notCompleted),
		mk(SegmentBrowsers, "Product Browsers", "Customers who viewed products but didn't add to cart", 3,
			[]string{"browse", "no-cart", "abandonment"},
			Rule{Field: "customer.productViews", Operator: OpGreaterThan, Value: 2, ValueType: "number"},
			Rule{Field: "cart.products", Operator: OpEquals, Value: []any{}, ValueType: "array"}),
		mk(SegmentWishlist, "Wishlist Abandoners", "Customers with items in wishlist for over 7 days", 2,
			[]string{"wishlist", "abandonment"},
			Rule{Field: "customer.wishlist", Operator: OpExists, Value: true},
			Rule{Field: "customer.wishlistUpdatedAt", Operator: OpLessThan, Value: "now-7d", ValueType: ValueTypeDate}),
	}
}
