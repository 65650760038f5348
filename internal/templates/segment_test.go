package templates_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathsplit/pathsplit/internal/personalize"
	"github.com/pathsplit/pathsplit/internal/templates"
)

var segNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func customer() personalize.Data {
	return personalize.Data{
		Customer: map[string]any{
			"firstName":  "Jane",
			"email":      "jane@example.com",
			"orderCount": 3.0,
			"tags":       []any{"vip", "newsletter"},
		},
		Cart: map[string]any{
			"totalValue":  150.0,
			"abandonedAt": segNow.Add(-20 * time.Minute).Format(time.RFC3339),
			"products":    []any{map[string]any{"name": "Boots"}},
		},
	}
}

func rule(field string, op templates.Operator, value any) templates.Rule {
	return templates.Rule{Field: field, Operator: op, Value: value}
}

func TestRule_Operators(t *testing.T) {
	data := customer()

	tests := []struct {
		name string
		rule templates.Rule
		want bool
	}{
		{"equals string", rule("firstName", templates.OpEquals, "Jane"), true},
		{"equals int vs float", rule("customer.orderCount", templates.OpEquals, 3), true},
		{"notEquals", rule("firstName", templates.OpNotEquals, "Joe"), true},
		{"contains list", rule("tags", templates.OpContains, "vip"), true},
		{"contains substring", rule("email", templates.OpContains, "@example"), true},
		{"contains on number", rule("orderCount", templates.OpContains, "3"), false},
		{"notContains list", rule("tags", templates.OpNotContains, "spam"), true},
		{"notContains missing", rule("nickname", templates.OpNotContains, "x"), true},
		{"startsWith", rule("email", templates.OpStartsWith, "jane"), true},
		{"endsWith", rule("email", templates.OpEndsWith, ".org"), false},
		{"greaterThan", rule("cart.totalValue", templates.OpGreaterThan, 100), true},
		{"lessThan", rule("cart.totalValue", templates.OpLessThan, 100), false},
		{"between", rule("cart.totalValue", templates.OpBetween, []any{100, 200}), true},
		{"between exclusive", rule("cart.totalValue", templates.OpBetween, []any{150, 200}), false},
		{"between malformed", rule("cart.totalValue", templates.OpBetween, 100), false},
		{"exists", rule("cart.abandonedAt", templates.OpExists, true), true},
		{"notExists", rule("cart.completedAt", templates.OpNotExists, true), true},
		{"nested path", rule("cart.products[0].name", templates.OpEquals, "Boots"), true},
		{"missing bundle", rule("order.total", templates.OpExists, true), false},
		{"mixed types", rule("firstName", templates.OpGreaterThan, 3), false},
		{"unknown operator", rule("firstName", templates.Operator("matches"), "J.*"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.Matches(data, segNow))
		})
	}
}

func TestRule_RelativeDates(t *testing.T) {
	data := customer()

	recent := templates.Rule{Field: "cart.abandonedAt", Operator: templates.OpGreaterThan, Value: "now-1h", ValueType: templates.ValueTypeDate}
	assert.True(t, recent.Matches(data, segNow))
	assert.False(t, recent.Matches(data, segNow.Add(2*time.Hour)))

	older := templates.Rule{Field: "cart.abandonedAt", Operator: templates.OpLessThan, Value: "now-10m", ValueType: templates.ValueTypeDate}
	assert.True(t, older.Matches(data, segNow))

	missing := templates.Rule{Field: "cart.completedAt", Operator: templates.OpLessThan, Value: "now+1d", ValueType: templates.ValueTypeDate}
	assert.False(t, missing.Matches(data, segNow))
}

func TestMatchesSegment_NoRulesMatchesEveryone(t *testing.T) {
	s, err := templates.NewSegment("Everyone", 0)
	require.NoError(t, err)
	assert.True(t, templates.MatchesSegment(personalize.Data{}, s, segNow))
}

func TestNewSegment_InvalidRule(t *testing.T) {
	_, err := templates.NewSegment("Bad", 1, rule("x", templates.Operator("like"), "y"))
	assert.Error(t, err)
}

func TestBestSegment(t *testing.T) {
	segments := templates.SampleSegments()

	best, ok := templates.BestSegment(customer(), segments, segNow)
	require.True(t, ok)
	assert.Equal(t, "High-Value Cart Abandoners", best.Name)

	data := customer()
	data.Cart["totalValue"] = 40.0
	best, ok = templates.BestSegment(data, segments, segNow)
	require.True(t, ok)
	assert.Equal(t, "Repeat Customers with Abandoned Cart", best.Name)

	data.Customer["orderCount"] = 0.0
	best, ok = templates.BestSegment(data, segments, segNow)
	require.True(t, ok)
	assert.Equal(t, "Recent Cart Abandoners", best.Name)
}

func TestBestSegment_SkipsInactive(t *testing.T) {
	segments := templates.SampleSegments()
	for i := range segments {
		segments[i].Active = false
	}

	_, ok := templates.BestSegment(customer(), segments, segNow)
	assert.False(t, ok)
}

func TestBestSegment_BrowsersWithEmptyCart(t *testing.T) {
	data := personalize.Data{
		Customer: map[string]any{"productViews": 5.0},
		Cart:     map[string]any{"products": []any{}},
	}

	best, ok := templates.BestSegment(data, templates.SampleSegments(), segNow)
	require.True(t, ok)
	assert.Equal(t, "Product Browsers", best.Name)
}

func TestSampleSegments_StableIDs(t *testing.T) {
	first, second := templates.SampleSegments(), templates.SampleSegments()
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
	assert.Equal(t, templates.SegmentHighValueCart, first[0].ID)

	best, ok := templates.BestSegment(customer(), first, segNow)
	require.True(t, ok)
	assert.Equal(t, templates.SegmentHighValueCart, best.ID)
}
