package goals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConditionsEmpty(t *testing.T) {
	for _, raw := range []string{"", "{}", "null", "  "} {
		group, err := ParseConditions(raw)
		assert.NoError(t, err, raw)
		assert.Nil(t, group, raw)
	}
}

func TestParseConditionsMalformed(t *testing.T) {
	group, err := ParseConditions(`{"conditions": [`)
	assert.Error(t, err)
	assert.Nil(t, group)
}

func TestConditionOperators(t *testing.T) {
	props := map[string]interface{}{
		"plan":     "premium",
		"amount":   float64(49.99),
		"seats":    float64(10),
		"source":   "newsletter-august",
		"empty":    "",
		"optional": nil,
	}

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{"equals match", Condition{Property: "plan", Operator: "eq", Value: "premium"}, true},
		{"equals miss", Condition{Property: "plan", Operator: "eq", Value: "free"}, false},
		{"equals alias", Condition{Property: "plan", Operator: "==", Value: "premium"}, true},
		{"equals numeric string target", Condition{Property: "seats", Operator: "eq", Value: "10"}, true},
		{"not equals", Condition{Property: "plan", Operator: "ne", Value: "free"}, true},
		{"greater than", Condition{Property: "amount", Operator: "gt", Value: 20}, true},
		{"greater than miss", Condition{Property: "amount", Operator: ">", Value: 100}, false},
		{"less or equal", Condition{Property: "seats", Operator: "<=", Value: 10}, true},
		{"contains", Condition{Property: "source", Operator: "contains", Value: "august"}, true},
		{"not contains", Condition{Property: "source", Operator: "not_contains", Value: "july"}, true},
		{"starts with", Condition{Property: "source", Operator: "starts_with", Value: "newsletter"}, true},
		{"ends with", Condition{Property: "source", Operator: "ends_with", Value: "august"}, true},
		{"in list", Condition{Property: "plan", Operator: "in", Value: []interface{}{"basic", "premium"}}, true},
		{"not in list", Condition{Property: "plan", Operator: "not_in", Value: []interface{}{"basic", "free"}}, true},
		{"regex", Condition{Property: "source", Operator: "regex", Value: `^newsletter-\w+$`}, true},
		{"regex alias", Condition{Property: "source", Operator: "matches", Value: `august$`}, true},
		{"is null on nil", Condition{Property: "optional", Operator: "is_null"}, true},
		{"is null on absent", Condition{Property: "missing", Operator: "is_null"}, true},
		{"is not null", Condition{Property: "plan", Operator: "is_not_null"}, true},
		{"is empty", Condition{Property: "empty", Operator: "is_empty"}, true},
		{"is not empty", Condition{Property: "plan", Operator: "is_not_empty"}, true},
		{"absent property misses eq", Condition{Property: "missing", Operator: "eq", Value: "x"}, false},
		{"absent property misses gt", Condition{Property: "missing", Operator: "gt", Value: 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cond.evaluate(props)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConditionErrors(t *testing.T) {
	props := map[string]interface{}{"plan": "premium"}

	_, err := Condition{Property: "plan", Operator: "regex", Value: "["}.evaluate(props)
	assert.Error(t, err)

	_, err = Condition{Property: "plan", Operator: "between", Value: "x"}.evaluate(props)
	assert.Error(t, err)
}

func TestGroupMatchAll(t *testing.T) {
	group := &ConditionGroup{
		Conditions: []Condition{
			{Property: "plan", Operator: "eq", Value: "premium"},
			{Property: "amount", Operator: "gte", Value: 10},
		},
	}

	ok, err := group.Evaluate(map[string]interface{}{"plan": "premium", "amount": float64(49.99)})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = group.Evaluate(map[string]interface{}{"plan": "premium", "amount": float64(5)})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGroupMatchAny(t *testing.T) {
	group := &ConditionGroup{
		Match: "any",
		Conditions: []Condition{
			{Property: "plan", Operator: "eq", Value: "premium"},
			{Property: "plan", Operator: "eq", Value: "enterprise"},
		},
	}

	ok, err := group.Evaluate(map[string]interface{}{"plan": "enterprise"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = group.Evaluate(map[string]interface{}{"plan": "free"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGroupNested(t *testing.T) {
	group := &ConditionGroup{
		Conditions: []Condition{
			{Property: "plan", Operator: "eq", Value: "premium"},
		},
		Groups: []ConditionGroup{
			{
				Match: "any",
				Conditions: []Condition{
					{Property: "source", Operator: "eq", Value: "email"},
					{Property: "source", Operator: "eq", Value: "social"},
				},
			},
		},
	}

	ok, err := group.Evaluate(map[string]interface{}{"plan": "premium", "source": "social"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = group.Evaluate(map[string]interface{}{"plan": "premium", "source": "ads"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGroupEmptyMatchesEverything(t *testing.T) {
	ok, err := (&ConditionGroup{}).Evaluate(map[string]interface{}{"anything": 1})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLookupPathDotNotation(t *testing.T) {
	props := map[string]interface{}{
		"checkout": map[string]interface{}{
			"cart": map[string]interface{}{
				"total": float64(129.5),
			},
		},
	}

	value, present := lookupPath(props, "checkout.cart.total")
	require.True(t, present)
	assert.Equal(t, float64(129.5), value)

	_, present = lookupPath(props, "checkout.cart.missing")
	assert.False(t, present)

	// Traversal through a non-object stops cleanly.
	_, present = lookupPath(props, "checkout.cart.total.deeper")
	assert.False(t, present)

	_, present = lookupPath(nil, "checkout")
	assert.False(t, present)
}

func TestConditionDotPath(t *testing.T) {
	props := map[string]interface{}{
		"checkout": map[string]interface{}{"total": float64(200)},
	}

	ok, err := Condition{Property: "checkout.total", Operator: "gte", Value: 100}.evaluate(props)
	require.NoError(t, err)
	assert.True(t, ok)
}
