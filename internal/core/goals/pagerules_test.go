package goals

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePathRulesEmpty(t *testing.T) {
	for _, raw := range []string{"", "[]", "null"} {
		rules, err := ParsePathRules(raw)
		assert.NoError(t, err, raw)
		assert.Nil(t, rules, raw)
	}
}

func TestParsePathRulesMalformed(t *testing.T) {
	rules, err := ParsePathRules(`[{"kind": "exact"`)
	assert.Error(t, err)
	assert.Nil(t, rules)
}

func TestMatchPathKinds(t *testing.T) {
	tests := []struct {
		name string
		rule PathRule
		path string
		want bool
	}{
		{"exact match", PathRule{Kind: "exact", Value: "/pricing"}, "/pricing", true},
		{"exact is strict about trailing slash", PathRule{Kind: "exact", Value: "/pricing"}, "/pricing/", false},
		{"exact miss", PathRule{Kind: "exact", Value: "/pricing"}, "/pricing/enterprise", false},
		{"wildcard", PathRule{Kind: "wildcard", Value: "/blog/*"}, "/blog/launch-post", true},
		{"wildcard anchors both ends", PathRule{Kind: "wildcard", Value: "/blog/*"}, "/en/blog/post", false},
		{"leading wildcard", PathRule{Kind: "wildcard", Value: "*/thanks"}, "/checkout/thanks", true},
		{"wildcard quotes meta characters", PathRule{Kind: "wildcard", Value: "/docs/v1.0/*"}, "/docs/v1x0/intro", false},
		{"regex", PathRule{Kind: "regex", Value: `^/products/\d+$`}, "/products/42", true},
		{"regex miss", PathRule{Kind: "regex", Value: `^/products/\d+$`}, "/products/featured", false},
		{"contains", PathRule{Kind: "contains", Value: "checkout"}, "/shop/checkout/step-2", true},
		{"starts with", PathRule{Kind: "starts_with", Value: "/docs"}, "/docs/getting-started", true},
		{"ends with", PathRule{Kind: "ends_with", Value: "/confirmation"}, "/order/confirmation", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MatchPath([]PathRule{tt.rule}, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatchPathFirstMatchWins(t *testing.T) {
	rules := []PathRule{
		{Kind: "exact", Value: "/signup"},
		{Kind: "starts_with", Value: "/signup/"},
	}

	ok, err := MatchPath(rules, "/signup/step-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = MatchPath(rules, "/login")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatchPathErrors(t *testing.T) {
	_, err := MatchPath([]PathRule{{Kind: "regex", Value: "["}}, "/any")
	assert.Error(t, err)

	_, err = MatchPath([]PathRule{{Kind: "glob", Value: "/x"}}, "/any")
	assert.Error(t, err)
}

func TestMatchPathNoRules(t *testing.T) {
	ok, err := MatchPath(nil, "/pricing")
	require.NoError(t, err)
	assert.False(t, ok)
}
