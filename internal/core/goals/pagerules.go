package goals

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Path rule kinds, evaluated first-match-wins in list order.
const (
	PathExact      = "exact"
	PathWildcard   = "wildcard"
	PathRegex      = "regex"
	PathContains   = "contains"
	PathStartsWith = "starts_with"
	PathEndsWith   = "ends_with"
)

// PathRule matches a page view path. A pageview goal carries an ordered
// rule list; the first rule that applies decides the outcome.
type PathRule struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// ParsePathRules decodes a goal's ordered path rule list.
func ParsePathRules(raw string) ([]PathRule, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "[]" || raw == "null" {
		return nil, nil
	}

	var rules []PathRule
	if err := json.Unmarshal([]byte(raw), &rules); err != nil {
		return nil, fmt.Errorf("malformed path rules: %w", err)
	}
	return rules, nil
}

// MatchPath evaluates the ordered rule list against a path. Exact matching
// is strict: "/pricing" does not match "/pricing/".
func MatchPath(rules []PathRule, path string) (bool, error) {
	for _, rule := range rules {
		switch rule.Kind {
		case PathExact:
			if path == rule.Value {
				return true, nil
			}
		case PathWildcard:
			re, err := wildcardRegexp(rule.Value)
			if err != nil {
				return false, err
			}
			if re.MatchString(path) {
				return true, nil
			}
		case PathRegex:
			re, err := regexp.Compile(rule.Value)
			if err != nil {
				return false, fmt.Errorf("malformed path regex %q: %w", rule.Value, err)
			}
			if re.MatchString(path) {
				return true, nil
			}
		case PathContains:
			if strings.Contains(path, rule.Value) {
				return true, nil
			}
		case PathStartsWith:
			if strings.HasPrefix(path, rule.Value) {
				return true, nil
			}
		case PathEndsWith:
			if strings.HasSuffix(path, rule.Value) {
				return true, nil
			}
		default:
			return false, fmt.Errorf("unknown path rule kind %q", rule.Kind)
		}
	}

	return false, nil
}

// wildcardRegexp compiles a glob-style pattern where * matches any run of
// characters within the path.
func wildcardRegexp(pattern string) (*regexp.Regexp, error) {
	parts := strings.Split(pattern, "*")
	quoted := make([]string, len(parts))
	for i, part := range parts {
		quoted[i] = regexp.QuoteMeta(part)
	}

	re, err := regexp.Compile("^" + strings.Join(quoted, ".*") + "$")
	if err != nil {
		return nil, fmt.Errorf("malformed wildcard pattern %q: %w", pattern, err)
	}
	return re, nil
}
