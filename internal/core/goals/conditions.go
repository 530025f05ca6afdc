package goals

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Operator names. Each has documented shorthand aliases, normalized by
// normalizeOperator before evaluation.
const (
	OpEquals      = "eq"
	OpNotEquals   = "ne"
	OpGreater     = "gt"
	OpLess        = "lt"
	OpGreaterEq   = "gte"
	OpLessEq      = "lte"
	OpContains    = "contains"
	OpNotContains = "not_contains"
	OpStartsWith  = "starts_with"
	OpEndsWith    = "ends_with"
	OpIn          = "in"
	OpNotIn       = "not_in"
	OpRegex       = "regex"
	OpIsNull      = "is_null"
	OpIsNotNull   = "is_not_null"
	OpIsEmpty     = "is_empty"
	OpIsNotEmpty  = "is_not_empty"
)

var operatorAliases = map[string]string{
	"=":         OpEquals,
	"==":        OpEquals,
	"equals":    OpEquals,
	"!=":        OpNotEquals,
	"<>":        OpNotEquals,
	"not_eq":    OpNotEquals,
	">":         OpGreater,
	"<":         OpLess,
	">=":        OpGreaterEq,
	"<=":        OpLessEq,
	"matches":   OpRegex,
	"null":      OpIsNull,
	"not_null":  OpIsNotNull,
	"empty":     OpIsEmpty,
	"not_empty": OpIsNotEmpty,
}

func normalizeOperator(op string) string {
	op = strings.ToLower(strings.TrimSpace(op))
	if canonical, ok := operatorAliases[op]; ok {
		return canonical
	}
	return op
}

// Condition is one property-operator check against an event's properties.
// Property supports dot notation for nested objects.
type Condition struct {
	Property string      `json:"property"`
	Operator string      `json:"operator"`
	Value    interface{} `json:"value,omitempty"`
}

// ConditionGroup combines conditions and nested groups. Match is "all"
// (default) or "any".
type ConditionGroup struct {
	Match      string           `json:"match,omitempty"`
	Conditions []Condition      `json:"conditions,omitempty"`
	Groups     []ConditionGroup `json:"groups,omitempty"`
}

// ParseConditions decodes a goal's condition tree. An empty document means
// no property constraints.
func ParseConditions(raw string) (*ConditionGroup, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "{}" || raw == "null" {
		return nil, nil
	}

	var group ConditionGroup
	if err := json.Unmarshal([]byte(raw), &group); err != nil {
		return nil, fmt.Errorf("malformed condition tree: %w", err)
	}
	return &group, nil
}

// Evaluate runs the group against an event property map. A malformed
// operator or regex inside any condition returns an error; the engine
// treats that as a non-match.
func (g *ConditionGroup) Evaluate(props map[string]interface{}) (bool, error) {
	any := strings.EqualFold(g.Match, "any")

	total := len(g.Conditions) + len(g.Groups)
	if total == 0 {
		return true, nil
	}

	for _, cond := range g.Conditions {
		ok, err := cond.evaluate(props)
		if err != nil {
			return false, err
		}
		if any && ok {
			return true, nil
		}
		if !any && !ok {
			return false, nil
		}
	}

	for _, sub := range g.Groups {
		ok, err := sub.Evaluate(props)
		if err != nil {
			return false, err
		}
		if any && ok {
			return true, nil
		}
		if !any && !ok {
			return false, nil
		}
	}

	return !any, nil
}

func (c Condition) evaluate(props map[string]interface{}) (bool, error) {
	value, present := lookupPath(props, c.Property)

	switch normalizeOperator(c.Operator) {
	case OpIsNull:
		return !present || value == nil, nil
	case OpIsNotNull:
		return present && value != nil, nil
	case OpIsEmpty:
		return !present || value == nil || stringify(value) == "", nil
	case OpIsNotEmpty:
		return present && value != nil && stringify(value) != "", nil
	case OpEquals:
		return present && looseEquals(value, c.Value), nil
	case OpNotEquals:
		return !present || !looseEquals(value, c.Value), nil
	case OpGreater, OpLess, OpGreaterEq, OpLessEq:
		return compareNumeric(normalizeOperator(c.Operator), value, c.Value, present)
	case OpContains:
		return present && strings.Contains(stringify(value), stringify(c.Value)), nil
	case OpNotContains:
		return !present || !strings.Contains(stringify(value), stringify(c.Value)), nil
	case OpStartsWith:
		return present && strings.HasPrefix(stringify(value), stringify(c.Value)), nil
	case OpEndsWith:
		return present && strings.HasSuffix(stringify(value), stringify(c.Value)), nil
	case OpIn:
		return present && inList(value, c.Value), nil
	case OpNotIn:
		return !present || !inList(value, c.Value), nil
	case OpRegex:
		if !present {
			return false, nil
		}
		re, err := regexp.Compile(stringify(c.Value))
		if err != nil {
			return false, fmt.Errorf("malformed regex %q: %w", stringify(c.Value), err)
		}
		return re.MatchString(stringify(value)), nil
	default:
		return false, fmt.Errorf("unknown operator %q", c.Operator)
	}
}

// lookupPath resolves a dot-notation property path against nested maps.
func lookupPath(props map[string]interface{}, path string) (interface{}, bool) {
	if props == nil || path == "" {
		return nil, false
	}

	parts := strings.Split(path, ".")
	var current interface{} = props
	for _, part := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// looseEquals compares property and target values, tolerating the numeric
// type erasure introduced by JSON decoding.
func looseEquals(a, b interface{}) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return stringify(a) == stringify(b)
}

func compareNumeric(op string, value, target interface{}, present bool) (bool, error) {
	if !present {
		return false, nil
	}

	vf, vok := toFloat(value)
	tf, tok := toFloat(target)
	if !vok || !tok {
		// Non-numeric operands fall back to lexicographic comparison.
		vs, ts := stringify(value), stringify(target)
		switch op {
		case OpGreater:
			return vs > ts, nil
		case OpLess:
			return vs < ts, nil
		case OpGreaterEq:
			return vs >= ts, nil
		case OpLessEq:
			return vs <= ts, nil
		}
		return false, fmt.Errorf("unknown comparison operator %q", op)
	}

	switch op {
	case OpGreater:
		return vf > tf, nil
	case OpLess:
		return vf < tf, nil
	case OpGreaterEq:
		return vf >= tf, nil
	case OpLessEq:
		return vf <= tf, nil
	}
	return false, fmt.Errorf("unknown comparison operator %q", op)
}

func inList(value, target interface{}) bool {
	list, ok := target.([]interface{})
	if !ok {
		return looseEquals(value, target)
	}
	for _, item := range list {
		if looseEquals(value, item) {
			return true
		}
	}
	return false
}

func toFloat(v interface{}) (float64, bool) {
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
		return f, err == nil
	default:
		return 0, false
	}
}

func stringify(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		b, err := json.Marshal(s)
		if err != nil {
			return fmt.Sprintf("%v", s)
		}
		return string(b)
	}
}
