// Portcullis - Embeddable Authorization Decision Engine
// Copyright 2026 Portcullis Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portcullis-io/portcullis

package authz

import (
	"reflect"
	"strings"
)

// EvaluateConditions reports whether every condition holds against the
// attribute mapping. Evaluation is conjunctive and short-circuits on the
// first failure. A condition whose attribute is absent fails closed, as
// does any operand type mismatch: malformed conditions deny, they never
// crash a check.
func EvaluateConditions(conditions []Condition, attrs map[string]interface{}) bool {
	for _, cond := range conditions {
		if !evaluateCondition(cond, attrs) {
			return false
		}
	}
	return true
}

func evaluateCondition(cond Condition, attrs map[string]interface{}) bool {
	actual, ok := attrs[cond.Type]
	if !ok {
		return false
	}

	switch cond.Operator {
	case OpEquals:
		return valueEquals(actual, cond.Value)
	case OpNotEquals:
		return !valueEquals(actual, cond.Value)
	case OpIn:
		member, ok := membership(cond.Value, actual)
		return ok && member
	case OpNotIn:
		member, ok := membership(cond.Value, actual)
		return ok && !member
	case OpContains:
		return containsValue(actual, cond.Value)
	case OpGreaterThan:
		cmp, ok := compareValues(actual, cond.Value)
		return ok && cmp > 0
	case OpLessThan:
		cmp, ok := compareValues(actual, cond.Value)
		return ok && cmp < 0
	default:
		return false
	}
}

// valueEquals compares two attribute values. Numeric values compare by
// magnitude regardless of Go type (JSON decoding yields float64, callers
// may pass int). Uncomparable types are unequal, not a panic.
func valueEquals(a, b interface{}) bool {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		return bok && af == bf
	}

	ta := reflect.TypeOf(a)
	tb := reflect.TypeOf(b)
	if ta == nil || tb == nil {
		return a == b
	}
	if !ta.Comparable() || !tb.Comparable() {
		return false
	}
	return a == b
}

// membership reports whether needle is an element of set. The second
// return is false when set is not enumerable.
func membership(set, needle interface{}) (member, ok bool) {
	switch s := set.(type) {
	case []interface{}:
		for _, item := range s {
			if valueEquals(needle, item) {
				return true, true
			}
		}
		return false, true
	case []string:
		for _, item := range s {
			if valueEquals(needle, item) {
				return true, true
			}
		}
		return false, true
	default:
		return false, false
	}
}

// containsValue reports whether the context value (a string or sequence)
// contains the condition value.
func containsValue(actual, expected interface{}) bool {
	switch a := actual.(type) {
	case string:
		e, ok := expected.(string)
		return ok && strings.Contains(a, e)
	case []interface{}, []string:
		member, ok := membership(a, expected)
		return ok && member
	default:
		return false
	}
}

// compareValues orders two values: numbers by magnitude, strings
// lexicographically. The second return is false on a type mismatch.
func compareValues(a, b interface{}) (int, bool) {
	if af, aok := toFloat(a); aok {
		bf, bok := toFloat(b)
		if !bok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}

	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs), true
	}
	return 0, false
}

// toFloat normalizes any numeric type to float64.
func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
