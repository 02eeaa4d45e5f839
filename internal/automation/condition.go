package automation

import (
	"encoding/json"
	"fmt"
)

// Evaluate resolves the condition's variable against scope and compares it
// with Value. A path that does not resolve, mismatched operand types or an
// unknown operator all evaluate to false; the returned error says why.
func (c Condition) Evaluate(scope *Scope) (bool, error) {
	left, err := scope.Lookup(c.Variable)
	if err != nil {
		return false, err
	}
	return compare(left, c.Operator, c.Value)
}

// compare applies op to left and right.
//
// Two numbers compare numerically regardless of their Go types. Two strings
// compare lexically. Booleans and nil support only = and !=.
func compare(left any, op Operator, right any) (bool, error) {
	if !validOperators[op] {
		return false, fmt.Errorf("%w: unknown operator %q", ErrInvalidCondition, op)
	}

	if l, ok := toFloat(left); ok {
		r, ok := toFloat(right)
		if !ok {
			return false, mismatch(left, right)
		}
		return ordered(l, r, op), nil
	}

	if l, ok := left.(string); ok {
		r, ok := right.(string)
		if !ok {
			return false, mismatch(left, right)
		}
		return ordered(l, r, op), nil
	}

	if l, ok := left.(bool); ok {
		r, ok := right.(bool)
		if !ok {
			return false, mismatch(left, right)
		}
		return equality(l == r, op)
	}

	if left == nil {
		return equality(right == nil, op)
	}

	return false, mismatch(left, right)
}

var validOperators = map[Operator]bool{
	OpEqual:        true,
	OpNotEqual:     true,
	OpLess:         true,
	OpGreater:      true,
	OpLessEqual:    true,
	OpGreaterEqual: true,
}

func ordered[T float64 | string](l, r T, op Operator) bool {
	switch op {
	case OpEqual:
		return l == r
	case OpNotEqual:
		return l != r
	case OpLess:
		return l < r
	case OpGreater:
		return l > r
	case OpLessEqual:
		return l <= r
	case OpGreaterEqual:
		return l >= r
	default:
		return false
	}
}

func equality(equal bool, op Operator) (bool, error) {
	switch op {
	case OpEqual:
		return equal, nil
	case OpNotEqual:
		return !equal, nil
	default:
		return false, fmt.Errorf("%w: operator %q needs ordered operands", ErrInvalidCondition, op)
	}
}

func mismatch(left, right any) error {
	return fmt.Errorf("%w: cannot compare %T with %T", ErrInvalidCondition, left, right)
}

// toFloat converts any Go numeric type (and json.Number) to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
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
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
