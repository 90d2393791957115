// Package multimodal re-checks generated test cases through independent
// verification modes (solver re-check, direct evaluation, optional
// cross-rule check) and keeps a case only when a strict majority of the
// returned opinions agree it is valid.
package multimodal

import (
	"fmt"
	"strconv"
	"time"

	"github.com/metacogma/edc-rule-validator-sub000/condition"
	"github.com/metacogma/edc-rule-validator-sub000/rules"
)

// value is the evaluator's runtime representation of a field value or
// literal. A missing field evaluates as null.
type value struct {
	null   bool
	isNum  bool
	num    float64
	isBool bool
	b      bool
	str    string
}

func nullValue() value         { return value{null: true} }
func numValue(f float64) value { return value{isNum: true, num: f} }
func boolValue(b bool) value   { return value{isBool: true, b: b} }
func strValue(s string) value  { return value{str: s} }

// Evaluate computes the truth value of a condition over concrete test
// data. Null-affected comparisons are false rather than errors, so a
// record missing a referenced field simply fails the check. The error
// return is reserved for conditions the evaluator cannot interpret.
func Evaluate(expr condition.Expr, data rules.TestData) (bool, error) {
	switch n := expr.(type) {
	case condition.And:
		for _, t := range n.Terms {
			ok, err := Evaluate(t, data)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case condition.Or:
		for _, t := range n.Terms {
			ok, err := Evaluate(t, data)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case condition.Not:
		ok, err := Evaluate(n.Term, data)
		return !ok, err
	case condition.IfThenElse:
		cond, err := Evaluate(n.Cond, data)
		if err != nil {
			return false, err
		}
		if cond {
			return Evaluate(n.Then, data)
		}
		if n.Else != nil {
			return Evaluate(n.Else, data)
		}
		// IF without ELSE reads as an implication; a false antecedent
		// satisfies it.
		return true, nil
	case condition.Comparison:
		return compare(resolve(n.Left, data), n.Op, resolve(n.Right, data)), nil
	case condition.In:
		return evalIn(n, data), nil
	case condition.Between:
		left := resolve(n.Left, data)
		return compare(resolve(n.Low, data), condition.OpLe, left) &&
			compare(left, condition.OpLe, resolve(n.High, data)), nil
	case condition.NullCheck:
		isNull := resolve(n.Left, data).null
		if n.Negated {
			return !isNull, nil
		}
		return isNull, nil
	default:
		return false, fmt.Errorf("cannot evaluate expression %T", expr)
	}
}

func evalIn(n condition.In, data rules.TestData) bool {
	left := resolve(n.Left, data)
	member := false
	for _, v := range n.Values {
		if compare(left, condition.OpEq, resolve(v, data)) {
			member = true
			break
		}
	}
	if n.Negated {
		return !member && !left.null
	}
	return member
}

// resolve turns an operand into a runtime value against the test data.
func resolve(o condition.Operand, data rules.TestData) value {
	if o.IsRef() {
		form, field, ok := o.SplitRef()
		if !ok {
			return nullValue()
		}
		raw, present := data.Get(form, field)
		if !present || raw == nil {
			return nullValue()
		}
		return fromRaw(raw)
	}
	if o.IsNumber {
		return numValue(o.Number)
	}
	return strValue(o.Text)
}

func fromRaw(raw any) value {
	switch v := raw.(type) {
	case float64:
		return numValue(v)
	case float32:
		return numValue(float64(v))
	case int:
		return numValue(float64(v))
	case int64:
		return numValue(float64(v))
	case bool:
		return boolValue(v)
	case string:
		return strValue(v)
	default:
		return strValue(fmt.Sprint(v))
	}
}

// compare applies an operator to two runtime values. Nulls and type
// mismatches compare false for every operator except !=, which holds
// whenever a definite equality cannot be established both ways.
func compare(left value, op condition.Op, right value) bool {
	if left.null || right.null {
		return false
	}

	if ln, lok := asNumber(left); lok {
		if rn, rok := asNumber(right); rok {
			return compareNumbers(ln, op, rn)
		}
	}
	if lt, lok := asDate(left); lok {
		if rt, rok := asDate(right); rok {
			return compareNumbers(float64(lt.Unix()), op, float64(rt.Unix()))
		}
	}
	if left.isBool || right.isBool {
		lb, lok := asBool(left)
		rb, rok := asBool(right)
		if !lok || !rok {
			return op == condition.OpNe
		}
		switch op {
		case condition.OpEq:
			return lb == rb
		case condition.OpNe:
			return lb != rb
		default:
			return false
		}
	}
	if left.isNum != right.isNum {
		// Type confusion: a number never equals a non-numeric string.
		return op == condition.OpNe
	}
	switch op {
	case condition.OpEq:
		return left.str == right.str
	case condition.OpNe:
		return left.str != right.str
	case condition.OpLt:
		return left.str < right.str
	case condition.OpLe:
		return left.str <= right.str
	case condition.OpGt:
		return left.str > right.str
	case condition.OpGe:
		return left.str >= right.str
	}
	return false
}

func compareNumbers(l float64, op condition.Op, r float64) bool {
	switch op {
	case condition.OpEq:
		return l == r
	case condition.OpNe:
		return l != r
	case condition.OpLt:
		return l < r
	case condition.OpLe:
		return l <= r
	case condition.OpGt:
		return l > r
	case condition.OpGe:
		return l >= r
	}
	return false
}

func asNumber(v value) (float64, bool) {
	if v.isNum {
		return v.num, true
	}
	if v.isBool || v.str == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.str, 64)
	return f, err == nil
}

func asDate(v value) (time.Time, bool) {
	if v.isNum || v.isBool {
		return time.Time{}, false
	}
	t, err := rules.ParseDate(v.str)
	return t, err == nil
}

func asBool(v value) (bool, bool) {
	if v.isBool {
		return v.b, true
	}
	switch v.str {
	case "true", "True", "Yes", "yes", "1":
		return true, true
	case "false", "False", "No", "no", "0":
		return false, true
	}
	return false, false
}
