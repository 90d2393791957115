// Package verify checks edit-check rules for logical soundness with the
// SMT solver: satisfiability, tautology and redundancy per rule, and
// contradiction/implication across rule pairs.
package verify

import (
	"fmt"
	"sort"

	"github.com/metacogma/edc-rule-validator-sub000/condition"
	"github.com/metacogma/edc-rule-validator-sub000/rules"
	"github.com/metacogma/edc-rule-validator-sub000/smt"
)

// Null sentinels used to encode IS [NOT] NULL. Field values never take
// these by construction: numeric bounds in clinical specifications are
// nowhere near the sentinel, and the string form is not a legal category.
const (
	nullNumeric = -999999999.0
	nullString  = "__NULL__"
)

// VarDecl describes one solver variable backing a Form.Field reference.
type VarDecl struct {
	Ref    string
	Symbol string
	Sort   smt.Sort
	Type   rules.FieldType
}

// Translator converts condition expression trees into SMT-LIB terms,
// accumulating the variable declarations the terms depend on. One
// translator may serve several expressions over the same specification,
// which is how rule pairs share a variable space.
type Translator struct {
	spec *rules.Specification
	vars map[string]VarDecl
}

// NewTranslator creates a translator resolving field types against spec.
func NewTranslator(spec *rules.Specification) *Translator {
	return &Translator{spec: spec, vars: make(map[string]VarDecl)}
}

// Vars returns the accumulated declarations in stable (sorted) order.
func (t *Translator) Vars() []VarDecl {
	out := make([]VarDecl, 0, len(t.vars))
	for _, v := range t.vars {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref < out[j].Ref })
	return out
}

// DeclareAll declares every accumulated variable on the session.
func (t *Translator) DeclareAll(sess *smt.Session) {
	for _, v := range t.Vars() {
		sess.Declare(v.Symbol, v.Sort)
	}
}

// Var returns the declaration for a reference, if seen.
func (t *Translator) Var(ref string) (VarDecl, bool) {
	v, ok := t.vars[ref]
	return v, ok
}

func (t *Translator) declare(ref string) VarDecl {
	if v, ok := t.vars[ref]; ok {
		return v
	}
	form, field, _ := (condition.Operand{Ref: ref}).SplitRef()
	ftype := t.spec.FieldType(form, field)
	v := VarDecl{
		Ref:    ref,
		Symbol: smt.SymbolFor(ref),
		Type:   ftype,
		Sort:   sortFor(ftype),
	}
	t.vars[ref] = v
	return v
}

func sortFor(ftype rules.FieldType) smt.Sort {
	switch ftype {
	case rules.FieldNumeric:
		return smt.SortReal
	case rules.FieldDate, rules.FieldDateTime, rules.FieldTime:
		// Days (or seconds) since epoch.
		return smt.SortInt
	case rules.FieldBoolean:
		return smt.SortBool
	default:
		return smt.SortString
	}
}

// Translate converts an expression tree into a boolean SMT-LIB term.
func (t *Translator) Translate(expr condition.Expr) (string, error) {
	switch n := expr.(type) {
	case condition.And:
		terms, err := t.translateTerms(n.Terms)
		if err != nil {
			return "", err
		}
		return smt.AndTerms(terms...), nil
	case condition.Or:
		terms, err := t.translateTerms(n.Terms)
		if err != nil {
			return "", err
		}
		return smt.OrTerms(terms...), nil
	case condition.Not:
		inner, err := t.Translate(n.Term)
		if err != nil {
			return "", err
		}
		return smt.Not(inner), nil
	case condition.IfThenElse:
		cond, err := t.Translate(n.Cond)
		if err != nil {
			return "", err
		}
		then, err := t.Translate(n.Then)
		if err != nil {
			return "", err
		}
		if n.Else == nil {
			return smt.Implies(cond, then), nil
		}
		els, err := t.Translate(n.Else)
		if err != nil {
			return "", err
		}
		return smt.Ite(cond, then, els), nil
	case condition.Comparison:
		return t.translateComparison(n)
	case condition.In:
		return t.translateIn(n)
	case condition.Between:
		return t.translateBetween(n)
	case condition.NullCheck:
		return t.translateNullCheck(n)
	default:
		return "", fmt.Errorf("unsupported expression %T", expr)
	}
}

func (t *Translator) translateTerms(exprs []condition.Expr) ([]string, error) {
	terms := make([]string, 0, len(exprs))
	for _, e := range exprs {
		s, err := t.Translate(e)
		if err != nil {
			return nil, err
		}
		terms = append(terms, s)
	}
	return terms, nil
}

func (t *Translator) translateComparison(c condition.Comparison) (string, error) {
	left, leftSort, err := t.operandTerm(c.Left, smt.SortReal)
	if err != nil {
		return "", err
	}
	right, _, err := t.operandTerm(c.Right, leftSort)
	if err != nil {
		return "", err
	}

	switch leftSort {
	case smt.SortReal, smt.SortInt:
		return smt.App(opSymbol(c.Op), left, right), nil
	case smt.SortBool, smt.SortString:
		switch c.Op {
		case condition.OpEq:
			return smt.Eq(left, right), nil
		case condition.OpNe:
			return smt.Not(smt.Eq(left, right)), nil
		default:
			return "", fmt.Errorf("operator %s not supported for %s operands", c.Op, leftSort.String())
		}
	}
	return "", fmt.Errorf("unsupported sort for comparison %s", c)
}

func opSymbol(op condition.Op) string {
	switch op {
	case condition.OpEq:
		return "="
	case condition.OpNe:
		return "distinct"
	default:
		return string(op)
	}
}

// operandTerm renders an operand, typed by its field when a reference and
// coerced toward hint otherwise.
func (t *Translator) operandTerm(o condition.Operand, hint smt.Sort) (string, smt.Sort, error) {
	if o.IsRef() {
		v := t.declare(o.Ref)
		return v.Symbol, v.Sort, nil
	}
	if o.IsNumber {
		if hint == smt.SortInt {
			return smt.Num(o.Number), smt.SortInt, nil
		}
		return smt.Num(o.Number), smt.SortReal, nil
	}
	switch hint {
	case smt.SortInt:
		// Date literal against a temporal field.
		if day, err := rules.ParseDate(o.Text); err == nil {
			return smt.Num(float64(day.Unix() / 86400)), smt.SortInt, nil
		}
		return "", hint, fmt.Errorf("cannot encode %q as a date", o.Text)
	case smt.SortBool:
		return smt.BoolLit(o.Text == "true" || o.Text == "Yes" || o.Text == "yes"), smt.SortBool, nil
	default:
		return smt.Str(o.Text), smt.SortString, nil
	}
}

func (t *Translator) translateIn(n condition.In) (string, error) {
	if !n.Left.IsRef() {
		return "", fmt.Errorf("IN requires a field reference on the left")
	}
	v := t.declare(n.Left.Ref)
	terms := make([]string, 0, len(n.Values))
	for _, val := range n.Values {
		rhs, _, err := t.operandTerm(val, v.Sort)
		if err != nil {
			return "", err
		}
		terms = append(terms, smt.Eq(v.Symbol, rhs))
	}
	membership := smt.OrTerms(terms...)
	if n.Negated {
		return smt.Not(membership), nil
	}
	return membership, nil
}

func (t *Translator) translateBetween(n condition.Between) (string, error) {
	if !n.Left.IsRef() {
		return "", fmt.Errorf("BETWEEN requires a field reference on the left")
	}
	v := t.declare(n.Left.Ref)
	if v.Sort != smt.SortReal && v.Sort != smt.SortInt {
		return "", fmt.Errorf("BETWEEN requires a numeric or date field, got %s", v.Type)
	}
	low, _, err := t.operandTerm(n.Low, v.Sort)
	if err != nil {
		return "", err
	}
	high, _, err := t.operandTerm(n.High, v.Sort)
	if err != nil {
		return "", err
	}
	return smt.AndTerms(smt.App("<=", low, v.Symbol), smt.App("<=", v.Symbol, high)), nil
}

func (t *Translator) translateNullCheck(n condition.NullCheck) (string, error) {
	if !n.Left.IsRef() {
		return "", fmt.Errorf("IS NULL requires a field reference")
	}
	v := t.declare(n.Left.Ref)
	var isNull string
	switch v.Sort {
	case smt.SortReal, smt.SortInt:
		isNull = smt.Eq(v.Symbol, smt.Num(nullNumeric))
	case smt.SortString:
		isNull = smt.Eq(v.Symbol, smt.Str(nullString))
	default:
		// Booleans have no null encoding; a boolean field is never null.
		isNull = "false"
	}
	if n.Negated {
		return smt.Not(isNull), nil
	}
	return isNull, nil
}
