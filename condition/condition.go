// Package condition provides the shared condition model for edit-check
// rules. It parses formalized logical expressions over Form.Field
// references into a typed expression tree, and extracts field references
// and atomic comparisons from both formalized and free-text conditions.
//
// Every downstream package (verification, symbolic execution, metamorphic
// and adversarial generation, causal graph construction) consumes this
// model instead of re-deriving structure ad hoc.
package condition

import (
	"fmt"
	"strings"
)

// Op is a comparison operator.
type Op string

const (
	OpEq Op = "="
	OpNe Op = "!="
	OpLt Op = "<"
	OpLe Op = "<="
	OpGt Op = ">"
	OpGe Op = ">="
)

// Invert returns the operator with operand sides swapped:
// a < b holds exactly when b > a.
func (o Op) Invert() Op {
	switch o {
	case OpLt:
		return OpGt
	case OpLe:
		return OpGe
	case OpGt:
		return OpLt
	case OpGe:
		return OpLe
	default:
		return o
	}
}

// Negate returns the logical complement: NOT (a < b) is a >= b.
func (o Op) Negate() Op {
	switch o {
	case OpEq:
		return OpNe
	case OpNe:
		return OpEq
	case OpLt:
		return OpGe
	case OpLe:
		return OpGt
	case OpGt:
		return OpLe
	case OpGe:
		return OpLt
	default:
		return o
	}
}

// Operand is one side of a comparison: either a Form.Field reference or
// a literal.
type Operand struct {
	// Ref is the Form.Field reference, empty for literals.
	Ref string
	// Number holds the numeric literal when IsNumber is set.
	Number   float64
	IsNumber bool
	// Text holds the string literal (quotes stripped) when neither a
	// reference nor a number.
	Text string
}

// IsRef reports whether the operand is a field reference.
func (o Operand) IsRef() bool { return o.Ref != "" }

// SplitRef splits a Form.Field reference into its parts.
func (o Operand) SplitRef() (form, field string, ok bool) {
	i := strings.IndexByte(o.Ref, '.')
	if i <= 0 || i == len(o.Ref)-1 {
		return "", "", false
	}
	return o.Ref[:i], o.Ref[i+1:], true
}

func (o Operand) String() string {
	switch {
	case o.IsRef():
		return o.Ref
	case o.IsNumber:
		return trimFloat(o.Number)
	default:
		return fmt.Sprintf("%q", o.Text)
	}
}

// Expr is a node in the condition expression tree. The concrete types are
// Comparison, And, Or, Not, IfThenElse, In, Between, and NullCheck.
type Expr interface {
	fmt.Stringer
	isExpr()
}

// Comparison is an atomic comparison between two operands.
type Comparison struct {
	Left  Operand
	Op    Op
	Right Operand
}

// And is a conjunction of two or more sub-expressions.
type And struct{ Terms []Expr }

// Or is a disjunction of two or more sub-expressions.
type Or struct{ Terms []Expr }

// Not negates a sub-expression.
type Not struct{ Term Expr }

// IfThenElse is a conditional: IF Cond THEN Then [ELSE Else]. With no
// ELSE branch it reads as an implication.
type IfThenElse struct {
	Cond Expr
	Then Expr
	Else Expr // nil when absent
}

// In tests membership of a reference in a literal set. Negated covers
// NOT IN.
type In struct {
	Left    Operand
	Values  []Operand
	Negated bool
}

// Between is an inclusive range test: Left BETWEEN Low AND High.
type Between struct {
	Left Operand
	Low  Operand
	High Operand
}

// NullCheck is IS NULL / IS NOT NULL on a reference.
type NullCheck struct {
	Left    Operand
	Negated bool // IS NOT NULL
}

func (Comparison) isExpr() {}
func (And) isExpr()        {}
func (Or) isExpr()         {}
func (Not) isExpr()        {}
func (IfThenElse) isExpr() {}
func (In) isExpr()         {}
func (Between) isExpr()    {}
func (NullCheck) isExpr()  {}

func (c Comparison) String() string {
	return fmt.Sprintf("%s %s %s", c.Left, c.Op, c.Right)
}

func (a And) String() string { return joinTerms(a.Terms, " AND ") }
func (o Or) String() string  { return joinTerms(o.Terms, " OR ") }

func (n Not) String() string { return "NOT (" + n.Term.String() + ")" }

func (e IfThenElse) String() string {
	s := fmt.Sprintf("IF %s THEN %s", e.Cond, e.Then)
	if e.Else != nil {
		s += " ELSE " + e.Else.String()
	}
	return s
}

func (i In) String() string {
	vals := make([]string, len(i.Values))
	for k, v := range i.Values {
		vals[k] = v.String()
	}
	op := "IN"
	if i.Negated {
		op = "NOT IN"
	}
	return fmt.Sprintf("%s %s (%s)", i.Left, op, strings.Join(vals, ", "))
}

func (b Between) String() string {
	return fmt.Sprintf("%s BETWEEN %s AND %s", b.Left, b.Low, b.High)
}

func (n NullCheck) String() string {
	if n.Negated {
		return n.Left.String() + " IS NOT NULL"
	}
	return n.Left.String() + " IS NULL"
}

func joinTerms(terms []Expr, sep string) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = "(" + t.String() + ")"
	}
	return strings.Join(parts, sep)
}

func trimFloat(f float64) string {
	s := fmt.Sprintf("%g", f)
	return s
}

// Walk visits every node in the tree in depth-first order. The visitor
// returns false to stop descending into a subtree.
func Walk(e Expr, visit func(Expr) bool) {
	if e == nil || !visit(e) {
		return
	}
	switch n := e.(type) {
	case And:
		for _, t := range n.Terms {
			Walk(t, visit)
		}
	case Or:
		for _, t := range n.Terms {
			Walk(t, visit)
		}
	case Not:
		Walk(n.Term, visit)
	case IfThenElse:
		Walk(n.Cond, visit)
		Walk(n.Then, visit)
		if n.Else != nil {
			Walk(n.Else, visit)
		}
	}
}
