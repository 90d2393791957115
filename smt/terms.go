package smt

import (
	"fmt"
	"strconv"
	"strings"
)

// Term builders. Formulas are plain SMT-LIB2 terms as strings; these
// helpers keep the parenthesization in one place.

// Num renders a numeric literal. Negative values are wrapped in the
// SMT-LIB negation form.
func Num(f float64) string {
	if f < 0 {
		return fmt.Sprintf("(- %s)", strconv.FormatFloat(-f, 'f', -1, 64))
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Str renders a string literal with SMT-LIB quote doubling.
func Str(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// BoolLit renders a boolean literal.
func BoolLit(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// App applies an operator to arguments: App("<=", "x", "5") == "(<= x 5)".
func App(op string, args ...string) string {
	return "(" + op + " " + strings.Join(args, " ") + ")"
}

// Not negates a term.
func Not(t string) string { return App("not", t) }

// AndTerms conjoins terms, degenerating sensibly for 0 and 1 terms.
func AndTerms(terms ...string) string {
	switch len(terms) {
	case 0:
		return "true"
	case 1:
		return terms[0]
	default:
		return App("and", terms...)
	}
}

// OrTerms disjoins terms, degenerating sensibly for 0 and 1 terms.
func OrTerms(terms ...string) string {
	switch len(terms) {
	case 0:
		return "false"
	case 1:
		return terms[0]
	default:
		return App("or", terms...)
	}
}

// Implies builds an implication.
func Implies(a, b string) string { return App("=>", a, b) }

// Ite builds an if-then-else over boolean terms.
func Ite(cond, then, els string) string { return App("ite", cond, then, els) }

// Eq builds an equality.
func Eq(a, b string) string { return App("=", a, b) }
