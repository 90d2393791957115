package condition

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Extraction never fails: formalized conditions go through the parser and
// a tree walk; free-text conditions fall back to regex scanning for
// Form.Field tokens and atomic comparisons. Unparseable fragments are
// omitted from the result.

var (
	fieldRefPattern   = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)\.([A-Za-z_][A-Za-z0-9_]*)\b`)
	comparisonPattern = regexp.MustCompile(`([A-Za-z0-9_.]+)\s*(<=|>=|!=|<>|==|[<>=])\s*([A-Za-z0-9_.\-]+|"[^"]*"|'[^']*')`)
	bareWordPattern   = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// FieldRefs returns the sorted, de-duplicated set of Form.Field
// references mentioned in the condition.
func FieldRefs(cond string) []string {
	set := make(map[string]bool)
	if expr, err := Parse(cond); err == nil {
		Walk(expr, func(e Expr) bool {
			for _, op := range operandsOf(e) {
				if op.IsRef() {
					set[op.Ref] = true
				}
			}
			return true
		})
	} else {
		for _, m := range fieldRefPattern.FindAllStringSubmatch(cond, -1) {
			set[m[1]+"."+m[2]] = true
		}
	}

	refs := make([]string, 0, len(set))
	for ref := range set {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

// Comparisons returns the atomic comparisons in the condition, in source
// order where the regex fallback is used and in tree order otherwise.
// IN, BETWEEN and NULL checks do not contribute comparisons here; callers
// that need them walk the tree directly.
func Comparisons(cond string) []Comparison {
	if expr, err := Parse(cond); err == nil {
		var out []Comparison
		Walk(expr, func(e Expr) bool {
			if c, ok := e.(Comparison); ok {
				out = append(out, c)
			}
			return true
		})
		return out
	}
	return regexComparisons(cond)
}

func regexComparisons(cond string) []Comparison {
	var out []Comparison
	for _, m := range comparisonPattern.FindAllStringSubmatch(cond, -1) {
		left, ok := parseOperandText(m[1])
		if !ok {
			continue
		}
		op := m[2]
		if op == "<>" || op == "==" {
			op = map[string]string{"<>": "!=", "==": "="}[op]
		}
		right, ok := parseOperandText(m[3])
		if !ok {
			continue
		}
		out = append(out, Comparison{Left: left, Op: Op(op), Right: right})
	}
	return out
}

func parseOperandText(s string) (Operand, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Operand{}, false
	}
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return Operand{Text: s[1 : len(s)-1]}, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Operand{Number: f, IsNumber: true}, true
	}
	if fieldRefPattern.MatchString(s) && strings.Count(s, ".") == 1 {
		return Operand{Ref: s}, true
	}
	// Bare word: treat as an unquoted text literal.
	if bareWordPattern.MatchString(s) {
		return Operand{Text: s}, true
	}
	return Operand{}, false
}

// operandsOf lists the operands directly held by a node.
func operandsOf(e Expr) []Operand {
	switch n := e.(type) {
	case Comparison:
		return []Operand{n.Left, n.Right}
	case In:
		return append([]Operand{n.Left}, n.Values...)
	case Between:
		return []Operand{n.Left, n.Low, n.High}
	case NullCheck:
		return []Operand{n.Left}
	default:
		return nil
	}
}

// NumericComparisons filters Comparisons down to field-versus-numeric-
// literal atoms, the shape the metamorphic and adversarial generators
// perturb.
func NumericComparisons(cond string) []Comparison {
	var out []Comparison
	for _, c := range Comparisons(cond) {
		if c.Left.IsRef() && c.Right.IsNumber {
			out = append(out, c)
		}
	}
	return out
}

// RefPairComparisons filters Comparisons down to field-versus-field atoms,
// the shape the causal graph builder turns into comparison edges.
func RefPairComparisons(cond string) []Comparison {
	var out []Comparison
	for _, c := range Comparisons(cond) {
		if c.Left.IsRef() && c.Right.IsRef() {
			out = append(out, c)
		}
	}
	return out
}
