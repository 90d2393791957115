package smt

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Value is a concrete model assignment for one constant.
type Value struct {
	Sort Sort
	Real float64 // SortReal and SortInt (integral)
	Bool bool
	Str  string
}

// Model maps declared constant names to their assigned values.
type Model map[string]Value

// parseModel reads the (get-model) section of z3 output. The model is a
// single s-expression containing define-fun entries:
//
//	(
//	  (define-fun Vitals_SystolicBP () Real (/ 241.0 2.0))
//	  (define-fun Demo_Consent () Bool true)
//	)
func parseModel(out string) (Model, error) {
	start := strings.Index(out, "(")
	if start < 0 {
		return nil, fmt.Errorf("no model in output")
	}
	// Skip past the verdict line to the model expression.
	idx := strings.Index(out, "\n")
	if idx >= 0 && idx < start {
		out = out[idx:]
	}
	node, _, err := parseSexp(strings.TrimSpace(out), 0)
	if err != nil {
		return nil, err
	}

	model := make(Model)
	for _, entry := range node.children {
		if len(entry.children) < 5 || entry.children[0].atom != "define-fun" {
			continue
		}
		name := entry.children[1].atom
		sortNode := entry.children[3]
		valueNode := entry.children[4]
		val, err := decodeValue(sortNode, valueNode)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", name, err)
		}
		model[name] = val
	}
	return model, nil
}

func decodeValue(sortNode, valueNode sexp) (Value, error) {
	switch sortNode.atom {
	case "Real":
		f, err := evalNumeric(valueNode)
		return Value{Sort: SortReal, Real: f}, err
	case "Int":
		f, err := evalNumeric(valueNode)
		return Value{Sort: SortInt, Real: f}, err
	case "Bool":
		return Value{Sort: SortBool, Bool: valueNode.atom == "true"}, nil
	case "String":
		return Value{Sort: SortString, Str: unquoteSMTString(valueNode.atom)}, nil
	default:
		return Value{}, fmt.Errorf("unsupported sort %q", sortNode.atom)
	}
}

// evalNumeric evaluates the numeric value forms z3 emits: plain literals,
// (- x) negation, and (/ a b) rationals.
func evalNumeric(n sexp) (float64, error) {
	if n.atom != "" {
		return strconv.ParseFloat(n.atom, 64)
	}
	if len(n.children) == 0 {
		return 0, fmt.Errorf("empty numeric expression")
	}
	switch n.children[0].atom {
	case "-":
		if len(n.children) != 2 {
			return 0, fmt.Errorf("malformed negation")
		}
		v, err := evalNumeric(n.children[1])
		return -v, err
	case "/":
		if len(n.children) != 3 {
			return 0, fmt.Errorf("malformed rational")
		}
		num, err := evalNumeric(n.children[1])
		if err != nil {
			return 0, err
		}
		den, err := evalNumeric(n.children[2])
		if err != nil {
			return 0, err
		}
		if den == 0 {
			return 0, fmt.Errorf("zero denominator")
		}
		return num / den, nil
	default:
		return 0, fmt.Errorf("unsupported numeric form %q", n.children[0].atom)
	}
}

func unquoteSMTString(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	// SMT-LIB escapes a quote by doubling it.
	return strings.ReplaceAll(s, `""`, `"`)
}

// sexp is a minimal s-expression node: either an atom or a list.
type sexp struct {
	atom     string
	children []sexp
}

func parseSexp(s string, pos int) (sexp, int, error) {
	pos = skipSpace(s, pos)
	if pos >= len(s) {
		return sexp{}, pos, fmt.Errorf("unexpected end of input")
	}
	if s[pos] == '(' {
		node := sexp{}
		pos++
		for {
			pos = skipSpace(s, pos)
			if pos >= len(s) {
				return sexp{}, pos, fmt.Errorf("unterminated list")
			}
			if s[pos] == ')' {
				return node, pos + 1, nil
			}
			child, next, err := parseSexp(s, pos)
			if err != nil {
				return sexp{}, next, err
			}
			node.children = append(node.children, child)
			pos = next
		}
	}
	if s[pos] == '"' {
		end := pos + 1
		for end < len(s) {
			if s[end] == '"' {
				if end+1 < len(s) && s[end+1] == '"' {
					end += 2
					continue
				}
				break
			}
			end++
		}
		if end >= len(s) {
			return sexp{}, end, fmt.Errorf("unterminated string")
		}
		return sexp{atom: s[pos : end+1]}, end + 1, nil
	}
	end := pos
	for end < len(s) && !unicode.IsSpace(rune(s[end])) && s[end] != '(' && s[end] != ')' {
		end++
	}
	return sexp{atom: s[pos:end]}, end, nil
}

func skipSpace(s string, pos int) int {
	for pos < len(s) && unicode.IsSpace(rune(s[pos])) {
		pos++
	}
	return pos
}
