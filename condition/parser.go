package condition

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Parse parses a formalized condition into an expression tree. It is
// strict: free-text conditions generally fail here and callers fall back
// to the regex extraction in extract.go.
func Parse(input string) (Expr, error) {
	toks, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.atEnd() {
		return nil, fmt.Errorf("unexpected %q at end of condition", p.peek().text)
	}
	return expr, nil
}

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokNumber
	tokString
	tokOp    // = != < <= > >=
	tokLParen
	tokRParen
	tokComma
	tokKeyword // IF THEN ELSE AND OR NOT IN BETWEEN IS NULL
)

type token struct {
	kind tokenKind
	text string
}

var keywords = map[string]bool{
	"IF": true, "THEN": true, "ELSE": true,
	"AND": true, "OR": true, "NOT": true,
	"IN": true, "BETWEEN": true, "IS": true, "NULL": true,
}

func lex(input string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(input) {
		c := rune(input[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ","})
			i++
		case c == '\'' || c == '"':
			quote := byte(c)
			j := i + 1
			for j < len(input) && input[j] != quote {
				j++
			}
			if j >= len(input) {
				return nil, fmt.Errorf("unterminated string at offset %d", i)
			}
			toks = append(toks, token{tokString, input[i+1 : j]})
			i = j + 1
		case c == '<' || c == '>' || c == '=' || c == '!':
			op, n, err := lexOp(input[i:])
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{tokOp, op})
			i += n
		case unicode.IsDigit(c) || (c == '-' && i+1 < len(input) && unicode.IsDigit(rune(input[i+1])) && numericContext(toks)):
			j := i + 1
			for j < len(input) && (unicode.IsDigit(rune(input[j])) || input[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNumber, input[i:j]})
			i = j
		case unicode.IsLetter(c) || c == '_':
			j := i + 1
			for j < len(input) && (unicode.IsLetter(rune(input[j])) || unicode.IsDigit(rune(input[j])) || input[j] == '_' || input[j] == '.') {
				j++
			}
			word := input[i:j]
			upper := strings.ToUpper(word)
			if keywords[upper] {
				toks = append(toks, token{tokKeyword, upper})
			} else {
				toks = append(toks, token{tokIdent, word})
			}
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q at offset %d", c, i)
		}
	}
	return toks, nil
}

// numericContext reports whether a '-' at the current position starts a
// negative literal rather than binding to a preceding value.
func numericContext(toks []token) bool {
	if len(toks) == 0 {
		return true
	}
	switch toks[len(toks)-1].kind {
	case tokOp, tokLParen, tokComma, tokKeyword:
		return true
	default:
		return false
	}
}

func lexOp(s string) (string, int, error) {
	switch {
	case strings.HasPrefix(s, "<="):
		return "<=", 2, nil
	case strings.HasPrefix(s, ">="):
		return ">=", 2, nil
	case strings.HasPrefix(s, "!="):
		return "!=", 2, nil
	case strings.HasPrefix(s, "<>"):
		return "!=", 2, nil
	case strings.HasPrefix(s, "=="):
		return "=", 2, nil
	case strings.HasPrefix(s, "<"):
		return "<", 1, nil
	case strings.HasPrefix(s, ">"):
		return ">", 1, nil
	case strings.HasPrefix(s, "="):
		return "=", 1, nil
	default:
		return "", 0, fmt.Errorf("invalid operator at %q", s)
	}
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) atEnd() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() token {
	if p.atEnd() {
		return token{}
	}
	return p.toks[p.pos]
}

func (p *parser) next() token {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) acceptKeyword(kw string) bool {
	if !p.atEnd() && p.peek().kind == tokKeyword && p.peek().text == kw {
		p.pos++
		return true
	}
	return false
}

func (p *parser) expectKeyword(kw string) error {
	if !p.acceptKeyword(kw) {
		return fmt.Errorf("expected %s, got %q", kw, p.peek().text)
	}
	return nil
}

func (p *parser) parseExpr() (Expr, error) {
	if p.acceptKeyword("IF") {
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("THEN"); err != nil {
			return nil, err
		}
		then, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		var elseExpr Expr
		if p.acceptKeyword("ELSE") {
			elseExpr, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
		}
		return IfThenElse{Cond: cond, Then: then, Else: elseExpr}, nil
	}
	return p.parseOr()
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	terms := []Expr{left}
	for p.acceptKeyword("OR") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		terms = append(terms, right)
	}
	if len(terms) == 1 {
		return left, nil
	}
	return Or{Terms: terms}, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	terms := []Expr{left}
	for p.acceptKeyword("AND") {
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		terms = append(terms, right)
	}
	if len(terms) == 1 {
		return left, nil
	}
	return And{Terms: terms}, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.acceptKeyword("NOT") {
		// NOT IN binds to the preceding operand and is handled in
		// parseAtom, so a NOT here always negates a sub-expression.
		term, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not{Term: term}, nil
	}
	if p.peek().kind == tokLParen {
		// Either a parenthesized expression or a grouped atom; try the
		// expression first.
		save := p.pos
		p.pos++
		inner, err := p.parseExpr()
		if err == nil && !p.atEnd() && p.peek().kind == tokRParen {
			p.pos++
			return inner, nil
		}
		p.pos = save
	}
	if p.acceptKeyword("IF") {
		p.pos-- // nested conditional
		return p.parseExpr()
	}
	return p.parseAtom()
}

func (p *parser) parseAtom() (Expr, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	switch {
	case p.peek().kind == tokOp:
		op := Op(p.next().text)
		right, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return Comparison{Left: left, Op: op, Right: right}, nil

	case p.peek().kind == tokKeyword && p.peek().text == "IN":
		p.pos++
		return p.parseInList(left, false)

	case p.peek().kind == tokKeyword && p.peek().text == "NOT":
		p.pos++
		if err := p.expectKeyword("IN"); err != nil {
			return nil, err
		}
		return p.parseInList(left, true)

	case p.peek().kind == tokKeyword && p.peek().text == "BETWEEN":
		p.pos++
		low, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("AND"); err != nil {
			return nil, err
		}
		high, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return Between{Left: left, Low: low, High: high}, nil

	case p.peek().kind == tokKeyword && p.peek().text == "IS":
		p.pos++
		negated := p.acceptKeyword("NOT")
		if err := p.expectKeyword("NULL"); err != nil {
			return nil, err
		}
		return NullCheck{Left: left, Negated: negated}, nil

	default:
		return nil, fmt.Errorf("expected comparison after %s", left)
	}
}

func (p *parser) parseInList(left Operand, negated bool) (Expr, error) {
	if p.peek().kind != tokLParen {
		return nil, fmt.Errorf("expected ( after IN")
	}
	p.pos++
	var values []Operand
	for {
		v, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		if p.peek().kind == tokComma {
			p.pos++
			continue
		}
		break
	}
	if p.peek().kind != tokRParen {
		return nil, fmt.Errorf("expected ) to close IN list")
	}
	p.pos++
	return In{Left: left, Values: values, Negated: negated}, nil
}

func (p *parser) parseOperand() (Operand, error) {
	t := p.next()
	switch t.kind {
	case tokIdent:
		if strings.Contains(t.text, ".") {
			return Operand{Ref: t.text}, nil
		}
		// Bare identifiers are unquoted text literals (e.g. category codes).
		return Operand{Text: t.text}, nil
	case tokNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return Operand{}, fmt.Errorf("invalid number %q: %w", t.text, err)
		}
		return Operand{Number: f, IsNumber: true}, nil
	case tokString:
		return Operand{Text: t.text}, nil
	default:
		return Operand{}, fmt.Errorf("expected operand, got %q", t.text)
	}
}
