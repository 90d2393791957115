// Package symbolic generates test cases by solving rule conditions
// symbolically: one satisfying and one violating assignment from the
// solver, plus bisection probes either side of every numeric boundary.
package symbolic

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/metacogma/edc-rule-validator-sub000/condition"
	"github.com/metacogma/edc-rule-validator-sub000/rules"
	"github.com/metacogma/edc-rule-validator-sub000/smt"
	"github.com/metacogma/edc-rule-validator-sub000/verify"
)

// Bisection parameters for boundary probing. The search runs over a
// fixed window and refines until the bracket is narrower than the
// probe offset, so the probes are guaranteed to straddle the flip.
const (
	searchLow     = -1000.0
	searchHigh    = 1000.0
	maxRounds     = 60
	boundaryDelta = 0.001
)

// Option configures an Executor.
type Option func(*Executor)

// WithSolver sets the solver options used for model extraction.
func WithSolver(opts smt.Options) Option {
	return func(e *Executor) { e.solver = opts }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// Executor derives test cases from the constraint structure of a rule.
type Executor struct {
	solver smt.Options
	logger *slog.Logger
}

// NewExecutor creates a symbolic executor.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GenerateTests produces solver-derived test cases for one rule.
// Rules without a formalized condition are skipped: free-text
// conditions carry no solver-usable structure.
func (e *Executor) GenerateTests(ctx context.Context, rule *rules.Rule, spec *rules.Specification) ([]rules.TestCase, error) {
	if !rule.HasFormalizedCondition() {
		e.logger.Debug("rule not formalized, skipping symbolic generation", "rule_id", rule.ID)
		return nil, nil
	}
	cond := rule.FormalizedCondition
	expr, err := condition.Parse(cond)
	if err != nil {
		return nil, fmt.Errorf("parse condition: %w", err)
	}
	tr := verify.NewTranslator(spec)
	term, err := tr.Translate(expr)
	if err != nil {
		return nil, fmt.Errorf("encode condition: %w", err)
	}

	var cases []rules.TestCase
	if tc, ok := e.modelCase(ctx, rule, tr, term, true); ok {
		cases = append(cases, tc)
	}
	if tc, ok := e.modelCase(ctx, rule, tr, smt.Not(term), false); ok {
		cases = append(cases, tc)
	}
	cases = append(cases, e.boundaryCases(rule, spec, cond)...)

	for i := range cases {
		cases[i].Technique = rules.TechniqueSymbolic
	}
	e.logger.Debug("symbolic cases generated", "rule_id", rule.ID, "count", len(cases))
	return cases, nil
}

func (e *Executor) modelCase(ctx context.Context, rule *rules.Rule, tr *verify.Translator, term string, expected bool) (rules.TestCase, bool) {
	sess := smt.NewSession(e.solver)
	tr.DeclareAll(sess)
	sess.Assert(term)
	res, model, err := sess.Solve(ctx)
	if err != nil || res != smt.Sat {
		e.logger.Debug("no model for rule", "rule_id", rule.ID, "expected", expected, "result", res, "error", err)
		return rules.TestCase{}, false
	}

	data := make(rules.TestData)
	for _, v := range tr.Vars() {
		form, field, ok := condition.Operand{Ref: v.Ref}.SplitRef()
		if !ok {
			continue
		}
		data.Set(form, field, concreteValue(v, model))
	}
	desc := "solver assignment satisfying the condition"
	if !expected {
		desc = "solver assignment violating the condition"
	}
	return rules.NewTestCase(rule.ID, desc, expected, data), true
}

// concreteValue converts one solver model entry to a test-data value,
// falling back to a neutral default when the model omits the symbol.
func concreteValue(v verify.VarDecl, model smt.Model) any {
	mv, ok := model[v.Symbol]
	switch v.Type {
	case rules.FieldNumeric:
		if ok {
			return mv.Real
		}
		return 0.0
	case rules.FieldDate, rules.FieldDateTime, rules.FieldTime:
		day := int64(0)
		if ok {
			day = int64(mv.Real)
		}
		return time.Unix(day*86400, 0).UTC().Format(rules.DateLayout)
	case rules.FieldBoolean:
		return ok && mv.Bool
	default:
		if ok {
			return mv.Str
		}
		return ""
	}
}

// boundaryCases bisects each numeric comparison for the value where the
// predicate flips and emits one probe just inside and one just outside.
func (e *Executor) boundaryCases(rule *rules.Rule, spec *rules.Specification, cond string) []rules.TestCase {
	var cases []rules.TestCase
	for _, c := range condition.NumericComparisons(cond) {
		form, field, ok := c.Left.SplitRef()
		if !ok || spec.FieldType(form, field) != rules.FieldNumeric {
			continue
		}
		pred, ok := numericPredicate(c.Op, c.Right.Number)
		if !ok {
			continue
		}
		boundary, ok := bisect(pred)
		if !ok {
			continue
		}
		for _, delta := range []float64{boundaryDelta, -boundaryDelta} {
			value := boundary + delta
			data := make(rules.TestData)
			data.Set(form, field, value)
			tc := rules.NewTestCase(rule.ID,
				fmt.Sprintf("boundary probe %s = %.4f near %g", c.Left.Ref, value, boundary),
				pred(value), data)
			cases = append(cases, tc)
		}
	}
	return cases
}

func numericPredicate(op condition.Op, threshold float64) (func(float64) bool, bool) {
	switch op {
	case condition.OpGt:
		return func(x float64) bool { return x > threshold }, true
	case condition.OpGe:
		return func(x float64) bool { return x >= threshold }, true
	case condition.OpLt:
		return func(x float64) bool { return x < threshold }, true
	case condition.OpLe:
		return func(x float64) bool { return x <= threshold }, true
	default:
		// Equality has no one-sided boundary to bisect.
		return nil, false
	}
}

// bisect finds the flip point of pred inside the search window. It
// fails when the predicate does not change sign across the window.
// The bracket is narrowed below boundaryDelta, which keeps the
// midpoint within half a probe offset of the true flip so that the
// two probes at midpoint +/- boundaryDelta always land on opposite
// sides of it.
func bisect(pred func(float64) bool) (float64, bool) {
	lo, hi := searchLow, searchHigh
	if pred(lo) == pred(hi) {
		return 0, false
	}
	for i := 0; i < maxRounds && hi-lo > boundaryDelta; i++ {
		mid := (lo + hi) / 2
		if pred(mid) == pred(lo) {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2, true
}
