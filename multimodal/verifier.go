package multimodal

import (
	"context"
	"log/slog"
	"math"

	"github.com/metacogma/edc-rule-validator-sub000/condition"
	"github.com/metacogma/edc-rule-validator-sub000/rules"
	"github.com/metacogma/edc-rule-validator-sub000/smt"
	"github.com/metacogma/edc-rule-validator-sub000/verify"
)

// Opinion is one verification mode's view of a test case.
type Opinion struct {
	Mode  string
	Valid bool
}

// CrossChecker is the optional third verification mode: consistency of a
// test case against related rules. Returning ok == false means no
// opinion for that case.
type CrossChecker func(ctx context.Context, rule *rules.Rule, spec *rules.Specification, tc rules.TestCase) (valid bool, ok bool)

// Option configures a Verifier.
type Option func(*Verifier)

// WithSolver sets the solver options for the re-check mode.
func WithSolver(opts smt.Options) Option {
	return func(v *Verifier) { v.solver = opts }
}

// WithCrossChecker installs the optional cross-rule mode.
func WithCrossChecker(c CrossChecker) Option {
	return func(v *Verifier) { v.cross = c }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) { v.logger = logger }
}

// Verifier filters generated test cases through independent checks.
type Verifier struct {
	solver smt.Options
	cross  CrossChecker
	logger *slog.Logger
}

// NewVerifier creates a multi-modal verifier.
func NewVerifier(opts ...Option) *Verifier {
	v := &Verifier{logger: slog.Default()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Filter returns the test cases a strict majority of opinions consider
// valid. A case gathering zero opinions is discarded.
func (v *Verifier) Filter(ctx context.Context, rule *rules.Rule, spec *rules.Specification, cases []rules.TestCase) []rules.TestCase {
	kept := make([]rules.TestCase, 0, len(cases))
	for _, tc := range cases {
		opinions := v.Opinions(ctx, rule, spec, tc)
		if accepted(opinions) {
			kept = append(kept, tc)
		} else {
			v.logger.Debug("test case discarded",
				"rule_id", rule.ID, "test_id", tc.ID, "opinions", len(opinions))
		}
	}
	return kept
}

// Opinions collects every mode's view of one test case. Modes that
// cannot decide contribute nothing.
func (v *Verifier) Opinions(ctx context.Context, rule *rules.Rule, spec *rules.Specification, tc rules.TestCase) []Opinion {
	var opinions []Opinion
	if valid, ok := v.solverOpinion(ctx, rule, spec, tc); ok {
		opinions = append(opinions, Opinion{Mode: "smt", Valid: valid})
	}
	if valid, ok := v.directOpinion(rule, tc); ok {
		opinions = append(opinions, Opinion{Mode: "direct", Valid: valid})
	}
	if v.cross != nil {
		if valid, ok := v.cross(ctx, rule, spec, tc); ok {
			opinions = append(opinions, Opinion{Mode: "cross", Valid: valid})
		}
	}
	return opinions
}

// accepted applies the strict-majority combination.
func accepted(opinions []Opinion) bool {
	if len(opinions) == 0 {
		return false
	}
	valid := 0
	for _, o := range opinions {
		if o.Valid {
			valid++
		}
	}
	return valid > len(opinions)-valid
}

// solverOpinion substitutes the test data into the formalized condition
// and asks the solver whether the ground formula can match the expected
// result. Rules without a formalized condition yield no opinion.
func (v *Verifier) solverOpinion(ctx context.Context, rule *rules.Rule, spec *rules.Specification, tc rules.TestCase) (bool, bool) {
	if !rule.HasFormalizedCondition() {
		return false, false
	}
	expr, err := condition.Parse(rule.FormalizedCondition)
	if err != nil {
		return false, false
	}
	tr := verify.NewTranslator(spec)
	term, err := tr.Translate(expr)
	if err != nil {
		return false, false
	}

	sess := smt.NewSession(v.solver)
	tr.DeclareAll(sess)
	sess.Assert(smt.Eq(term, smt.BoolLit(tc.ExpectedResult)))
	for _, decl := range tr.Vars() {
		form, field, ok := (condition.Operand{Ref: decl.Ref}).SplitRef()
		if !ok {
			continue
		}
		raw, present := tc.TestData.Get(form, field)
		if !present {
			continue
		}
		binding, ok := bindingTerm(decl, raw)
		if !ok {
			continue
		}
		sess.Assert(smt.Eq(decl.Symbol, binding))
	}

	res, err := sess.Check(ctx)
	if err != nil || res == smt.Unknown {
		return false, false
	}
	return res == smt.Sat, true
}

// bindingTerm encodes one concrete test value as a solver term matching
// the variable's sort. Values the theory cannot express (NaN, infinities,
// type-confused strings on numeric fields) leave the variable free.
func bindingTerm(decl verify.VarDecl, raw any) (string, bool) {
	switch decl.Sort {
	case smt.SortReal:
		f, ok := rawNumber(raw)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			return "", false
		}
		return smt.Num(f), true
	case smt.SortInt:
		s, ok := raw.(string)
		if !ok {
			return "", false
		}
		t, err := rules.ParseDate(s)
		if err != nil {
			return "", false
		}
		return smt.Num(float64(t.Unix() / 86400)), true
	case smt.SortBool:
		b, ok := raw.(bool)
		if !ok {
			return "", false
		}
		return smt.BoolLit(b), true
	default:
		s, ok := raw.(string)
		if !ok {
			return "", false
		}
		return smt.Str(s), true
	}
}

func rawNumber(raw any) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// directOpinion evaluates the condition tree over the test data and
// compares the outcome with the expected result.
func (v *Verifier) directOpinion(rule *rules.Rule, tc rules.TestCase) (bool, bool) {
	expr, err := condition.Parse(rule.EffectiveCondition())
	if err != nil {
		return false, false
	}
	outcome, err := Evaluate(expr, tc.TestData)
	if err != nil {
		return false, false
	}
	return outcome == tc.ExpectedResult, true
}
