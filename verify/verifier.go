package verify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/metacogma/edc-rule-validator-sub000/condition"
	"github.com/metacogma/edc-rule-validator-sub000/rules"
	"github.com/metacogma/edc-rule-validator-sub000/smt"
)

// DefaultMaxPairChecks bounds the pairwise contradiction/implication scan.
// Zero means unlimited.
const DefaultMaxPairChecks = 1000

// Option configures a Verifier.
type Option func(*Verifier)

// WithSolver sets the solver options used for every check.
func WithSolver(opts smt.Options) Option {
	return func(v *Verifier) { v.solver = opts }
}

// WithMaxPairChecks bounds how many rule pairs VerifyRuleSet examines.
func WithMaxPairChecks(n int) Option {
	return func(v *Verifier) { v.maxPairChecks = n }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) { v.logger = logger }
}

// Verifier proves properties of edit-check rules with an SMT solver.
// Solver outcomes degrade gracefully: an Unknown verdict (timeout,
// unsupported theory) produces a warning, never an error, so a flaky
// solver cannot fail an otherwise sound rule.
type Verifier struct {
	solver        smt.Options
	maxPairChecks int
	logger        *slog.Logger
}

// NewVerifier creates a verifier with the given options.
func NewVerifier(opts ...Option) *Verifier {
	v := &Verifier{
		maxPairChecks: DefaultMaxPairChecks,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// VerifyRule checks a single rule: the condition must parse, must be
// satisfiable, must not be a tautology, and should not carry redundant
// sub-clauses. Rules without a formalized condition skip the solver
// checks entirely and stay valid with a warning, since free text
// cannot be proven either way.
func (v *Verifier) VerifyRule(ctx context.Context, rule *rules.Rule, spec *rules.Specification) *rules.ValidationResult {
	result := rules.NewValidationResult(rule.ID)

	if rule.EffectiveCondition() == "" {
		result.AddError(rules.FindingMissingCondition, "rule has no condition to verify")
		return &result
	}
	if !rule.HasFormalizedCondition() {
		result.AddWarning(rules.FindingNotFormalized, "rule has no formalized condition; solver checks skipped")
		return &result
	}

	expr, err := condition.Parse(rule.FormalizedCondition)
	if err != nil {
		result.AddError(rules.FindingParseError, fmt.Sprintf("condition does not parse: %v", err))
		return &result
	}

	tr := NewTranslator(spec)
	term, err := tr.Translate(expr)
	if err != nil {
		result.AddError(rules.FindingParseError, fmt.Sprintf("condition cannot be encoded for the solver: %v", err))
		return &result
	}

	sess := smt.NewSession(v.solver)
	tr.DeclareAll(sess)

	// Satisfiability: some data must be able to trigger the check.
	sess.Push()
	sess.Assert(term)
	res, err := sess.Check(ctx)
	sess.Pop()
	switch {
	case err != nil:
		result.AddWarning(rules.FindingSolverUnknown, fmt.Sprintf("satisfiability check failed: %v", err))
	case res == smt.Unsat:
		result.AddError(rules.FindingUnsatisfiableRule, "condition can never be true for any data")
	case res == smt.Unknown:
		result.AddWarning(rules.FindingSolverUnknown, "solver could not decide satisfiability")
	}

	// Tautology: the negation must also be satisfiable, otherwise the
	// rule fires on every record.
	sess.Push()
	sess.Assert(smt.Not(term))
	res, err = sess.Check(ctx)
	sess.Pop()
	switch {
	case err != nil:
		result.AddWarning(rules.FindingSolverUnknown, fmt.Sprintf("tautology check failed: %v", err))
	case res == smt.Unsat:
		result.AddWarning(rules.FindingTautology, "condition is true for all data; the check can never pass")
	}

	for _, msg := range redundantClauses(expr) {
		result.AddWarning(rules.FindingRedundant, msg)
	}

	v.logger.Debug("rule verified",
		"rule_id", rule.ID,
		"valid", result.Valid,
		"errors", len(result.Errors),
		"warnings", len(result.Warnings))
	return &result
}

// VerifyRuleSet verifies each rule individually and then scans rule
// pairs for contradictions and implications. The pairwise scan is
// bounded by the configured pair budget.
func (v *Verifier) VerifyRuleSet(ctx context.Context, ruleSet []*rules.Rule, spec *rules.Specification) map[string]*rules.ValidationResult {
	results := make(map[string]*rules.ValidationResult, len(ruleSet))
	for _, r := range ruleSet {
		results[r.ID] = v.VerifyRule(ctx, r, spec)
	}

	// One shared translator keeps symbols and sorts consistent across
	// the whole set, so any pair can be asserted in one session.
	tr := NewTranslator(spec)
	type encoded struct {
		rule *rules.Rule
		term string
	}
	var terms []encoded
	for _, r := range ruleSet {
		if !r.HasFormalizedCondition() {
			continue
		}
		expr, err := condition.Parse(r.FormalizedCondition)
		if err != nil {
			continue
		}
		term, err := tr.Translate(expr)
		if err != nil {
			continue
		}
		terms = append(terms, encoded{rule: r, term: term})
	}

	pairs := 0
	for i := 0; i < len(terms); i++ {
		for j := i + 1; j < len(terms); j++ {
			if v.maxPairChecks > 0 && pairs >= v.maxPairChecks {
				v.logger.Warn("pairwise scan truncated", "budget", v.maxPairChecks, "rules", len(terms))
				return results
			}
			pairs++
			v.checkPair(ctx, tr, terms[i].rule, terms[i].term, terms[j].rule, terms[j].term, results)
		}
	}
	return results
}

func (v *Verifier) checkPair(ctx context.Context, tr *Translator, a *rules.Rule, termA string, b *rules.Rule, termB string, results map[string]*rules.ValidationResult) {
	sess := smt.NewSession(v.solver)
	tr.DeclareAll(sess)

	// Contradiction: the two conditions can never hold together.
	sess.Push()
	sess.Assert(termA)
	sess.Assert(termB)
	res, err := sess.Check(ctx)
	sess.Pop()
	if err == nil && res == smt.Unsat {
		msg := fmt.Sprintf("rules %s and %s can never both be true", a.ID, b.ID)
		results[a.ID].AddError(rules.FindingContradictory, msg)
		results[b.ID].AddError(rules.FindingContradictory, msg)
	}

	// Implication in both directions: A and not B unsatisfiable means
	// every record caught by A is already caught by B.
	if implied := v.checkImplication(ctx, sess, termA, termB); implied {
		results[b.ID].AddWarning(rules.FindingImpliedRule,
			fmt.Sprintf("rule %s is implied by rule %s", b.ID, a.ID))
	}
	if implied := v.checkImplication(ctx, sess, termB, termA); implied {
		results[a.ID].AddWarning(rules.FindingImpliedRule,
			fmt.Sprintf("rule %s is implied by rule %s", a.ID, b.ID))
	}
}

func (v *Verifier) checkImplication(ctx context.Context, sess *smt.Session, antecedent, consequent string) bool {
	sess.Push()
	defer sess.Pop()
	sess.Assert(antecedent)
	sess.Assert(smt.Not(consequent))
	res, err := sess.Check(ctx)
	return err == nil && res == smt.Unsat
}

// redundantClauses reports duplicate or directly contradictory
// comparisons inside a single AND or OR.
func redundantClauses(expr condition.Expr) []string {
	var msgs []string
	condition.Walk(expr, func(e condition.Expr) bool {
		var terms []condition.Expr
		switch n := e.(type) {
		case condition.And:
			terms = n.Terms
		case condition.Or:
			terms = n.Terms
		default:
			return true
		}
		seen := make(map[string]bool, len(terms))
		for _, t := range terms {
			s := t.String()
			if seen[s] {
				msgs = append(msgs, fmt.Sprintf("duplicate sub-clause %q", s))
			}
			seen[s] = true
		}
		if _, isAnd := e.(condition.And); isAnd {
			msgs = append(msgs, contradictoryComparisons(terms)...)
		}
		return true
	})
	return msgs
}

func contradictoryComparisons(terms []condition.Expr) []string {
	var msgs []string
	for i := 0; i < len(terms); i++ {
		a, ok := terms[i].(condition.Comparison)
		if !ok {
			continue
		}
		for j := i + 1; j < len(terms); j++ {
			b, ok := terms[j].(condition.Comparison)
			if !ok {
				continue
			}
			if a.Left.String() != b.Left.String() || a.Right.String() != b.Right.String() {
				continue
			}
			if b.Op == a.Op.Negate() {
				msgs = append(msgs, fmt.Sprintf("sub-clauses %q and %q contradict each other", a.String(), b.String()))
			}
		}
	}
	return msgs
}
