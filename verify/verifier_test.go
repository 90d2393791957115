package verify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metacogma/edc-rule-validator-sub000/rules"
	"github.com/metacogma/edc-rule-validator-sub000/smt"
)

// fakeSolver installs a z3 stand-in that answers the n-th check with the
// n-th line of the verdicts list, defaulting to sat once the list runs
// out. It returns solver options pointing at the fake and the path of
// the counter file recording how many checks ran.
func fakeSolver(t *testing.T, verdicts ...string) (smt.Options, string) {
	t.Helper()
	dir := t.TempDir()
	counter := filepath.Join(dir, "counter")
	responses := filepath.Join(dir, "responses")
	require.NoError(t, os.WriteFile(responses, []byte(strings.Join(verdicts, "\n")+"\n"), 0o644))

	script := fmt.Sprintf(`#!/bin/sh
cat > /dev/null
n=$(cat %q 2>/dev/null || echo 0)
n=$((n+1))
echo $n > %q
out=$(sed -n "${n}p" %q)
[ -z "$out" ] && out=sat
printf '%%s\n' "$out"
`, counter, counter, responses)
	bin := filepath.Join(dir, "z3")
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))

	return smt.Options{Binary: bin, Timeout: 5 * time.Second}, counter
}

func checkCount(t *testing.T, counter string) int {
	t.Helper()
	data, err := os.ReadFile(counter)
	if os.IsNotExist(err) {
		return 0
	}
	require.NoError(t, err)
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	require.NoError(t, err)
	return n
}

func findingKinds(findings []rules.Finding) []rules.FindingKind {
	kinds := make([]rules.FindingKind, 0, len(findings))
	for _, f := range findings {
		kinds = append(kinds, f.Kind)
	}
	return kinds
}

func TestVerifyRule_Valid(t *testing.T) {
	opts, counter := fakeSolver(t, "sat", "sat")
	v := NewVerifier(WithSolver(opts))

	rule := &rules.Rule{ID: "BP001", FormalizedCondition: "Vitals.SystolicBP > 90"}
	res := v.VerifyRule(context.Background(), rule, studySpec(t))

	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, 2, checkCount(t, counter))
}

func TestVerifyRule_Unsatisfiable(t *testing.T) {
	opts, _ := fakeSolver(t, "unsat", "sat")
	v := NewVerifier(WithSolver(opts))

	rule := &rules.Rule{ID: "BP002", FormalizedCondition: "Vitals.SystolicBP > 90"}
	res := v.VerifyRule(context.Background(), rule, studySpec(t))

	assert.False(t, res.Valid)
	assert.Contains(t, findingKinds(res.Errors), rules.FindingUnsatisfiableRule)
}

func TestVerifyRule_Tautology(t *testing.T) {
	opts, _ := fakeSolver(t, "sat", "unsat")
	v := NewVerifier(WithSolver(opts))

	rule := &rules.Rule{ID: "BP003", FormalizedCondition: "Vitals.SystolicBP > 90"}
	res := v.VerifyRule(context.Background(), rule, studySpec(t))

	assert.True(t, res.Valid, "a tautology warns but does not invalidate")
	assert.Contains(t, findingKinds(res.Warnings), rules.FindingTautology)
}

func TestVerifyRule_SolverUnknown(t *testing.T) {
	opts, _ := fakeSolver(t, "unknown", "sat")
	v := NewVerifier(WithSolver(opts))

	rule := &rules.Rule{ID: "BP004", FormalizedCondition: "Vitals.SystolicBP > 90"}
	res := v.VerifyRule(context.Background(), rule, studySpec(t))

	assert.True(t, res.Valid)
	assert.Contains(t, findingKinds(res.Warnings), rules.FindingSolverUnknown)
}

func TestVerifyRule_MissingCondition(t *testing.T) {
	opts, counter := fakeSolver(t)
	v := NewVerifier(WithSolver(opts))

	res := v.VerifyRule(context.Background(), &rules.Rule{ID: "EMPTY"}, studySpec(t))

	assert.False(t, res.Valid)
	assert.Contains(t, findingKinds(res.Errors), rules.FindingMissingCondition)
	assert.Equal(t, 0, checkCount(t, counter), "no solver call for an empty condition")
}

func TestVerifyRule_ParseError(t *testing.T) {
	opts, counter := fakeSolver(t)
	v := NewVerifier(WithSolver(opts))

	rule := &rules.Rule{ID: "BADFORM", FormalizedCondition: "Vitals.SystolicBP >>> 90"}
	res := v.VerifyRule(context.Background(), rule, studySpec(t))

	assert.False(t, res.Valid)
	assert.Contains(t, findingKinds(res.Errors), rules.FindingParseError)
	assert.Equal(t, 0, checkCount(t, counter))
}

func TestVerifyRule_FreeTextSkipsSolver(t *testing.T) {
	opts, counter := fakeSolver(t)
	v := NewVerifier(WithSolver(opts))

	rule := &rules.Rule{ID: "FREE", Condition: "the systolic reading looks too high"}
	res := v.VerifyRule(context.Background(), rule, studySpec(t))

	assert.True(t, res.Valid, "an unformalized rule is unproven, not invalid")
	assert.Contains(t, findingKinds(res.Warnings), rules.FindingNotFormalized)
	assert.Equal(t, 0, checkCount(t, counter), "free-text conditions never reach the solver")
}

func TestVerifyRule_PrefersFormalizedCondition(t *testing.T) {
	opts, _ := fakeSolver(t, "sat", "sat")
	v := NewVerifier(WithSolver(opts))

	rule := &rules.Rule{
		ID:                  "FORM",
		Condition:           "systolic above ninety",
		FormalizedCondition: "Vitals.SystolicBP > 90",
	}
	res := v.VerifyRule(context.Background(), rule, studySpec(t))
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
}

func TestVerifyRule_DuplicateClause(t *testing.T) {
	opts, _ := fakeSolver(t, "sat", "sat")
	v := NewVerifier(WithSolver(opts))

	rule := &rules.Rule{ID: "DUP", FormalizedCondition: "Vitals.SystolicBP > 90 AND Vitals.SystolicBP > 90"}
	res := v.VerifyRule(context.Background(), rule, studySpec(t))

	assert.True(t, res.Valid)
	assert.Contains(t, findingKinds(res.Warnings), rules.FindingRedundant)
}

func TestVerifyRule_ContradictoryClauses(t *testing.T) {
	opts, _ := fakeSolver(t, "sat", "sat")
	v := NewVerifier(WithSolver(opts))

	rule := &rules.Rule{ID: "CONTRA", FormalizedCondition: "Vitals.SystolicBP > 90 AND Vitals.SystolicBP <= 90"}
	res := v.VerifyRule(context.Background(), rule, studySpec(t))

	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, findingKinds(res.Warnings), rules.FindingRedundant)
}

// Pairwise checks run in a fixed order: two per-rule checks for each
// rule, then per pair a joint-satisfiability check followed by the two
// implication checks. The verdict lists below are sequenced to that
// order.

func TestVerifyRuleSet_Contradiction(t *testing.T) {
	opts, counter := fakeSolver(t,
		"sat", "sat", // rule A
		"sat", "sat", // rule B
		"unsat",      // A and B jointly unsatisfiable
		"sat", "sat", // neither implies the other
	)
	v := NewVerifier(WithSolver(opts))

	ruleSet := []*rules.Rule{
		{ID: "A", FormalizedCondition: "Vitals.SystolicBP > 140"},
		{ID: "B", FormalizedCondition: "Vitals.SystolicBP < 90"},
	}
	results := v.VerifyRuleSet(context.Background(), ruleSet, studySpec(t))

	require.Len(t, results, 2)
	assert.Contains(t, findingKinds(results["A"].Errors), rules.FindingContradictory)
	assert.Contains(t, findingKinds(results["B"].Errors), rules.FindingContradictory)
	assert.False(t, results["A"].Valid)
	assert.False(t, results["B"].Valid)
	assert.Equal(t, 7, checkCount(t, counter))
}

func TestVerifyRuleSet_Implication(t *testing.T) {
	opts, _ := fakeSolver(t,
		"sat", "sat",
		"sat", "sat",
		"sat",   // no contradiction
		"unsat", // A and not B unsatisfiable, so A implies B
		"sat",
	)
	v := NewVerifier(WithSolver(opts))

	ruleSet := []*rules.Rule{
		{ID: "A", FormalizedCondition: "Vitals.SystolicBP > 140"},
		{ID: "B", FormalizedCondition: "Vitals.SystolicBP > 90"},
	}
	results := v.VerifyRuleSet(context.Background(), ruleSet, studySpec(t))

	assert.Empty(t, results["A"].Warnings)
	assert.Contains(t, findingKinds(results["B"].Warnings), rules.FindingImpliedRule)
	assert.True(t, results["B"].Valid, "an implied rule is a warning, not an error")
}

func TestVerifyRuleSet_MaxPairChecks(t *testing.T) {
	opts, counter := fakeSolver(t)
	v := NewVerifier(WithSolver(opts), WithMaxPairChecks(1))

	ruleSet := []*rules.Rule{
		{ID: "A", FormalizedCondition: "Vitals.SystolicBP > 140"},
		{ID: "B", FormalizedCondition: "Vitals.SystolicBP > 90"},
		{ID: "C", FormalizedCondition: "Vitals.DiastolicBP > 60"},
	}
	results := v.VerifyRuleSet(context.Background(), ruleSet, studySpec(t))

	require.Len(t, results, 3)
	// Six per-rule checks plus one pair of three checks; the remaining
	// two pairs are skipped.
	assert.Equal(t, 9, checkCount(t, counter))
}

func TestVerifyRuleSet_SkipsUnparseableInPairScan(t *testing.T) {
	opts, counter := fakeSolver(t)
	v := NewVerifier(WithSolver(opts))

	ruleSet := []*rules.Rule{
		{ID: "A", FormalizedCondition: "Vitals.SystolicBP > 140"},
		{ID: "BAD", FormalizedCondition: "not really a condition"},
	}
	results := v.VerifyRuleSet(context.Background(), ruleSet, studySpec(t))

	assert.False(t, results["BAD"].Valid)
	// Only rule A reaches the solver, and with one encodable rule there
	// is no pair to scan.
	assert.Equal(t, 2, checkCount(t, counter))
}
