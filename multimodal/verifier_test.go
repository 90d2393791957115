package multimodal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metacogma/edc-rule-validator-sub000/rules"
	"github.com/metacogma/edc-rule-validator-sub000/smt"
)

func testSpec(t *testing.T) *rules.Specification {
	t.Helper()
	spec, err := rules.ParseSpecificationJSON([]byte(`{
	  "forms": [
	    {"name": "Vitals", "fields": [
	      {"name": "SystolicBP", "type": "numeric"}
	    ]}
	  ]
	}`))
	require.NoError(t, err)
	return spec
}

func fakeZ3(t *testing.T, output string) smt.Options {
	t.Helper()
	dir := t.TempDir()
	script := fmt.Sprintf("#!/bin/sh\ncat > /dev/null\nprintf '%%b' %q\n", output)
	bin := filepath.Join(dir, "z3")
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))
	return smt.Options{Binary: bin, Timeout: 5 * time.Second}
}

func testCase(expected bool, value float64) rules.TestCase {
	data := make(rules.TestData)
	data.Set("Vitals", "SystolicBP", value)
	return rules.NewTestCase("BP001", "probe", expected, data)
}

func TestFilter_DirectOpinionOnly(t *testing.T) {
	// No formalized condition, so only the direct evaluator votes.
	rule := &rules.Rule{ID: "BP001", Condition: "Vitals.SystolicBP > 90"}
	v := NewVerifier()

	cases := []rules.TestCase{
		testCase(true, 120),  // correct label
		testCase(false, 120), // mislabeled
		testCase(false, 80),  // correct label
	}
	kept := v.Filter(context.Background(), rule, testSpec(t), cases)

	require.Len(t, kept, 2)
	assert.Equal(t, cases[0].ID, kept[0].ID)
	assert.Equal(t, cases[2].ID, kept[1].ID)
}

func TestFilter_ZeroOpinionsDiscards(t *testing.T) {
	rule := &rules.Rule{ID: "FREE", Condition: "the reading looks wrong"}
	v := NewVerifier()

	kept := v.Filter(context.Background(), rule, testSpec(t), []rules.TestCase{testCase(true, 120)})
	assert.Empty(t, kept, "an unparseable condition yields no opinions")
}

func TestOpinions_SolverAndDirect(t *testing.T) {
	rule := &rules.Rule{
		ID:                  "BP001",
		Condition:           "systolic above 90",
		FormalizedCondition: "Vitals.SystolicBP > 90",
	}
	v := NewVerifier(WithSolver(fakeZ3(t, "sat\n")))

	opinions := v.Opinions(context.Background(), rule, testSpec(t), testCase(true, 120))
	require.Len(t, opinions, 2)
	assert.Equal(t, "smt", opinions[0].Mode)
	assert.True(t, opinions[0].Valid)
	assert.Equal(t, "direct", opinions[1].Mode)
	assert.True(t, opinions[1].Valid)
}

func TestOpinions_SolverRejectsMislabeledCase(t *testing.T) {
	rule := &rules.Rule{
		ID:                  "BP001",
		Condition:           "systolic above 90",
		FormalizedCondition: "Vitals.SystolicBP > 90",
	}
	v := NewVerifier(WithSolver(fakeZ3(t, "unsat\n")))

	opinions := v.Opinions(context.Background(), rule, testSpec(t), testCase(false, 120))
	require.Len(t, opinions, 2)
	assert.False(t, opinions[0].Valid)
}

func TestOpinions_SolverUnknownAbstains(t *testing.T) {
	rule := &rules.Rule{
		ID:                  "BP001",
		Condition:           "systolic above 90",
		FormalizedCondition: "Vitals.SystolicBP > 90",
	}
	v := NewVerifier(WithSolver(fakeZ3(t, "unknown\n")))

	opinions := v.Opinions(context.Background(), rule, testSpec(t), testCase(true, 120))
	require.Len(t, opinions, 1, "the solver abstains, the direct mode still votes")
	assert.Equal(t, "direct", opinions[0].Mode)
}

func TestFilter_CrossCheckerBreaksMajority(t *testing.T) {
	rule := &rules.Rule{ID: "BP001", Condition: "Vitals.SystolicBP > 90"}

	veto := func(context.Context, *rules.Rule, *rules.Specification, rules.TestCase) (bool, bool) {
		return false, true
	}
	v := NewVerifier(WithCrossChecker(veto))

	// Direct says valid, cross says invalid: one against one is not a
	// strict majority.
	kept := v.Filter(context.Background(), rule, testSpec(t), []rules.TestCase{testCase(true, 120)})
	assert.Empty(t, kept)

	approve := func(context.Context, *rules.Rule, *rules.Specification, rules.TestCase) (bool, bool) {
		return true, true
	}
	v = NewVerifier(WithCrossChecker(approve))
	kept = v.Filter(context.Background(), rule, testSpec(t), []rules.TestCase{testCase(true, 120)})
	assert.Len(t, kept, 1)
}

func TestAccepted(t *testing.T) {
	assert.False(t, accepted(nil))
	assert.True(t, accepted([]Opinion{{Valid: true}}))
	assert.False(t, accepted([]Opinion{{Valid: false}}))
	assert.False(t, accepted([]Opinion{{Valid: true}, {Valid: false}}))
	assert.True(t, accepted([]Opinion{{Valid: true}, {Valid: true}, {Valid: false}}))
}
