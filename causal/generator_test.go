package causal

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rand"

	"github.com/metacogma/edc-rule-validator-sub000/condition"
	"github.com/metacogma/edc-rule-validator-sub000/rules"
)

func TestGenerateTests_FullPipeline(t *testing.T) {
	g := NewGenerator(WithRand(rand.New(1)))

	rule := &rules.Rule{
		ID:        "DATE001",
		Condition: "Vitals.VisitDate < Vitals.FollowUpDate AND Vitals.SystolicBP > 90",
	}
	cases, err := g.GenerateTests(context.Background(), rule, testSpec(t))
	require.NoError(t, err)

	// Three central nodes with three intervention values each, two
	// counterfactuals, and three confounders (every node reaches the
	// other two).
	require.Len(t, cases, 14)

	var interventions, counterfactuals, confoundings int
	for _, tc := range cases {
		assert.Equal(t, rules.TechniqueCausal, tc.Technique)
		switch {
		case strings.HasPrefix(tc.Description, "intervention "):
			interventions++
			assert.True(t, tc.ExpectedResult)
		case strings.HasPrefix(tc.Description, "counterfactual "):
			counterfactuals++
			assert.False(t, tc.ExpectedResult)
		case strings.HasPrefix(tc.Description, "confounding "):
			confoundings++
			assert.True(t, tc.ExpectedResult)
		default:
			t.Fatalf("unexpected case %q", tc.Description)
		}
	}
	assert.Equal(t, 9, interventions)
	assert.Equal(t, 2, counterfactuals)
	assert.Equal(t, 3, confoundings)
}

func TestGenerateTests_InterventionsPropagate(t *testing.T) {
	g := NewGenerator(WithRand(rand.New(3)))

	rule := &rules.Rule{
		ID:        "DATE002",
		Condition: "Vitals.VisitDate < Vitals.FollowUpDate",
	}
	cases, err := g.GenerateTests(context.Background(), rule, testSpec(t))
	require.NoError(t, err)
	require.NotEmpty(t, cases)

	for _, tc := range cases {
		if !strings.HasPrefix(tc.Description, "intervention ") {
			continue
		}
		// Both endpoints of the comparison carry a value after
		// propagation.
		_, visit := tc.TestData.Get("Vitals", "VisitDate")
		_, followUp := tc.TestData.Get("Vitals", "FollowUpDate")
		assert.True(t, visit && followUp, "descendants receive propagated values: %q", tc.Description)
	}
}

func TestGenerateTests_NoRefsNoCases(t *testing.T) {
	g := NewGenerator(WithRand(rand.New(1)))

	rule := &rules.Rule{ID: "NONE", Condition: ""}
	cases, err := g.GenerateTests(context.Background(), rule, testSpec(t))
	require.NoError(t, err)
	assert.Empty(t, cases)
}

func TestComparisonValue_DateOrdering(t *testing.T) {
	g := NewGenerator(WithRand(rand.New(5)))

	// An earlier-than edge pushes the derived date before the source.
	derived := g.comparisonValue(condition.OpGt, rules.FieldDate, "2024-06-15")
	d, err := rules.ParseDate(derived.(string))
	require.NoError(t, err)
	src, _ := rules.ParseDate("2024-06-15")
	assert.True(t, d.Before(src))

	derived = g.comparisonValue(condition.OpLt, rules.FieldDate, "2024-06-15")
	d, err = rules.ParseDate(derived.(string))
	require.NoError(t, err)
	assert.True(t, d.After(src))
}

func TestComparisonValue_NumericOrdering(t *testing.T) {
	g := NewGenerator(WithRand(rand.New(5)))

	v := g.comparisonValue(condition.OpGt, rules.FieldNumeric, 50.0)
	assert.Less(t, v.(float64), 50.0)
	v = g.comparisonValue(condition.OpLt, rules.FieldNumeric, 50.0)
	assert.Greater(t, v.(float64), 50.0)
}

func TestSampleTwo(t *testing.T) {
	g := NewGenerator(WithRand(rand.New(9)))
	items := []string{"a", "b", "c", "d"}
	for i := 0; i < 50; i++ {
		pair := g.sampleTwo(items)
		require.Len(t, pair, 2)
		assert.NotEqual(t, pair[0], pair[1])
	}
}

func TestGenerateTests_ConcurrentUse(t *testing.T) {
	g := NewGenerator()
	spec := testSpec(t)
	rule := &rules.Rule{
		ID:        "MIX",
		Condition: "Vitals.VisitDate < Vitals.FollowUpDate AND Vitals.SystolicBP > 90",
	}

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if _, err := g.GenerateTests(context.Background(), rule, spec); err != nil {
					errs[i] = err
					return
				}
			}
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestCounterfactualValue(t *testing.T) {
	assert.Equal(t, -42.5, counterfactualValue(rules.FieldNumeric, 42.5))
	assert.Equal(t, "Category B", counterfactualValue(rules.FieldCategorical, "Category A"))
	assert.Equal(t, "Category A", counterfactualValue(rules.FieldCategorical, "Other"))

	flipped := counterfactualValue(rules.FieldDate, "2024-01-01")
	assert.Equal(t, "2024-06-29", flipped)
}
