package multimodal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metacogma/edc-rule-validator-sub000/condition"
	"github.com/metacogma/edc-rule-validator-sub000/rules"
)

func evaluate(t *testing.T, cond string, data rules.TestData) bool {
	t.Helper()
	expr, err := condition.Parse(cond)
	require.NoError(t, err)
	out, err := Evaluate(expr, data)
	require.NoError(t, err)
	return out
}

func TestEvaluate_Comparisons(t *testing.T) {
	tests := []struct {
		name string
		cond string
		data rules.TestData
		want bool
	}{
		{
			name: "numeric greater than holds",
			cond: "Vitals.SystolicBP > 90",
			data: rules.TestData{"Vitals": {"SystolicBP": 120.0}},
			want: true,
		},
		{
			name: "numeric greater than fails at threshold",
			cond: "Vitals.SystolicBP > 90",
			data: rules.TestData{"Vitals": {"SystolicBP": 90.0}},
			want: false,
		},
		{
			name: "numeric string coerces",
			cond: "Vitals.SystolicBP > 90",
			data: rules.TestData{"Vitals": {"SystolicBP": "120"}},
			want: true,
		},
		{
			name: "string equality",
			cond: "Demo.Sex = 'F'",
			data: rules.TestData{"Demo": {"Sex": "F"}},
			want: true,
		},
		{
			name: "date ordering",
			cond: "Vitals.VisitDate < '2024-06-01'",
			data: rules.TestData{"Vitals": {"VisitDate": "2024-05-15"}},
			want: true,
		},
		{
			name: "boolean against yes literal",
			cond: "Demo.Consent = 'Yes'",
			data: rules.TestData{"Demo": {"Consent": true}},
			want: true,
		},
		{
			name: "missing field compares false",
			cond: "Vitals.SystolicBP > 90",
			data: rules.TestData{},
			want: false,
		},
		{
			name: "type confusion only satisfies not-equal",
			cond: "Vitals.SystolicBP != 90",
			data: rules.TestData{"Vitals": {"SystolicBP": "not_a_number"}},
			want: true,
		},
		{
			name: "type confusion fails ordering",
			cond: "Vitals.SystolicBP > 90",
			data: rules.TestData{"Vitals": {"SystolicBP": "not_a_number"}},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evaluate(t, tt.cond, tt.data))
		})
	}
}

func TestEvaluate_Connectives(t *testing.T) {
	data := rules.TestData{"Vitals": {"SystolicBP": 150.0, "DiastolicBP": 95.0}}

	assert.True(t, evaluate(t, "Vitals.SystolicBP > 140 AND Vitals.DiastolicBP > 90", data))
	assert.False(t, evaluate(t, "Vitals.SystolicBP > 140 AND Vitals.DiastolicBP > 100", data))
	assert.True(t, evaluate(t, "Vitals.SystolicBP > 200 OR Vitals.DiastolicBP > 90", data))
	assert.True(t, evaluate(t, "NOT (Vitals.SystolicBP < 100)", data))
}

func TestEvaluate_IfThenElse(t *testing.T) {
	data := rules.TestData{"Demo": {"Sex": "F"}, "Vitals": {"SystolicBP": 100.0}}

	assert.True(t, evaluate(t, "IF Demo.Sex = 'F' THEN Vitals.SystolicBP > 90 ELSE Vitals.SystolicBP > 200", data))
	assert.False(t, evaluate(t, "IF Demo.Sex = 'M' THEN Vitals.SystolicBP > 90 ELSE Vitals.SystolicBP > 200", data))

	// IF without ELSE is vacuously true on a false antecedent.
	assert.True(t, evaluate(t, "IF Demo.Sex = 'M' THEN Vitals.SystolicBP > 200", data))
}

func TestEvaluate_InAndBetween(t *testing.T) {
	data := rules.TestData{"Demo": {"Sex": "F"}, "Vitals": {"SystolicBP": 120.0}}

	assert.True(t, evaluate(t, "Demo.Sex IN ('M', 'F')", data))
	assert.False(t, evaluate(t, "Demo.Sex IN ('M')", data))
	assert.True(t, evaluate(t, "Demo.Sex NOT IN ('M')", data))
	assert.True(t, evaluate(t, "Vitals.SystolicBP BETWEEN 90 AND 140", data))
	assert.False(t, evaluate(t, "Vitals.SystolicBP BETWEEN 121 AND 140", data))

	// NOT IN over a missing field is false, matching null semantics.
	assert.False(t, evaluate(t, "Demo.Sex NOT IN ('M')", rules.TestData{}))
}

func TestEvaluate_NullChecks(t *testing.T) {
	assert.True(t, evaluate(t, "Vitals.SystolicBP IS NULL", rules.TestData{}))
	assert.True(t, evaluate(t, "Vitals.SystolicBP IS NULL", rules.TestData{"Vitals": {"SystolicBP": nil}}))
	assert.False(t, evaluate(t, "Vitals.SystolicBP IS NULL", rules.TestData{"Vitals": {"SystolicBP": 120.0}}))
	assert.True(t, evaluate(t, "Vitals.SystolicBP IS NOT NULL", rules.TestData{"Vitals": {"SystolicBP": 120.0}}))
}
