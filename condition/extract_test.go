package condition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldRefs_Formalized(t *testing.T) {
	refs := FieldRefs("VitalSigns.SystolicBP > VitalSigns.DiastolicBP AND Demographics.Age >= 18")
	assert.Equal(t, []string{"Demographics.Age", "VitalSigns.DiastolicBP", "VitalSigns.SystolicBP"}, refs)
}

func TestFieldRefs_FreeText(t *testing.T) {
	refs := FieldRefs("If present, Labs.ALT must not exceed three times Labs.ULN")
	assert.Contains(t, refs, "Labs.ALT")
	assert.Contains(t, refs, "Labs.ULN")
}

func TestFieldRefs_Deduplicates(t *testing.T) {
	refs := FieldRefs("Labs.ALT > 3 OR Labs.ALT < 0")
	assert.Equal(t, []string{"Labs.ALT"}, refs)
}

func TestComparisons_TreeOrder(t *testing.T) {
	cmps := Comparisons("VitalSigns.SystolicBP > 90 AND VitalSigns.DiastolicBP < 120")
	require.Len(t, cmps, 2)
	assert.Equal(t, "VitalSigns.SystolicBP", cmps[0].Left.Ref)
	assert.Equal(t, "VitalSigns.DiastolicBP", cmps[1].Left.Ref)
}

func TestComparisons_RegexFallback(t *testing.T) {
	// Not parseable as a formalized condition, but the atoms are
	// recoverable by scanning.
	cmps := Comparisons("check that VitalSigns.SystolicBP >= 90 whenever Dosing.Dose == 0")
	require.Len(t, cmps, 2)
	assert.Equal(t, OpGe, cmps[0].Op)
	// == normalizes to =
	assert.Equal(t, OpEq, cmps[1].Op)
}

func TestComparisons_NormalizesDiamond(t *testing.T) {
	cmps := Comparisons("where Labs.Result <> 'PENDING' obviously")
	require.Len(t, cmps, 1)
	assert.Equal(t, OpNe, cmps[0].Op)
}

func TestNumericComparisons(t *testing.T) {
	cmps := NumericComparisons("VitalSigns.SystolicBP > 90 AND Labs.Status = 'FINAL' AND VitalSigns.SystolicBP < VitalSigns.DiastolicBP")
	require.Len(t, cmps, 1)
	assert.Equal(t, 90.0, cmps[0].Right.Number)
}

func TestRefPairComparisons(t *testing.T) {
	cmps := RefPairComparisons("Visit.StartDate <= Visit.EndDate AND Visit.EndDate <= 100")
	require.Len(t, cmps, 1)
	assert.Equal(t, "Visit.StartDate", cmps[0].Left.Ref)
	assert.Equal(t, "Visit.EndDate", cmps[0].Right.Ref)
}

func TestWalk_VisitsAllNodes(t *testing.T) {
	expr, err := Parse("IF Dosing.Dose > 0 THEN Dosing.Unit != '' ELSE Dosing.Route IS NULL")
	require.NoError(t, err)

	var kinds []string
	Walk(expr, func(e Expr) bool {
		switch e.(type) {
		case IfThenElse:
			kinds = append(kinds, "ite")
		case Comparison:
			kinds = append(kinds, "cmp")
		case NullCheck:
			kinds = append(kinds, "null")
		}
		return true
	})
	assert.Equal(t, []string{"ite", "cmp", "cmp", "null"}, kinds)
}
