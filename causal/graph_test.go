package causal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metacogma/edc-rule-validator-sub000/condition"
	"github.com/metacogma/edc-rule-validator-sub000/rules"
)

func testSpec(t *testing.T) *rules.Specification {
	t.Helper()
	spec, err := rules.ParseSpecificationJSON([]byte(`{
	  "forms": [
	    {"name": "Vitals", "fields": [
	      {"name": "SystolicBP", "type": "numeric"},
	      {"name": "VisitDate", "type": "date"},
	      {"name": "FollowUpDate", "type": "date"}
	    ]},
	    {"name": "Demo", "fields": [
	      {"name": "Sex", "type": "categorical", "valid_values": ["M", "F"]}
	    ]}
	  ]
	}`))
	require.NoError(t, err)
	return spec
}

func TestGraph_Edges(t *testing.T) {
	g := NewGraph()
	g.AddEdge("a", "b", Edge{Kind: EdgeForm})
	g.AddEdge("b", "c", Edge{Kind: EdgeForm})

	assert.Equal(t, 3, g.Len())
	assert.Equal(t, []string{"a", "b", "c"}, g.Nodes())

	e, ok := g.Edge("a", "b")
	require.True(t, ok)
	assert.Equal(t, EdgeForm, e.Kind)
	_, ok = g.Edge("b", "a")
	assert.False(t, ok)

	// Re-adding overwrites, so later phases refine earlier edges.
	g.AddEdge("a", "b", Edge{Kind: EdgeComparison, Op: condition.OpLt})
	e, _ = g.Edge("a", "b")
	assert.Equal(t, EdgeComparison, e.Kind)
	assert.Equal(t, condition.OpLt, e.Op)
}

func TestGraph_Descendants(t *testing.T) {
	g := NewGraph()
	g.AddEdge("a", "b", Edge{Kind: EdgeForm})
	g.AddEdge("b", "c", Edge{Kind: EdgeForm})
	g.AddEdge("c", "a", Edge{Kind: EdgeForm})
	g.AddNode("isolated")

	assert.Equal(t, []string{"b", "c"}, g.Descendants("a"))
	assert.Empty(t, g.Descendants("isolated"))
}

func TestGraph_TopCentral(t *testing.T) {
	g := NewGraph()
	g.AddEdge("hub", "x", Edge{Kind: EdgeForm})
	g.AddEdge("hub", "y", Edge{Kind: EdgeForm})
	g.AddEdge("x", "hub", Edge{Kind: EdgeForm})

	// hub: degree 3, x: degree 2, y: degree 1.
	assert.Equal(t, []string{"hub", "x"}, g.TopCentral(2))
	assert.Equal(t, []string{"hub", "x", "y"}, g.TopCentral(10))
}

func TestGraph_Confounders(t *testing.T) {
	g := NewGraph()
	g.AddEdge("conf", "x", Edge{Kind: EdgeForm})
	g.AddEdge("conf", "y", Edge{Kind: EdgeForm})
	g.AddEdge("x", "y", Edge{Kind: EdgeForm})

	assert.Equal(t, []string{"conf"}, g.Confounders())
}

func TestBuildGraph(t *testing.T) {
	rule := &rules.Rule{
		ID:        "DATE001",
		Condition: "Vitals.VisitDate < Vitals.FollowUpDate AND Vitals.SystolicBP > 90",
	}
	g := BuildGraph(rule, testSpec(t))

	require.Equal(t, 3, g.Len())

	// The direct date comparison wins over the earlier temporal and
	// form-sharing edges, carrying the operator both ways.
	e, ok := g.Edge("Vitals.VisitDate", "Vitals.FollowUpDate")
	require.True(t, ok)
	assert.Equal(t, EdgeComparison, e.Kind)
	assert.Equal(t, condition.OpLt, e.Op)

	back, ok := g.Edge("Vitals.FollowUpDate", "Vitals.VisitDate")
	require.True(t, ok)
	assert.Equal(t, EdgeComparison, back.Kind)
	assert.Equal(t, condition.OpGt, back.Op)

	// SystolicBP shares the form with both dates.
	e, ok = g.Edge("Vitals.SystolicBP", "Vitals.VisitDate")
	require.True(t, ok)
	assert.Equal(t, EdgeForm, e.Kind)
}

func TestBuildGraph_CrossFormHasNoEdges(t *testing.T) {
	rule := &rules.Rule{ID: "X001", Condition: "Demo.Sex = 'F' AND Vitals.SystolicBP > 90"}
	g := BuildGraph(rule, testSpec(t))

	assert.Equal(t, 2, g.Len())
	_, ok := g.Edge("Demo.Sex", "Vitals.SystolicBP")
	assert.False(t, ok)
}
