package causal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pgregory.net/rand"

	"github.com/metacogma/edc-rule-validator-sub000/condition"
	"github.com/metacogma/edc-rule-validator-sub000/rules"
)

// How many high-centrality nodes each traversal works from.
const (
	interventionNodes   = 3
	counterfactualNodes = 2
)

// Option configures a Generator.
type Option func(*Generator)

// WithRand sets the random source, letting tests pin a seed.
func WithRand(rng *rand.Rand) Option {
	return func(g *Generator) { g.rng = rng }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) { g.logger = logger }
}

// Generator derives test cases from the causal structure of a rule. One
// Generator may serve concurrent generation tasks; the mutex serializes
// access to the random source, which is not safe for concurrent use.
type Generator struct {
	mu     sync.Mutex
	rng    *rand.Rand
	logger *slog.Logger
}

// NewGenerator creates a causal test generator.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		rng:    rand.New(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// BuildGraph constructs the influence graph for a rule. Construction
// phases run in order, each able to refine edges laid by the previous:
// temporal edges between date fields, bidirectional edges within a form,
// then operator-tagged edges for directly compared fields.
func BuildGraph(rule *rules.Rule, spec *rules.Specification) *Graph {
	cond := rule.EffectiveCondition()
	refs := condition.FieldRefs(cond)

	g := NewGraph()
	for _, ref := range refs {
		g.AddNode(ref)
	}

	// Earlier dates influence later ones within a subject's timeline;
	// field order stands in for actual chronology.
	var dates []string
	for _, ref := range refs {
		form, field, ok := (condition.Operand{Ref: ref}).SplitRef()
		if ok && spec.FieldType(form, field).IsTemporal() {
			dates = append(dates, ref)
		}
	}
	for i := 0; i < len(dates); i++ {
		for j := i + 1; j < len(dates); j++ {
			g.AddEdge(dates[i], dates[j], Edge{Kind: EdgeTemporal})
		}
	}

	// Fields sharing a form correlate in both directions.
	byForm := make(map[string][]string)
	for _, ref := range refs {
		form, _, ok := (condition.Operand{Ref: ref}).SplitRef()
		if ok {
			byForm[form] = append(byForm[form], ref)
		}
	}
	for _, fields := range byForm {
		for i := 0; i < len(fields); i++ {
			for j := i + 1; j < len(fields); j++ {
				g.AddEdge(fields[i], fields[j], Edge{Kind: EdgeForm})
				g.AddEdge(fields[j], fields[i], Edge{Kind: EdgeForm})
			}
		}
	}

	// Directly compared fields get the operator forward and its
	// algebraic inverse backward.
	for _, c := range condition.RefPairComparisons(cond) {
		g.AddEdge(c.Left.Ref, c.Right.Ref, Edge{Kind: EdgeComparison, Op: c.Op})
		g.AddEdge(c.Right.Ref, c.Left.Ref, Edge{Kind: EdgeComparison, Op: c.Op.Invert()})
	}
	return g
}

// GenerateTests builds the graph and derives intervention,
// counterfactual, and confounding cases from it.
func (g *Generator) GenerateTests(_ context.Context, rule *rules.Rule, spec *rules.Specification) ([]rules.TestCase, error) {
	graph := BuildGraph(rule, spec)

	var cases []rules.TestCase
	cases = append(cases, g.interventionCases(rule, spec, graph)...)
	cases = append(cases, g.counterfactualCases(rule, spec, graph)...)
	cases = append(cases, g.confoundingCases(rule, spec, graph)...)
	for i := range cases {
		cases[i].Technique = rules.TechniqueCausal
	}
	g.logger.Debug("causal cases generated", "rule_id", rule.ID, "count", len(cases))
	return cases, nil
}

// interventionCases fix a probe value on each high-centrality node and
// propagate the change to its descendants.
func (g *Generator) interventionCases(rule *rules.Rule, spec *rules.Specification, graph *Graph) []rules.TestCase {
	var cases []rules.TestCase
	for _, node := range graph.TopCentral(interventionNodes) {
		form, field, ok := (condition.Operand{Ref: node}).SplitRef()
		if !ok {
			continue
		}
		for _, value := range interventionValues(spec.FieldType(form, field)) {
			data := make(rules.TestData)
			data.Set(form, field, value)
			g.propagate(data, node, value, graph, spec)
			cases = append(cases, rules.NewTestCase(rule.ID,
				fmt.Sprintf("intervention %s = %v", node, value), true, data))
		}
	}
	return cases
}

func interventionValues(ftype rules.FieldType) []any {
	switch {
	case ftype == rules.FieldNumeric:
		return []any{0.0, 10.0, 100.0}
	case ftype.IsTemporal():
		now := time.Now()
		return []any{
			now.Format(rules.DateLayout),
			now.AddDate(0, 0, -30).Format(rules.DateLayout),
			now.AddDate(0, 0, 30).Format(rules.DateLayout),
		}
	case ftype == rules.FieldCategorical:
		return []any{"Category A", "Category B", "Other"}
	default:
		return []any{"Test Value", ""}
	}
}

// propagate pushes an intervention value to every descendant, choosing
// each derived value from the direct edge's kind when one exists.
func (g *Generator) propagate(data rules.TestData, node string, value any, graph *Graph, spec *rules.Specification) {
	for _, desc := range graph.Descendants(node) {
		form, field, ok := (condition.Operand{Ref: desc}).SplitRef()
		if !ok {
			continue
		}
		ftype := spec.FieldType(form, field)
		edge, direct := graph.Edge(node, desc)
		switch {
		case direct && edge.Kind == EdgeTemporal:
			data.Set(form, field, g.laterDate(value))
		case direct && edge.Kind == EdgeForm:
			if v, isNum := value.(float64); isNum && ftype == rules.FieldNumeric {
				data.Set(form, field, v+g.uniform(-10, 10))
			} else {
				data.Set(form, field, fmt.Sprintf("Related to %v", value))
			}
		case direct && edge.Kind == EdgeComparison:
			data.Set(form, field, g.comparisonValue(edge.Op, ftype, value))
		default:
			data.Set(form, field, g.independentValue(ftype))
		}
	}
}

// comparisonValue picks a value satisfying the edge operator relative to
// the source value.
func (g *Generator) comparisonValue(op condition.Op, ftype rules.FieldType, value any) any {
	if v, isNum := value.(float64); isNum && ftype == rules.FieldNumeric {
		switch op {
		case condition.OpGt:
			return v - g.uniform(1, 10)
		case condition.OpGe:
			return v - g.uniform(0, 10)
		case condition.OpLt:
			return v + g.uniform(1, 10)
		case condition.OpLe:
			return v + g.uniform(0, 10)
		case condition.OpNe:
			if g.intn(2) == 0 {
				return v - 10
			}
			return v + 10
		default:
			return v
		}
	}
	if s, isStr := value.(string); isStr && ftype.IsTemporal() {
		date, err := rules.ParseDate(s)
		if err != nil {
			return time.Now().Format(rules.DateLayout)
		}
		days := 1 + g.intn(30)
		switch op {
		case condition.OpGt, condition.OpGe:
			return date.AddDate(0, 0, -days).Format(rules.DateLayout)
		case condition.OpEq:
			return s
		default:
			return date.AddDate(0, 0, days).Format(rules.DateLayout)
		}
	}
	return g.independentValue(ftype)
}

func (g *Generator) laterDate(value any) string {
	if s, isStr := value.(string); isStr {
		if date, err := rules.ParseDate(s); err == nil {
			return date.AddDate(0, 0, 1+g.intn(30)).Format(rules.DateLayout)
		}
	}
	return time.Now().Format(rules.DateLayout)
}

func (g *Generator) independentValue(ftype rules.FieldType) any {
	switch {
	case ftype == rules.FieldNumeric:
		return g.uniform(0, 100)
	case ftype.IsTemporal():
		return time.Now().Format(rules.DateLayout)
	case ftype == rules.FieldCategorical:
		return "Category A"
	default:
		return "Test Value"
	}
}

// counterfactualCases pair a propagated base assignment with an
// explicitly opposite value on the same node.
func (g *Generator) counterfactualCases(rule *rules.Rule, spec *rules.Specification, graph *Graph) []rules.TestCase {
	var cases []rules.TestCase
	for _, node := range graph.TopCentral(counterfactualNodes) {
		form, field, ok := (condition.Operand{Ref: node}).SplitRef()
		if !ok {
			continue
		}
		ftype := spec.FieldType(form, field)
		base := g.baseValue(ftype)
		data := make(rules.TestData)
		data.Set(form, field, base)
		g.propagate(data, node, base, graph, spec)

		counter := counterfactualValue(ftype, base)
		flipped := data.Clone()
		flipped.Set(form, field, counter)
		cases = append(cases, rules.NewTestCase(rule.ID,
			fmt.Sprintf("counterfactual %s = %v", node, counter), false, flipped))
	}
	return cases
}

func (g *Generator) baseValue(ftype rules.FieldType) any {
	switch {
	case ftype == rules.FieldNumeric:
		return g.uniform(10, 50)
	case ftype.IsTemporal():
		return time.Now().Format(rules.DateLayout)
	case ftype == rules.FieldCategorical:
		return "Category A"
	default:
		return "Base Value"
	}
}

func counterfactualValue(ftype rules.FieldType, base any) any {
	switch {
	case ftype == rules.FieldNumeric:
		if v, isNum := base.(float64); isNum {
			return -v
		}
	case ftype.IsTemporal():
		if s, isStr := base.(string); isStr {
			if date, err := rules.ParseDate(s); err == nil {
				return date.AddDate(0, 0, 180).Format(rules.DateLayout)
			}
		}
		return time.Now().Format(rules.DateLayout)
	case ftype == rules.FieldCategorical:
		if base == "Category A" {
			return "Category B"
		}
		return "Category A"
	}
	return "Counterfactual Value"
}

// confoundingCases exercise multi-path influence: a value on each
// confounder plus independent values on two of its descendants.
func (g *Generator) confoundingCases(rule *rules.Rule, spec *rules.Specification, graph *Graph) []rules.TestCase {
	var cases []rules.TestCase
	for _, confounder := range graph.Confounders() {
		form, field, ok := (condition.Operand{Ref: confounder}).SplitRef()
		if !ok {
			continue
		}
		descendants := graph.Descendants(confounder)
		if len(descendants) < 2 {
			continue
		}
		value := g.baseValue(spec.FieldType(form, field))
		data := make(rules.TestData)
		data.Set(form, field, value)

		for _, desc := range g.sampleTwo(descendants) {
			dform, dfield, ok := (condition.Operand{Ref: desc}).SplitRef()
			if !ok {
				continue
			}
			data.Set(dform, dfield, g.independentValue(spec.FieldType(dform, dfield)))
		}
		cases = append(cases, rules.NewTestCase(rule.ID,
			fmt.Sprintf("confounding %s = %v", confounder, value), true, data))
	}
	return cases
}

// sampleTwo picks two distinct elements at random.
func (g *Generator) sampleTwo(items []string) []string {
	i := g.intn(len(items))
	j := g.intn(len(items) - 1)
	if j >= i {
		j++
	}
	return []string{items[i], items[j]}
}

func (g *Generator) intn(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Intn(n)
}

func (g *Generator) uniform(lo, hi float64) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return lo + g.rng.Float64()*(hi-lo)
}
