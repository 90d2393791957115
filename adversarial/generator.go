// Package adversarial generates test cases designed to break rules:
// boundary probes, missing values, type confusion, logical inversion,
// and type-specific special values, plus optional mutation proposals
// from an external text-generation collaborator.
package adversarial

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"pgregory.net/rand"

	"github.com/metacogma/edc-rule-validator-sub000/condition"
	"github.com/metacogma/edc-rule-validator-sub000/rules"
)

// Proposal is one mutation scenario suggested by a collaborator.
type Proposal struct {
	Description    string         `json:"description"`
	ExpectedResult bool           `json:"expected_result"`
	TestData       rules.TestData `json:"test_data"`
}

// MutationProposer asks an external collaborator for mutation ideas.
// Implementations must confine failures to the returned error; the
// generator treats any error as "no proposals".
type MutationProposer interface {
	ProposeMutations(ctx context.Context, rule *rules.Rule, spec *rules.Specification) ([]Proposal, error)
}

// Option configures a Generator.
type Option func(*Generator)

// WithProposer attaches the optional collaborator.
func WithProposer(p MutationProposer) Option {
	return func(g *Generator) { g.proposer = p }
}

// WithRand sets the random source, letting tests pin a seed.
func WithRand(rng *rand.Rand) Option {
	return func(g *Generator) { g.rng = rng }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) { g.logger = logger }
}

// Generator produces adversarial test cases for edit-check rules. One
// Generator may serve concurrent generation tasks; the mutex serializes
// access to the random source, which is not safe for concurrent use.
type Generator struct {
	proposer MutationProposer
	mu       sync.Mutex
	rng      *rand.Rand
	logger   *slog.Logger
}

// NewGenerator creates an adversarial generator.
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

func (g *Generator) intn(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Intn(n)
}

// GenerateTests runs every strategy over the rule's field references and
// comparisons. Strategies are independent; the collaborator path is
// last and its failure never affects the others.
func (g *Generator) GenerateTests(ctx context.Context, rule *rules.Rule, spec *rules.Specification) ([]rules.TestCase, error) {
	cond := rule.EffectiveCondition()
	refs := condition.FieldRefs(cond)
	comparisons := condition.Comparisons(cond)

	var cases []rules.TestCase
	cases = append(cases, g.boundaryCases(rule, spec, comparisons)...)
	cases = append(cases, g.missingValueCases(rule, refs)...)
	cases = append(cases, g.typeConfusionCases(rule, spec, refs)...)
	cases = append(cases, g.logicalInversionCases(rule, spec, comparisons)...)
	cases = append(cases, g.specialValueCases(rule, spec, refs)...)
	for i := range cases {
		cases[i].Technique = rules.TechniqueAdversarial
	}

	cases = append(cases, g.proposedCases(ctx, rule, spec)...)

	g.logger.Debug("adversarial cases generated", "rule_id", rule.ID, "count", len(cases))
	return cases, nil
}

// boundaryCases probes each numeric threshold exactly at and just past
// the literal value.
func (g *Generator) boundaryCases(rule *rules.Rule, spec *rules.Specification, comparisons []condition.Comparison) []rules.TestCase {
	const epsilon = 0.001

	var cases []rules.TestCase
	for _, c := range comparisons {
		form, field, ok := c.Left.SplitRef()
		if !ok || !c.Right.IsNumber || spec.FieldType(form, field) != rules.FieldNumeric {
			continue
		}
		value := c.Right.Number

		type probe struct {
			value    float64
			expected bool
		}
		var probes []probe
		switch c.Op {
		case condition.OpGt, condition.OpGe:
			probes = []probe{{value, c.Op == condition.OpGe}, {value - epsilon, false}}
		case condition.OpLt, condition.OpLe:
			probes = []probe{{value, c.Op == condition.OpLe}, {value + epsilon, false}}
		case condition.OpEq:
			probes = []probe{{value - epsilon, false}, {value + epsilon, false}}
		case condition.OpNe:
			probes = []probe{{value, false}}
		}

		for _, p := range probes {
			data := make(rules.TestData)
			data.Set(form, field, p.value)
			cases = append(cases, rules.NewTestCase(rule.ID,
				fmt.Sprintf("boundary value %s.%s = %v", form, field, p.value),
				p.expected, data))
		}
	}
	return cases
}

// missingValueCases omit each referenced field from its form entirely.
func (g *Generator) missingValueCases(rule *rules.Rule, refs []string) []rules.TestCase {
	var cases []rules.TestCase
	for _, ref := range refs {
		form, _, ok := (condition.Operand{Ref: ref}).SplitRef()
		if !ok {
			continue
		}
		data := rules.TestData{form: map[string]any{}}
		cases = append(cases, rules.NewTestCase(rule.ID,
			fmt.Sprintf("missing value for %s", ref), false, data))
	}
	return cases
}

// typeConfusionCases substitute a value of an incompatible type.
func (g *Generator) typeConfusionCases(rule *rules.Rule, spec *rules.Specification, refs []string) []rules.TestCase {
	var cases []rules.TestCase
	for _, ref := range refs {
		form, field, ok := (condition.Operand{Ref: ref}).SplitRef()
		if !ok {
			continue
		}
		var confused any
		switch ftype := spec.FieldType(form, field); {
		case ftype == rules.FieldNumeric:
			confused = "not_a_number"
		case ftype.IsTemporal():
			confused = "not_a_date"
		case ftype == rules.FieldCategorical:
			if len(spec.ValidValues(form, field)) == 0 {
				continue
			}
			confused = "invalid_category"
		default:
			confused = 12345
		}
		data := make(rules.TestData)
		data.Set(form, field, confused)
		cases = append(cases, rules.NewTestCase(rule.ID,
			fmt.Sprintf("type confusion %s = %v", ref, confused), false, data))
	}
	return cases
}

// logicalInversionCases push each comparison one step in the opposite
// direction. Only != has a provable expected result after inversion;
// the rest are left negative for downstream verification.
func (g *Generator) logicalInversionCases(rule *rules.Rule, spec *rules.Specification, comparisons []condition.Comparison) []rules.TestCase {
	var cases []rules.TestCase
	for _, c := range comparisons {
		form, field, ok := c.Left.SplitRef()
		if !ok {
			continue
		}
		ftype := spec.FieldType(form, field)

		var inverted any
		switch {
		case ftype == rules.FieldNumeric && c.Right.IsNumber:
			switch c.Op {
			case condition.OpGt, condition.OpGe:
				inverted = c.Right.Number - 1
			case condition.OpLt, condition.OpLe, condition.OpEq:
				inverted = c.Right.Number + 1
			case condition.OpNe:
				inverted = c.Right.Number
			}
		case ftype == rules.FieldCategorical && !c.Right.IsRef() && !c.Right.IsNumber:
			others := excluding(spec.ValidValues(form, field), c.Right.Text)
			if len(others) == 0 {
				continue
			}
			inverted = others[g.intn(len(others))]
		}
		if inverted == nil {
			continue
		}

		data := make(rules.TestData)
		data.Set(form, field, inverted)
		expected := c.Op == condition.OpNe
		cases = append(cases, rules.NewTestCase(rule.ID,
			fmt.Sprintf("logical inversion %s.%s = %v", form, field, inverted),
			expected, data))
	}
	return cases
}

// specialValueCases inject type-specific edge constants.
func (g *Generator) specialValueCases(rule *rules.Rule, spec *rules.Specification, refs []string) []rules.TestCase {
	var cases []rules.TestCase
	for _, ref := range refs {
		form, field, ok := (condition.Operand{Ref: ref}).SplitRef()
		if !ok {
			continue
		}
		for _, value := range specialValues(spec.FieldType(form, field)) {
			data := make(rules.TestData)
			data.Set(form, field, value)
			cases = append(cases, rules.NewTestCase(rule.ID,
				fmt.Sprintf("special value %s = %v", ref, value), false, data))
		}
	}
	return cases
}

func specialValues(ftype rules.FieldType) []any {
	switch {
	case ftype == rules.FieldNumeric:
		return []any{0.0, -1.0, math.Inf(1), math.Inf(-1), math.NaN()}
	case ftype.IsTemporal():
		return []any{"1900-01-01", "2100-12-31", time.Now().Format(rules.DateLayout)}
	case ftype == rules.FieldCategorical:
		return []any{"", " ", "OTHER", "Unknown"}
	case ftype == rules.FieldBoolean:
		return nil
	default:
		return []any{"", " ", "NULL", "null", "None", "undefined"}
	}
}

// proposedCases asks the collaborator for scenarios. Unavailability or
// malformed output yields zero cases, never an error.
func (g *Generator) proposedCases(ctx context.Context, rule *rules.Rule, spec *rules.Specification) []rules.TestCase {
	if g.proposer == nil {
		return nil
	}
	proposals, err := g.proposer.ProposeMutations(ctx, rule, spec)
	if err != nil {
		g.logger.Warn("mutation proposals unavailable", "rule_id", rule.ID, "error", err)
		return nil
	}
	var cases []rules.TestCase
	for _, p := range proposals {
		if p.Description == "" || p.TestData == nil {
			continue
		}
		tc := rules.NewTestCase(rule.ID, p.Description, p.ExpectedResult, p.TestData)
		tc.Technique = rules.TechniqueLLM
		cases = append(cases, tc)
	}
	return cases
}

func excluding(values []string, skip string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != skip {
			out = append(out, v)
		}
	}
	return out
}
