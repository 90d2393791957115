// Package metamorphic generates test cases from operator algebra. A base
// positive/negative pair is perturbed by relations whose expected result
// is provably fixed by the comparison operator, so follow-up labels come
// from the relation table rather than from re-evaluating the rule.
package metamorphic

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

// relation is one provable perturbation for an operator: applying the
// named change to a satisfying left operand yields the given truth value.
type relation struct {
	name     string
	expected bool
}

// relationTable maps each operator to its metamorphic relations. The
// labels hold for any base value satisfying the comparison, which is why
// follow-up tests read their expected result straight from this table.
var relationTable = map[condition.Op][]relation{
	condition.OpGt: {
		{"increase", true},
		{"decrease_within", false},
		{"decrease_beyond", false},
	},
	condition.OpGe: {
		{"increase", true},
		{"decrease_within", true},
		{"decrease_beyond", false},
	},
	condition.OpLt: {
		{"decrease", true},
		{"increase_within", false},
		{"increase_beyond", false},
	},
	condition.OpLe: {
		{"decrease", true},
		{"increase_within", true},
		{"increase_beyond", false},
	},
	condition.OpEq: {
		{"exact_match", true},
		{"slight_change", false},
	},
	condition.OpNe: {
		{"any_change", true},
		{"exact_match", false},
	},
}

// Option configures a Tester.
type Option func(*Tester)

// WithRand sets the random source, letting tests pin a seed.
func WithRand(rng *rand.Rand) Option {
	return func(t *Tester) { t.rng = rng }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tester) { t.logger = logger }
}

// Tester generates metamorphic test cases for edit-check rules. One
// Tester may serve concurrent generation tasks; the mutex serializes
// access to the random source, which is not safe for concurrent use.
type Tester struct {
	mu     sync.Mutex
	rng    *rand.Rand
	logger *slog.Logger
}

// NewTester creates a metamorphic tester.
func NewTester(opts ...Option) *Tester {
	t := &Tester{
		rng:    rand.New(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// GenerateTests produces base and follow-up cases for one rule. The
// context is accepted for interface symmetry; generation is pure
// computation and never blocks.
func (t *Tester) GenerateTests(_ context.Context, rule *rules.Rule, spec *rules.Specification) ([]rules.TestCase, error) {
	cond := rule.EffectiveCondition()
	comparisons := condition.NumericComparisons(cond)

	var cases []rules.TestCase
	for _, base := range t.baseCases(rule, spec, comparisons) {
		cases = append(cases, base)
		cases = append(cases, t.followUps(rule, spec, base, comparisons)...)
	}
	for i := range cases {
		cases[i].Technique = rules.TechniqueMetamorphic
	}
	t.logger.Debug("metamorphic cases generated", "rule_id", rule.ID, "count", len(cases))
	return cases, nil
}

// baseCases builds one positive case satisfying every comparison and one
// negative case violating a single randomly chosen comparison.
func (t *Tester) baseCases(rule *rules.Rule, spec *rules.Specification, comparisons []condition.Comparison) []rules.TestCase {
	var out []rules.TestCase

	positive := make(rules.TestData)
	for _, c := range comparisons {
		t.setValue(positive, spec, c, true)
	}
	if len(positive) > 0 {
		out = append(out, rules.NewTestCase(rule.ID, "base case satisfying every comparison", true, positive))
	}

	if len(comparisons) == 0 {
		return out
	}
	violated := comparisons[t.intn(len(comparisons))]
	negative := make(rules.TestData)
	for _, c := range comparisons {
		t.setValue(negative, spec, c, c.Left.Ref != violated.Left.Ref)
	}
	if len(negative) > 0 {
		out = append(out, rules.NewTestCase(rule.ID,
			fmt.Sprintf("base case violating %s", violated), false, negative))
	}
	return out
}

// setValue assigns a field value that satisfies or violates one
// comparison, typed per the specification.
func (t *Tester) setValue(data rules.TestData, spec *rules.Specification, c condition.Comparison, satisfy bool) {
	form, field, ok := c.Left.SplitRef()
	if !ok {
		return
	}
	switch ftype := spec.FieldType(form, field); {
	case ftype == rules.FieldNumeric:
		if satisfy {
			data.Set(form, field, t.satisfyingNumeric(c.Op, c.Right.Number))
		} else {
			data.Set(form, field, t.violatingNumeric(c.Op, c.Right.Number))
		}
	case ftype.IsTemporal():
		data.Set(form, field, dateValue(c.Op, satisfy))
	case ftype == rules.FieldCategorical:
		values := spec.ValidValues(form, field)
		if len(values) == 0 {
			return
		}
		if satisfy {
			data.Set(form, field, values[t.intn(len(values))])
		} else if other := excluding(values, fmt.Sprint(c.Right)); len(other) > 0 {
			data.Set(form, field, other[t.intn(len(other))])
		}
	default:
		if satisfy {
			data.Set(form, field, "Test Value")
		} else {
			data.Set(form, field, "Invalid Value")
		}
	}
}

func (t *Tester) satisfyingNumeric(op condition.Op, threshold float64) float64 {
	switch op {
	case condition.OpGt:
		return threshold + t.uniform(1, 10)
	case condition.OpGe:
		return threshold + t.uniform(0, 10)
	case condition.OpLt:
		return threshold - t.uniform(1, 10)
	case condition.OpLe:
		return threshold - t.uniform(0, 10)
	case condition.OpNe:
		return threshold + t.pick(-10, 10)
	default:
		return threshold
	}
}

func (t *Tester) violatingNumeric(op condition.Op, threshold float64) float64 {
	switch op {
	case condition.OpGt:
		return threshold - t.uniform(0, 5)
	case condition.OpGe:
		return threshold - t.uniform(0.1, 5)
	case condition.OpLt:
		return threshold + t.uniform(0, 5)
	case condition.OpLe:
		return threshold + t.uniform(0.1, 5)
	case condition.OpEq:
		return threshold + t.pick(-5, 5)
	default:
		return threshold
	}
}

// dateValue ignores the threshold: temporal comparisons anchor on today
// and shift in the direction the operator requires.
func dateValue(op condition.Op, satisfy bool) string {
	now := time.Now()
	days := 0
	switch op {
	case condition.OpGt, condition.OpNe:
		days = 10
	case condition.OpLt:
		days = -10
	}
	if !satisfy {
		switch op {
		case condition.OpGt:
			days = -10
		case condition.OpGe:
			days = -1
		case condition.OpLt:
			days = 10
		case condition.OpLe, condition.OpEq:
			days = 1
		case condition.OpNe:
			days = 0
		}
	}
	return now.AddDate(0, 0, days).Format(rules.DateLayout)
}

// followUps applies every relation in the operator's table to each
// comparison present in the base case.
func (t *Tester) followUps(rule *rules.Rule, spec *rules.Specification, base rules.TestCase, comparisons []condition.Comparison) []rules.TestCase {
	var out []rules.TestCase
	for _, c := range comparisons {
		form, field, ok := c.Left.SplitRef()
		if !ok {
			continue
		}
		baseValue, present := base.TestData.Get(form, field)
		if !present {
			continue
		}
		ftype := spec.FieldType(form, field)
		for _, rel := range relationTable[c.Op] {
			var data rules.TestData
			switch {
			case ftype == rules.FieldNumeric:
				v, isNum := baseValue.(float64)
				if !isNum {
					continue
				}
				data = base.TestData.Clone()
				data.Set(form, field, perturbNumeric(rel.name, v, c.Right.Number))
			case ftype.IsTemporal():
				s, isStr := baseValue.(string)
				if !isStr {
					continue
				}
				baseDate, err := rules.ParseDate(s)
				if err != nil {
					continue
				}
				data = base.TestData.Clone()
				data.Set(form, field, perturbDate(rel.name, baseDate))
			default:
				// Categorical and text fields have no ordered algebra.
				continue
			}
			out = append(out, rules.NewTestCase(rule.ID,
				fmt.Sprintf("%s on %s.%s", rel.name, form, field),
				rel.expected, data))
		}
	}
	return out
}

// perturbNumeric shifts a satisfying base value per the relation. The
// margin to the threshold scales the shift so "within" stays on the
// satisfying side and "beyond" is guaranteed to cross it.
func perturbNumeric(relName string, base, threshold float64) float64 {
	margin := abs(threshold - base)
	switch relName {
	case "increase":
		return base + margin*0.5 + 1
	case "decrease":
		return base - (margin*0.5 + 1)
	case "increase_within":
		return base + margin*0.5
	case "increase_beyond":
		return base + margin*1.5 + 1
	case "decrease_within":
		return base - margin*0.5
	case "decrease_beyond":
		return base - (margin*1.5 + 1)
	case "exact_match":
		return threshold
	case "slight_change":
		return threshold + 0.1
	default:
		return base
	}
}

func perturbDate(relName string, base time.Time) string {
	days := 0
	switch relName {
	case "increase":
		days = 10
	case "decrease":
		days = -10
	case "increase_within":
		days = 3
	case "increase_beyond":
		days = 30
	case "decrease_within":
		days = -3
	case "decrease_beyond":
		days = -30
	case "slight_change":
		days = 1
	}
	return base.AddDate(0, 0, days).Format(rules.DateLayout)
}

func (t *Tester) intn(n int) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rng.Intn(n)
}

func (t *Tester) uniform(lo, hi float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return lo + t.rng.Float64()*(hi-lo)
}

func (t *Tester) pick(a, b float64) float64 {
	if t.intn(2) == 0 {
		return a
	}
	return b
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

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
