package rules

import (
	"fmt"

	"github.com/google/uuid"
)

// Technique identifies which generation strategy produced a test case.
type Technique string

const (
	TechniqueMetamorphic Technique = "metamorphic"
	TechniqueSymbolic    Technique = "symbolic"
	TechniqueAdversarial Technique = "adversarial"
	TechniqueCausal      Technique = "causal"
	TechniqueLLM         Technique = "llm"
)

// IsValid reports whether t names a known technique.
func (t Technique) IsValid() bool {
	switch t {
	case TechniqueMetamorphic, TechniqueSymbolic, TechniqueAdversarial, TechniqueCausal, TechniqueLLM:
		return true
	}
	return false
}

// Techniques lists every generation technique in pipeline order.
func Techniques() []Technique {
	return []Technique{
		TechniqueMetamorphic,
		TechniqueSymbolic,
		TechniqueAdversarial,
		TechniqueCausal,
	}
}

// TestData maps form name to field name to value. Values are float64,
// string (dates use DateLayout), or bool depending on the field type.
// A missing key means the field is intentionally absent from the record.
type TestData map[string]map[string]any

// Set assigns a field value, creating the form map on first use.
func (d TestData) Set(form, field string, value any) {
	m, ok := d[form]
	if !ok {
		m = make(map[string]any)
		d[form] = m
	}
	m[field] = value
}

// Get looks up a field value.
func (d TestData) Get(form, field string) (any, bool) {
	m, ok := d[form]
	if !ok {
		return nil, false
	}
	v, ok := m[field]
	return v, ok
}

// Clone returns a deep copy; follow-up test generation perturbs copies so
// base cases stay untouched.
func (d TestData) Clone() TestData {
	out := make(TestData, len(d))
	for form, fields := range d {
		m := make(map[string]any, len(fields))
		for k, v := range fields {
			m[k] = v
		}
		out[form] = m
	}
	return out
}

// TestCase is a single generated test for a rule.
type TestCase struct {
	ID             string    `json:"id"`
	RuleID         string    `json:"rule_id"`
	Description    string    `json:"description"`
	ExpectedResult bool      `json:"expected_result"`
	TestData       TestData  `json:"test_data"`
	Technique      Technique `json:"technique,omitempty"`
	Positive       bool      `json:"is_positive"`
}

// NewTestCase builds a test case with a fresh ID. Positive mirrors
// ExpectedResult at construction time; the two only diverge for strategies
// that deliberately label a violating record.
func NewTestCase(ruleID, description string, expected bool, data TestData) TestCase {
	return TestCase{
		ID:             uuid.New().String(),
		RuleID:         ruleID,
		Description:    description,
		ExpectedResult: expected,
		TestData:       data,
		Positive:       expected,
	}
}

// ValidateAgainst checks that every test-data path references a field the
// specification declares. Techniques call this before emitting a case so
// no orphan paths leak into the verified suite.
func (t *TestCase) ValidateAgainst(spec *Specification) error {
	for formName, fields := range t.TestData {
		form, ok := spec.Forms[formName]
		if !ok {
			return fmt.Errorf("test %s references unknown form %q", t.ID, formName)
		}
		for fieldName := range fields {
			if form.Field(fieldName) == nil {
				return fmt.Errorf("test %s references unknown field %s.%s", t.ID, formName, fieldName)
			}
		}
	}
	return nil
}
