package rules

import (
	"encoding/json"
	"fmt"
	"os"
)

// specDocument is the JSON wire shape for a study specification. Field
// types are free-form strings normalized through ParseFieldType.
type specDocument struct {
	Forms []struct {
		Name   string `json:"name"`
		Label  string `json:"label,omitempty"`
		Fields []struct {
			Name        string   `json:"name"`
			Type        string   `json:"type"`
			Label       string   `json:"label,omitempty"`
			Required    bool     `json:"required,omitempty"`
			ValidValues []string `json:"valid_values,omitempty"`
			MinValue    *float64 `json:"min_value,omitempty"`
			MaxValue    *float64 `json:"max_value,omitempty"`
		} `json:"fields"`
	} `json:"forms"`
}

// LoadSpecification reads a study specification from a JSON file.
func LoadSpecification(path string) (*Specification, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading specification: %w", err)
	}
	return ParseSpecificationJSON(data)
}

// ParseSpecificationJSON decodes and validates a specification document.
func ParseSpecificationJSON(data []byte) (*Specification, error) {
	var doc specDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing specification: %w", err)
	}

	spec := NewSpecification()
	for _, f := range doc.Forms {
		form := &Form{Name: f.Name, Label: f.Label}
		for _, fld := range f.Fields {
			form.Fields = append(form.Fields, Field{
				Name:        fld.Name,
				Type:        ParseFieldType(fld.Type),
				Label:       fld.Label,
				Required:    fld.Required,
				ValidValues: fld.ValidValues,
				MinValue:    fld.MinValue,
				MaxValue:    fld.MaxValue,
			})
		}
		if err := spec.AddForm(form); err != nil {
			return nil, err
		}
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

// ruleDocument is the JSON wire shape for a rule list.
type ruleDocument struct {
	Rules []struct {
		ID                  string   `json:"id"`
		Condition           string   `json:"condition"`
		Message             string   `json:"message,omitempty"`
		Severity            string   `json:"severity,omitempty"`
		Forms               []string `json:"forms,omitempty"`
		Fields              []string `json:"fields,omitempty"`
		FormalizedCondition string   `json:"formalized_condition,omitempty"`
	} `json:"rules"`
}

// LoadRules reads a rule list from a JSON file.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules: %w", err)
	}
	return ParseRulesJSON(data)
}

// ParseRulesJSON decodes a rule document, rejecting rules without an ID
// or a condition.
func ParseRulesJSON(data []byte) ([]Rule, error) {
	var doc ruleDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}

	out := make([]Rule, 0, len(doc.Rules))
	for i, r := range doc.Rules {
		if r.ID == "" {
			return nil, fmt.Errorf("rule at index %d has no id", i)
		}
		if r.Condition == "" && r.FormalizedCondition == "" {
			return nil, fmt.Errorf("rule %s has no condition", r.ID)
		}
		out = append(out, Rule{
			ID:                  r.ID,
			Condition:           r.Condition,
			Message:             r.Message,
			Severity:            ParseSeverity(r.Severity),
			Forms:               r.Forms,
			Fields:              r.Fields,
			FormalizedCondition: r.FormalizedCondition,
		})
	}
	return out, nil
}
