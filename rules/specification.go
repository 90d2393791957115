package rules

import (
	"fmt"
	"strings"
	"time"
)

// FieldType is the semantic type of a form field.
type FieldType string

const (
	FieldNumeric     FieldType = "numeric"
	FieldDate        FieldType = "date"
	FieldDateTime    FieldType = "datetime"
	FieldTime        FieldType = "time"
	FieldCategorical FieldType = "categorical"
	FieldBoolean     FieldType = "boolean"
	FieldText        FieldType = "text"
)

// ParseFieldType normalizes the type vocabulary found in study
// specifications (EDC exports are inconsistent about naming) to a FieldType.
// Unknown types map to FieldText.
func ParseFieldType(s string) FieldType {
	switch strings.ToLower(s) {
	case "numeric", "number", "integer", "float", "double", "decimal":
		return FieldNumeric
	case "date":
		return FieldDate
	case "datetime", "timestamp":
		return FieldDateTime
	case "time":
		return FieldTime
	case "categorical", "category", "enum", "codelist":
		return FieldCategorical
	case "boolean", "bool", "logical", "yes/no":
		return FieldBoolean
	default:
		return FieldText
	}
}

// IsTemporal reports whether the type is date-like (encoded as days or
// seconds since epoch by the solver-facing packages).
func (t FieldType) IsTemporal() bool {
	return t == FieldDate || t == FieldDateTime || t == FieldTime
}

// Field describes a single field on a case-report form.
type Field struct {
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	Label       string    `json:"label,omitempty"`
	Required    bool      `json:"required,omitempty"`
	ValidValues []string  `json:"valid_values,omitempty"`
	MinValue    *float64  `json:"min_value,omitempty"`
	MaxValue    *float64  `json:"max_value,omitempty"`
}

// Form is a named, ordered collection of fields.
type Form struct {
	Name   string  `json:"name"`
	Label  string  `json:"label,omitempty"`
	Fields []Field `json:"fields"`
}

// Field returns the named field, or nil if the form does not declare it.
func (f *Form) Field(name string) *Field {
	for i := range f.Fields {
		if f.Fields[i].Name == name {
			return &f.Fields[i]
		}
	}
	return nil
}

// Specification is a study specification: a set of forms keyed by name.
// Form names are unique within a specification and field names are unique
// within a form; AddForm and Validate enforce this.
type Specification struct {
	Forms map[string]*Form `json:"forms"`
}

// NewSpecification returns an empty specification.
func NewSpecification() *Specification {
	return &Specification{Forms: make(map[string]*Form)}
}

// AddForm registers a form, rejecting duplicate form names.
func (s *Specification) AddForm(form *Form) error {
	if form == nil || form.Name == "" {
		return fmt.Errorf("form name is required")
	}
	if _, ok := s.Forms[form.Name]; ok {
		return fmt.Errorf("duplicate form %q", form.Name)
	}
	if s.Forms == nil {
		s.Forms = make(map[string]*Form)
	}
	s.Forms[form.Name] = form
	return nil
}

// Field resolves a form/field pair, returning nil if either is unknown.
func (s *Specification) Field(formName, fieldName string) *Field {
	if s == nil {
		return nil
	}
	form, ok := s.Forms[formName]
	if !ok {
		return nil
	}
	return form.Field(fieldName)
}

// FieldType returns the semantic type of a field, defaulting to FieldText
// for fields the specification does not declare. Every generation technique
// uses this lookup so unknown fields degrade uniformly.
func (s *Specification) FieldType(formName, fieldName string) FieldType {
	if f := s.Field(formName, fieldName); f != nil {
		return f.Type
	}
	return FieldText
}

// ValidValues returns the declared value set for a categorical field,
// or nil when none is declared.
func (s *Specification) ValidValues(formName, fieldName string) []string {
	if f := s.Field(formName, fieldName); f != nil {
		return f.ValidValues
	}
	return nil
}

// Validate checks the structural invariants: non-empty form names and
// field names unique within each form.
func (s *Specification) Validate() error {
	for name, form := range s.Forms {
		if name != form.Name {
			return fmt.Errorf("form key %q does not match form name %q", name, form.Name)
		}
		seen := make(map[string]bool, len(form.Fields))
		for _, field := range form.Fields {
			if field.Name == "" {
				return fmt.Errorf("form %q has a field with no name", name)
			}
			if seen[field.Name] {
				return fmt.Errorf("form %q declares field %q twice", name, field.Name)
			}
			seen[field.Name] = true
		}
	}
	return nil
}

// DateLayout is the wire format for date values in test data.
const DateLayout = "2006-01-02"

// ParseDate parses a test-data date value.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}
