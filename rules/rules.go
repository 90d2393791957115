// Package rules defines the core data model for edit-check rule validation:
// rules, study specifications, generated test cases, and validation results.
// Values of these types are immutable inputs to the verification and
// test-generation packages; only the parsing stage constructs them.
package rules

// Severity classifies how a firing edit check should be reported.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// ParseSeverity maps a free-form severity string to a Severity,
// defaulting to SeverityError for unknown values.
func ParseSeverity(s string) Severity {
	switch Severity(s) {
	case SeverityWarning:
		return SeverityWarning
	case SeverityInfo:
		return SeverityInfo
	default:
		return SeverityError
	}
}

// Rule is a single edit-check rule over case-report-form data.
//
// Condition holds the free-text constraint as authored. FormalizedCondition,
// when present, is a logical expression over Form.Field references using the
// comparison operators = != < <= > >=, the connectives AND OR NOT, and
// IF…THEN…ELSE. Rules without a formalized condition skip SMT-based
// verification and symbolic test generation; the remaining techniques fall
// back to the free-text condition where it is parseable.
type Rule struct {
	ID                  string   `json:"id"`
	Condition           string   `json:"condition"`
	Message             string   `json:"message,omitempty"`
	Severity            Severity `json:"severity,omitempty"`
	Forms               []string `json:"forms,omitempty"`
	Fields              []string `json:"fields,omitempty"`
	FormalizedCondition string   `json:"formalized_condition,omitempty"`
}

// EffectiveCondition returns the formalized condition when available,
// otherwise the free-text condition.
func (r *Rule) EffectiveCondition() string {
	if r.FormalizedCondition != "" {
		return r.FormalizedCondition
	}
	return r.Condition
}

// HasFormalizedCondition reports whether SMT-based techniques apply.
func (r *Rule) HasFormalizedCondition() bool {
	return r.FormalizedCondition != ""
}
