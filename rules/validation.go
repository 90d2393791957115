package rules

// FindingKind is a typed code on a validation finding. Rule-set level
// findings surface here rather than as errors; nothing at this layer
// is fatal.
type FindingKind string

const (
	FindingMissingCondition  FindingKind = "missing_condition"
	FindingNotFormalized     FindingKind = "not_formalized"
	FindingParseError        FindingKind = "parsing_error"
	FindingUnsatisfiableRule FindingKind = "unsatisfiable_rule"
	FindingTautology         FindingKind = "tautology"
	FindingRedundant         FindingKind = "redundant_condition"
	FindingContradictory     FindingKind = "contradictory_rules"
	FindingImpliedRule       FindingKind = "implied_rule"
	FindingSolverUnknown     FindingKind = "solver_unknown"
)

// Finding is a single typed error or warning attached to a ValidationResult.
type Finding struct {
	Kind    FindingKind `json:"kind"`
	Message string      `json:"message"`
}

// ValidationResult reports the verification outcome for one rule.
// Any error implies Valid == false; warnings never affect validity.
type ValidationResult struct {
	RuleID   string    `json:"rule_id"`
	Valid    bool      `json:"is_valid"`
	Errors   []Finding `json:"errors,omitempty"`
	Warnings []Finding `json:"warnings,omitempty"`
}

// NewValidationResult returns a valid result for the rule; findings added
// later may flip it.
func NewValidationResult(ruleID string) ValidationResult {
	return ValidationResult{RuleID: ruleID, Valid: true}
}

// AddError records an error finding and marks the result invalid.
func (r *ValidationResult) AddError(kind FindingKind, message string) {
	r.Errors = append(r.Errors, Finding{Kind: kind, Message: message})
	r.Valid = false
}

// AddWarning records a warning finding; validity is unchanged.
func (r *ValidationResult) AddWarning(kind FindingKind, message string) {
	r.Warnings = append(r.Warnings, Finding{Kind: kind, Message: message})
}

// HasError reports whether a finding of the given kind was recorded
// as an error.
func (r *ValidationResult) HasError(kind FindingKind) bool {
	for _, f := range r.Errors {
		if f.Kind == kind {
			return true
		}
	}
	return false
}

// HasWarning reports whether a finding of the given kind was recorded
// as a warning.
func (r *ValidationResult) HasWarning(kind FindingKind) bool {
	for _, f := range r.Warnings {
		if f.Kind == kind {
			return true
		}
	}
	return false
}
