// Package model provides capability-based model selection for the
// text-generation collaborator. Callers specify what they need done
// (mutation proposals, condition formalization) rather than a model
// name, and the registry resolves the capability to an available
// endpoint with a fallback chain.
package model

// Capability represents a semantic capability for model selection.
type Capability string

const (
	// CapabilityMutation is for proposing adversarial rule mutations.
	CapabilityMutation Capability = "mutation"

	// CapabilityFormalization is for translating free-text edit-check
	// conditions into the formal condition grammar.
	CapabilityFormalization Capability = "formalization"

	// CapabilityReview is for explaining verification findings in prose.
	CapabilityReview Capability = "review"

	// CapabilityFast is for quick responses, simple tasks.
	CapabilityFast Capability = "fast"
)

// TechniqueCapabilities maps generation techniques to their default
// capability. Used when no explicit capability is specified.
var TechniqueCapabilities = map[string]Capability{
	"adversarial": CapabilityMutation,
	"llm":         CapabilityMutation,
	"verify":      CapabilityReview,
}

// CapabilityForTechnique returns the default capability for a technique.
// Returns CapabilityFast as fallback for unknown techniques.
func CapabilityForTechnique(technique string) Capability {
	if cap, ok := TechniqueCapabilities[technique]; ok {
		return cap
	}
	return CapabilityFast
}

// IsValid checks if a capability string is a known capability.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityMutation, CapabilityFormalization, CapabilityReview, CapabilityFast:
		return true
	}
	return false
}

// String returns the string representation of the capability.
func (c Capability) String() string {
	return string(c)
}

// ParseCapability converts a string to a Capability, returning empty for invalid values.
func ParseCapability(s string) Capability {
	cap := Capability(s)
	if cap.IsValid() {
		return cap
	}
	return ""
}
