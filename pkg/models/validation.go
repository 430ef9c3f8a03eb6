package models

// ValidationResult is the outcome of a single validator.
type ValidationResult struct {
	ValidatorName string         `json:"validator_name"`
	Valid         bool           `json:"valid"`
	Errors        []string       `json:"errors"`
	Warnings      []string       `json:"warnings"`
	Suggestions   []string       `json:"suggestions,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// NewValidationResult returns a passing result for the named validator.
func NewValidationResult(name string) *ValidationResult {
	return &ValidationResult{
		ValidatorName: name,
		Valid:         true,
		Errors:        make([]string, 0),
		Warnings:      make([]string, 0),
	}
}

// AddError records an error and marks the result invalid.
func (r *ValidationResult) AddError(message string) {
	r.Errors = append(r.Errors, message)
	r.Valid = false
}

func (r *ValidationResult) AddWarning(message string) {
	r.Warnings = append(r.Warnings, message)
}

func (r *ValidationResult) AddSuggestion(message string) {
	r.Suggestions = append(r.Suggestions, message)
}

// SetMetadata stores a key on the result's metadata, creating the map on first use.
func (r *ValidationResult) SetMetadata(key string, value any) {
	if r.Metadata == nil {
		r.Metadata = make(map[string]any)
	}

	r.Metadata[key] = value
}

// ValidationReport aggregates the results of the whole validator chain.
type ValidationReport struct {
	OverallValid         bool               `json:"overall_valid"`
	ValidationResults    []ValidationResult `json:"validation_results"`
	AgentForgeCompliance bool               `json:"agent_forge_compliance"`
	Suggestions          []string           `json:"suggestions"`
}

// Result returns the result recorded by the named validator.
func (r *ValidationReport) Result(name string) (*ValidationResult, bool) {
	for i := range r.ValidationResults {
		if r.ValidationResults[i].ValidatorName == name {
			return &r.ValidationResults[i], true
		}
	}

	return nil, false
}

// ErrorCount is the number of errors across every validator.
func (r *ValidationReport) ErrorCount() int {
	count := 0
	for _, result := range r.ValidationResults {
		count += len(result.Errors)
	}

	return count
}

// Errors flattens every validator error prefixed with the validator name.
func (r *ValidationReport) Errors() []string {
	errs := make([]string, 0)

	for _, result := range r.ValidationResults {
		for _, e := range result.Errors {
			errs = append(errs, result.ValidatorName+": "+e)
		}
	}

	return errs
}
