package models

// Issue is a single error or warning raised by a validator
type Issue struct {
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

// ValidationResult is the outcome of one validator run against one response
type ValidationResult struct {
	Valid    bool           `json:"valid"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details"`
	Errors   []Issue        `json:"errors"`
	Warnings []Issue        `json:"warnings"`
}

// NewValidationResult returns an empty result with the given validity
func NewValidationResult(valid bool, message string) ValidationResult {
	return ValidationResult{
		Valid:    valid,
		Message:  message,
		Details:  map[string]any{},
		Errors:   []Issue{},
		Warnings: []Issue{},
	}
}

// AddError records an error and marks the result invalid
func (r *ValidationResult) AddError(message string, details map[string]any) {
	if details == nil {
		details = map[string]any{}
	}
	r.Errors = append(r.Errors, Issue{Message: message, Details: details})
	r.Valid = false
}

// AddWarning records a warning. Warnings never change validity.
func (r *ValidationResult) AddWarning(message string, details map[string]any) {
	if details == nil {
		details = map[string]any{}
	}
	r.Warnings = append(r.Warnings, Issue{Message: message, Details: details})
}

// HasErrors reports whether the result failed
func (r ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0 || !r.Valid
}

// HasWarnings reports whether any warning was recorded
func (r ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}
