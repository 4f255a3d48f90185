package model

// ValidationError reports missing or malformed request fields. The message
// is safe to show to the caller.
type ValidationError struct {
	Fields  []string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []string{field}, Message: message}
}
