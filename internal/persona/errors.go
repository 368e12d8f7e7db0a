package persona

import "errors"

var (
	// Validation errors
	ErrMissingID           = errors.New("persona id is required")
	ErrMissingName         = errors.New("persona name is required")
	ErrMissingInstructions = errors.New("persona instructions are required")

	// Loading errors
	ErrInvalidYAML = errors.New("invalid YAML syntax")
)
