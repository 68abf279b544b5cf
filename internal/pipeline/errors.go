package pipeline

import (
	"errors"
	"fmt"
)

// ValidationError marks a listing that failed structural validation after
// all stages completed. The item is skipped and never persisted; it is not
// retried, the page itself is the problem.
type ValidationError struct {
	URL string
	Err error
}

// NewValidationError wraps a validator failure for url.
func NewValidationError(url string, err error) *ValidationError {
	return &ValidationError{URL: url, Err: err}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("listing validation %s: %v", e.URL, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err is a structural validation failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
