package domain

import "errors"

// ConfigurationError marks missing or invalid source configuration. It is
// the only error class that propagates out of a batch; item-level failures
// are counted and skipped instead of aborting sibling work.
type ConfigurationError struct {
	Reason string
}

// NewConfigurationError creates a configuration error with the given reason.
func NewConfigurationError(reason string) *ConfigurationError {
	return &ConfigurationError{Reason: reason}
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// IsConfigurationError reports whether the error chain contains a
// configuration error.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
