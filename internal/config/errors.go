// Package config provides configuration management for the carcrawl service.
package config

import (
	"errors"
	"fmt"
)

// Common configuration errors. Configuration errors are fatal: they
// propagate to the caller and are never retried.
var (
	// ErrInvalidConfig is returned when a configuration value is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConfigLoadFailed is returned when loading the configuration fails.
	ErrConfigLoadFailed = errors.New("failed to load configuration")

	// ErrMissingAPIKey is returned when the selected intelligence provider
	// has no API key configured.
	ErrMissingAPIKey = errors.New("intelligence provider requires an API key")
)

// ValidationError represents an error in configuration validation.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: field %q with value %v: %s", e.Field, e.Value, e.Reason)
}

// LoadError represents an error loading configuration.
type LoadError struct {
	File string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load config from %s: %v", e.File, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
