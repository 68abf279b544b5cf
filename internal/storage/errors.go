package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyFinalized is returned when finalizing a run twice.
	ErrAlreadyFinalized = errors.New("run already finalized")
	// ErrInvalidTransition is returned for a URL status change the state
	// machine forbids.
	ErrInvalidTransition = errors.New("invalid url status transition")
	// ErrMirrorDisabled is returned when the search mirror is not
	// configured.
	ErrMirrorDisabled = errors.New("search mirror disabled")
)
