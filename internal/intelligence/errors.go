package intelligence

import (
	"errors"
	"fmt"
)

// Sentinel errors for the intelligence layer.
var (
	// ErrUnknownProvider is returned for an unrecognized provider name.
	ErrUnknownProvider = errors.New("unknown intelligence provider")
	// ErrMissingAPIKey is returned when a remote provider has no key.
	ErrMissingAPIKey = errors.New("intelligence API key required")
	// ErrEmptyResponse is returned when the provider yields no content.
	ErrEmptyResponse = errors.New("empty intelligence response")
)

// Stage identifies one of the four pipeline stages.
type Stage string

const (
	StageExplore  Stage = "explore"
	StageAnalyze  Stage = "analyze"
	StageExtract  Stage = "extract"
	StageValidate Stage = "validate"
)

// rawPreviewLen bounds how much model output a StageError carries.
const rawPreviewLen = 200

// StageError marks a stage whose model output could not be used. It aborts
// the item's pipeline run; the batch layer decides whether to retry.
type StageError struct {
	Stage Stage
	Raw   string
	Err   error
}

// NewStageError wraps err as a failure of stage, keeping a short preview
// of the raw output for diagnostics.
func NewStageError(stage Stage, raw string, err error) *StageError {
	if len(raw) > rawPreviewLen {
		raw = raw[:rawPreviewLen]
	}
	return &StageError{Stage: stage, Raw: raw, Err: err}
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// IsStageError reports whether err is a stage failure, returning the stage.
func IsStageError(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
