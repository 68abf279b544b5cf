package pipeline

import (
	"time"

	"github.com/carcrawl/carcrawl/internal/domain"
	"github.com/carcrawl/carcrawl/internal/intelligence"
)

// Result is the union of all stage outputs for one item. FailedStage is
// empty on success; on failure it names the stage that aborted the run and
// the later fields are nil.
type Result struct {
	URL         string
	FailedStage intelligence.Stage
	Err         error

	Explore    *intelligence.ExploreResult
	Analyze    *intelligence.AnalyzeResult
	Vehicle    *domain.VehicleFields
	Title      string
	Validation *intelligence.ValidateResult

	Elapsed time.Duration
}

// OK reports whether all four stages completed.
func (r *Result) OK() bool {
	return r.FailedStage == ""
}

// PersistEligible reports whether the item may be written: the validate
// stage accepted it and the quality score clears the gate.
func (r *Result) PersistEligible(threshold int) bool {
	return r.OK() && r.Validation != nil && r.Validation.IsValid &&
		r.Validation.QualityScore >= threshold
}
