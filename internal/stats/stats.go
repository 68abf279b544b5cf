// Package stats tracks per-run counters and process-level telemetry.
package stats

import (
	"sync"
	"time"

	"github.com/carcrawl/carcrawl/internal/domain"
)

// RunStats holds one run's exact counters. Created at run start, owned by
// that run alone, and folded into the CrawlRun record at finalization.
// Counting is exact, never sampled.
type RunStats struct {
	mu sync.Mutex

	pagesFetched       int
	itemsFound         int
	upserts            int
	duplicates         int
	errors             int
	validationFailures int

	startedAt time.Time
}

// NewRunStats starts a counter set for one run.
func NewRunStats() *RunStats {
	return &RunStats{startedAt: time.Now()}
}

// RecordPage counts a fetched page.
func (s *RunStats) RecordPage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pagesFetched++
}

// RecordFound counts a discovered candidate item.
func (s *RunStats) RecordFound() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.itemsFound++
}

// RecordUpsert counts a persisted listing, created or updated.
func (s *RunStats) RecordUpsert() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
}

// RecordDuplicate counts an unchanged listing that was skipped.
func (s *RunStats) RecordDuplicate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.duplicates++
}

// RecordError counts a fetch or stage failure.
func (s *RunStats) RecordError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors++
}

// RecordValidationFailure counts an item rejected by validation or the
// quality gate.
func (s *RunStats) RecordValidationFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validationFailures++
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	PagesFetched       int           `json:"pages_fetched"`
	ItemsFound         int           `json:"items_found"`
	Upserts            int           `json:"upserts"`
	Duplicates         int           `json:"duplicates"`
	Errors             int           `json:"errors"`
	ValidationFailures int           `json:"validation_failures"`
	Elapsed            time.Duration `json:"elapsed"`
}

// Snapshot returns the current counter values.
func (s *RunStats) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		PagesFetched:       s.pagesFetched,
		ItemsFound:         s.itemsFound,
		Upserts:            s.upserts,
		Duplicates:         s.duplicates,
		Errors:             s.errors,
		ValidationFailures: s.validationFailures,
		Elapsed:            time.Since(s.startedAt),
	}
}

// ApplyTo copies the counters onto a run record for finalization.
func (s *RunStats) ApplyTo(run *domain.CrawlRun) {
	snap := s.Snapshot()
	run.PagesFetched = snap.PagesFetched
	run.ItemsFound = snap.ItemsFound
	run.Upserts = snap.Upserts
	run.Duplicates = snap.Duplicates
	run.Errors = snap.Errors
	run.ValidationFailures = snap.ValidationFailures
}
