package domain

import (
	"time"
)

// RunStatus is the lifecycle state of a crawl run.
type RunStatus string

const (
	// RunStatusRunning marks a run in progress.
	RunStatusRunning RunStatus = "running"
	// RunStatusCompleted marks a run that finished, possibly with item errors.
	RunStatusCompleted RunStatus = "completed"
	// RunStatusFailed marks a run aborted by a configuration error.
	RunStatusFailed RunStatus = "failed"
)

// CrawlRun records one exploration of one source, with its final counters.
// A run is created when exploration starts and finalized exactly once when
// it ends.
type CrawlRun struct {
	ID       string `db:"id"        json:"id"`
	SourceID string `db:"source_id" json:"source_id"`
	SeedURL  string `db:"seed_url"  json:"seed_url"`

	Status RunStatus `db:"status" json:"status"`

	StartedAt   time.Time  `db:"started_at"   json:"started_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	DurationMs  *int64     `db:"duration_ms"  json:"duration_ms,omitempty"`

	// Counters, mirrored from the run's stats at finalization.
	PagesFetched       int `db:"pages_fetched"       json:"pages_fetched"`
	ItemsFound         int `db:"items_found"         json:"items_found"`
	Upserts            int `db:"upserts"             json:"upserts"`
	Duplicates         int `db:"duplicates"          json:"duplicates"`
	Errors             int `db:"errors"              json:"errors"`
	ValidationFailures int `db:"validation_failures" json:"validation_failures"`

	ErrorMessage *string `db:"error_message" json:"error_message,omitempty"`
}

// Finalize stamps the run's end state. Calling it again is a no-op so a run
// is never finalized twice.
func (r *CrawlRun) Finalize(now time.Time, status RunStatus) {
	if r.CompletedAt != nil {
		return
	}
	r.Status = status
	r.CompletedAt = &now
	ms := now.Sub(r.StartedAt).Milliseconds()
	r.DurationMs = &ms
}
