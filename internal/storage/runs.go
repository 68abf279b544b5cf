package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/carcrawl/carcrawl/internal/domain"
)

const runColumns = `id, source_id, seed_url, status, started_at, completed_at,
	       duration_ms, pages_fetched, items_found, upserts, duplicates,
	       errors, validation_failures, error_message`

// RunRepository handles database operations for crawl runs.
type RunRepository struct {
	db *sqlx.DB
}

// NewRunRepository creates a new crawl run repository.
func NewRunRepository(db *sqlx.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a new run record when exploration starts.
func (r *RunRepository) Create(ctx context.Context, run *domain.CrawlRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.Status == "" {
		run.Status = domain.RunStatusRunning
	}

	query := `
		INSERT INTO crawl_runs (id, source_id, seed_url, status, started_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		run.ID,
		run.SourceID,
		run.SeedURL,
		run.Status,
		run.StartedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create crawl run: %w", err)
	}

	return nil
}

// Finalize writes the run's end state and counters. A run can only be
// finalized while still running; a second call returns ErrAlreadyFinalized.
func (r *RunRepository) Finalize(ctx context.Context, run *domain.CrawlRun) error {
	if run.CompletedAt == nil {
		return fmt.Errorf("run %s has no completion time", run.ID)
	}

	query := `
		UPDATE crawl_runs
		SET status = $1,
		    completed_at = $2,
		    duration_ms = $3,
		    pages_fetched = $4,
		    items_found = $5,
		    upserts = $6,
		    duplicates = $7,
		    errors = $8,
		    validation_failures = $9,
		    error_message = $10
		WHERE id = $11 AND completed_at IS NULL
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		run.Status,
		run.CompletedAt,
		run.DurationMs,
		run.PagesFetched,
		run.ItemsFound,
		run.Upserts,
		run.Duplicates,
		run.Errors,
		run.ValidationFailures,
		run.ErrorMessage,
		run.ID,
	)

	if err != nil {
		return fmt.Errorf("failed to finalize crawl run: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		if _, getErr := r.GetByID(ctx, run.ID); getErr != nil {
			return getErr
		}
		return fmt.Errorf("run %s: %w", run.ID, ErrAlreadyFinalized)
	}

	return nil
}

// GetByID retrieves a crawl run by its ID.
func (r *RunRepository) GetByID(ctx context.Context, id string) (*domain.CrawlRun, error) {
	var run domain.CrawlRun
	query := fmt.Sprintf(`SELECT %s FROM crawl_runs WHERE id = $1`, runColumns)

	err := r.db.GetContext(ctx, &run, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get crawl run: %w", err)
	}

	return &run, nil
}

// ListRecent retrieves the most recent runs, optionally filtered by source.
func (r *RunRepository) ListRecent(ctx context.Context, sourceID string, limit int) ([]*domain.CrawlRun, error) {
	if limit <= 0 {
		limit = 20
	}

	var runs []*domain.CrawlRun
	var err error

	if sourceID != "" {
		query := fmt.Sprintf(`
			SELECT %s FROM crawl_runs
			WHERE source_id = $1
			ORDER BY started_at DESC
			LIMIT $2
		`, runColumns)
		err = r.db.SelectContext(ctx, &runs, query, sourceID, limit)
	} else {
		query := fmt.Sprintf(`
			SELECT %s FROM crawl_runs
			ORDER BY started_at DESC
			LIMIT $1
		`, runColumns)
		err = r.db.SelectContext(ctx, &runs, query, limit)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to list crawl runs: %w", err)
	}

	if runs == nil {
		runs = []*domain.CrawlRun{}
	}

	return runs, nil
}

// LastCompleted returns the most recent completed run for a source, or
// ErrNotFound when the source has never finished a run.
func (r *RunRepository) LastCompleted(ctx context.Context, sourceID string) (*domain.CrawlRun, error) {
	var run domain.CrawlRun
	query := fmt.Sprintf(`
		SELECT %s FROM crawl_runs
		WHERE source_id = $1 AND completed_at IS NOT NULL
		ORDER BY completed_at DESC
		LIMIT 1
	`, runColumns)

	err := r.db.GetContext(ctx, &run, query, sourceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get last completed run: %w", err)
	}

	return &run, nil
}
