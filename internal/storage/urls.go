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

const urlColumns = `id, source_id, url, url_type, parent_url, method, status,
	       attempts, consecutive_failures, vehicles_extracted,
	       discovered_at, last_processed_at, created_at, updated_at`

// URLRepository handles database operations for discovered URLs.
type URLRepository struct {
	db *sqlx.DB
}

// NewURLRepository creates a new discovered URL repository.
func NewURLRepository(db *sqlx.DB) *URLRepository {
	return &URLRepository{db: db}
}

// CreateOrUpdate records a discovered URL, keeping the earliest discovery when
// the same URL is found again for the same source.
func (r *URLRepository) CreateOrUpdate(ctx context.Context, u *domain.DiscoveredURL) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.DiscoveredAt.IsZero() {
		u.DiscoveredAt = time.Now()
	}
	if u.Status == "" {
		u.Status = domain.URLStatusDiscovered
	}

	query := `
		INSERT INTO discovered_urls (id, source_id, url, url_type, parent_url, method,
		                             status, attempts, consecutive_failures,
		                             vehicles_extracted, discovered_at, last_processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (source_id, url)
		DO UPDATE SET
			parent_url = EXCLUDED.parent_url,
			method = EXCLUDED.method,
			updated_at = NOW()
		RETURNING id, status, created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		u.ID,
		u.SourceID,
		u.URL,
		u.Type,
		u.ParentURL,
		u.Method,
		u.Status,
		u.Attempts,
		u.ConsecutiveFailures,
		u.VehiclesExtracted,
		u.DiscoveredAt,
		u.LastProcessedAt,
	).Scan(&u.ID, &u.Status, &u.CreatedAt, &u.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create or update discovered url: %w", err)
	}

	return nil
}

// GetByID retrieves a discovered URL by its ID.
func (r *URLRepository) GetByID(ctx context.Context, id string) (*domain.DiscoveredURL, error) {
	var u domain.DiscoveredURL
	query := fmt.Sprintf(`SELECT %s FROM discovered_urls WHERE id = $1`, urlColumns)

	err := r.db.GetContext(ctx, &u, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get discovered url: %w", err)
	}

	return &u, nil
}

// GetBySourceAndURL retrieves a discovered URL by its unique (source, url) pair.
func (r *URLRepository) GetBySourceAndURL(ctx context.Context, sourceID, url string) (*domain.DiscoveredURL, error) {
	var u domain.DiscoveredURL
	query := fmt.Sprintf(`SELECT %s FROM discovered_urls WHERE source_id = $1 AND url = $2`, urlColumns)

	err := r.db.GetContext(ctx, &u, query, sourceID, url)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get discovered url: %w", err)
	}

	return &u, nil
}

// ListRetryable retrieves URLs eligible for processing for a source, oldest
// first: fresh discoveries plus earlier failures that have not deprecated.
func (r *URLRepository) ListRetryable(ctx context.Context, sourceID string, limit int) ([]*domain.DiscoveredURL, error) {
	if limit <= 0 {
		limit = 50
	}

	var urls []*domain.DiscoveredURL
	query := fmt.Sprintf(`
		SELECT %s FROM discovered_urls
		WHERE source_id = $1 AND status IN ('discovered', 'failed')
		ORDER BY discovered_at ASC
		LIMIT $2
	`, urlColumns)

	if err := r.db.SelectContext(ctx, &urls, query, sourceID, limit); err != nil {
		return nil, fmt.Errorf("failed to list retryable urls: %w", err)
	}

	if urls == nil {
		urls = []*domain.DiscoveredURL{}
	}

	return urls, nil
}

// UpdateStatus persists a status transition. Illegal transitions are rejected
// with ErrInvalidTransition before any write.
func (r *URLRepository) UpdateStatus(ctx context.Context, id string, to domain.URLStatus) error {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !domain.CanTransition(current.Status, to) {
		return fmt.Errorf("url %s: %s -> %s: %w", id, current.Status, to, ErrInvalidTransition)
	}

	query := `UPDATE discovered_urls SET status = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, to, id)
	if err != nil {
		return fmt.Errorf("failed to update url status: %w", err)
	}
	return requireRows(result, "discovered url", id)
}

// Save writes back the mutable lifecycle fields after an in-memory transition
// (MarkProcessing, MarkProcessed, MarkFailed, Deprecate).
func (r *URLRepository) Save(ctx context.Context, u *domain.DiscoveredURL) error {
	query := `
		UPDATE discovered_urls SET
			status = $1,
			attempts = $2,
			consecutive_failures = $3,
			vehicles_extracted = $4,
			last_processed_at = $5,
			updated_at = NOW()
		WHERE id = $6
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		u.Status,
		u.Attempts,
		u.ConsecutiveFailures,
		u.VehiclesExtracted,
		u.LastProcessedAt,
		u.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to save discovered url: %w", err)
	}
	return requireRows(result, "discovered url", u.ID)
}

// DeprecateExpired moves non-terminal URLs past their TTL into deprecated and
// returns how many rows changed.
func (r *URLRepository) DeprecateExpired(ctx context.Context, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, nil
	}

	query := `
		UPDATE discovered_urls SET status = 'deprecated', updated_at = NOW()
		WHERE status IN ('discovered', 'failed', 'processed')
		  AND COALESCE(last_processed_at, discovered_at) < $1
	`

	result, err := r.db.ExecContext(ctx, query, time.Now().Add(-ttl))
	if err != nil {
		return 0, fmt.Errorf("failed to deprecate expired urls: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

// CountByStatus returns per-status URL counts for a source.
func (r *URLRepository) CountByStatus(ctx context.Context, sourceID string) (map[domain.URLStatus]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM discovered_urls WHERE source_id = $1 GROUP BY status`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to count urls by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.URLStatus]int)
	for rows.Next() {
		var status domain.URLStatus
		var count int
		if scanErr := rows.Scan(&status, &count); scanErr != nil {
			return nil, fmt.Errorf("failed to scan url count: %w", scanErr)
		}
		counts[status] = count
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate url counts: %w", rowsErr)
	}

	return counts, nil
}
