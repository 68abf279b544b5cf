package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carcrawl/carcrawl/internal/domain"
)

// MemoryGateway is an in-memory Gateway with the same upsert semantics as the
// PostgreSQL one. Used in tests and for dry-run crawls.
type MemoryGateway struct {
	mu      sync.RWMutex
	rows    map[string]*memoryRow
	created int
	updated int
}

type memoryRow struct {
	listing domain.Listing
	hash    string
}

// NewMemoryGateway creates an empty in-memory gateway.
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{rows: make(map[string]*memoryRow)}
}

// Upsert stores the listing under its dedup key, classifying the write the
// same way the database gateway does.
func (g *MemoryGateway) Upsert(
	ctx context.Context,
	listing *domain.Listing,
	dedupKey string,
) (domain.UpsertOutcome, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if dedupKey == "" {
		return "", domain.NewConfigurationError("dedup key is empty")
	}

	hash := listing.ContentHash()
	now := time.Now()

	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.rows[dedupKey]; ok {
		listing.ID = existing.listing.ID
		if existing.hash == hash {
			return domain.OutcomeDuplicate, nil
		}
		updated := *listing
		updated.CreatedAt = existing.listing.CreatedAt
		updated.UpdatedAt = now
		g.rows[dedupKey] = &memoryRow{listing: updated, hash: hash}
		g.updated++
		return domain.OutcomeUpdated, nil
	}

	if listing.ID == "" {
		listing.ID = uuid.New().String()
	}
	stored := *listing
	stored.CreatedAt = now
	stored.UpdatedAt = now
	g.rows[dedupKey] = &memoryRow{listing: stored, hash: hash}
	g.created++
	return domain.OutcomeCreated, nil
}

// FindByDedupKey retrieves a stored listing, or ErrNotFound.
func (g *MemoryGateway) FindByDedupKey(ctx context.Context, dedupKey string) (*domain.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	row, ok := g.rows[dedupKey]
	if !ok {
		return nil, ErrNotFound
	}
	l := row.listing
	return &l, nil
}

// Len returns the number of distinct listings stored.
func (g *MemoryGateway) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rows)
}

// Counts returns how many upserts created versus updated rows.
func (g *MemoryGateway) Counts() (created, updated int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.created, g.updated
}
