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

// Gateway is the persistence boundary for vehicle listings. Upsert is
// idempotent: submitting the same listing twice yields duplicate the second
// time, never a double write.
type Gateway interface {
	Upsert(ctx context.Context, listing *domain.Listing, dedupKey string) (domain.UpsertOutcome, error)
	FindByDedupKey(ctx context.Context, dedupKey string) (*domain.Listing, error)
}

// listingRow flattens a listing and its vehicle fields into the column layout
// of the listings table.
type listingRow struct {
	ID           string             `db:"id"`
	SourceID     string             `db:"source_id"`
	CanonicalURL string             `db:"canonical_url"`
	Title        string             `db:"title"`
	Price        *float64           `db:"price"`
	Currency     string             `db:"currency"`
	Year         *int               `db:"year"`
	Make         string             `db:"make"`
	Model        string             `db:"model"`
	Trim         string             `db:"trim"`
	Mileage      *int               `db:"mileage"`
	Condition    string             `db:"condition"`
	Location     string             `db:"location"`
	VIN          string             `db:"vin"`
	ExternalID   string             `db:"external_id"`
	Description  string             `db:"description"`
	Features     domain.StringSlice `db:"features"`
	PhotoURLs    domain.StringSlice `db:"photo_urls"`
	QualityScore int                `db:"quality_score"`
	DedupKey     string             `db:"dedup_key"`
	ContentHash  string             `db:"content_hash"`
	RawSnapshot  string             `db:"raw_snapshot"`
	ScrapedAt    time.Time          `db:"scraped_at"`
	CreatedAt    time.Time          `db:"created_at"`
	UpdatedAt    time.Time          `db:"updated_at"`
}

func rowFromListing(l *domain.Listing, dedupKey, contentHash string) *listingRow {
	return &listingRow{
		ID:           l.ID,
		SourceID:     l.SourceID,
		CanonicalURL: l.CanonicalURL,
		Title:        l.Title,
		Price:        l.Vehicle.Price,
		Currency:     l.Vehicle.Currency,
		Year:         l.Vehicle.Year,
		Make:         l.Vehicle.Make,
		Model:        l.Vehicle.Model,
		Trim:         l.Vehicle.Trim,
		Mileage:      l.Vehicle.Mileage,
		Condition:    l.Vehicle.Condition,
		Location:     l.Vehicle.Location,
		VIN:          l.Vehicle.VIN,
		ExternalID:   l.Vehicle.ExternalID,
		Description:  l.Vehicle.Description,
		Features:     l.Vehicle.Features,
		PhotoURLs:    l.Vehicle.PhotoURLs,
		QualityScore: l.QualityScore,
		DedupKey:     dedupKey,
		ContentHash:  contentHash,
		RawSnapshot:  l.RawSnapshot,
		ScrapedAt:    l.ScrapedAt,
	}
}

func (r *listingRow) toListing() *domain.Listing {
	return &domain.Listing{
		ID:           r.ID,
		SourceID:     r.SourceID,
		CanonicalURL: r.CanonicalURL,
		Title:        r.Title,
		Vehicle: domain.VehicleFields{
			Price:       r.Price,
			Currency:    r.Currency,
			Year:        r.Year,
			Make:        r.Make,
			Model:       r.Model,
			Trim:        r.Trim,
			Mileage:     r.Mileage,
			Condition:   r.Condition,
			Location:    r.Location,
			VIN:         r.VIN,
			ExternalID:  r.ExternalID,
			Description: r.Description,
			Features:    r.Features,
			PhotoURLs:   r.PhotoURLs,
		},
		QualityScore: r.QualityScore,
		ScrapedAt:    r.ScrapedAt,
		RawSnapshot:  r.RawSnapshot,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

const listingColumns = `id, source_id, canonical_url, title, price, currency, year,
	       make, model, trim, mileage, condition, location, vin, external_id,
	       description, features, photo_urls, quality_score, dedup_key,
	       content_hash, raw_snapshot, scraped_at, created_at, updated_at`

// PostgresGateway persists listings in the listings table.
type PostgresGateway struct {
	db *sqlx.DB
}

// NewPostgresGateway creates a new listing gateway.
func NewPostgresGateway(db *sqlx.DB) *PostgresGateway {
	return &PostgresGateway{db: db}
}

// Upsert writes the listing under its dedup key and classifies the write.
// An unchanged listing is detected by content hash before any write happens,
// so retries of the same payload always come back as duplicate.
func (g *PostgresGateway) Upsert(
	ctx context.Context,
	listing *domain.Listing,
	dedupKey string,
) (domain.UpsertOutcome, error) {
	if dedupKey == "" {
		return "", fmt.Errorf("upsert listing: %w", domain.NewConfigurationError("dedup key is empty"))
	}

	hash := listing.ContentHash()

	var existing struct {
		ID          string `db:"id"`
		ContentHash string `db:"content_hash"`
	}
	err := g.db.GetContext(ctx, &existing,
		`SELECT id, content_hash FROM listings WHERE dedup_key = $1`, dedupKey)
	switch {
	case err == nil:
		if existing.ContentHash == hash {
			listing.ID = existing.ID
			return domain.OutcomeDuplicate, nil
		}
		if updateErr := g.update(ctx, listing, existing.ID, hash); updateErr != nil {
			return "", updateErr
		}
		return domain.OutcomeUpdated, nil
	case errors.Is(err, sql.ErrNoRows):
		if insertErr := g.insert(ctx, listing, dedupKey, hash); insertErr != nil {
			return "", insertErr
		}
		return domain.OutcomeCreated, nil
	default:
		return "", fmt.Errorf("failed to look up listing by dedup key: %w", err)
	}
}

func (g *PostgresGateway) insert(ctx context.Context, listing *domain.Listing, dedupKey, hash string) error {
	if listing.ID == "" {
		listing.ID = uuid.New().String()
	}
	row := rowFromListing(listing, dedupKey, hash)

	query := `
		INSERT INTO listings (id, source_id, canonical_url, title, price, currency, year,
		                      make, model, trim, mileage, condition, location, vin,
		                      external_id, description, features, photo_urls,
		                      quality_score, dedup_key, content_hash, raw_snapshot, scraped_at)
		VALUES (:id, :source_id, :canonical_url, :title, :price, :currency, :year,
		        :make, :model, :trim, :mileage, :condition, :location, :vin,
		        :external_id, :description, :features, :photo_urls,
		        :quality_score, :dedup_key, :content_hash, :raw_snapshot, :scraped_at)
		ON CONFLICT (dedup_key) DO UPDATE SET
			title = EXCLUDED.title,
			price = EXCLUDED.price,
			currency = EXCLUDED.currency,
			year = EXCLUDED.year,
			make = EXCLUDED.make,
			model = EXCLUDED.model,
			trim = EXCLUDED.trim,
			mileage = EXCLUDED.mileage,
			condition = EXCLUDED.condition,
			location = EXCLUDED.location,
			vin = EXCLUDED.vin,
			external_id = EXCLUDED.external_id,
			description = EXCLUDED.description,
			features = EXCLUDED.features,
			photo_urls = EXCLUDED.photo_urls,
			quality_score = EXCLUDED.quality_score,
			content_hash = EXCLUDED.content_hash,
			raw_snapshot = EXCLUDED.raw_snapshot,
			scraped_at = EXCLUDED.scraped_at,
			updated_at = NOW()
	`

	if _, err := g.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to insert listing: %w", err)
	}
	return nil
}

func (g *PostgresGateway) update(ctx context.Context, listing *domain.Listing, id, hash string) error {
	listing.ID = id
	row := rowFromListing(listing, "", hash)

	query := `
		UPDATE listings SET
			title = :title,
			price = :price,
			currency = :currency,
			year = :year,
			make = :make,
			model = :model,
			trim = :trim,
			mileage = :mileage,
			condition = :condition,
			location = :location,
			vin = :vin,
			external_id = :external_id,
			description = :description,
			features = :features,
			photo_urls = :photo_urls,
			quality_score = :quality_score,
			content_hash = :content_hash,
			raw_snapshot = :raw_snapshot,
			scraped_at = :scraped_at,
			updated_at = NOW()
		WHERE id = :id
	`

	result, err := g.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return fmt.Errorf("failed to update listing: %w", err)
	}
	return requireRows(result, "listing", id)
}

// FindByDedupKey retrieves a listing by its dedup key.
func (g *PostgresGateway) FindByDedupKey(ctx context.Context, dedupKey string) (*domain.Listing, error) {
	var row listingRow
	query := fmt.Sprintf(`SELECT %s FROM listings WHERE dedup_key = $1`, listingColumns)

	err := g.db.GetContext(ctx, &row, query, dedupKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get listing by dedup key: %w", err)
	}

	return row.toListing(), nil
}

// ListBySource retrieves listings for one source, newest first.
func (g *PostgresGateway) ListBySource(ctx context.Context, sourceID string, limit int) ([]*domain.Listing, error) {
	if limit <= 0 {
		limit = 50
	}

	var rows []*listingRow
	query := fmt.Sprintf(`
		SELECT %s FROM listings
		WHERE source_id = $1
		ORDER BY scraped_at DESC
		LIMIT $2
	`, listingColumns)

	if err := g.db.SelectContext(ctx, &rows, query, sourceID, limit); err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}

	listings := make([]*domain.Listing, 0, len(rows))
	for _, r := range rows {
		listings = append(listings, r.toListing())
	}
	return listings, nil
}

// CountBySource returns the number of listings stored for a source.
func (g *PostgresGateway) CountBySource(ctx context.Context, sourceID string) (int, error) {
	var count int
	err := g.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM listings WHERE source_id = $1`, sourceID)
	if err != nil {
		return 0, fmt.Errorf("failed to count listings: %w", err)
	}
	return count, nil
}
