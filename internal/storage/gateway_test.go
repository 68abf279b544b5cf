package storage_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/carcrawl/carcrawl/internal/domain"
	"github.com/carcrawl/carcrawl/internal/storage"
)

func newGateway(t *testing.T) (*storage.PostgresGateway, sqlmock.Sqlmock, func()) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	db := sqlx.NewDb(mockDB, "postgres")
	gateway := storage.NewPostgresGateway(db)

	return gateway, mock, func() { mockDB.Close() }
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func sampleListing() *domain.Listing {
	price := 18500.0
	year := 2019
	mileage := 42000

	return &domain.Listing{
		SourceID:     "dealer-1",
		CanonicalURL: "https://cars.example.com/inventory/civic-42",
		Title:        "2019 Honda Civic LX",
		Vehicle: domain.VehicleFields{
			Price:   &price,
			Year:    &year,
			Make:    "Honda",
			Model:   "Civic",
			Trim:    "LX",
			Mileage: &mileage,
		},
		QualityScore: 85,
		ScrapedAt:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestPostgresGateway_Upsert_Created(t *testing.T) {
	gateway, mock, cleanup := newGateway(t)
	defer cleanup()

	listing := sampleListing()
	dedupKey := listing.DedupKey(domain.DedupByCanonicalURL)

	mock.ExpectQuery("SELECT id, content_hash FROM listings").
		WithArgs(dedupKey).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO listings").
		WillReturnResult(sqlmock.NewResult(0, 1))

	outcome, err := gateway.Upsert(context.Background(), listing, dedupKey)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if outcome != domain.OutcomeCreated {
		t.Errorf("Upsert() outcome = %q, want %q", outcome, domain.OutcomeCreated)
	}
	if listing.ID == "" {
		t.Error("Upsert() did not assign an ID to the new listing")
	}

	expectationsMet(t, mock)
}

func TestPostgresGateway_Upsert_DuplicateSkipsWrite(t *testing.T) {
	gateway, mock, cleanup := newGateway(t)
	defer cleanup()

	listing := sampleListing()
	dedupKey := listing.DedupKey(domain.DedupByCanonicalURL)

	// Stored hash equals the incoming hash: no INSERT or UPDATE expected.
	mock.ExpectQuery("SELECT id, content_hash FROM listings").
		WithArgs(dedupKey).
		WillReturnRows(sqlmock.NewRows([]string{"id", "content_hash"}).
			AddRow("existing-id", listing.ContentHash()))

	outcome, err := gateway.Upsert(context.Background(), listing, dedupKey)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if outcome != domain.OutcomeDuplicate {
		t.Errorf("Upsert() outcome = %q, want %q", outcome, domain.OutcomeDuplicate)
	}
	if listing.ID != "existing-id" {
		t.Errorf("Upsert() ID = %q, want the existing row's ID", listing.ID)
	}

	expectationsMet(t, mock)
}

func TestPostgresGateway_Upsert_ChangedContentUpdates(t *testing.T) {
	gateway, mock, cleanup := newGateway(t)
	defer cleanup()

	listing := sampleListing()
	dedupKey := listing.DedupKey(domain.DedupByCanonicalURL)

	mock.ExpectQuery("SELECT id, content_hash FROM listings").
		WithArgs(dedupKey).
		WillReturnRows(sqlmock.NewRows([]string{"id", "content_hash"}).
			AddRow("existing-id", "stale-hash"))
	mock.ExpectExec("UPDATE listings").
		WillReturnResult(sqlmock.NewResult(0, 1))

	outcome, err := gateway.Upsert(context.Background(), listing, dedupKey)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if outcome != domain.OutcomeUpdated {
		t.Errorf("Upsert() outcome = %q, want %q", outcome, domain.OutcomeUpdated)
	}
	if listing.ID != "existing-id" {
		t.Errorf("Upsert() ID = %q, want the existing row's ID", listing.ID)
	}

	expectationsMet(t, mock)
}

func TestPostgresGateway_Upsert_EmptyDedupKey(t *testing.T) {
	gateway, mock, cleanup := newGateway(t)
	defer cleanup()

	_, err := gateway.Upsert(context.Background(), sampleListing(), "")
	if !domain.IsConfigurationError(err) {
		t.Fatalf("Upsert() error = %v, want a configuration error", err)
	}

	expectationsMet(t, mock)
}

func TestPostgresGateway_Upsert_LookupFailure(t *testing.T) {
	gateway, mock, cleanup := newGateway(t)
	defer cleanup()

	listing := sampleListing()
	dedupKey := listing.DedupKey(domain.DedupByCanonicalURL)

	mock.ExpectQuery("SELECT id, content_hash FROM listings").
		WithArgs(dedupKey).
		WillReturnError(errors.New("connection reset"))

	if _, err := gateway.Upsert(context.Background(), listing, dedupKey); err == nil {
		t.Fatal("Upsert() expected error, got nil")
	}

	expectationsMet(t, mock)
}

func TestPostgresGateway_FindByDedupKey_NotFound(t *testing.T) {
	gateway, mock, cleanup := newGateway(t)
	defer cleanup()

	mock.ExpectQuery("SELECT (.+) FROM listings WHERE dedup_key").
		WithArgs("url:https://cars.example.com/nope").
		WillReturnError(sql.ErrNoRows)

	_, err := gateway.FindByDedupKey(context.Background(), "url:https://cars.example.com/nope")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("FindByDedupKey() error = %v, want ErrNotFound", err)
	}

	expectationsMet(t, mock)
}

func TestMemoryGateway_UpsertSemantics(t *testing.T) {
	gateway := storage.NewMemoryGateway()
	ctx := context.Background()

	listing := sampleListing()
	dedupKey := listing.DedupKey(domain.DedupByCanonicalURL)

	outcome, err := gateway.Upsert(ctx, listing, dedupKey)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if outcome != domain.OutcomeCreated {
		t.Errorf("first Upsert() outcome = %q, want created", outcome)
	}

	// Identical payload again: duplicate, still one row.
	second := sampleListing()
	outcome, err = gateway.Upsert(ctx, second, dedupKey)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if outcome != domain.OutcomeDuplicate {
		t.Errorf("second Upsert() outcome = %q, want duplicate", outcome)
	}
	if gateway.Len() != 1 {
		t.Errorf("Len() = %d, want 1", gateway.Len())
	}

	// Changed price yields updated.
	third := sampleListing()
	newPrice := 17900.0
	third.Vehicle.Price = &newPrice
	outcome, err = gateway.Upsert(ctx, third, dedupKey)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if outcome != domain.OutcomeUpdated {
		t.Errorf("third Upsert() outcome = %q, want updated", outcome)
	}

	stored, err := gateway.FindByDedupKey(ctx, dedupKey)
	if err != nil {
		t.Fatalf("FindByDedupKey() error = %v", err)
	}
	if stored.Vehicle.Price == nil || *stored.Vehicle.Price != newPrice {
		t.Errorf("stored price = %v, want %v", stored.Vehicle.Price, newPrice)
	}
}
