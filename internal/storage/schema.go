package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Schema contains the complete DDL for the carcrawl tables.
const Schema = `
-- Vehicle listings: one row per deduplicated listing across all sources
CREATE TABLE IF NOT EXISTS listings (
    id              UUID PRIMARY KEY,
    source_id       TEXT NOT NULL,
    canonical_url   TEXT NOT NULL,
    title           TEXT NOT NULL DEFAULT '',
    price           DOUBLE PRECISION,
    currency        TEXT NOT NULL DEFAULT '',
    year            INTEGER,
    make            TEXT NOT NULL DEFAULT '',
    model           TEXT NOT NULL DEFAULT '',
    trim            TEXT NOT NULL DEFAULT '',
    mileage         INTEGER,
    condition       TEXT NOT NULL DEFAULT '',
    location        TEXT NOT NULL DEFAULT '',
    vin             TEXT NOT NULL DEFAULT '',
    external_id     TEXT NOT NULL DEFAULT '',
    description     TEXT NOT NULL DEFAULT '',
    features        JSONB NOT NULL DEFAULT '[]',
    photo_urls      JSONB NOT NULL DEFAULT '[]',
    quality_score   INTEGER NOT NULL DEFAULT 0,
    dedup_key       TEXT NOT NULL UNIQUE,
    content_hash    TEXT NOT NULL,
    raw_snapshot    TEXT NOT NULL DEFAULT '',
    scraped_at      TIMESTAMPTZ NOT NULL,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_listings_source ON listings(source_id);
CREATE INDEX IF NOT EXISTS idx_listings_make_model ON listings(make, model);
CREATE INDEX IF NOT EXISTS idx_listings_scraped ON listings(scraped_at DESC);

-- Discovered URLs: audit and retry state for every URL found while exploring
CREATE TABLE IF NOT EXISTS discovered_urls (
    id                   UUID PRIMARY KEY,
    source_id            TEXT NOT NULL,
    url                  TEXT NOT NULL,
    url_type             TEXT NOT NULL,
    parent_url           TEXT,
    method               TEXT NOT NULL,
    status               TEXT NOT NULL DEFAULT 'discovered',
    attempts             INTEGER NOT NULL DEFAULT 0,
    consecutive_failures INTEGER NOT NULL DEFAULT 0,
    vehicles_extracted   INTEGER NOT NULL DEFAULT 0,
    discovered_at        TIMESTAMPTZ NOT NULL,
    last_processed_at    TIMESTAMPTZ,
    created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (source_id, url)
);
CREATE INDEX IF NOT EXISTS idx_discovered_urls_status ON discovered_urls(source_id, status);
CREATE INDEX IF NOT EXISTS idx_discovered_urls_discovered ON discovered_urls(discovered_at DESC);

-- Crawl runs: one row per exploration of one source, with final counters
CREATE TABLE IF NOT EXISTS crawl_runs (
    id                  UUID PRIMARY KEY,
    source_id           TEXT NOT NULL,
    seed_url            TEXT NOT NULL,
    status              TEXT NOT NULL DEFAULT 'running',
    started_at          TIMESTAMPTZ NOT NULL,
    completed_at        TIMESTAMPTZ,
    duration_ms         BIGINT,
    pages_fetched       INTEGER NOT NULL DEFAULT 0,
    items_found         INTEGER NOT NULL DEFAULT 0,
    upserts             INTEGER NOT NULL DEFAULT 0,
    duplicates          INTEGER NOT NULL DEFAULT 0,
    errors              INTEGER NOT NULL DEFAULT 0,
    validation_failures INTEGER NOT NULL DEFAULT 0,
    error_message       TEXT
);
CREATE INDEX IF NOT EXISTS idx_crawl_runs_source ON crawl_runs(source_id, started_at DESC);
`

// EnsureSchema creates the carcrawl tables when they do not exist yet.
// Safe to call on every startup.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}
