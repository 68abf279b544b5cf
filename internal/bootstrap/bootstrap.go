// Package bootstrap assembles the crawl pipeline from configuration.
//
// Assembly follows these phases:
//   - Phase 1: Database - Connect to PostgreSQL, ensure the schema, create repositories
//   - Phase 2: Gateway - Build the listing gateway, mirrored into Elasticsearch when enabled
//   - Phase 3: Cache - Pick the page cache backend, Redis when enabled, in-memory otherwise
//   - Phase 4: Intelligence - Create the content-intelligence client for the configured provider
//   - Phase 5: Fetchers - Build the static and browser-rendering fetchers
//   - Phase 6: Services - Wire the pipeline, crawler, run recorder, registry, and scheduler
//
// Commands that need only a slice of the pipeline call the individual
// Setup functions; NewApp runs every phase.
package bootstrap
