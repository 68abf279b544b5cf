// Package domain provides domain models used across the application.
package domain

import (
	"time"
)

// FrequencyTier controls how often a source is re-explored.
type FrequencyTier string

const (
	// FrequencyHourly re-explores a source when more than one hour has passed.
	FrequencyHourly FrequencyTier = "hourly"
	// FrequencyDaily re-explores a source when more than one day has passed.
	FrequencyDaily FrequencyTier = "daily"
	// FrequencyWeekly re-explores a source when more than one week has passed.
	FrequencyWeekly FrequencyTier = "weekly"
)

// Window returns the re-exploration window for the tier.
// Unknown tiers fall back to the weekly window.
func (f FrequencyTier) Window() time.Duration {
	switch f {
	case FrequencyHourly:
		return time.Hour
	case FrequencyDaily:
		return 24 * time.Hour
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}

// Priority orders tiers for scheduling: hourly runs before daily before weekly.
func (f FrequencyTier) Priority() int {
	switch f {
	case FrequencyHourly:
		return 3
	case FrequencyDaily:
		return 2
	case FrequencyWeekly:
		return 1
	default:
		return 0
	}
}

// DedupKeyKind selects which listing attribute keys deduplication.
type DedupKeyKind string

const (
	// DedupByCanonicalURL keys listings by their canonical URL.
	DedupByCanonicalURL DedupKeyKind = "canonical_url"
	// DedupByVIN keys listings by vehicle identification number.
	DedupByVIN DedupKeyKind = "vin"
	// DedupByExternalID keys listings by the site's own listing identifier.
	DedupByExternalID DedupKeyKind = "external_id"
)

// ExplorationConfig bounds a single exploration run of a source.
type ExplorationConfig struct {
	MaxDepth             int `json:"max_depth"             mapstructure:"max_depth"`
	MaxURLs              int `json:"max_urls"              mapstructure:"max_urls"`
	MaxPagesPerRun       int `json:"max_pages_per_run"     mapstructure:"max_pages_per_run"`
	MaxNewItemsPerRun    int `json:"max_new_items_per_run" mapstructure:"max_new_items_per_run"`
	QualityThreshold     int `json:"quality_threshold"     mapstructure:"quality_threshold"`
	OpportunityThreshold int `json:"opportunity_threshold" mapstructure:"opportunity_threshold"`
}

// Source is a configured dealership or marketplace site.
// Sources are configured externally; the crawl core mutates only
// LastExploredAt, and only monotonically forward.
type Source struct {
	// Identity
	ID   string `db:"id"   json:"id"   mapstructure:"id"`
	Name string `db:"name" json:"name" mapstructure:"name"`

	// Discovery
	SeedURLs          StringSlice `db:"seed_urls"           json:"seed_urls"            mapstructure:"seed_urls"`
	AllowPatterns     StringSlice `db:"allow_patterns"      json:"allow_patterns"       mapstructure:"allow_patterns"`
	DenyPatterns      StringSlice `db:"deny_patterns"       json:"deny_patterns"        mapstructure:"deny_patterns"`
	ListingURLPattern string      `db:"listing_url_pattern" json:"listing_url_pattern"  mapstructure:"listing_url_pattern"`
	SitemapURL        string      `db:"sitemap_url"         json:"sitemap_url,omitempty" mapstructure:"sitemap_url"`
	FeedURL           string      `db:"feed_url"            json:"feed_url,omitempty"    mapstructure:"feed_url"`

	// Extraction and persistence
	DedupKey    DedupKeyKind      `db:"dedup_key"   json:"dedup_key"   mapstructure:"dedup_key"`
	Exploration ExplorationConfig `db:"-"           json:"exploration" mapstructure:"exploration"`
	RenderJS    bool              `db:"render_js"   json:"render_js"   mapstructure:"render_js"`

	// Scheduling
	Frequency      FrequencyTier `db:"frequency"        json:"frequency"        mapstructure:"frequency"`
	ScraperOrder   int           `db:"scraper_order"    json:"scraper_order"    mapstructure:"scraper_order"` // 1..24
	LastExploredAt *time.Time    `db:"last_explored_at" json:"last_explored_at,omitempty" mapstructure:"-"`
	Enabled        bool          `db:"enabled"          json:"enabled"          mapstructure:"enabled"`
}

// NeverExplored reports whether the source has no recorded exploration.
func (s *Source) NeverExplored() bool {
	return s.LastExploredAt == nil
}

// Staleness returns how long ago the source was last explored.
// A never-explored source is treated as infinitely stale.
func (s *Source) Staleness(now time.Time) time.Duration {
	if s.LastExploredAt == nil {
		return time.Duration(1<<62 - 1)
	}
	return now.Sub(*s.LastExploredAt)
}
