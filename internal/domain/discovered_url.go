package domain

import (
	"time"
)

// URLStatus is the lifecycle state of a discovered URL.
type URLStatus string

const (
	// URLStatusDiscovered marks a URL that has been found but not yet picked up.
	URLStatusDiscovered URLStatus = "discovered"
	// URLStatusProcessing marks a URL currently being fetched and extracted.
	URLStatusProcessing URLStatus = "processing"
	// URLStatusProcessed marks a URL whose extraction completed.
	URLStatusProcessed URLStatus = "processed"
	// URLStatusFailed marks a URL whose last attempt failed. Failed URLs are
	// retryable until they deprecate.
	URLStatusFailed URLStatus = "failed"
	// URLStatusDeprecated is terminal: the URL is never retried again.
	URLStatusDeprecated URLStatus = "deprecated"
)

// URLType classifies what a discovered URL points at.
type URLType string

const (
	// URLTypeListing points at an individual vehicle listing page.
	URLTypeListing URLType = "listing"
	// URLTypePagination points at the next page of a listing index.
	URLTypePagination URLType = "pagination"
	// URLTypeFilter points at a filtered or faceted index view.
	URLTypeFilter URLType = "filter"
)

// DiscoveryMethod records how a URL entered the system.
type DiscoveryMethod string

const (
	// DiscoveredByPattern means the URL matched the source's listing pattern.
	DiscoveredByPattern DiscoveryMethod = "pattern"
	// DiscoveredByIntelligence means the explore stage nominated the URL.
	DiscoveredByIntelligence DiscoveryMethod = "intelligence"
	// DiscoveredBySitemap means the URL came from a sitemap.
	DiscoveredBySitemap DiscoveryMethod = "sitemap"
	// DiscoveredByFeed means the URL came from an RSS/Atom feed.
	DiscoveredByFeed DiscoveryMethod = "feed"
	// DiscoveredByPagination means the URL is a next-page link.
	DiscoveredByPagination DiscoveryMethod = "pagination"
)

// urlTransitions enumerates the legal status transitions.
// Deprecated has no outgoing edges.
var urlTransitions = map[URLStatus][]URLStatus{
	URLStatusDiscovered: {URLStatusProcessing},
	URLStatusProcessing: {URLStatusProcessed, URLStatusFailed},
	URLStatusFailed:     {URLStatusProcessing, URLStatusDeprecated},
	URLStatusProcessed:  {URLStatusProcessing},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to URLStatus) bool {
	for _, next := range urlTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// DiscoveredURL tracks a URL found during exploration for auditing and retry.
type DiscoveredURL struct {
	ID         string          `db:"id"          json:"id"`
	SourceID   string          `db:"source_id"   json:"source_id"`
	URL        string          `db:"url"         json:"url"`
	Type       URLType         `db:"url_type"    json:"url_type"`
	ParentURL  *string         `db:"parent_url"  json:"parent_url,omitempty"`
	Method     DiscoveryMethod `db:"method"      json:"method"`
	Status     URLStatus       `db:"status"      json:"status"`

	Attempts            int `db:"attempts"             json:"attempts"`
	ConsecutiveFailures int `db:"consecutive_failures" json:"consecutive_failures"`
	VehiclesExtracted   int `db:"vehicles_extracted"   json:"vehicles_extracted"`

	DiscoveredAt    time.Time  `db:"discovered_at"     json:"discovered_at"`
	LastProcessedAt *time.Time `db:"last_processed_at" json:"last_processed_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at"        json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"        json:"updated_at"`
}

// MarkProcessing moves the URL into processing and counts the attempt.
func (d *DiscoveredURL) MarkProcessing(now time.Time) bool {
	if !CanTransition(d.Status, URLStatusProcessing) {
		return false
	}
	d.Status = URLStatusProcessing
	d.Attempts++
	d.UpdatedAt = now
	return true
}

// MarkProcessed records a successful extraction and resets the failure streak.
func (d *DiscoveredURL) MarkProcessed(now time.Time, vehicles int) bool {
	if !CanTransition(d.Status, URLStatusProcessed) {
		return false
	}
	d.Status = URLStatusProcessed
	d.ConsecutiveFailures = 0
	d.VehiclesExtracted += vehicles
	d.LastProcessedAt = &now
	d.UpdatedAt = now
	return true
}

// MarkFailed records a failed attempt. When the consecutive failure streak
// reaches maxConsecutive the URL deprecates instead and is never retried.
func (d *DiscoveredURL) MarkFailed(now time.Time, maxConsecutive int) bool {
	if !CanTransition(d.Status, URLStatusFailed) {
		return false
	}
	d.Status = URLStatusFailed
	d.ConsecutiveFailures++
	d.LastProcessedAt = &now
	d.UpdatedAt = now
	if maxConsecutive > 0 && d.ConsecutiveFailures >= maxConsecutive {
		d.Status = URLStatusDeprecated
	}
	return true
}

// Deprecate forces the terminal state, used for TTL-expired URLs.
func (d *DiscoveredURL) Deprecate(now time.Time) {
	d.Status = URLStatusDeprecated
	d.UpdatedAt = now
}

// Expired reports whether the URL's record outlived its TTL without a
// successful processing.
func (d *DiscoveredURL) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 {
		return false
	}
	ref := d.DiscoveredAt
	if d.LastProcessedAt != nil {
		ref = *d.LastProcessedAt
	}
	return now.Sub(ref) > ttl
}
