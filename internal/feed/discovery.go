package feed

import (
	"context"
	"regexp"
	"time"

	"github.com/carcrawl/carcrawl/internal/domain"
	"github.com/carcrawl/carcrawl/internal/fetcher"
	"github.com/carcrawl/carcrawl/internal/logger"
)

const (
	// defaultMaxSitemapFetches caps how many sitemap documents one discovery
	// pass will fetch, including children of a sitemap index.
	defaultMaxSitemapFetches = 5
	// defaultMaxURLs caps how many candidate URLs one discovery pass returns.
	defaultMaxURLs = 500
)

// Candidate is a listing URL found on a structured discovery surface.
type Candidate struct {
	URL    string
	Method domain.DiscoveryMethod
}

// Discoverer pulls candidate listing URLs from a source's sitemap and feed.
// It complements the HTML pagination walk: sites with fresh sitemaps or
// inventory feeds surface new listings here before they appear on index
// pages.
type Discoverer struct {
	fetcher fetcher.Fetcher
	logger  logger.Interface

	maxSitemapFetches int
	maxURLs           int
}

// NewDiscoverer creates a Discoverer.
func NewDiscoverer(f fetcher.Fetcher, log logger.Interface) *Discoverer {
	return &Discoverer{
		fetcher:           f,
		logger:            log,
		maxSitemapFetches: defaultMaxSitemapFetches,
		maxURLs:           defaultMaxURLs,
	}
}

// Candidates returns listing URLs from the source's sitemap and feed,
// filtered by the source's listing pattern, deduplicated, in discovery
// order. maxAge drops sitemap entries with an older lastmod. Fetch and
// parse failures degrade to an empty contribution from that surface.
func (d *Discoverer) Candidates(
	ctx context.Context,
	source *domain.Source,
	maxAge time.Duration,
) ([]Candidate, error) {
	if source.SitemapURL == "" && source.FeedURL == "" {
		return nil, nil
	}

	listingRe, err := regexp.Compile(source.ListingURLPattern)
	if err != nil {
		return nil, domain.NewConfigurationError(
			"source " + source.ID + " listing pattern does not compile: " + err.Error())
	}

	seen := make(map[string]struct{})
	var out []Candidate
	add := func(rawURL string, method domain.DiscoveryMethod) {
		if len(out) >= d.maxURLs {
			return
		}
		if !listingRe.MatchString(rawURL) {
			return
		}
		if _, dup := seen[rawURL]; dup {
			return
		}
		seen[rawURL] = struct{}{}
		out = append(out, Candidate{URL: rawURL, Method: method})
	}

	if source.SitemapURL != "" {
		for _, entry := range d.sitemapEntries(ctx, source, maxAge) {
			add(entry.URL, domain.DiscoveredBySitemap)
		}
	}

	if source.FeedURL != "" {
		for _, item := range d.feedItems(ctx, source) {
			add(item.URL, domain.DiscoveredByFeed)
		}
	}

	return out, nil
}

// sitemapEntries fetches the source's sitemap, following one level of
// sitemap index children up to the fetch cap.
func (d *Discoverer) sitemapEntries(
	ctx context.Context,
	source *domain.Source,
	maxAge time.Duration,
) []SitemapEntry {
	queue := []string{source.SitemapURL}
	fetches := 0
	var entries []SitemapEntry

	for len(queue) > 0 && fetches < d.maxSitemapFetches {
		if ctx.Err() != nil {
			return entries
		}
		sitemapURL := queue[0]
		queue = queue[1:]
		fetches++

		page, err := d.fetcher.Fetch(ctx, sitemapURL)
		if err != nil || !page.Success() {
			d.logger.Warn("Sitemap fetch failed",
				"source", source.ID,
				"url", sitemapURL,
				"error", err,
			)
			continue
		}

		parsed, err := ParseSitemap(page.Body, maxAge, time.Now())
		if err != nil {
			d.logger.Warn("Sitemap did not parse",
				"source", source.ID,
				"url", sitemapURL,
				"error", err,
			)
			continue
		}

		if parsed.IsIndex() {
			queue = append(queue, parsed.Children...)
			continue
		}
		entries = append(entries, parsed.Entries...)
	}

	return entries
}

func (d *Discoverer) feedItems(ctx context.Context, source *domain.Source) []FeedItem {
	page, err := d.fetcher.Fetch(ctx, source.FeedURL)
	if err != nil || !page.Success() {
		d.logger.Warn("Feed fetch failed",
			"source", source.ID,
			"url", source.FeedURL,
			"error", err,
		)
		return nil
	}

	items, err := ParseFeed(page.Body)
	if err != nil {
		d.logger.Warn("Feed did not parse",
			"source", source.ID,
			"url", source.FeedURL,
			"error", err,
		)
		return nil
	}
	return items
}
