// Package crawler walks a source's paginated inventory, feeding each
// candidate listing page through the extraction pipeline and into storage.
package crawler

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"regexp"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/carcrawl/carcrawl/internal/cache"
	"github.com/carcrawl/carcrawl/internal/domain"
	"github.com/carcrawl/carcrawl/internal/feed"
	"github.com/carcrawl/carcrawl/internal/fetcher"
	"github.com/carcrawl/carcrawl/internal/logger"
	"github.com/carcrawl/carcrawl/internal/pipeline"
	"github.com/carcrawl/carcrawl/internal/ratelimit"
	"github.com/carcrawl/carcrawl/internal/stats"
	"github.com/carcrawl/carcrawl/internal/storage"
	"github.com/carcrawl/carcrawl/internal/urlpolicy"
)

// URLRecorder persists the audit trail of discovered URLs. Satisfied by
// storage.URLRepository. A nil recorder disables the trail.
type URLRecorder interface {
	CreateOrUpdate(ctx context.Context, u *domain.DiscoveredURL) error
	Save(ctx context.Context, u *domain.DiscoveredURL) error
}

// Discoverer supplies listing candidates from outside the pagination loop,
// the source's sitemap and feed. Satisfied by feed.Discoverer.
type Discoverer interface {
	Candidates(ctx context.Context, source *domain.Source, maxAge time.Duration) ([]feed.Candidate, error)
}

// SourceCrawler runs the per-source pagination loop. Pages are strictly
// sequential within one run because next-page discovery depends on the
// current page's content; parallelism happens across sources, not inside
// one.
type SourceCrawler struct {
	fetcher   fetcher.Fetcher
	dynamic   fetcher.Fetcher
	pipeline  *pipeline.Pipeline
	gateway   storage.Gateway
	urls      URLRecorder
	pages     cache.Cache
	telemetry *stats.Telemetry
	discovery Discoverer
	config    Config
	logger    logger.Interface
}

// Option configures a SourceCrawler.
type Option func(*SourceCrawler)

// WithURLRecorder enables the discovered URL audit trail.
func WithURLRecorder(r URLRecorder) Option {
	return func(c *SourceCrawler) { c.urls = r }
}

// WithPageCache enables the unchanged-page short-circuit.
func WithPageCache(pc cache.Cache) Option {
	return func(c *SourceCrawler) { c.pages = pc }
}

// WithTelemetry wires process-level metrics.
func WithTelemetry(t *stats.Telemetry) Option {
	return func(c *SourceCrawler) { c.telemetry = t }
}

// WithFeedDiscovery ingests listing candidates from the source's sitemap
// and feed before pagination starts.
func WithFeedDiscovery(d Discoverer) Option {
	return func(c *SourceCrawler) { c.discovery = d }
}

// WithDynamicFetcher sets the browser-rendering fetcher used for sources
// flagged render_js. Sources without the flag keep the static fetcher.
func WithDynamicFetcher(f fetcher.Fetcher) Option {
	return func(c *SourceCrawler) { c.dynamic = f }
}

// New creates a SourceCrawler.
func New(
	f fetcher.Fetcher,
	p *pipeline.Pipeline,
	g storage.Gateway,
	cfg Config,
	log logger.Interface,
	opts ...Option,
) *SourceCrawler {
	c := &SourceCrawler{
		fetcher:  f,
		pipeline: p,
		gateway:  g,
		config:   cfg.WithDefaults(),
		logger:   log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// runState carries one run's shared budget and compiled source artifacts.
// Counters live in the run's own RunStats, never shared across runs.
type runState struct {
	source    *domain.Source
	fetch     fetcher.Fetcher
	policy    *urlpolicy.Policy
	listingRe *regexp.Regexp
	limiter   *ratelimit.Limiter
	limits    Limits
	stats     *stats.RunStats

	// seen holds every candidate URL already charged against the item
	// budget this run, so sitemap, feed, and pattern discovery never
	// process the same listing twice.
	seen map[string]struct{}

	pages int
	items int
}

// Run explores every seed URL of the source under one shared page and item
// budget and returns the run's exact counters. Fetch failures are counted
// and abort only the seed they occurred on; the error return is reserved
// for configuration problems.
func (c *SourceCrawler) Run(ctx context.Context, source *domain.Source) (stats.Snapshot, error) {
	st, err := c.newRunState(source)
	if err != nil {
		return stats.Snapshot{}, err
	}

	c.logger.Info("Crawl run starting",
		"source", source.ID,
		"seeds", len(source.SeedURLs),
		"max_pages", st.limits.MaxPages,
		"max_items", st.limits.MaxItems,
	)

	c.crawlDiscovered(ctx, st)

	for _, seed := range source.SeedURLs {
		if ctx.Err() != nil {
			break
		}
		if st.pages >= st.limits.MaxPages || st.items >= st.limits.MaxItems {
			break
		}
		c.crawlSeed(ctx, st, seed)
	}

	snap := st.stats.Snapshot()
	c.logger.Info("Crawl run finished",
		"source", source.ID,
		"pages", snap.PagesFetched,
		"found", snap.ItemsFound,
		"upserts", snap.Upserts,
		"duplicates", snap.Duplicates,
		"errors", snap.Errors,
		"validation_failures", snap.ValidationFailures,
	)
	return snap, nil
}

func (c *SourceCrawler) newRunState(source *domain.Source) (*runState, error) {
	if source.ID == "" {
		return nil, domain.NewConfigurationError("source has no id")
	}
	if len(source.SeedURLs) == 0 {
		return nil, domain.NewConfigurationError("source " + source.ID + " has no seed urls")
	}
	if source.ListingURLPattern == "" {
		return nil, domain.NewConfigurationError("source " + source.ID + " has no listing url pattern")
	}

	listingRe, err := regexp.Compile(source.ListingURLPattern)
	if err != nil {
		return nil, domain.NewConfigurationError(
			"source " + source.ID + " listing pattern does not compile: " + err.Error())
	}

	policy, err := urlpolicy.New(source.AllowPatterns, source.DenyPatterns)
	if err != nil {
		return nil, domain.NewConfigurationError(
			"source " + source.ID + " explore patterns do not compile: " + err.Error())
	}

	limits := Limits{
		MaxPages: source.Exploration.MaxPagesPerRun,
		MaxItems: source.Exploration.MaxNewItemsPerRun,
	}.WithDefaults()
	if c.config.Limits.MaxPages < limits.MaxPages {
		limits.MaxPages = c.config.Limits.MaxPages
	}
	if c.config.Limits.MaxItems < limits.MaxItems {
		limits.MaxItems = c.config.Limits.MaxItems
	}

	fetch := c.fetcher
	if source.RenderJS && c.dynamic != nil {
		fetch = c.dynamic
	}

	return &runState{
		source:    source,
		fetch:     fetch,
		policy:    policy,
		listingRe: listingRe,
		limiter:   ratelimit.New(c.config.RateMinDelay, c.config.RateMaxDelay),
		limits:    limits,
		stats:     stats.NewRunStats(),
		seen:      make(map[string]struct{}),
	}, nil
}

// crawlDiscovered ingests the candidates the source's sitemap and feed
// surface before pagination starts. They share the run's item budget with
// the seed loop and respect the same explore policy.
func (c *SourceCrawler) crawlDiscovered(ctx context.Context, st *runState) {
	if c.discovery == nil {
		return
	}
	if st.source.SitemapURL == "" && st.source.FeedURL == "" {
		return
	}

	candidates, err := c.discovery.Candidates(ctx, st.source, c.config.DiscoveryMaxAge)
	if err != nil {
		st.stats.RecordError()
		c.countError("discovery")
		c.logger.Warn("Sitemap and feed discovery failed",
			"source", st.source.ID,
			"error", err,
		)
		return
	}
	if len(candidates) == 0 {
		return
	}

	c.logger.Info("Out-of-band candidates discovered",
		"source", st.source.ID,
		"count", len(candidates),
	)

	for _, candidate := range candidates {
		if ctx.Err() != nil {
			return
		}
		if st.items >= st.limits.MaxItems {
			return
		}
		if !st.policy.Allowed(candidate.URL) {
			continue
		}
		if _, dup := st.seen[candidate.URL]; dup {
			continue
		}
		st.seen[candidate.URL] = struct{}{}
		st.items++
		st.stats.RecordFound()

		parent := st.source.SitemapURL
		if candidate.Method == domain.DiscoveredByFeed {
			parent = st.source.FeedURL
		}
		rec := c.recordDiscovery(ctx, st, candidate.URL, parent, domain.URLTypeListing, candidate.Method)
		c.processItem(ctx, st, candidate.URL, rec)
	}
}

// crawlSeed walks one seed's pagination chain until a cap, a missing next
// link, or a fetch failure ends it.
func (c *SourceCrawler) crawlSeed(ctx context.Context, st *runState, seedURL string) {
	pageURL := seedURL
	for {
		if ctx.Err() != nil {
			return
		}
		if st.pages >= st.limits.MaxPages || st.items >= st.limits.MaxItems {
			return
		}

		page, err := st.fetch.Fetch(ctx, pageURL)
		if err != nil || !page.Success() {
			st.stats.RecordError()
			c.countError("fetch")
			c.logger.Warn("Index page fetch failed, abandoning seed",
				"source", st.source.ID,
				"url", pageURL,
				"status", pageStatus(page),
				"error", err,
			)
			return
		}
		st.pages++
		st.stats.RecordPage()
		c.countPage(st.source.ID)

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
		if err != nil {
			st.stats.RecordError()
			c.countError("parse")
			c.logger.Warn("Index page did not parse, abandoning seed",
				"source", st.source.ID,
				"url", pageURL,
				"error", err,
			)
			return
		}

		parsed, err := url.Parse(page.FinalURL)
		if err != nil || parsed.Host == "" {
			parsed, err = url.Parse(pageURL)
			if err != nil {
				st.stats.RecordError()
				return
			}
		}

		if c.pageUnchanged(ctx, st.source.ID, pageURL, page.Body) {
			c.logger.Debug("Index page unchanged, skipping item extraction",
				"source", st.source.ID,
				"url", pageURL,
			)
		} else {
			c.processCandidates(ctx, st, doc, parsed)
		}

		current := pageNumber(parsed)
		next := nextPageURL(doc, parsed, current)
		if next == "" {
			return
		}
		c.recordDiscovery(ctx, st, next, pageURL, domain.URLTypePagination, domain.DiscoveredByPagination)
		pageURL = next
	}
}

func (c *SourceCrawler) processCandidates(
	ctx context.Context,
	st *runState,
	doc *goquery.Document,
	pageURL *url.URL,
) {
	for _, candidate := range candidateLinks(doc, pageURL, st.listingRe, st.policy) {
		if ctx.Err() != nil {
			return
		}
		if st.items >= st.limits.MaxItems {
			return
		}
		if _, dup := st.seen[candidate]; dup {
			continue
		}
		st.seen[candidate] = struct{}{}
		st.items++
		st.stats.RecordFound()

		rec := c.recordDiscovery(ctx, st, candidate, pageURL.String(),
			domain.URLTypeListing, domain.DiscoveredByPattern)
		c.processItem(ctx, st, candidate, rec)
	}
}

// processItem fetches one candidate listing page under the rate limiter and
// runs it through the pipeline. Item failures are counted and never abort
// the seed loop.
func (c *SourceCrawler) processItem(
	ctx context.Context,
	st *runState,
	itemURL string,
	rec *domain.DiscoveredURL,
) {
	if err := st.limiter.Wait(ctx); err != nil {
		return
	}

	started := time.Now()
	c.markProcessing(ctx, rec)

	page, err := st.fetch.Fetch(ctx, itemURL)
	if err != nil || !page.Success() {
		st.stats.RecordError()
		c.countError("fetch")
		c.markFailed(ctx, rec)
		c.logger.Warn("Listing page fetch failed",
			"source", st.source.ID,
			"url", itemURL,
			"status", pageStatus(page),
			"error", err,
		)
		return
	}

	res, err := c.pipeline.Run(ctx, itemURL, page.HTML())
	if err != nil {
		// Context cancellation; the run is being torn down.
		return
	}
	if !res.OK() {
		st.stats.RecordError()
		c.countError("stage")
		c.markFailed(ctx, rec)
		c.logger.Warn("Extraction aborted",
			"source", st.source.ID,
			"url", itemURL,
			"stage", string(res.FailedStage),
			"error", res.Err,
		)
		return
	}

	if !res.PersistEligible(c.pipeline.QualityThreshold()) {
		st.stats.RecordValidationFailure()
		c.countListing("skipped")
		c.markProcessed(ctx, rec, 0)
		c.logger.Debug("Listing below quality gate",
			"source", st.source.ID,
			"url", itemURL,
			"quality", res.Validation.QualityScore,
			"valid", res.Validation.IsValid,
		)
		return
	}

	snapshot := ""
	if c.config.KeepSnapshots {
		snapshot = page.HTML()
	}
	listing, err := c.pipeline.Listing(res, st.source.ID, snapshot)
	if err != nil {
		st.stats.RecordValidationFailure()
		c.countListing("invalid")
		c.markFailed(ctx, rec)
		c.logger.Warn("Listing failed schema validation",
			"source", st.source.ID,
			"url", itemURL,
			"error", err,
		)
		return
	}

	outcome, err := c.gateway.Upsert(ctx, listing, listing.DedupKey(st.source.DedupKey))
	if err != nil {
		st.stats.RecordError()
		c.countError("persist")
		c.markFailed(ctx, rec)
		c.logger.Error("Listing upsert failed",
			"source", st.source.ID,
			"url", itemURL,
			"error", err,
		)
		return
	}

	switch outcome {
	case domain.OutcomeCreated, domain.OutcomeUpdated:
		st.stats.RecordUpsert()
	case domain.OutcomeDuplicate:
		st.stats.RecordDuplicate()
	}
	c.countListing(string(outcome))
	c.observeItem(time.Since(started))
	c.markProcessed(ctx, rec, 1)

	c.logger.Debug("Listing persisted",
		"source", st.source.ID,
		"url", itemURL,
		"outcome", string(outcome),
		"quality", listing.QualityScore,
	)
}

// pageUnchanged reports whether the page body hash matches the cached hash
// from a previous run and refreshes the cache entry either way.
func (c *SourceCrawler) pageUnchanged(ctx context.Context, sourceID, pageURL string, body []byte) bool {
	if c.pages == nil {
		return false
	}

	sum := sha256.Sum256(body)
	hash := hex.EncodeToString(sum[:])
	key := cache.Key("page", sourceID, pageURL)

	prev, ok, err := c.pages.Get(ctx, key)
	if err != nil {
		c.logger.Debug("Page cache read failed", "url", pageURL, "error", err)
		return false
	}

	if setErr := c.pages.Set(ctx, key, hash, c.config.PageCacheTTL); setErr != nil {
		c.logger.Debug("Page cache write failed", "url", pageURL, "error", setErr)
	}

	return ok && prev == hash
}

// recordDiscovery writes the URL to the audit trail. Returns nil when the
// trail is disabled or the write fails; processing continues either way.
func (c *SourceCrawler) recordDiscovery(
	ctx context.Context,
	st *runState,
	rawURL, parentURL string,
	urlType domain.URLType,
	method domain.DiscoveryMethod,
) *domain.DiscoveredURL {
	if c.urls == nil {
		return nil
	}

	rec := &domain.DiscoveredURL{
		SourceID:  st.source.ID,
		URL:       rawURL,
		Type:      urlType,
		ParentURL: &parentURL,
		Method:    method,
	}
	if err := c.urls.CreateOrUpdate(ctx, rec); err != nil {
		c.logger.Debug("Discovered URL not recorded", "url", rawURL, "error", err)
		return nil
	}
	return rec
}

func (c *SourceCrawler) markProcessing(ctx context.Context, rec *domain.DiscoveredURL) {
	if rec == nil || c.urls == nil {
		return
	}
	if rec.MarkProcessing(time.Now()) {
		c.saveURL(ctx, rec)
	}
}

func (c *SourceCrawler) markProcessed(ctx context.Context, rec *domain.DiscoveredURL, vehicles int) {
	if rec == nil || c.urls == nil {
		return
	}
	if rec.MarkProcessed(time.Now(), vehicles) {
		c.saveURL(ctx, rec)
	}
}

func (c *SourceCrawler) markFailed(ctx context.Context, rec *domain.DiscoveredURL) {
	if rec == nil || c.urls == nil {
		return
	}
	if rec.MarkFailed(time.Now(), c.config.MaxConsecutiveFailures) {
		c.saveURL(ctx, rec)
	}
}

func (c *SourceCrawler) saveURL(ctx context.Context, rec *domain.DiscoveredURL) {
	if err := c.urls.Save(ctx, rec); err != nil {
		c.logger.Debug("Discovered URL state not saved", "url", rec.URL, "error", err)
	}
}

func (c *SourceCrawler) countPage(sourceID string) {
	if c.telemetry != nil {
		c.telemetry.PagesTotal.WithLabelValues(sourceID).Inc()
	}
}

func (c *SourceCrawler) countListing(outcome string) {
	if c.telemetry != nil {
		c.telemetry.ListingsTotal.WithLabelValues(outcome).Inc()
	}
}

func (c *SourceCrawler) countError(kind string) {
	if c.telemetry != nil {
		c.telemetry.ErrorsTotal.WithLabelValues(kind).Inc()
	}
}

func (c *SourceCrawler) observeItem(d time.Duration) {
	if c.telemetry != nil {
		c.telemetry.ItemDuration.Observe(d.Seconds())
	}
}

func pageStatus(p *fetcher.Page) int {
	if p == nil {
		return 0
	}
	return p.StatusCode
}
