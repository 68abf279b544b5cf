package crawler_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carcrawl/carcrawl/internal/cache"
	"github.com/carcrawl/carcrawl/internal/crawler"
	"github.com/carcrawl/carcrawl/internal/domain"
	"github.com/carcrawl/carcrawl/internal/fetcher"
	"github.com/carcrawl/carcrawl/internal/intelligence"
	"github.com/carcrawl/carcrawl/internal/logger"
	"github.com/carcrawl/carcrawl/internal/pipeline"
	"github.com/carcrawl/carcrawl/internal/storage"
	storagemocks "github.com/carcrawl/carcrawl/testutils/mocks/storage"
)

const (
	exploreOK  = `{"siteSummary":"inventory","confidence":0.9,"candidates":[],"paginationUrls":[]}`
	analyzeOK  = `{"method":"css","confidence":0.8,"selectors":{"price":".price"}}`
	validateOK = `{"isValid":true,"completeness":0.9,"precision":0.95,"consistency":0.9,"qualityScore":88,"issues":[],"likelyDuplicate":false}`
	validateNo = `{"isValid":true,"completeness":0.4,"precision":0.5,"consistency":0.4,"qualityScore":40,"issues":["sparse"],"likelyDuplicate":false}`
)

func extractFor(n int) string {
	return fmt.Sprintf(
		`{"make":"Honda","model":"Civic","year":2019,"price":"$%d,900","mileage":"%d km","title":"Civic %d"}`,
		10+n, 30000+n, n)
}

// inventorySite serves a three-page inventory. Page 1 links two cars and an
// admin URL, page 2 one car, page 3 one car and no next link.
func inventorySite(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/inventory", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "", "1":
			fmt.Fprint(w, `<html><body>
				<a href="/inventory/car-1">Car 1</a>
				<a href="/inventory/car-2">Car 2</a>
				<a href="/inventory/car-1">Car 1 again</a>
				<a href="/admin/car-secret">hidden</a>
				<a href="/inventory?page=2" rel="next">Next</a>
			</body></html>`)
		case "2":
			fmt.Fprint(w, `<html><body>
				<a href="/inventory/car-3">Car 3</a>
				<a href="/inventory?page=3">More</a>
			</body></html>`)
		case "3":
			fmt.Fprint(w, `<html><body>
				<a href="/inventory/car-4">Car 4</a>
			</body></html>`)
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("/inventory/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body><h1>Listing %s</h1></body></html>`, r.URL.Path)
	})
	mux.HandleFunc("/admin/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testSource(baseURL string) *domain.Source {
	return &domain.Source{
		ID:                "dealer-1",
		Name:              "Test Dealer",
		SeedURLs:          domain.StringSlice{baseURL + "/inventory"},
		AllowPatterns:     domain.StringSlice{`/inventory/`},
		DenyPatterns:      domain.StringSlice{`/admin/`},
		ListingURLPattern: `/inventory/car-`,
		DedupKey:          domain.DedupByCanonicalURL,
		Frequency:         domain.FrequencyDaily,
		Enabled:           true,
	}
}

// scriptedStub queues n successful item extractions, with per-item validate
// payloads when supplied.
func scriptedStub(n int, validates ...string) *intelligence.Stub {
	stub := intelligence.NewStub()
	for i := 0; i < n; i++ {
		stub.Script("explore_page", exploreOK)
		stub.Script("analyze_page", analyzeOK)
		stub.Script("extract_vehicle", extractFor(i+1))
		if i < len(validates) {
			stub.Script("validate_vehicle", validates[i])
		} else {
			stub.Script("validate_vehicle", validateOK)
		}
	}
	return stub
}

func newCrawler(
	t *testing.T,
	stub *intelligence.Stub,
	gateway storage.Gateway,
	cfg crawler.Config,
	opts ...crawler.Option,
) *crawler.SourceCrawler {
	t.Helper()

	static := fetcher.NewStatic(fetcher.Config{RequestTimeout: 5 * time.Second}, logger.NewNoOp())

	clientCfg := intelligence.Config{Provider: intelligence.ProviderStub, RateLimit: 1000, RateBurst: 1000}
	intel := intelligence.NewClientWithProvider(clientCfg, stub, logger.NewNoOp())
	pipe := pipeline.New(intel, pipeline.Config{}, logger.NewNoOp())

	cfg.RateMinDelay = time.Millisecond
	cfg.RateMaxDelay = 2 * time.Millisecond
	return crawler.New(static, pipe, gateway, cfg, logger.NewNoOp(), opts...)
}

func TestRunCrawlsAllPagesAndPersists(t *testing.T) {
	srv := inventorySite(t)
	gateway := storage.NewMemoryGateway()
	c := newCrawler(t, scriptedStub(4), gateway, crawler.Config{})

	snap, err := c.Run(context.Background(), testSource(srv.URL))
	require.NoError(t, err)

	// Three index pages, four candidates (deny-matched and repeated links
	// excluded), all persisted as new rows.
	assert.Equal(t, 3, snap.PagesFetched)
	assert.Equal(t, 4, snap.ItemsFound)
	assert.Equal(t, 4, snap.Upserts)
	assert.Equal(t, 0, snap.Duplicates)
	assert.Equal(t, 0, snap.Errors)
	assert.Equal(t, 0, snap.ValidationFailures)
	assert.Equal(t, 4, gateway.Len())
}

func TestRunSecondPassCountsDuplicates(t *testing.T) {
	srv := inventorySite(t)
	gateway := storage.NewMemoryGateway()

	c := newCrawler(t, scriptedStub(4), gateway, crawler.Config{})
	_, err := c.Run(context.Background(), testSource(srv.URL))
	require.NoError(t, err)

	// Same site, same extractions: every item is an unchanged duplicate.
	c2 := newCrawler(t, scriptedStub(4), gateway, crawler.Config{})
	snap, err := c2.Run(context.Background(), testSource(srv.URL))
	require.NoError(t, err)

	assert.Equal(t, 4, snap.ItemsFound)
	assert.Equal(t, 0, snap.Upserts)
	assert.Equal(t, 4, snap.Duplicates)
	assert.Equal(t, 4, gateway.Len())
}

func TestRunQualityGateSkipsLowScore(t *testing.T) {
	srv := inventorySite(t)
	gateway := storage.NewMemoryGateway()

	// Fourth item scores below the default threshold.
	stub := scriptedStub(4, validateOK, validateOK, validateOK, validateNo)
	c := newCrawler(t, stub, gateway, crawler.Config{})

	snap, err := c.Run(context.Background(), testSource(srv.URL))
	require.NoError(t, err)

	assert.Equal(t, 4, snap.ItemsFound)
	assert.Equal(t, 3, snap.Upserts)
	assert.Equal(t, 1, snap.ValidationFailures)
	assert.Equal(t, 0, snap.Errors)
	assert.Equal(t, 3, gateway.Len())
}

func TestRunQualityGateNeverTouchesGateway(t *testing.T) {
	srv := inventorySite(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	// No EXPECT calls: any gateway access fails the test. Every item scores
	// below the threshold, so persistence must never be attempted.
	gateway := storagemocks.NewMockGateway(ctrl)
	stub := scriptedStub(4, validateNo, validateNo, validateNo, validateNo)
	c := newCrawler(t, stub, gateway, crawler.Config{})

	snap, err := c.Run(context.Background(), testSource(srv.URL))
	require.NoError(t, err)

	assert.Equal(t, 4, snap.ItemsFound)
	assert.Equal(t, 0, snap.Upserts)
	assert.Equal(t, 4, snap.ValidationFailures)
}

func TestRunItemCapStopsProcessing(t *testing.T) {
	srv := inventorySite(t)
	gateway := storage.NewMemoryGateway()

	cfg := crawler.Config{Limits: crawler.Limits{MaxItems: 2, MaxPages: 10}}
	c := newCrawler(t, scriptedStub(2), gateway, cfg)

	snap, err := c.Run(context.Background(), testSource(srv.URL))
	require.NoError(t, err)

	assert.Equal(t, 2, snap.ItemsFound)
	assert.Equal(t, 2, snap.Upserts)
	assert.Equal(t, 2, gateway.Len())
}

func TestRunSeedFetchFailureAbortsSeedOnly(t *testing.T) {
	srv := inventorySite(t)
	gateway := storage.NewMemoryGateway()

	source := testSource(srv.URL)
	source.SeedURLs = domain.StringSlice{
		srv.URL + "/missing-index",
		srv.URL + "/inventory",
	}

	c := newCrawler(t, scriptedStub(4), gateway, crawler.Config{})
	snap, err := c.Run(context.Background(), source)
	require.NoError(t, err)

	// First seed 404s and is abandoned; the second seed still runs fully.
	assert.Equal(t, 1, snap.Errors)
	assert.Equal(t, 3, snap.PagesFetched)
	assert.Equal(t, 4, snap.Upserts)
}

func TestRunPageCacheSkipsUnchangedPages(t *testing.T) {
	srv := inventorySite(t)
	gateway := storage.NewMemoryGateway()
	pages := cache.NewMemory(128)
	t.Cleanup(func() { pages.Close() })

	c := newCrawler(t, scriptedStub(4), gateway, crawler.Config{}, crawler.WithPageCache(pages))
	_, err := c.Run(context.Background(), testSource(srv.URL))
	require.NoError(t, err)

	stub := scriptedStub(4)
	c2 := newCrawler(t, stub, gateway, crawler.Config{}, crawler.WithPageCache(pages))
	snap, err := c2.Run(context.Background(), testSource(srv.URL))
	require.NoError(t, err)

	// Unchanged index pages still paginate but extract nothing.
	assert.Equal(t, 3, snap.PagesFetched)
	assert.Equal(t, 0, snap.ItemsFound)
	assert.Empty(t, stub.Calls())
}

func TestRunConfigurationErrors(t *testing.T) {
	gateway := storage.NewMemoryGateway()
	c := newCrawler(t, intelligence.NewStub(), gateway, crawler.Config{})

	tests := []struct {
		name   string
		mutate func(*domain.Source)
	}{
		{"no seeds", func(s *domain.Source) { s.SeedURLs = nil }},
		{"no listing pattern", func(s *domain.Source) { s.ListingURLPattern = "" }},
		{"bad listing pattern", func(s *domain.Source) { s.ListingURLPattern = "([" }},
		{"bad deny pattern", func(s *domain.Source) { s.DenyPatterns = domain.StringSlice{"(["} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := testSource("http://cars.example.com")
			tt.mutate(source)

			_, err := c.Run(context.Background(), source)
			require.Error(t, err)
			assert.True(t, domain.IsConfigurationError(err))
		})
	}
}

func TestRunRecordsDiscoveredURLs(t *testing.T) {
	srv := inventorySite(t)
	gateway := storage.NewMemoryGateway()
	rec := &recordingTrail{}

	c := newCrawler(t, scriptedStub(4), gateway, crawler.Config{}, crawler.WithURLRecorder(rec))
	_, err := c.Run(context.Background(), testSource(srv.URL))
	require.NoError(t, err)

	// Four listings plus two pagination links.
	assert.Equal(t, int64(6), rec.created.Load())
	assert.Equal(t, int64(4), rec.processed.Load())
}

// recordingTrail counts audit writes without a database.
type recordingTrail struct {
	created   atomic.Int64
	processed atomic.Int64
}

func (r *recordingTrail) CreateOrUpdate(_ context.Context, u *domain.DiscoveredURL) error {
	u.ID = fmt.Sprintf("url-%d", r.created.Add(1))
	u.Status = domain.URLStatusDiscovered
	return nil
}

func (r *recordingTrail) Save(_ context.Context, u *domain.DiscoveredURL) error {
	if u.Status == domain.URLStatusProcessed {
		r.processed.Add(1)
	}
	return nil
}

// countingFetcher wraps a fetcher and counts how often it is used.
type countingFetcher struct {
	inner fetcher.Fetcher
	calls atomic.Int64
}

func (f *countingFetcher) Fetch(ctx context.Context, url string) (*fetcher.Page, error) {
	f.calls.Add(1)
	return f.inner.Fetch(ctx, url)
}

func TestRunUsesDynamicFetcherForRenderJSSources(t *testing.T) {
	srv := inventorySite(t)
	gateway := storage.NewMemoryGateway()

	inner := fetcher.NewStatic(fetcher.Config{RequestTimeout: 5 * time.Second}, logger.NewNoOp())
	static := &countingFetcher{inner: inner}
	dynamic := &countingFetcher{inner: inner}

	clientCfg := intelligence.Config{Provider: intelligence.ProviderStub, RateLimit: 1000, RateBurst: 1000}
	intel := intelligence.NewClientWithProvider(clientCfg, scriptedStub(4), logger.NewNoOp())
	pipe := pipeline.New(intel, pipeline.Config{}, logger.NewNoOp())

	cfg := crawler.Config{RateMinDelay: time.Millisecond, RateMaxDelay: 2 * time.Millisecond}
	c := crawler.New(static, pipe, gateway, cfg, logger.NewNoOp(), crawler.WithDynamicFetcher(dynamic))

	src := testSource(srv.URL)
	src.RenderJS = true

	_, err := c.Run(context.Background(), src)
	require.NoError(t, err)

	assert.Zero(t, static.calls.Load())
	assert.Positive(t, dynamic.calls.Load())

	// Without the flag the static fetcher serves the whole run.
	src2 := testSource(srv.URL)
	_, err = c.Run(context.Background(), src2)
	require.NoError(t, err)
	assert.Positive(t, static.calls.Load())
}
