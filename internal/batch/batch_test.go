package batch_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carcrawl/carcrawl/internal/batch"
	"github.com/carcrawl/carcrawl/internal/domain"
	"github.com/carcrawl/carcrawl/internal/fetcher"
	"github.com/carcrawl/carcrawl/internal/intelligence"
	"github.com/carcrawl/carcrawl/internal/logger"
	"github.com/carcrawl/carcrawl/internal/pipeline"
	"github.com/carcrawl/carcrawl/internal/storage"
)

const (
	exploreOK  = `{"siteSummary":"inventory","confidence":0.9,"candidates":[],"paginationUrls":[]}`
	analyzeOK  = `{"method":"css","confidence":0.8,"selectors":{"price":".price"}}`
	validateOK = `{"isValid":true,"completeness":0.9,"precision":0.95,"consistency":0.9,"qualityScore":88,"issues":[],"likelyDuplicate":false}`
	validateNo = `{"isValid":true,"completeness":0.4,"precision":0.5,"consistency":0.4,"qualityScore":40,"issues":["sparse"],"likelyDuplicate":false}`
	extractOK  = `{"make":"Honda","model":"Civic","year":2019,"price":"$15,900","mileage":"30,000 km","title":"Civic"}`
)

// listingSite serves listing pages and two failure shapes: paths under
// /flaky/ return 500 for their first two hits, /down/ always returns 500.
// The site tracks its peak concurrent request count.
type listingSite struct {
	srv     *httptest.Server
	hits    sync.Map
	current atomic.Int32
	peak    atomic.Int32
}

func newListingSite(t *testing.T) *listingSite {
	t.Helper()
	site := &listingSite{}

	mux := http.NewServeMux()
	mux.HandleFunc("/inventory/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body><h1>Listing %s</h1></body></html>`, r.URL.Path)
	})
	mux.HandleFunc("/flaky/", func(w http.ResponseWriter, r *http.Request) {
		count, _ := site.hits.LoadOrStore(r.URL.Path, new(atomic.Int32))
		if count.(*atomic.Int32).Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, `<html><body><h1>Listing %s</h1></body></html>`, r.URL.Path)
	})
	mux.HandleFunc("/down/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	site.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := site.current.Add(1)
		for {
			peak := site.peak.Load()
			if cur <= peak || site.peak.CompareAndSwap(peak, cur) {
				break
			}
		}
		defer site.current.Add(-1)
		time.Sleep(10 * time.Millisecond)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(site.srv.Close)
	return site
}

func (s *listingSite) url(path string) string { return s.srv.URL + path }

func batchSource() *domain.Source {
	return &domain.Source{
		ID:        "dealer-1",
		Name:      "Test Dealer",
		DedupKey:  domain.DedupByCanonicalURL,
		Frequency: domain.FrequencyDaily,
		Enabled:   true,
	}
}

// scriptedStub queues n successful item extractions, with per-item validate
// payloads when supplied.
func scriptedStub(n int, validates ...string) *intelligence.Stub {
	stub := intelligence.NewStub()
	for i := 0; i < n; i++ {
		stub.Script("explore_page", exploreOK)
		stub.Script("analyze_page", analyzeOK)
		stub.Script("extract_vehicle", extractOK)
		if i < len(validates) {
			stub.Script("validate_vehicle", validates[i])
		} else {
			stub.Script("validate_vehicle", validateOK)
		}
	}
	return stub
}

func newOrchestrator(
	t *testing.T,
	stub *intelligence.Stub,
	gateway storage.Gateway,
	cfg batch.Config,
) *batch.Orchestrator {
	t.Helper()

	static := fetcher.NewStatic(fetcher.Config{RequestTimeout: 5 * time.Second}, logger.NewNoOp())
	clientCfg := intelligence.Config{Provider: intelligence.ProviderStub, RateLimit: 1000, RateBurst: 1000}
	intel := intelligence.NewClientWithProvider(clientCfg, stub, logger.NewNoOp())
	pipe := pipeline.New(intel, pipeline.Config{}, logger.NewNoOp())

	if cfg.RetryBackoff == 0 {
		cfg.RetryBackoff = time.Millisecond
	}
	if cfg.BatchDelay == 0 {
		cfg.BatchDelay = time.Millisecond
	}
	return batch.New(static, pipe, gateway, cfg, logger.NewNoOp())
}

func TestProcessBatchSavesAllItems(t *testing.T) {
	site := newListingSite(t)
	gateway := storage.NewMemoryGateway()
	orch := newOrchestrator(t, scriptedStub(7), gateway, batch.Config{BatchSize: 3})

	urls := make([]string, 7)
	for i := range urls {
		urls[i] = site.url(fmt.Sprintf("/inventory/car-%d", i+1))
	}

	result, err := orch.ProcessBatch(context.Background(), batchSource(), urls)
	require.NoError(t, err)

	assert.Equal(t, 7, result.TotalProcessed)
	assert.Equal(t, 7, result.TotalSaved)
	assert.Equal(t, 0, result.TotalSkipped)
	assert.Equal(t, 0, result.TotalErrors)
	assert.Equal(t, 7, gateway.Len())

	for _, item := range result.Items {
		assert.True(t, item.Success, "item %s", item.URL)
		assert.Equal(t, batch.OutcomeSaved, item.Outcome)
		assert.NotEmpty(t, item.SavedID)
		assert.Equal(t, 88, item.QualityScore)
		assert.Equal(t, 1, item.Attempts)
	}
}

func TestProcessBatchBoundsConcurrency(t *testing.T) {
	site := newListingSite(t)
	gateway := storage.NewMemoryGateway()
	orch := newOrchestrator(t, scriptedStub(6), gateway, batch.Config{BatchSize: 6, Concurrency: 2})

	urls := make([]string, 6)
	for i := range urls {
		urls[i] = site.url(fmt.Sprintf("/inventory/car-%d", i+1))
	}

	result, err := orch.ProcessBatch(context.Background(), batchSource(), urls)
	require.NoError(t, err)

	assert.Equal(t, 6, result.TotalSaved)
	assert.LessOrEqual(t, site.peak.Load(), int32(2), "more in-flight fetches than permits")
}

func TestProcessBatchRetriesFetchFailures(t *testing.T) {
	site := newListingSite(t)
	gateway := storage.NewMemoryGateway()
	orch := newOrchestrator(t, scriptedStub(1), gateway, batch.Config{})

	result, err := orch.ProcessBatch(context.Background(), batchSource(), []string{site.url("/flaky/car-9")})
	require.NoError(t, err)

	require.Len(t, result.Items, 1)
	item := result.Items[0]
	assert.True(t, item.Success)
	assert.Equal(t, batch.OutcomeSaved, item.Outcome)
	assert.Equal(t, 3, item.Attempts)
	assert.Equal(t, 1, gateway.Len())
}

func TestProcessBatchExhaustsRetryBudget(t *testing.T) {
	site := newListingSite(t)
	gateway := storage.NewMemoryGateway()
	orch := newOrchestrator(t, scriptedStub(1), gateway, batch.Config{BatchSize: 1})

	urls := []string{site.url("/down/car-1"), site.url("/inventory/car-2")}
	result, err := orch.ProcessBatch(context.Background(), batchSource(), urls)
	require.NoError(t, err, "item failures must not propagate")

	assert.Equal(t, 2, result.TotalProcessed)
	assert.Equal(t, 1, result.TotalSaved)
	assert.Equal(t, 1, result.TotalErrors)

	down := result.Items[0]
	assert.False(t, down.Success)
	assert.Equal(t, batch.OutcomeError, down.Outcome)
	assert.Equal(t, 3, down.Attempts)
	assert.Contains(t, down.Error, "status 500")

	saved := result.Items[1]
	assert.True(t, saved.Success)
	assert.Equal(t, batch.OutcomeSaved, saved.Outcome)
}

func TestProcessBatchRetriesStageFailures(t *testing.T) {
	site := newListingSite(t)
	gateway := storage.NewMemoryGateway()

	// First attempt aborts at the extract stage; the retry succeeds.
	stub := intelligence.NewStub()
	stub.Script("explore_page", exploreOK, exploreOK)
	stub.Script("analyze_page", analyzeOK, analyzeOK)
	stub.Script("extract_vehicle", `not json`, extractOK)
	stub.Script("validate_vehicle", validateOK)

	orch := newOrchestrator(t, stub, gateway, batch.Config{})
	result, err := orch.ProcessBatch(context.Background(), batchSource(), []string{site.url("/inventory/car-1")})
	require.NoError(t, err)

	item := result.Items[0]
	assert.True(t, item.Success)
	assert.Equal(t, batch.OutcomeSaved, item.Outcome)
	assert.Equal(t, 2, item.Attempts)
	assert.Equal(t, 1, gateway.Len())
}

func TestProcessBatchSkipsBelowThreshold(t *testing.T) {
	site := newListingSite(t)
	gateway := storage.NewMemoryGateway()
	orch := newOrchestrator(t, scriptedStub(1, validateNo), gateway, batch.Config{})

	result, err := orch.ProcessBatch(context.Background(), batchSource(), []string{site.url("/inventory/car-1")})
	require.NoError(t, err)

	item := result.Items[0]
	assert.True(t, item.Success)
	assert.Equal(t, batch.OutcomeSkipped, item.Outcome)
	assert.Equal(t, 40, item.QualityScore)
	assert.Equal(t, "below quality threshold", item.Reason)
	assert.Equal(t, 1, item.Attempts, "skips are terminal, not retried")
	assert.Equal(t, 0, gateway.Len())
	assert.Equal(t, 1, result.TotalSkipped)
}

func TestProcessBatchSkipsDuplicates(t *testing.T) {
	site := newListingSite(t)
	gateway := storage.NewMemoryGateway()
	itemURL := site.url("/inventory/car-1")

	first, err := newOrchestrator(t, scriptedStub(1), gateway, batch.Config{}).
		ProcessBatch(context.Background(), batchSource(), []string{itemURL})
	require.NoError(t, err)
	require.Equal(t, 1, first.TotalSaved)

	second, err := newOrchestrator(t, scriptedStub(1), gateway, batch.Config{}).
		ProcessBatch(context.Background(), batchSource(), []string{itemURL})
	require.NoError(t, err)

	item := second.Items[0]
	assert.True(t, item.Success)
	assert.Equal(t, batch.OutcomeSkipped, item.Outcome)
	assert.Equal(t, "duplicate", item.Reason)
	assert.Equal(t, first.Items[0].SavedID, item.SavedID)
	assert.Equal(t, 1, gateway.Len())
	assert.Equal(t, 1, second.TotalSkipped)
}

func TestProcessBatchConfigurationErrors(t *testing.T) {
	site := newListingSite(t)
	gateway := storage.NewMemoryGateway()
	orch := newOrchestrator(t, scriptedStub(0), gateway, batch.Config{})

	_, err := orch.ProcessBatch(context.Background(), nil, []string{site.url("/inventory/car-1")})
	require.Error(t, err)
	assert.True(t, domain.IsConfigurationError(err))

	_, err = orch.ProcessBatch(context.Background(), &domain.Source{}, []string{site.url("/inventory/car-1")})
	require.Error(t, err)
	assert.True(t, domain.IsConfigurationError(err))

	result, err := orch.ProcessBatch(context.Background(), batchSource(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.TotalProcessed)
	assert.NotNil(t, result.Items)
}

func TestProcessBatchSeparatesBatches(t *testing.T) {
	site := newListingSite(t)
	gateway := storage.NewMemoryGateway()
	orch := newOrchestrator(t, scriptedStub(2), gateway, batch.Config{
		BatchSize:  1,
		BatchDelay: 60 * time.Millisecond,
	})

	urls := []string{site.url("/inventory/car-1"), site.url("/inventory/car-2")}
	result, err := orch.ProcessBatch(context.Background(), batchSource(), urls)
	require.NoError(t, err)

	assert.Equal(t, 2, result.TotalSaved)
	assert.GreaterOrEqual(t, result.ProcessingTimeMs, int64(60), "inter-batch delay was not applied")
}
