package stats_test

import (
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carcrawl/carcrawl/internal/domain"
	"github.com/carcrawl/carcrawl/internal/stats"
)

func TestRunStatsCountsExactly(t *testing.T) {
	s := stats.NewRunStats()

	s.RecordPage()
	s.RecordPage()
	s.RecordFound()
	s.RecordFound()
	s.RecordFound()
	s.RecordUpsert()
	s.RecordDuplicate()
	s.RecordError()
	s.RecordValidationFailure()

	snap := s.Snapshot()
	assert.Equal(t, 2, snap.PagesFetched)
	assert.Equal(t, 3, snap.ItemsFound)
	assert.Equal(t, 1, snap.Upserts)
	assert.Equal(t, 1, snap.Duplicates)
	assert.Equal(t, 1, snap.Errors)
	assert.Equal(t, 1, snap.ValidationFailures)
}

func TestRunStatsConcurrentIncrements(t *testing.T) {
	s := stats.NewRunStats()

	const n = 200
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			s.RecordFound()
		}()
	}
	wg.Wait()

	assert.Equal(t, n, s.Snapshot().ItemsFound, "counters are exact, not sampled")
}

func TestApplyToRun(t *testing.T) {
	s := stats.NewRunStats()
	s.RecordPage()
	s.RecordFound()
	s.RecordUpsert()

	run := &domain.CrawlRun{}
	s.ApplyTo(run)

	assert.Equal(t, 1, run.PagesFetched)
	assert.Equal(t, 1, run.ItemsFound)
	assert.Equal(t, 1, run.Upserts)
	assert.Zero(t, run.Errors)
}

func TestTelemetryServesMetrics(t *testing.T) {
	tel := stats.NewTelemetry()
	tel.RunsTotal.WithLabelValues("completed").Inc()
	tel.PagesTotal.WithLabelValues("src-001").Add(3)
	tel.ListingsTotal.WithLabelValues("created").Inc()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	tel.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "carcrawl_runs_total")
	assert.Contains(t, body, `carcrawl_pages_fetched_total{source="src-001"} 3`)
}

func TestTelemetryInstancesAreIndependent(t *testing.T) {
	// Two instances must not collide on a shared registry.
	a := stats.NewTelemetry()
	b := stats.NewTelemetry()
	a.RunsTotal.WithLabelValues("completed").Inc()

	rec := httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.NotContains(t, rec.Body.String(), `carcrawl_runs_total{status="completed"} 1`)
}
