package sources_test

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carcrawl/carcrawl/internal/domain"
	"github.com/carcrawl/carcrawl/internal/logger"
	"github.com/carcrawl/carcrawl/internal/sources"
)

const twoSourcesYAML = `sources:
  - id: dealer-a
    name: Dealer A
    seed_urls:
      - https://dealer-a.example/inventory
      - https://dealer-a.example/specials
    allow_patterns: ["/inventory/"]
    deny_patterns: ["/admin/", "/login"]
    listing_url_pattern: "/inventory/car-"
    sitemap_url: https://dealer-a.example/sitemap.xml
    dedup_key: vin
    frequency: hourly
    scraper_order: 7
    enabled: true
    exploration:
      max_pages_per_run: 5
      max_new_items_per_run: 50
      quality_threshold: 80
  - id: dealer-b
    seed_urls: ["https://dealer-b.example/cars"]
    listing_url_pattern: "/cars/\\d+"
    enabled: true
`

func writeSources(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func loadRegistry(t *testing.T, body string) *sources.Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yaml")
	writeSources(t, path, body)
	reg, err := sources.Load(path, logger.NewNoOp())
	require.NoError(t, err)
	return reg
}

func TestLoadParsesSources(t *testing.T) {
	reg := loadRegistry(t, twoSourcesYAML)
	require.Equal(t, 2, reg.Len())

	a, err := reg.Get("dealer-a")
	require.NoError(t, err)
	assert.Equal(t, "Dealer A", a.Name)
	assert.Equal(t, domain.StringSlice{
		"https://dealer-a.example/inventory",
		"https://dealer-a.example/specials",
	}, a.SeedURLs)
	assert.Equal(t, domain.StringSlice{"/admin/", "/login"}, a.DenyPatterns)
	assert.Equal(t, domain.DedupByVIN, a.DedupKey)
	assert.Equal(t, domain.FrequencyHourly, a.Frequency)
	assert.Equal(t, 7, a.ScraperOrder)
	assert.Equal(t, 5, a.Exploration.MaxPagesPerRun)
	assert.Equal(t, 80, a.Exploration.QualityThreshold)
	assert.True(t, a.Enabled)
	assert.Nil(t, a.LastExploredAt)

	// Optional fields fall back to their defaults.
	b, err := reg.Get("dealer-b")
	require.NoError(t, err)
	assert.Equal(t, "dealer-b", b.Name)
	assert.Equal(t, domain.FrequencyDaily, b.Frequency)
	assert.Equal(t, domain.DedupByCanonicalURL, b.DedupKey)
}

func TestLoadRejectsInvalidEntries(t *testing.T) {
	reg := loadRegistry(t, `sources:
  - id: good
    seed_urls: ["https://good.example/inventory"]
    listing_url_pattern: "/inventory/"
    enabled: true
  - name: No ID
    seed_urls: ["https://noid.example/"]
    listing_url_pattern: "/x/"
  - id: bad-regex
    seed_urls: ["https://bad.example/"]
    listing_url_pattern: "/car/["
  - id: bad-seed
    seed_urls: ["ftp://bad.example/"]
    listing_url_pattern: "/x/"
  - id: good
    seed_urls: ["https://dupe.example/"]
    listing_url_pattern: "/x/"
  - id: bad-frequency
    seed_urls: ["https://freq.example/"]
    listing_url_pattern: "/x/"
    frequency: fortnightly
`)

	assert.Equal(t, 1, reg.Len())

	problems := reg.Problems()
	require.Len(t, problems, 5)

	reasons := make(map[string]string)
	for _, p := range problems {
		reasons[p.ID] = p.Reason
	}
	assert.Contains(t, reasons["entry 2"], "missing id")
	assert.Contains(t, reasons["bad-regex"], "does not compile")
	assert.Contains(t, reasons["bad-seed"], "scheme must be http or https")
	assert.Contains(t, reasons["good"], "duplicate source id")
	assert.Contains(t, reasons["bad-frequency"], "unknown frequency")
}

func TestLoadFailsWithoutUsableSources(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")

	_, err := sources.Load(path, logger.NewNoOp())
	require.Error(t, err, "missing file")

	writeSources(t, path, "sources: []\n")
	_, err = sources.Load(path, logger.NewNoOp())
	assert.ErrorIs(t, err, sources.ErrNoSources)

	writeSources(t, path, "sources:\n  - id: broken\n")
	_, err = sources.Load(path, logger.NewNoOp())
	assert.ErrorIs(t, err, sources.ErrNoSources, "all entries rejected")
}

func TestSourcesReturnsSnapshots(t *testing.T) {
	reg := loadRegistry(t, twoSourcesYAML)

	snap, err := reg.Get("dealer-a")
	require.NoError(t, err)
	snap.Name = "mutated"
	snap.SeedURLs[0] = "https://mutated.example/"
	now := time.Now()
	snap.LastExploredAt = &now

	fresh, err := reg.Get("dealer-a")
	require.NoError(t, err)
	assert.Equal(t, "Dealer A", fresh.Name)
	assert.Equal(t, "https://dealer-a.example/inventory", fresh.SeedURLs[0])
	assert.Nil(t, fresh.LastExploredAt)
}

func TestMarkExploredIsMonotonic(t *testing.T) {
	reg := loadRegistry(t, twoSourcesYAML)
	later := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	earlier := later.Add(-time.Hour)

	require.NoError(t, reg.MarkExplored("dealer-a", later))
	require.NoError(t, reg.MarkExplored("dealer-a", earlier), "older mark is ignored, not an error")

	src, err := reg.Get("dealer-a")
	require.NoError(t, err)
	require.NotNil(t, src.LastExploredAt)
	assert.True(t, src.LastExploredAt.Equal(later))

	assert.Error(t, reg.MarkExplored("missing", later))
}

func TestAssignOrder(t *testing.T) {
	reg := loadRegistry(t, twoSourcesYAML)

	require.NoError(t, reg.AssignOrder("dealer-b", 12))
	src, err := reg.Get("dealer-b")
	require.NoError(t, err)
	assert.Equal(t, 12, src.ScraperOrder)

	assert.Error(t, reg.AssignOrder("missing", 1))
}

func TestReloadPreservesRuntimeState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	writeSources(t, path, `sources:
  - id: dealer-a
    name: Dealer A
    seed_urls: ["https://dealer-a.example/inventory"]
    listing_url_pattern: "/inventory/"
    enabled: true
`)
	reg, err := sources.Load(path, logger.NewNoOp())
	require.NoError(t, err)

	explored := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	require.NoError(t, reg.MarkExplored("dealer-a", explored))
	require.NoError(t, reg.AssignOrder("dealer-a", 5))

	writeSources(t, path, `sources:
  - id: dealer-a
    name: Dealer A Renamed
    seed_urls: ["https://dealer-a.example/inventory"]
    listing_url_pattern: "/inventory/"
    enabled: true
  - id: dealer-b
    seed_urls: ["https://dealer-b.example/cars"]
    listing_url_pattern: "/cars/"
    scraper_order: 9
    enabled: true
`)
	require.NoError(t, reg.Reload())
	require.Equal(t, 2, reg.Len())

	a, err := reg.Get("dealer-a")
	require.NoError(t, err)
	assert.Equal(t, "Dealer A Renamed", a.Name)
	require.NotNil(t, a.LastExploredAt)
	assert.True(t, a.LastExploredAt.Equal(explored), "exploration mark carried across reload")
	assert.Equal(t, 5, a.ScraperOrder, "bucket assignment carried across reload")

	b, err := reg.Get("dealer-b")
	require.NoError(t, err)
	assert.Equal(t, 9, b.ScraperOrder, "explicit file order wins")
}

func TestReloadKeepsOldSetOnFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	writeSources(t, path, twoSourcesYAML)
	reg, err := sources.Load(path, logger.NewNoOp())
	require.NoError(t, err)

	writeSources(t, path, "sources: [\n")
	require.Error(t, reg.Reload())
	assert.Equal(t, 2, reg.Len(), "previous set survives a bad reload")
}

func TestGetLookup(t *testing.T) {
	reg := loadRegistry(t, twoSourcesYAML)

	src, err := reg.Get("DEALER-A")
	require.NoError(t, err)
	assert.Equal(t, "dealer-a", src.ID)

	_, err = reg.Get("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Available sources")
}

func TestWatchReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	writeSources(t, path, `sources:
  - id: dealer-a
    seed_urls: ["https://dealer-a.example/inventory"]
    listing_url_pattern: "/inventory/"
    enabled: true
`)
	reg, err := sources.Load(path, logger.NewNoOp())
	require.NoError(t, err)
	require.Equal(t, 1, reg.Len())

	var reloads atomic.Int32
	watcher, err := sources.Watch(reg, logger.NewNoOp(),
		sources.WithDebounce(20*time.Millisecond),
		sources.WithOnReload(func() { reloads.Add(1) }),
	)
	require.NoError(t, err)
	defer watcher.Close()

	writeSources(t, path, twoSourcesYAML)

	require.Eventually(t, func() bool {
		return reg.Len() == 2 && reloads.Load() > 0
	}, 3*time.Second, 10*time.Millisecond, "watcher did not pick up the file change")
}
