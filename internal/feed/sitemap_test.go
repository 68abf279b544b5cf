package feed_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carcrawl/carcrawl/internal/feed"
)

const sitemapBody = `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://cars.example.com/inventory/car-1</loc><lastmod>2025-06-01</lastmod></url>
  <url><loc>https://cars.example.com/inventory/car-2</loc><lastmod>2025-01-15T10:30:00Z</lastmod></url>
  <url><loc>https://cars.example.com/about</loc></url>
  <url><loc> </loc></url>
</urlset>`

const sitemapIndexBody = `<?xml version="1.0" encoding="UTF-8"?>
<sitemapindex xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <sitemap><loc>https://cars.example.com/sitemap-inventory.xml</loc></sitemap>
  <sitemap><loc>https://cars.example.com/sitemap-pages.xml</loc></sitemap>
</sitemapindex>`

func TestParseSitemapURLSet(t *testing.T) {
	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	sm, err := feed.ParseSitemap([]byte(sitemapBody), 0, now)
	require.NoError(t, err)
	require.False(t, sm.IsIndex())

	require.Len(t, sm.Entries, 3)
	assert.Equal(t, "https://cars.example.com/inventory/car-1", sm.Entries[0].URL)
	require.NotNil(t, sm.Entries[0].LastMod)
	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), *sm.Entries[0].LastMod)
	assert.Nil(t, sm.Entries[2].LastMod)
}

func TestParseSitemapMaxAgeFilter(t *testing.T) {
	now := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	// 30 days keeps the June entry and the undated entry, drops January.
	sm, err := feed.ParseSitemap([]byte(sitemapBody), 30*24*time.Hour, now)
	require.NoError(t, err)

	urls := make([]string, 0, len(sm.Entries))
	for _, e := range sm.Entries {
		urls = append(urls, e.URL)
	}
	assert.Equal(t, []string{
		"https://cars.example.com/inventory/car-1",
		"https://cars.example.com/about",
	}, urls)
}

func TestParseSitemapIndex(t *testing.T) {
	sm, err := feed.ParseSitemap([]byte(sitemapIndexBody), 0, time.Now())
	require.NoError(t, err)
	require.True(t, sm.IsIndex())

	assert.Equal(t, []string{
		"https://cars.example.com/sitemap-inventory.xml",
		"https://cars.example.com/sitemap-pages.xml",
	}, sm.Children)
	assert.Empty(t, sm.Entries)
}

func TestParseSitemapRejectsUnknownRoot(t *testing.T) {
	_, err := feed.ParseSitemap([]byte(`<rss version="2.0"></rss>`), 0, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecognized sitemap root")
}

func TestParseSitemapMalformed(t *testing.T) {
	_, err := feed.ParseSitemap([]byte(`not xml at all`), 0, time.Now())
	require.Error(t, err)
}

func TestParseFeed(t *testing.T) {
	body := `<?xml version="1.0"?>
<rss version="2.0"><channel>
  <title>New Inventory</title>
  <item><title>2019 Honda Civic</title><link>https://cars.example.com/inventory/car-1</link><pubDate>Mon, 02 Jun 2025 09:00:00 GMT</pubDate></item>
  <item><title>No link</title><guid>https://cars.example.com/inventory/car-2</guid></item>
  <item><title>Unusable</title><guid>tag:internal-id-3</guid></item>
</channel></rss>`

	items, err := feed.ParseFeed([]byte(body))
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, "https://cars.example.com/inventory/car-1", items[0].URL)
	assert.Equal(t, "2019 Honda Civic", items[0].Title)
	require.NotNil(t, items[0].PublishedAt)
	assert.Equal(t, "https://cars.example.com/inventory/car-2", items[1].URL)
}

func TestParseFeedEmpty(t *testing.T) {
	body := `<?xml version="1.0"?><rss version="2.0"><channel><title>empty</title></channel></rss>`

	items, err := feed.ParseFeed([]byte(body))
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
}
