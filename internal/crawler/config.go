package crawler

import "time"

const (
	// defaultMaxPages caps pagination pages visited in one run.
	defaultMaxPages = 10
	// defaultMaxItems caps listing pages processed in one run.
	defaultMaxItems = 200
	// defaultPageCacheTTL controls how long an index page's content hash
	// short-circuits re-extraction of its items.
	defaultPageCacheTTL = 6 * time.Hour
	// defaultMaxConsecutiveFailures deprecates a URL after this many failed
	// attempts in a row.
	defaultMaxConsecutiveFailures = 5
)

// Limits bounds one crawl run. Both caps act as circuit breakers against
// unbounded or adversarial pagination.
type Limits struct {
	MaxPages int
	MaxItems int
}

// WithDefaults fills unset limits.
func (l Limits) WithDefaults() Limits {
	if l.MaxPages <= 0 {
		l.MaxPages = defaultMaxPages
	}
	if l.MaxItems <= 0 {
		l.MaxItems = defaultMaxItems
	}
	return l
}

// Config holds crawl loop settings shared across sources.
type Config struct {
	Limits Limits `mapstructure:"limits"`

	// RateMinDelay and RateMaxDelay bound the jittered spacing between
	// fetches inside one crawl loop. Zero values fall back to the
	// ratelimit package defaults.
	RateMinDelay time.Duration `mapstructure:"rate_min_delay"`
	RateMaxDelay time.Duration `mapstructure:"rate_max_delay"`

	// PageCacheTTL is how long an unchanged index page skips item
	// re-extraction. Zero disables the cache.
	PageCacheTTL time.Duration `mapstructure:"page_cache_ttl"`

	// MaxConsecutiveFailures deprecates a discovered URL once its failure
	// streak reaches this count.
	MaxConsecutiveFailures int `mapstructure:"max_consecutive_failures"`

	// DiscoveryMaxAge drops sitemap entries whose lastmod is older than
	// this window. Zero keeps every entry.
	DiscoveryMaxAge time.Duration `mapstructure:"discovery_max_age"`

	// KeepSnapshots stores the fetched page body on persisted listings.
	KeepSnapshots bool `mapstructure:"keep_snapshots"`
}

// WithDefaults fills unset fields with default values.
func (c Config) WithDefaults() Config {
	c.Limits = c.Limits.WithDefaults()
	if c.PageCacheTTL <= 0 {
		c.PageCacheTTL = defaultPageCacheTTL
	}
	if c.MaxConsecutiveFailures <= 0 {
		c.MaxConsecutiveFailures = defaultMaxConsecutiveFailures
	}
	return c
}
