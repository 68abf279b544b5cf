package fetcher

import "time"

// Default configuration values.
const (
	defaultUserAgent      = "CarCrawl/1.0 (+https://github.com/carcrawl/carcrawl)"
	defaultRequestTimeout = 20 * time.Second
	defaultMaxBodySize    = 10 * 1024 * 1024
	defaultRenderWait     = 2 * time.Second
	defaultMaxRedirects   = 10
)

// Config holds fetcher configuration shared by the static and dynamic
// fetchers.
type Config struct {
	UserAgent      string        `yaml:"user_agent"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxBodySize    int           `yaml:"max_body_size"`
	RespectRobots  bool          `yaml:"respect_robots"`
	RenderWait     time.Duration `yaml:"render_wait"`
	MaxRedirects   int           `yaml:"max_redirects"`
	AllowedDomains []string      `yaml:"allowed_domains"`
}

// WithDefaults returns a copy of the config with default values applied for zero-value fields.
func (c Config) WithDefaults() Config {
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.MaxBodySize <= 0 {
		c.MaxBodySize = defaultMaxBodySize
	}
	if c.RenderWait <= 0 {
		c.RenderWait = defaultRenderWait
	}
	if c.MaxRedirects <= 0 {
		c.MaxRedirects = defaultMaxRedirects
	}
	return c
}
