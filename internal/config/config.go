// Package config provides configuration management for the carcrawl service.
// It handles loading, validation, and access to configuration values from
// YAML files and environment variables via Viper.
package config

import (
	"fmt"
	"time"
)

// Interface defines the interface for configuration management.
type Interface interface {
	// GetAppConfig returns the application configuration.
	GetAppConfig() *AppConfig
	// GetCrawlerConfig returns the crawler configuration.
	GetCrawlerConfig() *CrawlerConfig
	// GetIntelligenceConfig returns the content-intelligence configuration.
	GetIntelligenceConfig() *IntelligenceConfig
	// GetBatchConfig returns the batch orchestration configuration.
	GetBatchConfig() *BatchConfig
	// GetDatabaseConfig returns the database configuration.
	GetDatabaseConfig() *DatabaseConfig
	// GetElasticsearchConfig returns the Elasticsearch configuration.
	GetElasticsearchConfig() *ElasticsearchConfig
	// GetRedisConfig returns the Redis configuration.
	GetRedisConfig() *RedisConfig
	// GetServerConfig returns the monitoring server configuration.
	GetServerConfig() *ServerConfig
	// GetLoggingConfig returns the logging configuration.
	GetLoggingConfig() *LoggingConfig
	// GetSourcesConfig returns the source registry configuration.
	GetSourcesConfig() *SourcesConfig
	// Validate validates the configuration.
	Validate() error
}

// Ensure Config implements Interface.
var _ Interface = (*Config)(nil)

// Config represents the application configuration.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Crawler       CrawlerConfig       `mapstructure:"crawler"`
	Intelligence  IntelligenceConfig  `mapstructure:"intelligence"`
	Batch         BatchConfig         `mapstructure:"batch"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Server        ServerConfig        `mapstructure:"server"`
	Sources       SourcesConfig       `mapstructure:"sources"`
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Encoding    string `mapstructure:"encoding"`
	Development bool   `mapstructure:"development"`
}

// CrawlerConfig holds crawl-loop configuration.
type CrawlerConfig struct {
	// Concurrency is the number of listing pages processed concurrently.
	Concurrency int `mapstructure:"concurrency"`
	// UserAgent identifies the crawler to target sites.
	UserAgent string `mapstructure:"user_agent"`
	// RequestTimeout is the hard per-fetch timeout.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// MinDelay and MaxDelay bound the jittered politeness delay between
	// requests to the same source.
	MinDelay time.Duration `mapstructure:"min_delay"`
	MaxDelay time.Duration `mapstructure:"max_delay"`
	// MaxPagesPerRun caps pagination pages visited per seed.
	MaxPagesPerRun int `mapstructure:"max_pages_per_run"`
	// MaxNewItemsPerRun caps new listings ingested per run.
	MaxNewItemsPerRun int `mapstructure:"max_new_items_per_run"`
	// RespectRobotsTxt toggles robots.txt compliance.
	RespectRobotsTxt bool `mapstructure:"respect_robots_txt"`
	// MaxConsecutiveFailures deprecates a discovered URL after this many
	// failures in a row.
	MaxConsecutiveFailures int `mapstructure:"max_consecutive_failures"`
	// URLTTL deprecates discovered URLs not successfully processed within
	// this window.
	URLTTL time.Duration `mapstructure:"url_ttl"`
	// PageCacheTTL bounds the unchanged-page short-circuit cache.
	PageCacheTTL time.Duration `mapstructure:"page_cache_ttl"`
	// KeepSnapshots retains raw page content on persisted listings.
	KeepSnapshots bool `mapstructure:"keep_snapshots"`
}

// IntelligenceConfig holds content-intelligence provider configuration.
type IntelligenceConfig struct {
	// Provider selects the backing model API: anthropic or openai.
	Provider string `mapstructure:"provider"`
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
	// MaxTokens caps the response size per stage call.
	MaxTokens int `mapstructure:"max_tokens"`
	// Temperature controls sampling; extraction wants it low.
	Temperature float64 `mapstructure:"temperature"`
	// RequestTimeout is the per-stage-call timeout.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// RateLimit is the sustained provider request rate in requests/second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// RateBurst is the provider request burst allowance.
	RateBurst int `mapstructure:"rate_burst"`
	// QualityThreshold is the minimum quality score for persistence.
	QualityThreshold int `mapstructure:"quality_threshold"`
	// OpportunityThreshold is the minimum opportunity severity reported.
	OpportunityThreshold string `mapstructure:"opportunity_threshold"`
	// AllowPlaceholders permits explicitly marked placeholder values for
	// fields the page does not state. Off by default; every use is logged.
	AllowPlaceholders bool `mapstructure:"allow_placeholders"`
}

// BatchConfig holds batch orchestration configuration.
type BatchConfig struct {
	// Size is the number of URLs per batch.
	Size int `mapstructure:"size"`
	// InterBatchDelay is the pause between batches.
	InterBatchDelay time.Duration `mapstructure:"inter_batch_delay"`
	// RetryAttempts is the per-item retry budget.
	RetryAttempts int `mapstructure:"retry_attempts"`
	// RetryBackoffUnit scales the linear retry backoff: unit times the
	// attempt number.
	RetryBackoffUnit time.Duration `mapstructure:"retry_backoff_unit"`
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MaxIdleConns    int           `mapstructure:"max_idle_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"connection_max_lifetime"`
}

// DSN builds the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// ElasticsearchConfig holds the optional search-mirror configuration.
type ElasticsearchConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	APIKey    string   `mapstructure:"api_key"`
	IndexName string   `mapstructure:"index_name"`
}

// RedisConfig holds the optional Redis cache configuration.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ServerConfig holds the monitoring API server configuration.
type ServerConfig struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// SourcesConfig holds source registry configuration.
type SourcesConfig struct {
	// Path is the sources YAML file location.
	Path string `mapstructure:"path"`
	// WatchForChanges enables hot reload of the sources file.
	WatchForChanges bool `mapstructure:"watch_for_changes"`
}

// Getter Methods
// --------------

// GetAppConfig returns the application configuration.
func (c *Config) GetAppConfig() *AppConfig { return &c.App }

// GetCrawlerConfig returns the crawler configuration.
func (c *Config) GetCrawlerConfig() *CrawlerConfig { return &c.Crawler }

// GetIntelligenceConfig returns the content-intelligence configuration.
func (c *Config) GetIntelligenceConfig() *IntelligenceConfig { return &c.Intelligence }

// GetBatchConfig returns the batch orchestration configuration.
func (c *Config) GetBatchConfig() *BatchConfig { return &c.Batch }

// GetDatabaseConfig returns the database configuration.
func (c *Config) GetDatabaseConfig() *DatabaseConfig { return &c.Database }

// GetElasticsearchConfig returns the Elasticsearch configuration.
func (c *Config) GetElasticsearchConfig() *ElasticsearchConfig { return &c.Elasticsearch }

// GetRedisConfig returns the Redis configuration.
func (c *Config) GetRedisConfig() *RedisConfig { return &c.Redis }

// GetServerConfig returns the monitoring server configuration.
func (c *Config) GetServerConfig() *ServerConfig { return &c.Server }

// GetLoggingConfig returns the logging configuration.
func (c *Config) GetLoggingConfig() *LoggingConfig { return &c.Logging }

// GetSourcesConfig returns the source registry configuration.
func (c *Config) GetSourcesConfig() *SourcesConfig { return &c.Sources }

// Validation
// ----------

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Crawler.Validate(); err != nil {
		return fmt.Errorf("crawler: %w", err)
	}
	if err := c.Intelligence.Validate(); err != nil {
		return fmt.Errorf("intelligence: %w", err)
	}
	if err := c.Batch.Validate(); err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	return nil
}

// Validate validates the crawler configuration.
func (c *CrawlerConfig) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be positive", ErrInvalidConfig)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%w: request_timeout must be positive", ErrInvalidConfig)
	}
	if c.MinDelay < 0 || c.MaxDelay < c.MinDelay {
		return fmt.Errorf("%w: delay window must satisfy 0 <= min_delay <= max_delay", ErrInvalidConfig)
	}
	if c.MaxPagesPerRun < 1 {
		return fmt.Errorf("%w: max_pages_per_run must be positive", ErrInvalidConfig)
	}
	if c.MaxNewItemsPerRun < 1 {
		return fmt.Errorf("%w: max_new_items_per_run must be positive", ErrInvalidConfig)
	}
	return nil
}

// Validate validates the content-intelligence configuration.
func (c *IntelligenceConfig) Validate() error {
	switch c.Provider {
	case "anthropic", "openai", "stub":
	default:
		return fmt.Errorf("%w: unknown intelligence provider %q", ErrInvalidConfig, c.Provider)
	}
	if c.QualityThreshold < 0 || c.QualityThreshold > 100 {
		return fmt.Errorf("%w: quality_threshold must be in [0,100]", ErrInvalidConfig)
	}
	switch c.OpportunityThreshold {
	case "high", "medium", "low":
	default:
		return fmt.Errorf("%w: opportunity_threshold must be high, medium, or low", ErrInvalidConfig)
	}
	return nil
}

// Validate validates the batch configuration.
func (c *BatchConfig) Validate() error {
	if c.Size < 1 {
		return fmt.Errorf("%w: batch size must be positive", ErrInvalidConfig)
	}
	if c.RetryAttempts < 0 {
		return fmt.Errorf("%w: retry_attempts must be non-negative", ErrInvalidConfig)
	}
	if c.InterBatchDelay < 0 {
		return fmt.Errorf("%w: inter_batch_delay must be non-negative", ErrInvalidConfig)
	}
	return nil
}
