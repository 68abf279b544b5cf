// Package config provides configuration management for the carcrawl service.
package config

import (
	"time"
)

// ValidLogLevels defines the valid logging levels.
var ValidLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidEnvironments defines the valid environment types.
var ValidEnvironments = map[string]bool{
	"development": true,
	"staging":     true,
	"production":  true,
	"test":        true,
}

// Default configuration values.
const (
	// DefaultConcurrency is the number of listing pages processed at once.
	DefaultConcurrency = 3

	// DefaultUserAgent identifies the crawler to target sites.
	DefaultUserAgent = "carcrawl/1.0 (+https://github.com/carcrawl/carcrawl)"

	// DefaultRequestTimeout is the hard per-fetch timeout.
	DefaultRequestTimeout = 20 * time.Second

	// DefaultMinDelay is the lower bound of the jittered politeness delay.
	DefaultMinDelay = 750 * time.Millisecond

	// DefaultMaxDelay is the upper bound of the jittered politeness delay.
	DefaultMaxDelay = 2500 * time.Millisecond

	// DefaultMaxPagesPerRun caps pagination pages visited per seed.
	DefaultMaxPagesPerRun = 10

	// DefaultMaxNewItemsPerRun caps new listings ingested per run.
	DefaultMaxNewItemsPerRun = 200

	// DefaultMaxConsecutiveFailures deprecates a URL after this many
	// failures in a row.
	DefaultMaxConsecutiveFailures = 5

	// DefaultURLTTL deprecates discovered URLs older than this without a
	// successful processing.
	DefaultURLTTL = 30 * 24 * time.Hour

	// DefaultPageCacheTTL bounds the unchanged-page short-circuit cache.
	DefaultPageCacheTTL = 6 * time.Hour

	// DefaultQualityThreshold is the minimum quality score for persistence.
	DefaultQualityThreshold = 70

	// DefaultIntelligenceMaxTokens caps model responses per stage call.
	DefaultIntelligenceMaxTokens = 4096

	// DefaultIntelligenceTemperature keeps extraction output deterministic.
	DefaultIntelligenceTemperature = 0.0

	// DefaultIntelligenceTimeout is the per-stage-call timeout.
	DefaultIntelligenceTimeout = 60 * time.Second

	// DefaultIntelligenceRateLimit is the provider request rate in req/s.
	DefaultIntelligenceRateLimit = 2.0

	// DefaultIntelligenceRateBurst is the provider request burst allowance.
	DefaultIntelligenceRateBurst = 4

	// DefaultBatchSize is the number of URLs per batch.
	DefaultBatchSize = 5

	// DefaultInterBatchDelay is the pause between batches.
	DefaultInterBatchDelay = 2 * time.Second

	// DefaultRetryAttempts is the per-item retry budget.
	DefaultRetryAttempts = 3

	// DefaultRetryBackoffUnit scales the linear retry backoff.
	DefaultRetryBackoffUnit = 1 * time.Second

	// DefaultAppName is the default application name.
	DefaultAppName = "carcrawl"

	// DefaultAppVersion is the default application version.
	DefaultAppVersion = "1.0.0"

	// DefaultAppEnv is the default application environment.
	DefaultAppEnv = "production"
)

// Environment types.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
	EnvTest        = "test"
)
