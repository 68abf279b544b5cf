package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// InitializeViper initializes Viper configuration from environment variables
// and config files. Must be called before Load().
func InitializeViper() error {
	loadEnvFile()
	setupViper()
	setDefaults()
	readConfigFile()

	if err := bindEnvironmentVariables(); err != nil {
		return fmt.Errorf("failed to bind environment variables: %w", err)
	}

	setupDevelopmentLogging()
	return nil
}

// loadEnvFile loads .env file (ignores error if file doesn't exist).
func loadEnvFile() {
	_ = godotenv.Load()
}

// setupViper configures Viper for environment variable and config file reading.
func setupViper() {
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
}

// readConfigFile reads config file (ignores error if file doesn't exist).
func readConfigFile() {
	_ = viper.ReadInConfig()
}

// bindEnvironmentVariables binds all environment variables to config keys.
func bindEnvironmentVariables() error {
	if err := bindAppEnvVars(); err != nil {
		return fmt.Errorf("failed to bind app env vars: %w", err)
	}
	if err := bindIntelligenceEnvVars(); err != nil {
		return fmt.Errorf("failed to bind intelligence env vars: %w", err)
	}
	if err := bindStorageEnvVars(); err != nil {
		return fmt.Errorf("failed to bind storage env vars: %w", err)
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults() {
	// App defaults - production safe
	viper.SetDefault("app", map[string]any{
		"name":        "carcrawl",
		"version":     "1.0.0",
		"environment": "production",
		"debug":       false,
	})

	// Logging defaults - production safe
	viper.SetDefault("logging", map[string]any{
		"level":       "info",
		"encoding":    "json",
		"development": false,
	})

	// Crawler defaults
	viper.SetDefault("crawler", map[string]any{
		"concurrency":              DefaultConcurrency,
		"user_agent":               DefaultUserAgent,
		"request_timeout":          DefaultRequestTimeout.String(),
		"min_delay":                DefaultMinDelay.String(),
		"max_delay":                DefaultMaxDelay.String(),
		"max_pages_per_run":        DefaultMaxPagesPerRun,
		"max_new_items_per_run":    DefaultMaxNewItemsPerRun,
		"respect_robots_txt":       true,
		"max_consecutive_failures": DefaultMaxConsecutiveFailures,
		"url_ttl":                  DefaultURLTTL.String(),
		"page_cache_ttl":           DefaultPageCacheTTL.String(),
		"keep_snapshots":           false,
	})

	// Intelligence defaults
	viper.SetDefault("intelligence", map[string]any{
		"provider":              "anthropic",
		"model":                 "",
		"max_tokens":            DefaultIntelligenceMaxTokens,
		"temperature":           DefaultIntelligenceTemperature,
		"request_timeout":       DefaultIntelligenceTimeout.String(),
		"rate_limit":            DefaultIntelligenceRateLimit,
		"rate_burst":            DefaultIntelligenceRateBurst,
		"quality_threshold":     DefaultQualityThreshold,
		"opportunity_threshold": "medium",
		"allow_placeholders":    false,
	})

	// Batch defaults
	viper.SetDefault("batch", map[string]any{
		"size":               DefaultBatchSize,
		"inter_batch_delay":  DefaultInterBatchDelay.String(),
		"retry_attempts":     DefaultRetryAttempts,
		"retry_backoff_unit": DefaultRetryBackoffUnit.String(),
	})

	// Database defaults
	viper.SetDefault("database", map[string]any{
		"host":                    "localhost",
		"port":                    5432,
		"user":                    "postgres",
		"database":                "carcrawl",
		"sslmode":                 "disable",
		"max_connections":         25,
		"max_idle_connections":    5,
		"connection_max_lifetime": "5m",
	})

	// Elasticsearch defaults - mirror disabled unless configured
	viper.SetDefault("elasticsearch", map[string]any{
		"enabled":    false,
		"addresses":  []string{"http://127.0.0.1:9200"},
		"index_name": "carcrawl-listings",
	})

	// Redis defaults - cache falls back to memory unless enabled
	viper.SetDefault("redis", map[string]any{
		"enabled": false,
		"addr":    "localhost:6379",
		"db":      0,
	})

	// Server defaults - production safe
	viper.SetDefault("server", map[string]any{
		"address":       ":8060",
		"read_timeout":  "15s",
		"write_timeout": "15s",
		"idle_timeout":  "60s",
	})

	// Sources defaults
	viper.SetDefault("sources", map[string]any{
		"path":              "sources.yaml",
		"watch_for_changes": false,
	})
}

// bindAppEnvVars binds application and logging environment variables.
func bindAppEnvVars() error {
	if err := viper.BindEnv("app.environment", "APP_ENV"); err != nil {
		return fmt.Errorf("failed to bind APP_ENV: %w", err)
	}
	if err := viper.BindEnv("app.debug", "APP_DEBUG"); err != nil {
		return fmt.Errorf("failed to bind APP_DEBUG: %w", err)
	}
	if err := viper.BindEnv("logging.level", "LOG_LEVEL"); err != nil {
		return fmt.Errorf("failed to bind LOG_LEVEL: %w", err)
	}
	if err := viper.BindEnv("logging.encoding", "LOG_FORMAT"); err != nil {
		return fmt.Errorf("failed to bind LOG_FORMAT: %w", err)
	}
	if err := viper.BindEnv("sources.path", "CARCRAWL_SOURCES_PATH"); err != nil {
		return fmt.Errorf("failed to bind CARCRAWL_SOURCES_PATH: %w", err)
	}
	return nil
}

// bindIntelligenceEnvVars binds content-intelligence environment variables.
// ANTHROPIC_API_KEY and OPENAI_API_KEY are honored so provider-standard
// variable names keep working.
func bindIntelligenceEnvVars() error {
	if err := viper.BindEnv("intelligence.provider", "CARCRAWL_INTELLIGENCE_PROVIDER"); err != nil {
		return fmt.Errorf("failed to bind CARCRAWL_INTELLIGENCE_PROVIDER: %w", err)
	}
	if err := viper.BindEnv("intelligence.api_key",
		"CARCRAWL_INTELLIGENCE_API_KEY", "ANTHROPIC_API_KEY", "OPENAI_API_KEY"); err != nil {
		return fmt.Errorf("failed to bind intelligence API key: %w", err)
	}
	if err := viper.BindEnv("intelligence.model", "CARCRAWL_INTELLIGENCE_MODEL"); err != nil {
		return fmt.Errorf("failed to bind CARCRAWL_INTELLIGENCE_MODEL: %w", err)
	}
	if err := viper.BindEnv("intelligence.quality_threshold", "CARCRAWL_QUALITY_THRESHOLD"); err != nil {
		return fmt.Errorf("failed to bind CARCRAWL_QUALITY_THRESHOLD: %w", err)
	}
	if err := viper.BindEnv("intelligence.allow_placeholders", "CARCRAWL_ALLOW_PLACEHOLDERS"); err != nil {
		return fmt.Errorf("failed to bind CARCRAWL_ALLOW_PLACEHOLDERS: %w", err)
	}
	return nil
}

// bindStorageEnvVars binds database, Elasticsearch, and Redis environment
// variables.
func bindStorageEnvVars() error {
	if err := viper.BindEnv("database.host", "POSTGRES_HOST"); err != nil {
		return fmt.Errorf("failed to bind POSTGRES_HOST: %w", err)
	}
	if err := viper.BindEnv("database.port", "POSTGRES_PORT"); err != nil {
		return fmt.Errorf("failed to bind POSTGRES_PORT: %w", err)
	}
	if err := viper.BindEnv("database.user", "POSTGRES_USER"); err != nil {
		return fmt.Errorf("failed to bind POSTGRES_USER: %w", err)
	}
	if err := viper.BindEnv("database.password", "POSTGRES_PASSWORD"); err != nil {
		return fmt.Errorf("failed to bind POSTGRES_PASSWORD: %w", err)
	}
	if err := viper.BindEnv("database.database", "POSTGRES_DB"); err != nil {
		return fmt.Errorf("failed to bind POSTGRES_DB: %w", err)
	}
	if err := viper.BindEnv("elasticsearch.enabled", "ELASTICSEARCH_ENABLED"); err != nil {
		return fmt.Errorf("failed to bind ELASTICSEARCH_ENABLED: %w", err)
	}
	if err := viper.BindEnv("elasticsearch.addresses",
		"ELASTICSEARCH_HOSTS", "ELASTICSEARCH_ADDRESSES"); err != nil {
		return fmt.Errorf("failed to bind Elasticsearch addresses: %w", err)
	}
	if err := viper.BindEnv("elasticsearch.password",
		"ELASTIC_PASSWORD", "ELASTICSEARCH_PASSWORD"); err != nil {
		return fmt.Errorf("failed to bind Elasticsearch password: %w", err)
	}
	if err := viper.BindEnv("elasticsearch.api_key", "ELASTICSEARCH_API_KEY"); err != nil {
		return fmt.Errorf("failed to bind ELASTICSEARCH_API_KEY: %w", err)
	}
	if err := viper.BindEnv("redis.enabled", "REDIS_ENABLED"); err != nil {
		return fmt.Errorf("failed to bind REDIS_ENABLED: %w", err)
	}
	if err := viper.BindEnv("redis.addr", "REDIS_ADDR"); err != nil {
		return fmt.Errorf("failed to bind REDIS_ADDR: %w", err)
	}
	if err := viper.BindEnv("redis.password", "REDIS_PASSWORD"); err != nil {
		return fmt.Errorf("failed to bind REDIS_PASSWORD: %w", err)
	}
	return nil
}

// setupDevelopmentLogging configures logging based on environment variables.
// Debug level (APP_DEBUG) and development formatting (APP_ENV) are separate
// concerns: debug logs with production formatting is a valid combination.
func setupDevelopmentLogging() {
	debugFlag := viper.GetBool("app.debug")
	isDev := viper.GetString("app.environment") == "development"

	if debugFlag {
		viper.Set("logging.level", "debug")
	}

	if isDev {
		viper.Set("logging.development", true)
		viper.Set("logging.encoding", "console")
	}
}
