package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/carcrawl/carcrawl/internal/config"
)

func validCrawler() config.CrawlerConfig {
	return config.CrawlerConfig{
		Concurrency:       3,
		RequestTimeout:    20 * time.Second,
		MinDelay:          time.Second,
		MaxDelay:          3 * time.Second,
		MaxPagesPerRun:    10,
		MaxNewItemsPerRun: 50,
	}
}

func TestCrawlerConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*config.CrawlerConfig)
		wantErr bool
	}{
		{
			name:    "valid configuration",
			mutate:  func(*config.CrawlerConfig) {},
			wantErr: false,
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *config.CrawlerConfig) { c.Concurrency = 0 },
			wantErr: true,
		},
		{
			name:    "zero request timeout",
			mutate:  func(c *config.CrawlerConfig) { c.RequestTimeout = 0 },
			wantErr: true,
		},
		{
			name:    "max delay below min delay",
			mutate:  func(c *config.CrawlerConfig) { c.MaxDelay = c.MinDelay / 2 },
			wantErr: true,
		},
		{
			name:    "negative min delay",
			mutate:  func(c *config.CrawlerConfig) { c.MinDelay = -time.Second },
			wantErr: true,
		},
		{
			name:    "zero pages per run",
			mutate:  func(c *config.CrawlerConfig) { c.MaxPagesPerRun = 0 },
			wantErr: true,
		},
	}

	for i := range tests {
		test := &tests[i]
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			cfg := validCrawler()
			test.mutate(&cfg)

			err := cfg.Validate()
			if test.wantErr {
				require.Error(t, err)
				require.ErrorIs(t, err, config.ErrInvalidConfig)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestIntelligenceConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  config.IntelligenceConfig
		wantErr bool
	}{
		{
			name: "anthropic provider",
			config: config.IntelligenceConfig{
				Provider:             "anthropic",
				QualityThreshold:     70,
				OpportunityThreshold: "medium",
			},
			wantErr: false,
		},
		{
			name: "stub provider",
			config: config.IntelligenceConfig{
				Provider:             "stub",
				QualityThreshold:     0,
				OpportunityThreshold: "low",
			},
			wantErr: false,
		},
		{
			name: "unknown provider",
			config: config.IntelligenceConfig{
				Provider:             "bard",
				QualityThreshold:     70,
				OpportunityThreshold: "medium",
			},
			wantErr: true,
		},
		{
			name: "threshold above range",
			config: config.IntelligenceConfig{
				Provider:             "anthropic",
				QualityThreshold:     101,
				OpportunityThreshold: "medium",
			},
			wantErr: true,
		},
		{
			name: "unknown opportunity threshold",
			config: config.IntelligenceConfig{
				Provider:             "anthropic",
				QualityThreshold:     70,
				OpportunityThreshold: "urgent",
			},
			wantErr: true,
		},
	}

	for i := range tests {
		test := &tests[i]
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			err := test.config.Validate()
			if test.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestBatchConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  config.BatchConfig
		wantErr bool
	}{
		{
			name: "valid configuration",
			config: config.BatchConfig{
				Size:            5,
				InterBatchDelay: 2 * time.Second,
				RetryAttempts:   3,
			},
			wantErr: false,
		},
		{
			name: "zero size",
			config: config.BatchConfig{
				Size:          0,
				RetryAttempts: 3,
			},
			wantErr: true,
		},
		{
			name: "negative retries",
			config: config.BatchConfig{
				Size:          5,
				RetryAttempts: -1,
			},
			wantErr: true,
		},
		{
			name: "negative delay",
			config: config.BatchConfig{
				Size:            5,
				InterBatchDelay: -time.Second,
				RetryAttempts:   3,
			},
			wantErr: true,
		},
	}

	for i := range tests {
		test := &tests[i]
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			err := test.config.Validate()
			if test.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Parallel()

	cfg := config.DatabaseConfig{
		Host:     "db.internal",
		Port:     5433,
		User:     "crawler",
		Password: "secret",
		Database: "carcrawl",
		SSLMode:  "require",
	}

	want := "host=db.internal port=5433 user=crawler password=secret dbname=carcrawl sslmode=require"
	require.Equal(t, want, cfg.DSN())
}

func TestLoadFile(t *testing.T) {
	viper.Reset()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
app:
  environment: development
crawler:
  concurrency: 7
intelligence:
  provider: stub
database:
  host: db.test
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)

	require.Equal(t, 7, cfg.Crawler.Concurrency)
	require.Equal(t, "stub", cfg.Intelligence.Provider)
	require.Equal(t, "db.test", cfg.Database.Host)

	// Values the file omits keep their defaults.
	require.Equal(t, config.DefaultBatchSize, cfg.Batch.Size)
	require.Equal(t, config.DefaultRequestTimeout, cfg.Crawler.RequestTimeout)
	require.Equal(t, "sources.yaml", cfg.Sources.Path)

	// Development environment switches logging to console output.
	require.True(t, cfg.Logging.Development)
	require.Equal(t, "console", cfg.Logging.Encoding)
}

func TestLoadFile_MissingFile(t *testing.T) {
	viper.Reset()

	_, err := config.LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)

	var loadErr *config.LoadError
	require.ErrorAs(t, err, &loadErr)
}

func TestLoadFile_InvalidValues(t *testing.T) {
	viper.Reset()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
crawler:
  concurrency: 0
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := config.LoadFile(path)
	require.Error(t, err)
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}
