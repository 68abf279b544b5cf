package bootstrap

import (
	"context"
	"fmt"

	"github.com/carcrawl/carcrawl/internal/batch"
	"github.com/carcrawl/carcrawl/internal/cache"
	"github.com/carcrawl/carcrawl/internal/config"
	"github.com/carcrawl/carcrawl/internal/crawler"
	"github.com/carcrawl/carcrawl/internal/feed"
	"github.com/carcrawl/carcrawl/internal/intelligence"
	"github.com/carcrawl/carcrawl/internal/logger"
	"github.com/carcrawl/carcrawl/internal/pipeline"
	"github.com/carcrawl/carcrawl/internal/scheduler"
	"github.com/carcrawl/carcrawl/internal/sources"
	"github.com/carcrawl/carcrawl/internal/stats"
	"github.com/carcrawl/carcrawl/internal/storage"
)

// App holds the fully assembled crawl pipeline.
type App struct {
	Config    config.Interface
	Logger    logger.Interface
	Telemetry *stats.Telemetry

	Database     *DatabaseComponents
	Gateway      storage.Gateway
	Cache        cache.Cache
	Intelligence *intelligence.Client
	Fetchers     *FetcherComponents

	Pipeline  *pipeline.Pipeline
	Crawler   *crawler.SourceCrawler
	Runner    scheduler.Runner
	Registry  *sources.Registry
	Scheduler *scheduler.Scheduler
}

// NewApp runs every assembly phase and returns the wired application.
// On failure it closes whatever it had already opened.
func NewApp(ctx context.Context, cfg config.Interface, log logger.Interface) (*App, error) {
	db, err := SetupDatabase(ctx, cfg.GetDatabaseConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to setup database: %w", err)
	}

	gateway, err := SetupGateway(db.Listings, cfg.GetElasticsearchConfig(), log)
	if err != nil {
		db.Close()
		return nil, err
	}

	pageCache, err := SetupCache(cfg.GetRedisConfig(), log)
	if err != nil {
		db.Close()
		return nil, err
	}

	intel, err := SetupIntelligence(cfg.GetIntelligenceConfig(), log)
	if err != nil {
		pageCache.Close()
		db.Close()
		return nil, err
	}

	fetchers := SetupFetchers(cfg.GetCrawlerConfig(), log)
	pipe := pipeline.New(intel, pipelineConfig(cfg), log)
	telemetry := stats.NewTelemetry()

	craw := crawler.New(
		fetchers.Static,
		pipe,
		gateway,
		crawlerConfig(cfg.GetCrawlerConfig()),
		log,
		crawler.WithDynamicFetcher(fetchers.Dynamic),
		crawler.WithURLRecorder(db.URLs),
		crawler.WithPageCache(pageCache),
		crawler.WithTelemetry(telemetry),
		crawler.WithFeedDiscovery(feed.NewDiscoverer(fetchers.Static, log)),
	)

	registry, err := sources.Load(cfg.GetSourcesConfig().Path, log)
	if err != nil {
		pageCache.Close()
		db.Close()
		return nil, fmt.Errorf("failed to load sources: %w", err)
	}

	sched := scheduler.New(registry, log)
	sched.AssignBuckets()

	return &App{
		Config:       cfg,
		Logger:       log,
		Telemetry:    telemetry,
		Database:     db,
		Gateway:      gateway,
		Cache:        pageCache,
		Intelligence: intel,
		Fetchers:     fetchers,
		Pipeline:     pipe,
		Crawler:      craw,
		Runner:       crawler.NewRecordedRunner(craw, db.Runs, log),
		Registry:     registry,
		Scheduler:    sched,
	}, nil
}

// NewBatch builds a batch orchestrator over the app's pipeline. Batch runs
// reuse the static fetcher; URL lists come from operators, not from
// render-heavy index pages.
func (a *App) NewBatch() *batch.Orchestrator {
	return batch.New(
		a.Fetchers.Static,
		a.Pipeline,
		a.Gateway,
		batchConfig(a.Config),
		a.Logger,
	)
}

// StartSourceWatcher hot-reloads the source registry when the sources file
// changes and reassigns schedule buckets after each reload.
func (a *App) StartSourceWatcher() (*sources.Watcher, error) {
	return sources.Watch(a.Registry, a.Logger, sources.WithOnReload(func() {
		a.Scheduler.AssignBuckets()
	}))
}

// Close releases the app's resources.
func (a *App) Close() error {
	if err := a.Cache.Close(); err != nil {
		a.Logger.Warn("Failed to close page cache", "error", err)
	}
	return a.Database.Close()
}

func pipelineConfig(cfg config.Interface) pipeline.Config {
	intel := cfg.GetIntelligenceConfig()
	return pipeline.Config{
		QualityThreshold:  intel.QualityThreshold,
		AllowPlaceholders: intel.AllowPlaceholders,
		KeepSnapshots:     cfg.GetCrawlerConfig().KeepSnapshots,
	}
}

func crawlerConfig(cfg *config.CrawlerConfig) crawler.Config {
	return crawler.Config{
		Limits: crawler.Limits{
			MaxPages: cfg.MaxPagesPerRun,
			MaxItems: cfg.MaxNewItemsPerRun,
		},
		RateMinDelay:           cfg.MinDelay,
		RateMaxDelay:           cfg.MaxDelay,
		PageCacheTTL:           cfg.PageCacheTTL,
		MaxConsecutiveFailures: cfg.MaxConsecutiveFailures,
		DiscoveryMaxAge:        cfg.URLTTL,
		KeepSnapshots:          cfg.KeepSnapshots,
	}
}

func batchConfig(cfg config.Interface) batch.Config {
	b := cfg.GetBatchConfig()
	crawl := cfg.GetCrawlerConfig()
	return batch.Config{
		BatchSize:     b.Size,
		Concurrency:   crawl.Concurrency,
		RetryAttempts: b.RetryAttempts,
		RetryBackoff:  b.RetryBackoffUnit,
		BatchDelay:    b.InterBatchDelay,
		KeepSnapshots: crawl.KeepSnapshots,
	}
}
