package bootstrap

import (
	"github.com/carcrawl/carcrawl/internal/config"
	"github.com/carcrawl/carcrawl/internal/fetcher"
	"github.com/carcrawl/carcrawl/internal/logger"
)

// FetcherComponents holds the two fetch strategies. Static serves plain
// HTML sources; Dynamic drives a headless browser for sources flagged
// render_js.
type FetcherComponents struct {
	Static  *fetcher.Static
	Dynamic *fetcher.Dynamic
}

// SetupFetchers builds both fetchers from the crawler configuration.
func SetupFetchers(cfg *config.CrawlerConfig, log logger.Interface) *FetcherComponents {
	fcfg := fetcherConfig(cfg)
	return &FetcherComponents{
		Static:  fetcher.NewStatic(fcfg, log),
		Dynamic: fetcher.NewDynamic(fcfg, log),
	}
}

func fetcherConfig(cfg *config.CrawlerConfig) fetcher.Config {
	return fetcher.Config{
		UserAgent:      cfg.UserAgent,
		RequestTimeout: cfg.RequestTimeout,
		RespectRobots:  cfg.RespectRobotsTxt,
	}
}
