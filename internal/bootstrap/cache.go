package bootstrap

import (
	"fmt"

	"github.com/carcrawl/carcrawl/internal/cache"
	"github.com/carcrawl/carcrawl/internal/config"
	"github.com/carcrawl/carcrawl/internal/logger"
)

// defaultMemoryCacheEntries caps the in-memory page cache.
const defaultMemoryCacheEntries = 4096

// SetupCache picks the page cache backend. Redis when enabled, an
// in-memory LRU otherwise. An enabled but unreachable Redis is an error
// rather than a silent fallback.
func SetupCache(cfg *config.RedisConfig, log logger.Interface) (cache.Cache, error) {
	if !cfg.Enabled {
		return cache.NewMemory(defaultMemoryCacheEntries), nil
	}

	c, err := cache.NewRedis(cache.RedisConfig{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis cache: %w", err)
	}

	log.Info("Redis page cache enabled", "addr", cfg.Addr)
	return c, nil
}
