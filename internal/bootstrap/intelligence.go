package bootstrap

import (
	"fmt"

	"github.com/carcrawl/carcrawl/internal/config"
	"github.com/carcrawl/carcrawl/internal/intelligence"
	"github.com/carcrawl/carcrawl/internal/logger"
)

// SetupIntelligence creates the content-intelligence client for the
// configured provider.
func SetupIntelligence(cfg *config.IntelligenceConfig, log logger.Interface) (*intelligence.Client, error) {
	client, err := intelligence.NewClient(intelligenceConfig(cfg), log)
	if err != nil {
		return nil, fmt.Errorf("failed to create intelligence client: %w", err)
	}
	return client, nil
}

func intelligenceConfig(cfg *config.IntelligenceConfig) intelligence.Config {
	return intelligence.Config{
		Provider:       cfg.Provider,
		APIKey:         cfg.APIKey,
		Model:          cfg.Model,
		MaxTokens:      cfg.MaxTokens,
		Temperature:    cfg.Temperature,
		RequestTimeout: cfg.RequestTimeout,
		RateLimit:      cfg.RateLimit,
		RateBurst:      cfg.RateBurst,
	}
}
