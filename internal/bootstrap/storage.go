package bootstrap

import (
	"errors"
	"fmt"

	"github.com/carcrawl/carcrawl/internal/config"
	"github.com/carcrawl/carcrawl/internal/logger"
	"github.com/carcrawl/carcrawl/internal/storage"
)

// SetupGateway builds the listing gateway around the relational store.
// When the Elasticsearch mirror is enabled, persisted listings are also
// indexed for search; the relational row stays the source of truth.
func SetupGateway(
	inner storage.Gateway,
	cfg *config.ElasticsearchConfig,
	log logger.Interface,
) (storage.Gateway, error) {
	mirror, err := storage.NewMirror(mirrorConfig(cfg), log)
	if errors.Is(err, storage.ErrMirrorDisabled) {
		return inner, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create search mirror: %w", err)
	}

	log.Info("Search mirror enabled", "index", cfg.IndexName)
	return storage.WithMirror(inner, mirror, log), nil
}

func mirrorConfig(cfg *config.ElasticsearchConfig) storage.MirrorConfig {
	return storage.MirrorConfig{
		Enabled:   cfg.Enabled,
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		APIKey:    cfg.APIKey,
		Index:     cfg.IndexName,
	}
}
