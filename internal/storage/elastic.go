package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/carcrawl/carcrawl/internal/domain"
	"github.com/carcrawl/carcrawl/internal/logger"
)

const (
	// DefaultListingIndex is the Elasticsearch index listings mirror into.
	DefaultListingIndex = "carcrawl-listings"
	// DefaultIndexTimeout bounds a single index operation.
	DefaultIndexTimeout = 10 * time.Second
)

// MirrorConfig holds the optional Elasticsearch mirror settings.
type MirrorConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	APIKey    string   `mapstructure:"api_key"`
	Index     string   `mapstructure:"index"`
}

// Mirror copies persisted listings into Elasticsearch for search. Mirroring
// is best-effort: the relational row is the source of truth and a mirror
// failure never fails the upsert that triggered it.
type Mirror struct {
	client *es.Client
	index  string
	logger logger.Interface
}

// NewMirror creates an Elasticsearch mirror, or returns ErrMirrorDisabled
// when the configuration leaves it off.
func NewMirror(cfg MirrorConfig, log logger.Interface) (*Mirror, error) {
	if !cfg.Enabled {
		return nil, ErrMirrorDisabled
	}

	clientConfig := es.Config{
		Addresses: cfg.Addresses,
	}
	if cfg.APIKey != "" {
		clientConfig.APIKey = cfg.APIKey
	} else if cfg.Username != "" && cfg.Password != "" {
		clientConfig.Username = cfg.Username
		clientConfig.Password = cfg.Password
	}

	client, err := es.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	index := cfg.Index
	if index == "" {
		index = DefaultListingIndex
	}

	return &Mirror{client: client, index: index, logger: log}, nil
}

// IndexListing writes the listing document under its dedup key, so mirroring
// is as idempotent as the upsert it follows.
func (m *Mirror) IndexListing(ctx context.Context, listing *domain.Listing, dedupKey string) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultIndexTimeout)
	defer cancel()

	body, err := json.Marshal(listing)
	if err != nil {
		return fmt.Errorf("failed to marshal listing for indexing: %w", err)
	}

	res, err := m.client.Index(
		m.index,
		bytes.NewReader(body),
		m.client.Index.WithContext(ctx),
		m.client.Index.WithDocumentID(dedupKey),
		m.client.Index.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("failed to index listing: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch error: %s", res.String())
	}

	m.logger.Debug("Listing mirrored to search index",
		"index", m.index,
		"dedup_key", dedupKey,
	)
	return nil
}

// DeleteListing removes a mirrored document, used when a listing deprecates.
func (m *Mirror) DeleteListing(ctx context.Context, dedupKey string) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultIndexTimeout)
	defer cancel()

	res, err := m.client.Delete(
		m.index,
		dedupKey,
		m.client.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to delete mirrored listing: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("elasticsearch error: %s", res.String())
	}

	return nil
}

// ListingIndexer is the mirror surface the gateway decorator needs.
type ListingIndexer interface {
	IndexListing(ctx context.Context, listing *domain.Listing, dedupKey string) error
}

// mirroredGateway decorates a Gateway so created and updated listings are
// copied into the search mirror. Duplicates are already indexed and are
// skipped.
type mirroredGateway struct {
	inner  Gateway
	mirror ListingIndexer
	logger logger.Interface
}

// WithMirror wraps the gateway so successful upserts also index into the
// mirror. The relational row stays the source of truth; mirror failures
// are logged and never surface to the caller.
func WithMirror(inner Gateway, mirror ListingIndexer, log logger.Interface) Gateway {
	return &mirroredGateway{inner: inner, mirror: mirror, logger: log}
}

func (g *mirroredGateway) Upsert(
	ctx context.Context,
	listing *domain.Listing,
	dedupKey string,
) (domain.UpsertOutcome, error) {
	outcome, err := g.inner.Upsert(ctx, listing, dedupKey)
	if err != nil {
		return outcome, err
	}

	if outcome == domain.OutcomeCreated || outcome == domain.OutcomeUpdated {
		if mErr := g.mirror.IndexListing(ctx, listing, dedupKey); mErr != nil {
			g.logger.Warn("Search mirror index failed",
				"dedup_key", dedupKey,
				"error", mErr,
			)
		}
	}

	return outcome, nil
}

func (g *mirroredGateway) FindByDedupKey(ctx context.Context, dedupKey string) (*domain.Listing, error) {
	return g.inner.FindByDedupKey(ctx, dedupKey)
}
