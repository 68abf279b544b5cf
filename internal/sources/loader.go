package sources

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/carcrawl/carcrawl/internal/domain"
)

// sourcesFile is the structure of a sources YAML file.
type sourcesFile struct {
	Sources []map[string]any `yaml:"sources"`
}

// loadFile reads the file and returns the valid sources in file order plus
// one problem per rejected entry. Only unreadable or unparseable files are
// errors; individual bad entries are skipped.
func loadFile(path string) ([]*domain.Source, []Problem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sources file: %w", err)
	}

	var file sourcesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, nil, fmt.Errorf("failed to parse sources file: %w", err)
	}
	if len(file.Sources) == 0 {
		return nil, nil, ErrNoSources
	}

	var (
		loaded   []*domain.Source
		problems []Problem
		seen     = make(map[string]bool)
	)
	for i, raw := range file.Sources {
		src, decodeErr := decodeSource(raw)
		if decodeErr != nil {
			problems = append(problems, Problem{
				ID:     entryID(raw, i),
				Reason: decodeErr.Error(),
			})
			continue
		}

		normalizeSource(src)
		if validateErr := validateSource(src); validateErr != nil {
			problems = append(problems, Problem{ID: entryID(raw, i), Reason: validateErr.Error()})
			continue
		}
		if seen[src.ID] {
			problems = append(problems, Problem{ID: src.ID, Reason: "duplicate source id"})
			continue
		}

		seen[src.ID] = true
		loaded = append(loaded, src)
	}

	if len(loaded) == 0 {
		return nil, problems, ErrNoSources
	}
	return loaded, problems, nil
}

// entryID labels a problem with the entry's id field, falling back to its
// position in the file.
func entryID(raw map[string]any, index int) string {
	if id, ok := raw["id"].(string); ok && id != "" {
		return id
	}
	return fmt.Sprintf("entry %d", index+1)
}

func decodeSource(raw map[string]any) (*domain.Source, error) {
	var src domain.Source
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &src,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if decodeErr := decoder.Decode(raw); decodeErr != nil {
		return nil, fmt.Errorf("failed to decode source: %w", decodeErr)
	}
	return &src, nil
}

// normalizeSource fills the optional enum fields with their defaults.
func normalizeSource(src *domain.Source) {
	src.ID = strings.TrimSpace(src.ID)
	src.Name = strings.TrimSpace(src.Name)
	if src.Name == "" {
		src.Name = src.ID
	}
	if src.Frequency == "" {
		src.Frequency = domain.FrequencyDaily
	}
	if src.DedupKey == "" {
		src.DedupKey = domain.DedupByCanonicalURL
	}
}

func validateSource(src *domain.Source) error {
	if src.ID == "" {
		return fmt.Errorf("missing id")
	}
	if len(src.SeedURLs) == 0 {
		return fmt.Errorf("no seed urls")
	}
	for _, seed := range src.SeedURLs {
		if err := validateHTTPURL(seed); err != nil {
			return fmt.Errorf("seed url %q: %w", seed, err)
		}
	}
	if src.ListingURLPattern == "" {
		return fmt.Errorf("missing listing_url_pattern")
	}
	if _, err := regexp.Compile(src.ListingURLPattern); err != nil {
		return fmt.Errorf("listing_url_pattern does not compile: %w", err)
	}
	for _, pattern := range src.AllowPatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("allow pattern %q does not compile: %w", pattern, err)
		}
	}
	for _, pattern := range src.DenyPatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("deny pattern %q does not compile: %w", pattern, err)
		}
	}

	switch src.Frequency {
	case domain.FrequencyHourly, domain.FrequencyDaily, domain.FrequencyWeekly:
	default:
		return fmt.Errorf("unknown frequency %q", src.Frequency)
	}
	switch src.DedupKey {
	case domain.DedupByCanonicalURL, domain.DedupByVIN, domain.DedupByExternalID:
	default:
		return fmt.Errorf("unknown dedup_key %q", src.DedupKey)
	}

	if src.ScraperOrder < 0 || src.ScraperOrder > 24 {
		return fmt.Errorf("scraper_order %d outside 0..24", src.ScraperOrder)
	}
	if src.SitemapURL != "" {
		if err := validateHTTPURL(src.SitemapURL); err != nil {
			return fmt.Errorf("sitemap_url: %w", err)
		}
	}
	if src.FeedURL != "" {
		if err := validateHTTPURL(src.FeedURL); err != nil {
			return fmt.Errorf("feed_url: %w", err)
		}
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("not a valid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
