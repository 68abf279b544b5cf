package generator

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// yamlEntry mirrors the sources-file entry shape the loader decodes.
type yamlEntry struct {
	ID                string   `yaml:"id"`
	Name              string   `yaml:"name"`
	SeedURLs          []string `yaml:"seed_urls"`
	ListingURLPattern string   `yaml:"listing_url_pattern"`
	AllowPatterns     []string `yaml:"allow_patterns"`
	DenyPatterns      []string `yaml:"deny_patterns"`
	DedupKey          string   `yaml:"dedup_key"`
	Frequency         string   `yaml:"frequency"`
	Enabled           bool     `yaml:"enabled"`
}

// YAML renders the proposal as a sources-file entry. The entry ships
// disabled; an operator reviews the patterns before turning it on.
func (p *Proposal) YAML() ([]byte, error) {
	doc := struct {
		Sources []yamlEntry `yaml:"sources"`
	}{
		Sources: []yamlEntry{{
			ID:                p.ID,
			Name:              p.Name,
			SeedURLs:          []string{p.SeedURL},
			ListingURLPattern: p.ListingURLPattern,
			AllowPatterns:     p.AllowPatterns,
			DenyPatterns:      p.DenyPatterns,
			DedupKey:          "canonical_url",
			Frequency:         "daily",
			Enabled:           false,
		}},
	}

	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to render proposal: %w", err)
	}
	return out, nil
}
