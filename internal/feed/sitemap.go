// Package feed discovers candidate listing URLs from the structured surfaces
// a site publishes alongside its HTML: sitemap XML and RSS/Atom feeds.
package feed

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

// dateOnlyFormat is the date-only layout sitemap lastmod values often use.
const dateOnlyFormat = "2006-01-02"

// SitemapEntry is one URL from a sitemap, with its lastmod when stated.
type SitemapEntry struct {
	URL     string
	LastMod *time.Time
}

type xmlURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []xmlURL `xml:"url"`
}

type xmlURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod"`
}

type xmlSitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []xmlSitemap `xml:"sitemap"`
}

type xmlSitemap struct {
	Loc string `xml:"loc"`
}

// Sitemap is a parsed sitemap document: either a list of page entries or a
// list of child sitemap URLs, never both.
type Sitemap struct {
	Entries  []SitemapEntry
	Children []string
}

// IsIndex reports whether the document was a sitemap index.
func (s *Sitemap) IsIndex() bool {
	return len(s.Children) > 0
}

// ParseSitemap parses either a urlset or a sitemapindex document, detected
// from the root element. maxAge, when positive, drops entries whose lastmod
// is older than now-maxAge; entries without a lastmod always survive.
func ParseSitemap(body []byte, maxAge time.Duration, now time.Time) (*Sitemap, error) {
	root, err := rootElement(body)
	if err != nil {
		return nil, err
	}

	switch root {
	case "sitemapindex":
		var index xmlSitemapIndex
		if unmarshalErr := xml.Unmarshal(body, &index); unmarshalErr != nil {
			return nil, fmt.Errorf("parse sitemap index: %w", unmarshalErr)
		}
		children := make([]string, 0, len(index.Sitemaps))
		for _, s := range index.Sitemaps {
			if loc := strings.TrimSpace(s.Loc); loc != "" {
				children = append(children, loc)
			}
		}
		return &Sitemap{Children: children}, nil

	case "urlset":
		var urlset xmlURLSet
		if unmarshalErr := xml.Unmarshal(body, &urlset); unmarshalErr != nil {
			return nil, fmt.Errorf("parse sitemap: %w", unmarshalErr)
		}
		return &Sitemap{Entries: filterEntries(urlset.URLs, cutoff(maxAge, now))}, nil

	default:
		return nil, fmt.Errorf("unrecognized sitemap root element %q", root)
	}
}

// rootElement returns the local name of the document's first start element.
func rootElement(body []byte) (string, error) {
	decoder := xml.NewDecoder(strings.NewReader(string(body)))
	for {
		tok, err := decoder.Token()
		if err != nil {
			return "", fmt.Errorf("parse sitemap: %w", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}

func cutoff(maxAge time.Duration, now time.Time) time.Time {
	if maxAge <= 0 {
		return time.Time{}
	}
	return now.Add(-maxAge)
}

func filterEntries(raw []xmlURL, cutoff time.Time) []SitemapEntry {
	entries := make([]SitemapEntry, 0, len(raw))
	for i := range raw {
		loc := strings.TrimSpace(raw[i].Loc)
		if loc == "" {
			continue
		}

		entry := SitemapEntry{URL: loc}
		if raw[i].LastMod != "" {
			if t, err := parseLastMod(raw[i].LastMod); err == nil {
				entry.LastMod = &t
			}
		}

		if !cutoff.IsZero() && entry.LastMod != nil && entry.LastMod.Before(cutoff) {
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// parseLastMod tries RFC 3339 first, then the date-only layout.
func parseLastMod(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)

	if t, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return t, nil
	}

	t, err := time.Parse(dateOnlyFormat, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse lastmod %q: %w", trimmed, err)
	}
	return t, nil
}
