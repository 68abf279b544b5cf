package feed

import (
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// FeedItem is a single entry from an RSS or Atom feed.
type FeedItem struct {
	URL         string
	Title       string
	PublishedAt *time.Time
}

// ParseFeed parses an RSS or Atom feed body. Entries without a usable link
// are skipped; an empty feed returns a non-nil empty slice.
func ParseFeed(body []byte) ([]FeedItem, error) {
	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items := make([]FeedItem, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		link := entryLink(entry)
		if link == "" {
			continue
		}
		items = append(items, FeedItem{
			URL:         link,
			Title:       entry.Title,
			PublishedAt: entry.PublishedParsed,
		})
	}

	return items, nil
}

// entryLink prefers the explicit link, falling back to a GUID that looks
// like an HTTP URL.
func entryLink(entry *gofeed.Item) string {
	if entry.Link != "" {
		return entry.Link
	}
	if strings.HasPrefix(entry.GUID, "http") {
		return entry.GUID
	}
	return ""
}
