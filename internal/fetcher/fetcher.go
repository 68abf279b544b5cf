// Package fetcher retrieves pages for the crawl loop. The static fetcher
// covers server-rendered sites; the dynamic fetcher drives a headless
// browser for sites that only render listings client-side.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Page is a fetched page. Body is the raw response bytes.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       []byte
	FetchedAt  time.Time
	Elapsed    time.Duration
}

// HTML returns the page body as a string.
func (p *Page) HTML() string {
	return string(p.Body)
}

// Success reports whether the response carried a 2xx status. Non-2xx pages
// are still returned with their body so callers can inspect them, but the
// crawl loop treats them as fetch failures.
func (p *Page) Success() bool {
	return p.StatusCode >= 200 && p.StatusCode < 300
}

// Fetcher retrieves a single page. Implementations honor the configured
// hard timeout and never panic on network failure; a timeout is an error
// like any other.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// Sentinel errors for fetch outcomes.
var (
	// ErrNotHTML is returned when the response is not an HTML document.
	ErrNotHTML = errors.New("response is not HTML")
	// ErrBlockedByRobots is returned when robots.txt disallows the URL.
	ErrBlockedByRobots = errors.New("blocked by robots.txt")
)

// Error wraps a failed fetch with its URL and status code. A fetch error
// aborts the seed loop that issued it; it is counted, not retried at this
// layer.
type Error struct {
	URL        string
	StatusCode int
	Timeout    bool
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("fetch %s: timed out", e.URL)
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsTimeout reports whether err is a fetch timeout.
func IsTimeout(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Timeout
}
