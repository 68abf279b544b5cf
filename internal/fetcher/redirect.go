package fetcher

import (
	"errors"
	"net/http"
)

// ErrTooManyRedirects is returned when a page bounces through more hops
// than the configured limit. Listing sites occasionally loop old inventory
// URLs back onto themselves.
var ErrTooManyRedirects = errors.New("too many redirects")

// redirectPolicy returns a CheckRedirect function that follows up to
// maxHops redirects. With maxHops <= 0 the client default applies.
func redirectPolicy(maxHops int) func(*http.Request, []*http.Request) error {
	return func(_ *http.Request, via []*http.Request) error {
		if maxHops > 0 && len(via) >= maxHops {
			return ErrTooManyRedirects
		}
		return nil
	}
}
