package fetcher

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/carcrawl/carcrawl/internal/logger"
)

// Context keys for the per-request result slot.
const (
	ctxKeyPage = "fetch_page"
	ctxKeyErr  = "fetch_error"
)

// Non-document content types we refuse to hand to the HTML parsers.
var nonDocumentTypes = []string{
	"image/",
	"video/",
	"audio/",
	"application/pdf",
	"application/octet-stream",
	"application/zip",
}

// Static fetches pages over plain HTTP. One collector serves all requests;
// each Fetch carries its own colly context so concurrent callers never see
// each other's results.
type Static struct {
	collector *colly.Collector
	config    Config
	logger    logger.Interface
}

// NewStatic creates a static fetcher. The collector request timeout is the
// hard per-page timeout; a page that exceeds it fails with a timeout error.
func NewStatic(cfg Config, log logger.Interface) *Static {
	cfg = cfg.WithDefaults()

	opts := []colly.CollectorOption{
		colly.UserAgent(cfg.UserAgent),
		colly.MaxBodySize(cfg.MaxBodySize),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
	}
	if !cfg.RespectRobots {
		opts = append(opts, colly.IgnoreRobotsTxt())
	}
	if len(cfg.AllowedDomains) > 0 {
		opts = append(opts, colly.AllowedDomains(cfg.AllowedDomains...))
	}

	c := colly.NewCollector(opts...)
	c.SetRequestTimeout(cfg.RequestTimeout)
	c.SetRedirectHandler(redirectPolicy(cfg.MaxRedirects))

	c.OnResponse(func(r *colly.Response) {
		ct := strings.ToLower(r.Headers.Get("Content-Type"))
		for _, t := range nonDocumentTypes {
			if strings.HasPrefix(ct, t) {
				r.Ctx.Put(ctxKeyErr, &Error{
					URL:        r.Request.URL.String(),
					StatusCode: r.StatusCode,
					Err:        ErrNotHTML,
				})
				return
			}
		}

		body := make([]byte, len(r.Body))
		copy(body, r.Body)
		r.Ctx.Put(ctxKeyPage, &Page{
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       body,
			FetchedAt:  time.Now(),
		})
	})

	c.OnError(func(r *colly.Response, err error) {
		fe := &Error{Err: err}
		if r != nil && r.Request != nil {
			fe.URL = r.Request.URL.String()
			fe.StatusCode = r.StatusCode
		}
		fe.Timeout = isTimeoutErr(err)
		if errors.Is(err, colly.ErrRobotsTxtBlocked) {
			fe.Err = ErrBlockedByRobots
		}
		r.Ctx.Put(ctxKeyErr, fe)
	})

	return &Static{
		collector: c,
		config:    cfg,
		logger:    log,
	}
}

// Fetch retrieves url and returns the page. Non-2xx responses are returned
// as pages with their status code so the caller decides how to count them;
// transport failures and timeouts come back as *Error.
func (s *Static) Fetch(ctx context.Context, url string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{URL: url, Err: err}
	}

	cctx := colly.NewContext()
	start := time.Now()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := s.collector.Request("GET", url, nil, cctx, nil); err != nil {
			if cctx.GetAny(ctxKeyErr) == nil && cctx.GetAny(ctxKeyPage) == nil {
				cctx.Put(ctxKeyErr, &Error{URL: url, Err: err})
			}
		}
	}()

	select {
	case <-ctx.Done():
		// The transport request keeps running until the collector timeout
		// fires; the result is discarded with its context.
		return nil, &Error{URL: url, Timeout: errors.Is(ctx.Err(), context.DeadlineExceeded), Err: ctx.Err()}
	case <-done:
	}

	if v := cctx.GetAny(ctxKeyErr); v != nil {
		fe := v.(*Error)
		if fe.URL == "" {
			fe.URL = url
		}
		s.logger.Warn("fetch failed",
			"url", url,
			"status", fe.StatusCode,
			"timeout", fe.Timeout,
			"error", fe.Err,
		)
		return nil, fe
	}

	v := cctx.GetAny(ctxKeyPage)
	if v == nil {
		return nil, &Error{URL: url, Err: errors.New("no response received")}
	}

	page := v.(*Page)
	page.URL = url
	page.Elapsed = time.Since(start)

	s.logger.Debug("fetched page",
		"url", url,
		"status", page.StatusCode,
		"bytes", len(page.Body),
		"duration", page.Elapsed,
	)
	return page, nil
}

// isTimeoutErr reports whether err is a deadline or transport timeout.
func isTimeoutErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
