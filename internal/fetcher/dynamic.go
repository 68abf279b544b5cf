package fetcher

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/carcrawl/carcrawl/internal/logger"
)

// Dynamic fetches pages through a headless browser for sources that only
// render their listings client-side. The browser allocator is shared; each
// Fetch runs in a fresh tab. The browser bypasses the transport-level
// robots handling, so the checker is consulted explicitly before
// navigating.
type Dynamic struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	robots      *Robots
	config      Config
	logger      logger.Interface
}

// NewDynamic creates a browser-backed fetcher. Call Close when done to shut
// the browser down.
func NewDynamic(cfg Config, log logger.Interface) *Dynamic {
	cfg = cfg.WithDefaults()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.UserAgent(cfg.UserAgent),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	d := &Dynamic{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		config:      cfg,
		logger:      log,
	}
	if cfg.RespectRobots {
		d.robots = NewRobots(&http.Client{Timeout: cfg.RequestTimeout}, cfg.UserAgent)
	}
	return d
}

// Fetch navigates to url, waits for the document body plus the configured
// render delay, and returns the rendered DOM. A rendered document implies a
// usable response, so the status code is reported as 200; navigation
// failures surface as errors.
func (d *Dynamic) Fetch(ctx context.Context, url string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{URL: url, Err: err}
	}

	if d.robots != nil {
		allowed, err := d.robots.Allowed(ctx, url)
		if err == nil && !allowed {
			return nil, &Error{URL: url, Err: ErrBlockedByRobots}
		}
	}

	tabCtx, tabCancel := chromedp.NewContext(d.allocCtx)
	defer tabCancel()

	runCtx, runCancel := context.WithTimeout(tabCtx, d.config.RequestTimeout)
	defer runCancel()

	// Caller cancellation tears the tab down mid-navigation.
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	var (
		html     string
		finalURL string
	)
	start := time.Now()

	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible("body", chromedp.ByQuery),
		chromedp.Sleep(d.config.RenderWait),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	elapsed := time.Since(start)

	if err != nil {
		fe := &Error{
			URL:     url,
			Timeout: errors.Is(err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded),
			Err:     err,
		}
		if ctx.Err() != nil {
			fe.Err = ctx.Err()
			fe.Timeout = errors.Is(ctx.Err(), context.DeadlineExceeded)
		}
		d.logger.Warn("dynamic fetch failed",
			"url", url,
			"timeout", fe.Timeout,
			"error", fe.Err,
		)
		return nil, fe
	}

	if finalURL == "" {
		finalURL = url
	}

	d.logger.Debug("rendered page",
		"url", url,
		"final_url", finalURL,
		"bytes", len(html),
		"duration", elapsed,
	)

	return &Page{
		URL:        url,
		FinalURL:   finalURL,
		StatusCode: http.StatusOK,
		Body:       []byte(html),
		FetchedAt:  time.Now(),
		Elapsed:    elapsed,
	}, nil
}

// Close shuts the shared browser down. The fetcher is unusable afterwards.
func (d *Dynamic) Close() {
	d.allocCancel()
}
