// Package api implements the monitoring HTTP API for the crawler:
// run history, the source directory, the scheduler's due view, and
// stored listings.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/carcrawl/carcrawl/internal/domain"
	"github.com/carcrawl/carcrawl/internal/logger"
	"github.com/carcrawl/carcrawl/internal/sources"
	"github.com/carcrawl/carcrawl/internal/stats"
)

// RunStore provides read access to persisted crawl runs.
type RunStore interface {
	ListRecent(ctx context.Context, sourceID string, limit int) ([]*domain.CrawlRun, error)
	GetByID(ctx context.Context, id string) (*domain.CrawlRun, error)
}

// ListingStore provides read access to stored listings.
type ListingStore interface {
	ListBySource(ctx context.Context, sourceID string, limit int) ([]*domain.Listing, error)
	CountBySource(ctx context.Context, sourceID string) (int, error)
}

// SourceDirectory exposes the configured sources plus any entries
// rejected during the last configuration load.
type SourceDirectory interface {
	Sources() []*domain.Source
	Problems() []sources.Problem
}

// ScheduleView reports which sources the scheduler would explore.
type ScheduleView interface {
	CurrentBucket(now time.Time) int
	DueSources(now time.Time, bucket int) []*domain.Source
}

// Params holds the dependencies for the monitoring API.
type Params struct {
	Addr      string
	Logger    logger.Interface
	Runs      RunStore
	Listings  ListingStore
	Sources   SourceDirectory
	Schedule  ScheduleView
	Telemetry *stats.Telemetry
}

// SetupRouter creates and configures the Gin router with all routes.
func SetupRouter(p Params) *gin.Engine {
	// Disable Gin's default logging
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(p.Logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if p.Telemetry != nil {
		router.GET("/metrics", gin.WrapH(p.Telemetry.Handler()))
	}

	v1 := router.Group("/api/v1")

	if p.Runs != nil {
		runs := NewRunsHandler(p.Runs, p.Logger)
		v1.GET("/runs", runs.List)
		v1.GET("/runs/:id", runs.Get)
	}

	if p.Sources != nil {
		srcs := NewSourcesHandler(p.Sources, p.Schedule, p.Logger)
		v1.GET("/sources", srcs.List)
		if p.Schedule != nil {
			v1.GET("/sources/due", srcs.Due)
		}
	}

	if p.Listings != nil {
		listings := NewListingsHandler(p.Listings, p.Logger)
		v1.GET("/listings", listings.List)
	}

	return router
}

// loggingMiddleware creates a middleware that logs HTTP requests.
func loggingMiddleware(log logger.Interface) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		log.Info("HTTP Request",
			"method", c.Request.Method,
			"path", path,
			"query", query,
			"status", statusCode,
			"latency", latency,
		)
	}
}
