package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/carcrawl/carcrawl/internal/logger"
	"github.com/carcrawl/carcrawl/internal/scheduler"
)

// SourcesHandler serves the configured source directory and the
// scheduler's view of what is due for exploration.
type SourcesHandler struct {
	dir   SourceDirectory
	sched ScheduleView
	log   logger.Interface
	now   func() time.Time
}

// NewSourcesHandler creates a handler over the source directory.
func NewSourcesHandler(dir SourceDirectory, sched ScheduleView, log logger.Interface) *SourcesHandler {
	return &SourcesHandler{dir: dir, sched: sched, log: log, now: time.Now}
}

// List returns every configured source plus any configuration entries
// rejected during the last load.
//
// GET /api/v1/sources
func (h *SourcesHandler) List(c *gin.Context) {
	srcs := h.dir.Sources()
	problems := h.dir.Problems()

	c.JSON(http.StatusOK, gin.H{
		"sources":  srcs,
		"total":    len(srcs),
		"problems": problems,
	})
}

// Due returns the sources the scheduler would explore in the given
// hour bucket, defaulting to the current hour's bucket.
//
// GET /api/v1/sources/due?bucket=N
func (h *SourcesHandler) Due(c *gin.Context) {
	now := h.now()

	bucket := h.sched.CurrentBucket(now)
	if raw := c.Query("bucket"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > scheduler.Buckets {
			respondBadRequest(c, fmt.Sprintf("bucket must be between 1 and %d", scheduler.Buckets))
			return
		}
		bucket = parsed
	}

	due := h.sched.DueSources(now, bucket)

	c.JSON(http.StatusOK, gin.H{
		"bucket": bucket,
		"due":    due,
		"total":  len(due),
	})
}
