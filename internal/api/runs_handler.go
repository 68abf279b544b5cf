package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/carcrawl/carcrawl/internal/logger"
	"github.com/carcrawl/carcrawl/internal/storage"
)

const (
	defaultRunListLimit = 20
	maxRunListLimit     = 200
)

// RunsHandler serves crawl run history.
type RunsHandler struct {
	runs RunStore
	log  logger.Interface
}

// NewRunsHandler creates a handler backed by the given run store.
func NewRunsHandler(runs RunStore, log logger.Interface) *RunsHandler {
	return &RunsHandler{runs: runs, log: log}
}

// List returns the most recent runs, newest first, optionally filtered
// by source.
//
// GET /api/v1/runs?source_id=...&limit=...
func (h *RunsHandler) List(c *gin.Context) {
	limit := parseLimit(c, defaultRunListLimit, maxRunListLimit)
	sourceID := c.Query("source_id")

	runs, err := h.runs.ListRecent(c.Request.Context(), sourceID, limit)
	if err != nil {
		h.log.Error("Failed to list runs", "source_id", sourceID, "error", err)
		respondInternalError(c, "failed to list runs")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"total": len(runs),
	})
}

// Get returns a single run by id.
//
// GET /api/v1/runs/:id
func (h *RunsHandler) Get(c *gin.Context) {
	id := c.Param("id")

	run, err := h.runs.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondNotFound(c, "run")
			return
		}
		h.log.Error("Failed to get run", "id", id, "error", err)
		respondInternalError(c, "failed to get run")
		return
	}

	c.JSON(http.StatusOK, run)
}
