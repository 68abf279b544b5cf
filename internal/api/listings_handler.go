package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/carcrawl/carcrawl/internal/logger"
)

const (
	defaultListingListLimit = 50
	maxListingListLimit     = 500
)

// ListingsHandler serves stored vehicle listings.
type ListingsHandler struct {
	store ListingStore
	log   logger.Interface
}

// NewListingsHandler creates a handler backed by the given listing store.
func NewListingsHandler(store ListingStore, log logger.Interface) *ListingsHandler {
	return &ListingsHandler{store: store, log: log}
}

// List returns listings for one source, newest first. The total counts
// every stored listing for the source, not just the returned page.
//
// GET /api/v1/listings?source_id=...&limit=...
func (h *ListingsHandler) List(c *gin.Context) {
	sourceID := c.Query("source_id")
	if sourceID == "" {
		respondBadRequest(c, "source_id is required")
		return
	}
	limit := parseLimit(c, defaultListingListLimit, maxListingListLimit)

	listings, err := h.store.ListBySource(c.Request.Context(), sourceID, limit)
	if err != nil {
		h.log.Error("Failed to list listings", "source_id", sourceID, "error", err)
		respondInternalError(c, "failed to list listings")
		return
	}

	total, err := h.store.CountBySource(c.Request.Context(), sourceID)
	if err != nil {
		h.log.Error("Failed to count listings", "source_id", sourceID, "error", err)
		respondInternalError(c, "failed to count listings")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"listings": listings,
		"total":    total,
	})
}
