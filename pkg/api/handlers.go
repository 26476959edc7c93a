package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/OU-Studio/summary-access/pkg/logging"
	"github.com/OU-Studio/summary-access/pkg/summary"
	"github.com/OU-Studio/summary-access/pkg/upstream"
)

// Handler serves the summary API endpoints.
type Handler struct {
	service *summary.Service
	logger  zerolog.Logger
}

// NewHandler creates the API handler around the aggregation gate.
func NewHandler(service *summary.Service) *Handler {
	return &Handler{
		service: service,
		logger:  logging.NewLogger("api"),
	}
}

// GetSummary handles GET /api/summary?domain=&base=&category=&tag=&featured=.
func (h *Handler) GetSummary(c *gin.Context) {
	q := summary.Query{
		Domain:       c.Query("domain"),
		BasePath:     c.Query("base"),
		Category:     c.Query("category"),
		Tag:          c.Query("tag"),
		FeaturedOnly: strings.EqualFold(c.Query("featured"), "true"),
	}

	items, err := h.service.Aggregate(c.Request.Context(), q)
	if err != nil {
		switch {
		case errors.Is(err, summary.ErrBadRequest):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid domain/base"})
		case errors.Is(err, summary.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": "Unauthorized domain for summary API"})
		case errors.Is(err, summary.ErrUpstreamAuthRequired):
			// Visitor-gated collection. Tell the widget to run its own
			// direct fetch with the visitor's credentials.
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":  "UPSTREAM_401",
				"detail": "Collection requires visitor authentication; use the client-side fetch fallback.",
			})
		default:
			h.logger.Error().
				Err(err).
				Str("domain", q.Domain).
				Msg("Summary aggregation failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate summary"})
		}
		return
	}

	if items == nil {
		items = []upstream.Item{}
	}

	c.Header("Cache-Control", "public, max-age=60")
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// PurgeSummary handles POST /api/summary/purge with body {"domain": "..."}.
func (h *Handler) PurgeSummary(c *gin.Context) {
	var body struct {
		Domain string `json:"domain"`
	}

	if err := c.ShouldBindJSON(&body); err != nil || body.Domain == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "domain required"})
		return
	}

	purged, err := h.service.PurgeTenant(c.Request.Context(), body.Domain)
	if err != nil {
		if errors.Is(err, summary.ErrBadRequest) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "domain required"})
			return
		}
		h.logger.Error().Err(err).Str("domain", body.Domain).Msg("Cache purge failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "purge failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "purged": purged})
}

// Health handles GET /health.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
