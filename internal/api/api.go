// Package api exposes the search core over HTTP: POST /search and its
// per-kind specializations, GET /health, GET /search/cache/stats, and the
// inbound webhook invalidation endpoint (spec.md §6). Adapted from the
// teacher's apps/mcp-server/internal/api/handlers gin handler shape — one
// handler struct wrapping a service, RegisterRoutes attaching it to a
// *gin.RouterGroup, gin.H error bodies.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/corkum-labs/graphcore/internal/apperr"
	"github.com/corkum-labs/graphcore/internal/graphstore"
	"github.com/corkum-labs/graphcore/internal/observability"
	"github.com/corkum-labs/graphcore/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handler wires the search service into gin routes.
type Handler struct {
	svc     *service.Service
	dialect graphstore.Dialect
	logger  observability.Logger
	metrics observability.MetricsClient
}

// NewHandler constructs a Handler bound to an already-assembled Service.
func NewHandler(svc *service.Service, dialect graphstore.Dialect, logger observability.Logger, metrics observability.MetricsClient) *Handler {
	return &Handler{svc: svc, dialect: dialect, logger: logger, metrics: metrics}
}

// NewRouter builds the gin engine, including the inbound-concurrency
// semaphore middleware spec.md §5 calls for (a buffered channel sized to
// maxConcurrent, rejecting with 429 when full rather than queuing
// indefinitely).
func NewRouter(h *Handler, maxConcurrent int) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(h.loggingMiddleware())
	r.Use(backpressureMiddleware(maxConcurrent))

	r.GET("/health", h.HandleHealth)
	r.GET("/search/cache/stats", h.HandleCacheStats)
	r.POST("/webhooks/invalidate", h.HandleInvalidate)

	search := r.Group("/search")
	search.POST("", h.HandleSearchAll)
	search.POST("/edges", h.HandleSearchEdges)
	search.POST("/nodes", h.HandleSearchNodes)

	return r
}

func (h *Handler) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.logger.Debug("api: request handled", map[string]any{
			"path": c.Request.URL.Path, "status": c.Writer.Status(), "duration_ms": time.Since(start).Milliseconds(),
		})
	}
}

// backpressureMiddleware rejects requests with 429 once maxConcurrent
// in-flight requests are already being served, rather than letting them
// queue unbounded behind a slow graph store (spec.md §5, §7
// ResourceExhausted).
func backpressureMiddleware(maxConcurrent int) gin.HandlerFunc {
	if maxConcurrent <= 0 {
		maxConcurrent = 256
	}
	sem := make(chan struct{}, maxConcurrent)
	return func(c *gin.Context) {
		select {
		case sem <- struct{}{}:
			defer func() { <-sem }()
			c.Next()
		default:
			writeError(c, apperr.New(apperr.KindResourceExhausted, "too many in-flight requests"))
			c.Abort()
		}
	}
}

// writeError renders an *apperr.Error per the §7 wire contract:
// {error, message, retryable}.
func writeError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	c.JSON(kind.HTTPStatus(), gin.H{
		"error":     string(kind),
		"message":   err.Error(),
		"retryable": kind.Retryable(),
	})
}

// HandleHealth reports liveness/readiness by asking the graph store whether
// it can answer a trivial existence check (spec.md §6.1).
func (h *Handler) HandleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	database := "ok"
	status := "healthy"
	if _, err := h.dialect.NodesExist(ctx, []uuid.UUID{uuid.Nil}); err != nil {
		database = "unreachable"
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "database": database})
}

// HandleCacheStats exposes C2 occupancy for operational debugging
// (SPEC_FULL.md §6 supplement).
func (h *Handler) HandleCacheStats(c *gin.Context) {
	stats := h.svc.CacheStats()
	c.JSON(http.StatusOK, gin.H{
		"l1_len":      stats.L1Len,
		"l1_max_len":  stats.L1MaxLen,
		"l2_enabled":  stats.L2Enabled,
		"cache_version": stats.Version,
	})
}

// invalidateRequest is the inbound webhook payload (spec.md §6.5).
type invalidateRequest struct {
	Operation string   `json:"operation"`
	GroupID   string   `json:"group_id" binding:"required"`
	EntityIDs []string `json:"entity_ids,omitempty"`
}

// HandleInvalidate drives cache invalidation from ingestion-side writes.
// The endpoint is idempotent and best-effort: an invalidation error never
// fails the webhook call, it is only logged (spec.md §6.5).
func (h *Handler) HandleInvalidate(c *gin.Context) {
	var req invalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.New(apperr.KindInvalidInput, err.Error()))
		return
	}

	n, err := h.svc.InvalidateGroup(c.Request.Context(), req.GroupID)
	if err != nil {
		h.logger.Warn("api: invalidation failed", map[string]any{"group_id": req.GroupID, "error": err.Error()})
	}
	c.JSON(http.StatusOK, gin.H{"invalidated": n})
}
