package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"mfgerp/internal/infrastructure/storage/postgres"
)

// Pinger reports database reachability.
type Pinger interface {
	Ping(ctx context.Context) error
	Stats() postgres.PoolStats
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	db      Pinger
	storage string
}

// NewHealthHandler creates a health handler. A nil db means the in-memory
// store is serving and readiness never fails.
func NewHealthHandler(db Pinger, storage string) *HealthHandler {
	return &HealthHandler{db: db, storage: storage}
}

// Live handles liveness probe.
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready handles readiness probe.
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"storage": h.storage,
		})
		return
	}

	if err := h.db.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "error",
			"storage": h.storage,
			"checks": map[string]string{
				"database": "unhealthy: " + err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"storage": h.storage,
		"checks": map[string]string{
			"database": "healthy",
		},
		"pool": h.db.Stats(),
	})
}
