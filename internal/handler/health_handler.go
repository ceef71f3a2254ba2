package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bakate/aeroreserve/pkg/database"
	"github.com/bakate/aeroreserve/pkg/redis"
)

// HealthHandler handles health check endpoints. Readiness results are
// cached briefly so probe storms do not hammer the database.
type HealthHandler struct {
	db       *database.PostgresDB
	redis    *redis.Client
	cacheTTL time.Duration

	mu         sync.Mutex
	lastResult *ReadyResponse
	lastStatus int
	lastAt     time.Time
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db *database.PostgresDB, redis *redis.Client, cacheTTL time.Duration) *HealthHandler {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Second
	}
	return &HealthHandler{
		db:       db,
		redis:    redis,
		cacheTTL: cacheTTL,
	}
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadyResponse represents readiness check response
type ReadyResponse struct {
	Status     string            `json:"status"`
	Timestamp  string            `json:"timestamp"`
	Components map[string]string `json:"components"`
}

// Health returns a simple health check (liveness probe)
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready returns a readiness check (readiness probe)
func (h *HealthHandler) Ready(c *gin.Context) {
	h.mu.Lock()
	if h.lastResult != nil && time.Since(h.lastAt) < h.cacheTTL {
		result, status := h.lastResult, h.lastStatus
		h.mu.Unlock()
		c.JSON(status, result)
		return
	}
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	components := make(map[string]string)
	allHealthy := true

	if h.db != nil {
		if err := h.db.HealthCheck(ctx); err != nil {
			components["database"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			components["database"] = "healthy"
		}
	} else {
		components["database"] = "not configured"
	}

	if h.redis != nil {
		if err := h.redis.HealthCheck(ctx); err != nil {
			components["redis"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			components["redis"] = "healthy"
		}
	} else {
		components["redis"] = "not configured"
	}

	result := &ReadyResponse{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Components: components,
	}
	status := http.StatusOK
	if allHealthy {
		result.Status = "ready"
	} else {
		result.Status = "not ready"
		status = http.StatusServiceUnavailable
	}

	h.mu.Lock()
	h.lastResult = result
	h.lastStatus = status
	h.lastAt = time.Now()
	h.mu.Unlock()

	c.JSON(status, result)
}
