package handlers

import (
	"context"
	"net/http"
	"time"

	multitenancy "github.com/bartventer/gorm-multitenancy/v8"
	"github.com/gin-gonic/gin"

	"tenancy-service/internal/redis"
)

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	db    *multitenancy.DB
	cache *redis.Client
}

// NewHealthHandler creates a health handler
func NewHealthHandler(db *multitenancy.DB, cache *redis.Client) *HealthHandler {
	return &HealthHandler{db: db, cache: cache}
}

// Health is the liveness probe
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "tenancy-service",
		"timestamp": time.Now().UTC(),
	})
}

// Ready is the readiness probe; it checks the database and cache
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := gin.H{}
	healthy := true

	sqlDB, err := h.db.DB.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		checks["database"] = "unavailable"
		healthy = false
	} else {
		checks["database"] = "ok"
	}

	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			checks["redis"] = "unavailable"
			healthy = false
		} else {
			checks["redis"] = "ok"
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"status": map[bool]string{true: "ready", false: "not_ready"}[healthy],
		"checks": checks,
	})
}
