package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tenancy-service/internal/models"
)

// Context keys used across the middleware chain
const (
	ContextKeyRequestID = "request_id"
	ContextKeySlug      = "tenant_slug"
	ContextKeyTenant    = "tenant_context"
)

// RequestID assigns each request an ID, honoring one supplied by an
// upstream proxy
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(ContextKeyRequestID, requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// StructuredLogger logs each request with tenant attribution when available
func StructuredLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := logrus.Fields{
			"method":     c.Request.Method,
			"path":       path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
			"request_id": c.GetString(ContextKeyRequestID),
		}
		if tc, ok := GetTenantContext(c); ok {
			fields["tenant_slug"] = tc.Slug
		}

		entry := logger.WithFields(fields)
		switch {
		case c.Writer.Status() >= 500:
			entry.Error("Request completed")
		case c.Writer.Status() >= 400:
			entry.Warn("Request completed")
		default:
			entry.Info("Request completed")
		}
	}
}

// GetTenantContext returns the admitted tenant for this request. The
// second return value is false on ungated routes.
func GetTenantContext(c *gin.Context) (models.TenantContext, bool) {
	v, exists := c.Get(ContextKeyTenant)
	if !exists {
		return models.TenantContext{}, false
	}
	tc, ok := v.(models.TenantContext)
	if !ok || !tc.Valid() {
		return models.TenantContext{}, false
	}
	return tc, true
}
