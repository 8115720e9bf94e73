package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tenancy-service/internal/config"
	"tenancy-service/internal/metrics"
	"tenancy-service/internal/models"
	"tenancy-service/internal/redis"
	"tenancy-service/internal/services"
)

// TenantLookup is the directory surface the gate needs.
// Implemented by repository.TenantDirectory.
type TenantLookup interface {
	GetBySlug(ctx context.Context, slug string) (*models.Tenant, error)
}

// Gate decides, per request, whether a resolved tenant may pass. It runs
// after the resolver and before any handler that touches tenant data.
// Lookup failures fail closed.
type Gate struct {
	directory TenantLookup
	cache     *redis.Client
	cfg       config.GateConfig
	logger    *logrus.Logger
}

// NewGate creates a tenant gate. cache may be nil, in which case every
// admission hits the directory.
func NewGate(directory TenantLookup, cache *redis.Client, cfg config.GateConfig, logger *logrus.Logger) *Gate {
	return &Gate{directory: directory, cache: cache, cfg: cfg, logger: logger}
}

// Middleware admits or rejects the request. On admission an immutable
// tenant snapshot is attached for everything downstream; the checks are
// never repeated within the request.
func (g *Gate) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		slug := c.GetString(ContextKeySlug)
		if slug == "" {
			Reject(c, services.ErrTenantRequired())
			return
		}

		tenant, err := g.lookup(c.Request.Context(), slug)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				Reject(c, services.ErrTenantNotFound(slug))
				return
			}
			g.logger.WithError(err).WithField("slug", slug).Error("Tenant lookup failed")
			Reject(c, services.ErrTenantValidation(err))
			return
		}

		if ge := admit(tenant, time.Now()); ge != nil {
			Reject(c, ge)
			return
		}

		metrics.GateDecisions.WithLabelValues("admitted").Inc()
		c.Set(ContextKeyTenant, models.NewTenantContext(tenant))
		c.Next()
	}
}

// admit applies the rejection checks in a fixed order and returns nil when
// the tenant may serve traffic
func admit(tenant *models.Tenant, now time.Time) *services.GateError {
	if !tenant.IsActive {
		return services.ErrTenantInactive(tenant.Slug)
	}
	switch tenant.Status {
	case models.StatusSuspended, models.StatusCanceled, models.StatusPastDue:
		return services.ErrSubscriptionRequired(tenant.Slug)
	}
	if tenant.Status == models.StatusTrialing && tenant.TrialEndsAt != nil && tenant.TrialEndsAt.Before(now) {
		return services.ErrTrialExpired(tenant.Slug)
	}
	return nil
}

func (g *Gate) lookup(ctx context.Context, slug string) (*models.Tenant, error) {
	if g.cache != nil {
		if tenant, ok := g.cache.GetTenant(ctx, slug); ok {
			return tenant, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(g.cfg.LookupTimeoutMS)*time.Millisecond)
	defer cancel()

	tenant, err := g.directory.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	if g.cache != nil {
		ttl := time.Duration(g.cfg.CacheTTLSeconds) * time.Second
		if err := g.cache.SetTenant(ctx, tenant, ttl); err != nil {
			g.logger.WithError(err).WithField("slug", slug).Warn("Failed to cache tenant lookup")
		}
	}
	return tenant, nil
}

// Reject writes a machine-readable rejection and aborts the request
func Reject(c *gin.Context, ge *services.GateError) {
	metrics.GateDecisions.WithLabelValues(ge.Kind).Inc()
	body := gin.H{
		"success":    false,
		"error":      ge.Kind,
		"message":    ge.Message,
		"request_id": c.GetString(ContextKeyRequestID),
		"timestamp":  time.Now().UTC(),
	}
	if ge.Limits != nil {
		body["limits"] = ge.Limits
	}
	c.AbortWithStatusJSON(ge.Status, body)
}
