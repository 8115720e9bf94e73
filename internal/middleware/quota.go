package middleware

import (
	"github.com/gin-gonic/gin"

	"tenancy-service/internal/models"
	"tenancy-service/internal/services"
)

// RequireQuota denies the request when the admitted tenant has exhausted
// the given metric. The check is strict: if usage cannot be read, the
// request is rejected, not waved through.
func RequireQuota(usage *services.UsageService, metric string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tc, ok := GetTenantContext(c)
		if !ok {
			Reject(c, services.ErrTenantRequired())
			return
		}
		if err := usage.Check(c.Request.Context(), tc, metric); err != nil {
			if ge, ok := services.AsGateError(err); ok {
				Reject(c, ge)
				return
			}
			Reject(c, services.ErrUsageLimitCheck(err))
			return
		}
		c.Next()
	}
}

// MeterAPICalls records one api_calls increment for every request that a
// handler actually served. Recording is asynchronous and never delays or
// fails the response.
func MeterAPICalls(usage *services.UsageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		tc, ok := GetTenantContext(c)
		if !ok {
			return
		}
		// Rejected or failed requests do not consume quota
		if c.IsAborted() || c.Writer.Status() >= 500 {
			return
		}
		usage.Record(tc.TenantID, models.MetricAPICalls, 1)
	}
}
