package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tenancy-service/internal/config"
	"tenancy-service/internal/models"
	"tenancy-service/internal/services"
)

// MockUsageStore is a mock implementation of services.UsageStore
type MockUsageStore struct {
	mock.Mock
}

func (m *MockUsageStore) Increment(ctx context.Context, tenantID uuid.UUID, metric string, day time.Time, n int64) error {
	args := m.Called(ctx, tenantID, metric, day, n)
	return args.Error(0)
}

func (m *MockUsageStore) SumRange(ctx context.Context, tenantID uuid.UUID, metric string, from, to time.Time) (int64, error) {
	args := m.Called(ctx, tenantID, metric, from, to)
	return args.Get(0).(int64), args.Error(1)
}

func quotaTestServer(store services.UsageStore, metric string, tc models.TenantContext) *gin.Engine {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	usageSvc := services.NewUsageService(store, config.UsageConfig{QueueSize: 16, Workers: 1, FlushTimeoutMS: 1000}, logger)

	engine := gin.New()
	engine.Use(func(c *gin.Context) {
		c.Set(ContextKeyTenant, tc)
		c.Next()
	})
	engine.POST("/bookings", RequireQuota(usageSvc, metric), func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	})
	return engine
}

func quotaContext(limit int64) models.TenantContext {
	return models.TenantContext{
		TenantID:   uuid.New(),
		Slug:       "aegean-resorts",
		SchemaName: "t_aegean_resorts",
		TierName:   "basic",
		Status:     models.StatusActive,
		IsActive:   true,
		Limits:     models.TierLimits{MaxBookingsPerMonth: limit},
	}
}

func TestRequireQuota_UnderLimitAdmits(t *testing.T) {
	store := new(MockUsageStore)
	store.On("SumRange", mock.Anything, mock.Anything, models.MetricBookings, mock.Anything, mock.Anything).
		Return(int64(999), nil)

	engine := quotaTestServer(store, models.MetricBookings, quotaContext(1000))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest("POST", "/bookings", nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestRequireQuota_AtLimitDenies(t *testing.T) {
	store := new(MockUsageStore)
	store.On("SumRange", mock.Anything, mock.Anything, models.MetricBookings, mock.Anything, mock.Anything).
		Return(int64(1000), nil)

	engine := quotaTestServer(store, models.MetricBookings, quotaContext(1000))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest("POST", "/bookings", nil))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	body := decodeRejection(t, rec)
	assert.Equal(t, services.KindUsageLimitExceeded, body["error"])

	limits, ok := body["limits"].(map[string]interface{})
	require.True(t, ok, "rejection must carry limit details")
	assert.Equal(t, models.MetricBookings, limits["metric"])
	assert.Equal(t, float64(1000), limits["current"])
	assert.Equal(t, float64(1000), limits["limit"])

	tier, ok := limits["tier"].(map[string]interface{})
	require.True(t, ok, "rejection must carry the full tier snapshot")
	assert.Equal(t, float64(1000), tier["max_bookings_per_month"])
}

func TestRequireQuota_StoreFailureFailsClosed(t *testing.T) {
	store := new(MockUsageStore)
	store.On("SumRange", mock.Anything, mock.Anything, models.MetricBookings, mock.Anything, mock.Anything).
		Return(int64(0), errors.New("connection reset"))

	engine := quotaTestServer(store, models.MetricBookings, quotaContext(1000))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest("POST", "/bookings", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeRejection(t, rec)
	assert.Equal(t, services.KindUsageLimitCheck, body["error"])
}

func TestRequireQuota_UnlimitedTierSkipsRead(t *testing.T) {
	store := new(MockUsageStore)

	engine := quotaTestServer(store, models.MetricBookings, quotaContext(0))
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest("POST", "/bookings", nil))

	assert.Equal(t, http.StatusCreated, rec.Code)
	store.AssertNotCalled(t, "SumRange")
}

func TestRequireQuota_NoTenantContext(t *testing.T) {
	store := new(MockUsageStore)
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	usageSvc := services.NewUsageService(store, config.UsageConfig{QueueSize: 16, Workers: 1, FlushTimeoutMS: 1000}, logger)

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.POST("/bookings", RequireQuota(usageSvc, models.MetricBookings), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest("POST", "/bookings", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
