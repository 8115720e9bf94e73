package repository

import (
	"context"
	"fmt"
	"time"

	multitenancy "github.com/bartventer/gorm-multitenancy/v8"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tenancy-service/internal/models"
)

// UsageRepository stores per-tenant usage counters in the shared schema.
// Counters are incremented atomically in the store; the application never
// does read-modify-write on them.
type UsageRepository struct {
	db *multitenancy.DB
}

// NewUsageRepository creates a new usage repository
func NewUsageRepository(db *multitenancy.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// Increment adds n to the counter for (tenant, metric, day), creating the
// row if needed. Concurrent callers serialize in the store via the upsert,
// so two increments of 1 always yield exactly 2.
func (r *UsageRepository) Increment(ctx context.Context, tenantID uuid.UUID, metric string, day time.Time, n int64) error {
	if n <= 0 {
		return fmt.Errorf("usage increment must be positive, got %d", n)
	}

	record := &models.UsageRecord{
		TenantID: tenantID,
		Metric:   metric,
		Day:      day.UTC().Truncate(24 * time.Hour),
		Count:    n,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "tenant_id"}, {Name: "metric"}, {Name: "day"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"count":      gorm.Expr("usage_records.count + EXCLUDED.count"),
			"updated_at": gorm.Expr("NOW()"),
		}),
	}).Create(record).Error
	if err != nil {
		return fmt.Errorf("increment usage %s/%s: %w", tenantID, metric, err)
	}
	return nil
}

// SumRange sums the counters for a tenant metric across the half-open
// window [from, to). The callers hand windows whose to is the next
// period's start, so a day equal to to belongs to the following window.
func (r *UsageRepository) SumRange(ctx context.Context, tenantID uuid.UUID, metric string, from, to time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.UsageRecord{}).
		Select("COALESCE(SUM(count), 0)").
		Where("tenant_id = ? AND metric = ? AND day >= ? AND day < ?",
			tenantID, metric,
			from.UTC().Truncate(24*time.Hour),
			to.UTC().Truncate(24*time.Hour)).
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("sum usage %s/%s: %w", tenantID, metric, err)
	}
	return total, nil
}

// TotalsByMetric returns lifetime totals per metric for one tenant.
// Used when archiving a tenant ahead of deletion.
func (r *UsageRepository) TotalsByMetric(ctx context.Context, tenantID uuid.UUID) (map[string]int64, error) {
	type row struct {
		Metric string
		Total  int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&models.UsageRecord{}).
		Select("metric, COALESCE(SUM(count), 0) AS total").
		Where("tenant_id = ?", tenantID).
		Group("metric").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("aggregate usage for %s: %w", tenantID, err)
	}

	totals := make(map[string]int64, len(rows))
	for _, r := range rows {
		totals[r.Metric] = r.Total
	}
	return totals, nil
}
