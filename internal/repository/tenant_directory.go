package repository

import (
	"context"
	"fmt"

	multitenancy "github.com/bartventer/gorm-multitenancy/v8"
	"github.com/google/uuid"

	"tenancy-service/internal/models"
)

// TenantDirectory is the persistent registry of tenants and subscription
// tiers. Pure data access against the shared schema; no admission rules live
// here.
type TenantDirectory struct {
	db *multitenancy.DB
}

// NewTenantDirectory creates a new tenant directory
func NewTenantDirectory(db *multitenancy.DB) *TenantDirectory {
	return &TenantDirectory{db: db}
}

// GetBySlug looks a tenant up by its public identifier.
// Returns gorm.ErrRecordNotFound (wrapped) when the slug is unknown.
func (d *TenantDirectory) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := d.db.WithContext(ctx).Where("slug = ?", slug).First(&tenant).Error; err != nil {
		return nil, fmt.Errorf("lookup tenant by slug %q: %w", slug, err)
	}
	return &tenant, nil
}

// GetByID looks a tenant up by primary key
func (d *TenantDirectory) GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := d.db.WithContext(ctx).First(&tenant, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("lookup tenant by id %s: %w", id, err)
	}
	return &tenant, nil
}

// GetTier fetches a tier definition by name
func (d *TenantDirectory) GetTier(ctx context.Context, name string) (*models.SubscriptionTier, error) {
	var tier models.SubscriptionTier
	if err := d.db.WithContext(ctx).Where("name = ? AND is_active = ?", name, true).First(&tier).Error; err != nil {
		return nil, fmt.Errorf("lookup tier %q: %w", name, err)
	}
	return &tier, nil
}

// List returns a page of tenants ordered by creation time
func (d *TenantDirectory) List(ctx context.Context, page, pageSize int) ([]models.Tenant, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	var total int64
	if err := d.db.WithContext(ctx).Model(&models.Tenant{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count tenants: %w", err)
	}

	var tenants []models.Tenant
	if err := d.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&tenants).Error; err != nil {
		return nil, 0, fmt.Errorf("list tenants: %w", err)
	}

	return tenants, total, nil
}

// Deactivate clears the traffic flag. Subscription status is untouched;
// the gate rejects deactivated tenants regardless of status.
func (d *TenantDirectory) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := d.db.WithContext(ctx).Model(&models.Tenant{}).
		Where("id = ?", id).Update("is_active", false).Error; err != nil {
		return fmt.Errorf("deactivate tenant %s: %w", id, err)
	}
	return nil
}

// UpdateTier re-snapshots a tenant's limits from a tier definition. One
// statement, so concurrent readers see either the old snapshot or the
// new one, never a mix.
func (d *TenantDirectory) UpdateTier(ctx context.Context, id uuid.UUID, tier *models.SubscriptionTier) error {
	updates := map[string]interface{}{
		"tier_name":              tier.Name,
		"max_properties":         tier.Limits.MaxProperties,
		"max_bookings_per_month": tier.Limits.MaxBookingsPerMonth,
		"max_api_calls_per_day":  tier.Limits.MaxAPICallsPerDay,
	}
	if err := d.db.WithContext(ctx).Model(&models.Tenant{}).
		Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("update tier for tenant %s: %w", id, err)
	}
	return nil
}

// UpdateStatus applies a guarded subscription status change. The WHERE
// clause pins the expected current status; the returned count is zero
// when a concurrent transition moved the tenant first, and the caller
// must treat that as a lost race, not a success.
func (d *TenantDirectory) UpdateStatus(ctx context.Context, id uuid.UUID, from, to string, extra map[string]interface{}) (int64, error) {
	updates := map[string]interface{}{"status": to}
	for k, v := range extra {
		updates[k] = v
	}
	res := d.db.WithContext(ctx).Model(&models.Tenant{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return 0, fmt.Errorf("update status for tenant %s: %w", id, res.Error)
	}
	return res.RowsAffected, nil
}

// SlugTaken reports whether a slug is in use by a live tenant
func (d *TenantDirectory) SlugTaken(ctx context.Context, slug string) (bool, error) {
	var count int64
	if err := d.db.WithContext(ctx).Model(&models.Tenant{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check slug %q: %w", slug, err)
	}
	return count > 0, nil
}

// SchemaNameEverUsed reports whether a namespace identifier was ever handed
// out, including to tenants that have since been deleted. Dropped schema
// names are never reused.
func (d *TenantDirectory) SchemaNameEverUsed(ctx context.Context, schemaName string) (bool, error) {
	var count int64
	if err := d.db.WithContext(ctx).Model(&models.Tenant{}).Where("schema_name = ?", schemaName).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check schema name %q: %w", schemaName, err)
	}
	if count > 0 {
		return true, nil
	}
	if err := d.db.WithContext(ctx).Model(&models.DeletedTenant{}).Where("schema_name = ?", schemaName).Count(&count).Error; err != nil {
		return false, fmt.Errorf("check retired schema name %q: %w", schemaName, err)
	}
	return count > 0, nil
}
