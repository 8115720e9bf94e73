package db

import (
	"context"
	"errors"
	"fmt"

	multitenancy "github.com/bartventer/gorm-multitenancy/v8"
	"github.com/bartventer/gorm-multitenancy/v8/pkg/namespace"

	"tenancy-service/internal/models"
)

// ErrNoTenant is returned when a data operation is attempted without a bound
// tenant context. Operations never fall through to the shared schema.
var ErrNoTenant = errors.New("data operation requires a bound tenant context")

// Router binds data operations to a tenant's private schema. The binding is
// scoped to the handle it returns, never stored process-wide, so concurrent
// requests for different tenants cannot observe each other's search path.
type Router struct {
	db *multitenancy.DB
}

// NewRouter creates a schema router over the shared pool
func NewRouter(db *multitenancy.DB) *Router {
	return &Router{db: db}
}

// ScopedConnection is a data-access handle confined to one tenant schema
// (plus the shared schema for reference data). Callers must Release it when
// the request is done; Release restores the connection's search path before
// it returns to the pool.
type ScopedConnection struct {
	db    *multitenancy.DB
	reset func() error
}

// DB returns the bound handle
func (s *ScopedConnection) DB() *multitenancy.DB {
	return s.db
}

// Release restores the connection's search path. Safe to call once.
func (s *ScopedConnection) Release() error {
	if s.reset == nil {
		return nil
	}
	reset := s.reset
	s.reset = nil
	return reset()
}

// Bind yields a connection confined to the tenant's schema. An invalid
// (zero) context fails closed with ErrNoTenant.
func (r *Router) Bind(ctx context.Context, tc models.TenantContext) (*ScopedConnection, error) {
	if !tc.Valid() {
		return nil, ErrNoTenant
	}

	reset, err := r.db.UseTenant(ctx, tc.SchemaName)
	if err != nil {
		return nil, err
	}

	return &ScopedConnection{db: r.db, reset: reset}, nil
}

// WithSchema runs fn inside a transaction whose search path is bound to the
// tenant's schema for its whole extent. Preferred for multi-statement work.
func (r *Router) WithSchema(ctx context.Context, tc models.TenantContext, fn func(tx *multitenancy.DB) error) error {
	if !tc.Valid() {
		return ErrNoTenant
	}
	return r.db.WithTenant(ctx, tc.SchemaName, fn)
}

// Provision creates a tenant's registry row and migrates its private
// schema in one transaction. If schema creation fails the row insert
// rolls back with it, so a tenant is never visible without its schema.
func (r *Router) Provision(ctx context.Context, tenant *models.Tenant) error {
	if err := namespace.Validate(tenant.SchemaName); err != nil {
		return fmt.Errorf("schema name %q is not a valid namespace: %w", tenant.SchemaName, err)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *multitenancy.DB) error {
		if err := tx.Create(tenant).Error; err != nil {
			return fmt.Errorf("create tenant record: %w", err)
		}
		return tx.MigrateTenantModels(ctx, tenant.SchemaName)
	})
}

// Destroy archives a tenant, removes its shared-schema rows, and drops
// its private schema, all in one transaction with the drop as the final
// statement group. Schema DDL is transactional in Postgres, so a failed
// drop rolls the archive and deletions back and the tenant survives
// intact (deactivated by the caller, but recoverable).
func (r *Router) Destroy(ctx context.Context, tenant *models.Tenant, archive *models.DeletedTenant) error {
	// The schema identifier is interpolated into DDL; never drop one
	// that fails namespace validation
	if err := namespace.Validate(tenant.SchemaName); err != nil {
		return fmt.Errorf("refusing to drop schema %q: %w", tenant.SchemaName, err)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *multitenancy.DB) error {
		if err := tx.Create(archive).Error; err != nil {
			return fmt.Errorf("archive tenant: %w", err)
		}
		if err := tx.Where("tenant_id = ?", tenant.ID).Delete(&models.UsageRecord{}).Error; err != nil {
			return fmt.Errorf("delete usage records: %w", err)
		}
		if err := tx.Delete(&models.Tenant{}, "id = ?", tenant.ID).Error; err != nil {
			return fmt.Errorf("delete tenant record: %w", err)
		}
		if err := tx.Exec(fmt.Sprintf("DROP SCHEMA IF EXISTS %q CASCADE", tenant.SchemaName)).Error; err != nil {
			return fmt.Errorf("drop schema %s: %w", tenant.SchemaName, err)
		}
		return nil
	})
}
