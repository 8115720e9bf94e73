package db

import (
	"context"
	"fmt"

	pg "github.com/bartventer/gorm-multitenancy/postgres/v8"
	multitenancy "github.com/bartventer/gorm-multitenancy/v8"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"tenancy-service/internal/config"
	"tenancy-service/internal/models"
)

// Connect opens the shared connection pool against the multitenancy-aware
// Postgres dialector and registers the data model. The pool is process-wide;
// only schema bindings taken through the Router are request-scoped.
//
// PreferSimpleProtocol disables prepared statement caching, which prevents
// "cached plan must not change result type" errors when the search path
// moves between schemas on one connection.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*multitenancy.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	dialector := pg.New(pg.Config{
		Config: postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true,
		},
	})

	db, err := multitenancy.Open(dialector, &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := registerModels(ctx, db); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// registerModels tells the multitenancy layer which models are shared
// reference data and which belong in each tenant's private schema
func registerModels(ctx context.Context, db *multitenancy.DB) error {
	return db.RegisterModels(ctx,
		&models.Tenant{},
		&models.SubscriptionTier{},
		&models.UsageRecord{},
		&models.DeletedTenant{},
		&models.Property{},
		&models.Booking{},
	)
}

// MigrateShared creates/updates the shared-schema tables
func MigrateShared(ctx context.Context, db *multitenancy.DB) error {
	if err := db.MigrateSharedModels(ctx); err != nil {
		return fmt.Errorf("failed to migrate shared models: %w", err)
	}
	return nil
}
