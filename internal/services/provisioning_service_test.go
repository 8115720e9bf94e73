package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tenancy-service/internal/config"
	"tenancy-service/internal/models"
)

// MockTenantCatalog is a mock implementation of TenantCatalog
type MockTenantCatalog struct {
	mock.Mock
}

func (m *MockTenantCatalog) GetBySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tenant), args.Error(1)
}

func (m *MockTenantCatalog) GetTier(ctx context.Context, name string) (*models.SubscriptionTier, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubscriptionTier), args.Error(1)
}

func (m *MockTenantCatalog) List(ctx context.Context, page, pageSize int) ([]models.Tenant, int64, error) {
	args := m.Called(ctx, page, pageSize)
	return args.Get(0).([]models.Tenant), args.Get(1).(int64), args.Error(2)
}

func (m *MockTenantCatalog) SlugTaken(ctx context.Context, slug string) (bool, error) {
	args := m.Called(ctx, slug)
	return args.Bool(0), args.Error(1)
}

func (m *MockTenantCatalog) SchemaNameEverUsed(ctx context.Context, schemaName string) (bool, error) {
	args := m.Called(ctx, schemaName)
	return args.Bool(0), args.Error(1)
}

func (m *MockTenantCatalog) Deactivate(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockTenantCatalog) UpdateTier(ctx context.Context, id uuid.UUID, tier *models.SubscriptionTier) error {
	args := m.Called(ctx, id, tier)
	return args.Error(0)
}

// MockUsageReader is a mock implementation of UsageReader
type MockUsageReader struct {
	mock.Mock
}

func (m *MockUsageReader) SumRange(ctx context.Context, tenantID uuid.UUID, metric string, from, to time.Time) (int64, error) {
	args := m.Called(ctx, tenantID, metric, from, to)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockUsageReader) TotalsByMetric(ctx context.Context, tenantID uuid.UUID) (map[string]int64, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int64), args.Error(1)
}

// MockSchemaOps is a mock implementation of SchemaOps
type MockSchemaOps struct {
	mock.Mock
}

func (m *MockSchemaOps) Provision(ctx context.Context, tenant *models.Tenant) error {
	args := m.Called(ctx, tenant)
	return args.Error(0)
}

func (m *MockSchemaOps) Destroy(ctx context.Context, tenant *models.Tenant, archive *models.DeletedTenant) error {
	args := m.Called(ctx, tenant, archive)
	return args.Error(0)
}

func basicTier() *models.SubscriptionTier {
	return &models.SubscriptionTier{
		Name: "basic",
		Limits: models.TierLimits{
			MaxProperties:       5,
			MaxBookingsPerMonth: 1000,
			MaxAPICallsPerDay:   10000,
		},
		IsActive: true,
	}
}

func provisioningFixture(catalog *MockTenantCatalog, usage *MockUsageReader, schemas *MockSchemaOps) *ProvisioningService {
	return NewProvisioningService(
		catalog, usage, schemas, nil, nil,
		config.BillingConfig{DefaultTier: "trial", TrialDays: 14},
		"example.com", quietLogger(),
	)
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple name", "Aegean Resorts", "aegean-resorts"},
		{"punctuation collapses", "St. Moritz Grand Hotel & Spa", "st-moritz-grand-hotel-spa"},
		{"surrounding whitespace", "  Seaside Inn  ", "seaside-inn"},
		{"already a slug", "seaside-inn", "seaside-inn"},
		{"mixed case and digits", "Hotel 42", "hotel-42"},
		{"long name truncates", "The Extraordinarily Long And Verbose Hotel Name Of The Riviera Coast", "the-extraordinarily-long-and-verbose-hotel-name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := slugify(tt.in)
			assert.Equal(t, tt.want, got)
			assert.LessOrEqual(t, len(got), maxSlugLen)
		})
	}
}

func TestSchemaNameFor(t *testing.T) {
	assert.Equal(t, "t_aegean_resorts", schemaNameFor("aegean-resorts"))
	assert.Equal(t, "t_hotel_42", schemaNameFor("hotel-42"))
}

func TestRandomSuffix(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		s := randomSuffix()
		assert.NotEmpty(t, s)
		seen[s] = true
	}
	// Collisions across 50 draws would indicate a broken source
	assert.Greater(t, len(seen), 45)
}

func TestProvisioningService_CreateSnapshotsTier(t *testing.T) {
	catalog := new(MockTenantCatalog)
	catalog.On("GetTier", mock.Anything, "basic").Return(basicTier(), nil)
	catalog.On("SlugTaken", mock.Anything, "seaside-inn").Return(false, nil)
	catalog.On("SchemaNameEverUsed", mock.Anything, "t_seaside_inn").Return(false, nil)

	var provisioned *models.Tenant
	schemas := new(MockSchemaOps)
	schemas.On("Provision", mock.Anything, mock.AnythingOfType("*models.Tenant")).
		Run(func(args mock.Arguments) {
			provisioned = args.Get(1).(*models.Tenant)
		}).
		Return(nil)

	svc := provisioningFixture(catalog, nil, schemas)
	tenant, err := svc.Create(context.Background(), CreateTenantRequest{
		Name: "Seaside Inn", ContactEmail: "ops@seaside-inn.test", TierName: "basic",
	})
	require.NoError(t, err)

	assert.Same(t, tenant, provisioned)
	assert.Equal(t, "seaside-inn", tenant.Slug)
	assert.Equal(t, "t_seaside_inn", tenant.SchemaName)
	assert.Equal(t, "seaside-inn.example.com", tenant.DomainURL)
	assert.Equal(t, models.StatusTrialing, tenant.Status)
	assert.Equal(t, basicTier().Limits, tenant.Limits)
	assert.True(t, tenant.IsActive)
	require.NotNil(t, tenant.TrialEndsAt)
}

func TestProvisioningService_CreateFailedSchemaLeavesNoTenant(t *testing.T) {
	catalog := new(MockTenantCatalog)
	catalog.On("GetTier", mock.Anything, "basic").Return(basicTier(), nil)
	catalog.On("SlugTaken", mock.Anything, "seaside-inn").Return(false, nil)
	catalog.On("SchemaNameEverUsed", mock.Anything, "t_seaside_inn").Return(false, nil)

	// The row insert and schema migration share one transaction, so a
	// migration failure surfaces as a single failed Provision with the
	// insert already rolled back.
	schemas := new(MockSchemaOps)
	schemas.On("Provision", mock.Anything, mock.AnythingOfType("*models.Tenant")).
		Return(errors.New("migrate tenant models: connection lost"))

	svc := provisioningFixture(catalog, nil, schemas)
	tenant, err := svc.Create(context.Background(), CreateTenantRequest{
		Name: "Seaside Inn", ContactEmail: "ops@seaside-inn.test", TierName: "basic",
	})

	assert.Nil(t, tenant)
	ge, ok := AsGateError(err)
	require.True(t, ok)
	assert.Equal(t, KindTenantCreation, ge.Kind)
	schemas.AssertNumberOfCalls(t, "Provision", 1)
}

func TestProvisioningService_DeleteDeactivatesBeforeDestroying(t *testing.T) {
	tenant := &models.Tenant{
		ID: uuid.New(), Name: "Seaside Inn", Slug: "seaside-inn",
		Status: models.StatusCanceled, IsActive: true,
	}
	tenant.SchemaName = "t_seaside_inn"

	var order []string
	var archive *models.DeletedTenant

	catalog := new(MockTenantCatalog)
	catalog.On("GetBySlug", mock.Anything, "seaside-inn").Return(tenant, nil)
	catalog.On("Deactivate", mock.Anything, tenant.ID).
		Run(func(mock.Arguments) { order = append(order, "deactivate") }).
		Return(nil)

	usage := new(MockUsageReader)
	usage.On("TotalsByMetric", mock.Anything, tenant.ID).
		Return(map[string]int64{"bookings": 42}, nil)

	schemas := new(MockSchemaOps)
	schemas.On("Destroy", mock.Anything, tenant, mock.AnythingOfType("*models.DeletedTenant")).
		Run(func(args mock.Arguments) {
			order = append(order, "destroy")
			archive = args.Get(2).(*models.DeletedTenant)
		}).
		Return(nil)

	svc := provisioningFixture(catalog, usage, schemas)
	err := svc.Delete(context.Background(), "seaside-inn", DeleteConfirmationToken, "ops", "churn")
	require.NoError(t, err)

	assert.Equal(t, []string{"deactivate", "destroy"}, order)
	require.NotNil(t, archive)
	assert.Equal(t, tenant.ID, archive.OriginalTenantID)
	assert.Equal(t, "t_seaside_inn", archive.SchemaName)
	assert.JSONEq(t, `{"bookings":42}`, string(archive.UsageTotals))
}

func TestProvisioningService_DeleteFailureLeavesTenantIntact(t *testing.T) {
	tenant := &models.Tenant{
		ID: uuid.New(), Name: "Seaside Inn", Slug: "seaside-inn",
		Status: models.StatusCanceled, IsActive: true,
	}
	tenant.SchemaName = "t_seaside_inn"

	catalog := new(MockTenantCatalog)
	catalog.On("GetBySlug", mock.Anything, "seaside-inn").Return(tenant, nil)
	catalog.On("Deactivate", mock.Anything, tenant.ID).Return(nil)

	usage := new(MockUsageReader)
	usage.On("TotalsByMetric", mock.Anything, tenant.ID).
		Return(map[string]int64{}, nil)

	// Destroy is one transaction; its failure means the archive, row
	// deletions, and schema drop all rolled back together
	schemas := new(MockSchemaOps)
	schemas.On("Destroy", mock.Anything, tenant, mock.AnythingOfType("*models.DeletedTenant")).
		Return(errors.New("drop schema t_seaside_inn: permission denied"))

	svc := provisioningFixture(catalog, usage, schemas)
	err := svc.Delete(context.Background(), "seaside-inn", DeleteConfirmationToken, "ops", "churn")

	ge, ok := AsGateError(err)
	require.True(t, ok)
	assert.Equal(t, KindTenantDelete, ge.Kind)
	schemas.AssertNumberOfCalls(t, "Destroy", 1)
}

func TestProvisioningService_DeleteRequiresConfirmation(t *testing.T) {
	// The confirmation check runs before any lookup or write, so a service
	// with no collaborators must still reject safely.
	svc := &ProvisioningService{}

	for _, confirmation := range []string{"", "delete", "DELETE", "delete_all_data", "DELETE_ALL_DATA "} {
		err := svc.Delete(context.Background(), "aegean-resorts", confirmation, "ops", "test")
		ge, ok := AsGateError(err)
		assert.True(t, ok, "confirmation %q must be rejected", confirmation)
		assert.Equal(t, KindConfirmationNeeded, ge.Kind)
	}
}

func TestGateErrorTaxonomy(t *testing.T) {
	tests := []struct {
		err        *GateError
		wantKind   string
		wantStatus int
	}{
		{ErrTenantRequired(), KindTenantRequired, 400},
		{ErrTenantNotFound("x"), KindTenantNotFound, 404},
		{ErrTenantInactive("x"), KindTenantInactive, 403},
		{ErrSubscriptionRequired("x"), KindSubscriptionNeeded, 402},
		{ErrTrialExpired("x"), KindTrialExpired, 402},
		{ErrTenantValidation(nil), KindTenantValidation, 500},
		{ErrUsageLimitExceeded("bookings", 10, 10, models.TierLimits{MaxBookingsPerMonth: 10}), KindUsageLimitExceeded, 429},
		{ErrUsageLimitCheck(nil), KindUsageLimitCheck, 500},
		{ErrConfirmationRequired(), KindConfirmationNeeded, 400},
	}

	for _, tt := range tests {
		t.Run(tt.wantKind, func(t *testing.T) {
			assert.Equal(t, tt.wantKind, tt.err.Kind)
			assert.Equal(t, tt.wantStatus, tt.err.Status)

			ge, ok := AsGateError(tt.err)
			assert.True(t, ok)
			assert.Equal(t, tt.err, ge)
		})
	}
}
