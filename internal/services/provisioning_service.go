package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jxskiss/base62"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tenancy-service/internal/config"
	"tenancy-service/internal/models"
	"tenancy-service/internal/nats"
	"tenancy-service/internal/redis"
)

// DeleteConfirmationToken must be supplied verbatim before a tenant and
// its schema are destroyed
const DeleteConfirmationToken = "DELETE_ALL_DATA"

const (
	maxSlugLen       = 48
	slugSuffixBytes  = 3
	slugMaxAttempts  = 5
	schemaNamePrefix = "t_"
)

var slugInvalidChars = regexp.MustCompile(`[^a-z0-9]+`)

// TenantCatalog is the registry surface the provisioner needs.
// Implemented by repository.TenantDirectory.
type TenantCatalog interface {
	GetBySlug(ctx context.Context, slug string) (*models.Tenant, error)
	GetTier(ctx context.Context, name string) (*models.SubscriptionTier, error)
	List(ctx context.Context, page, pageSize int) ([]models.Tenant, int64, error)
	SlugTaken(ctx context.Context, slug string) (bool, error)
	SchemaNameEverUsed(ctx context.Context, schemaName string) (bool, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	UpdateTier(ctx context.Context, id uuid.UUID, tier *models.SubscriptionTier) error
}

// UsageReader is the usage aggregation surface the provisioner needs.
// Implemented by repository.UsageRepository.
type UsageReader interface {
	SumRange(ctx context.Context, tenantID uuid.UUID, metric string, from, to time.Time) (int64, error)
	TotalsByMetric(ctx context.Context, tenantID uuid.UUID) (map[string]int64, error)
}

// SchemaOps performs the transactional registry-plus-schema mutations.
// Implemented by db.Router.
type SchemaOps interface {
	Provision(ctx context.Context, tenant *models.Tenant) error
	Destroy(ctx context.Context, tenant *models.Tenant, archive *models.DeletedTenant) error
}

// CreateTenantRequest carries the admin-facing fields for onboarding
type CreateTenantRequest struct {
	Name         string `json:"name" binding:"required,min=2,max=255"`
	ContactEmail string `json:"contact_email" binding:"required,email"`
	ContactPhone string `json:"contact_phone"`
	TierName     string `json:"tier_name"`
}

// MetricUsage is one row of a tenant's usage summary
type MetricUsage struct {
	Metric      string `json:"metric"`
	Current     int64  `json:"current"`
	Limit       int64  `json:"limit"`
	WithinLimit bool   `json:"within_limit"`
}

// ProvisioningService handles the tenant lifecycle: onboarding with schema
// creation, tier changes, and confirmed destructive offboarding
type ProvisioningService struct {
	directory  TenantCatalog
	usage      UsageReader
	schemas    SchemaOps
	cache      *redis.Client
	events     *nats.Client
	billing    config.BillingConfig
	baseDomain string
	logger     *logrus.Logger
}

// NewProvisioningService creates a new provisioning service
func NewProvisioningService(
	directory TenantCatalog,
	usage UsageReader,
	schemas SchemaOps,
	cache *redis.Client,
	events *nats.Client,
	billing config.BillingConfig,
	baseDomain string,
	logger *logrus.Logger,
) *ProvisioningService {
	return &ProvisioningService{
		directory:  directory,
		usage:      usage,
		schemas:    schemas,
		cache:      cache,
		events:     events,
		billing:    billing,
		baseDomain: baseDomain,
		logger:     logger,
	}
}

// slugify reduces a display name to a URL- and schema-safe identifier
func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugInvalidChars.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxSlugLen {
		slug = strings.Trim(slug[:maxSlugLen], "-")
	}
	return slug
}

// randomSuffix returns a short base62 string for slug disambiguation
func randomSuffix() string {
	buf := make([]byte, slugSuffixBytes)
	if _, err := rand.Read(buf); err != nil {
		// Fall back to a time-derived suffix; uniqueness is still
		// enforced by the database constraint
		return fmt.Sprintf("%d", time.Now().UnixNano()%100000)
	}
	return strings.ToLower(base62.EncodeToString(buf))
}

// schemaNameFor derives the Postgres schema identifier for a slug. The
// result is computed exactly once per tenant and stored; it is never
// recomputed from a changed slug.
func schemaNameFor(slug string) string {
	return schemaNamePrefix + strings.ReplaceAll(slug, "-", "_")
}

// resolveSlug finds a slug whose slug and derived schema name are both
// unused, including by previously deleted tenants
func (s *ProvisioningService) resolveSlug(ctx context.Context, name string) (string, error) {
	base := slugify(name)
	if len(base) < 3 {
		base = "tenant-" + randomSuffix()
	}

	candidate := base
	for attempt := 0; attempt < slugMaxAttempts; attempt++ {
		taken, err := s.directory.SlugTaken(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			used, err := s.directory.SchemaNameEverUsed(ctx, schemaNameFor(candidate))
			if err != nil {
				return "", err
			}
			if !used {
				return candidate, nil
			}
		}
		suffix := randomSuffix()
		trimmed := base
		if len(trimmed)+len(suffix)+1 > maxSlugLen {
			trimmed = strings.Trim(trimmed[:maxSlugLen-len(suffix)-1], "-")
		}
		candidate = trimmed + "-" + suffix
	}
	return "", fmt.Errorf("could not find an available slug for %q after %d attempts", name, slugMaxAttempts)
}

// Create onboards a tenant: registry row, tier limit snapshot, trial
// window, and a freshly migrated private schema. Row insert and schema
// migration share one transaction, so a tenant is never left visible
// without its schema.
func (s *ProvisioningService) Create(ctx context.Context, req CreateTenantRequest) (*models.Tenant, error) {
	tierName := req.TierName
	if tierName == "" {
		tierName = s.billing.DefaultTier
	}
	tier, err := s.directory.GetTier(ctx, tierName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTenantCreation(fmt.Sprintf("subscription tier '%s' does not exist", tierName), nil)
		}
		return nil, ErrTenantCreation("failed to look up subscription tier", err)
	}

	slug, err := s.resolveSlug(ctx, req.Name)
	if err != nil {
		return nil, ErrTenantCreation("failed to allocate tenant slug", err)
	}

	trialEnds := time.Now().UTC().AddDate(0, 0, s.billing.TrialDays)
	tenant := &models.Tenant{
		Name:         req.Name,
		Slug:         slug,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
		TierName:     tier.Name,
		Limits:       tier.Limits,
		Status:       models.StatusTrialing,
		TrialEndsAt:  &trialEnds,
		IsActive:     true,
	}
	tenant.SchemaName = schemaNameFor(slug)
	tenant.DomainURL = fmt.Sprintf("%s.%s", slug, s.baseDomain)

	log.Printf("[ProvisioningService] Provisioning schema %s for tenant %s", tenant.SchemaName, tenant.Slug)
	if err := s.schemas.Provision(ctx, tenant); err != nil {
		return nil, ErrTenantCreation("failed to provision tenant", err)
	}

	s.events.PublishTenantCreated(tenant)
	s.logger.WithFields(logrus.Fields{
		"tenant_id": tenant.ID,
		"slug":      tenant.Slug,
		"schema":    tenant.SchemaName,
		"tier":      tenant.TierName,
	}).Info("Tenant provisioned")
	return tenant, nil
}

// Get returns one tenant by slug
func (s *ProvisioningService) Get(ctx context.Context, slug string) (*models.Tenant, error) {
	tenant, err := s.directory.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTenantNotFound(slug)
		}
		return nil, ErrTenantValidation(err)
	}
	return tenant, nil
}

// List returns a page of tenants with the total count
func (s *ProvisioningService) List(ctx context.Context, page, pageSize int) ([]models.Tenant, int64, error) {
	return s.directory.List(ctx, page, pageSize)
}

// GetUsage returns the tenant's current consumption against each metered
// limit in that metric's accounting window
func (s *ProvisioningService) GetUsage(ctx context.Context, slug string) (*models.Tenant, []MetricUsage, error) {
	tenant, err := s.Get(ctx, slug)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	summary := make([]MetricUsage, 0, 3)
	for _, metric := range []string{models.MetricProperties, models.MetricBookings, models.MetricAPICalls} {
		limit, _ := tenant.Limits.LimitFor(metric)
		from, to := usageWindow(metric, now)
		current, err := s.usage.SumRange(ctx, tenant.ID, metric, from, to)
		if err != nil {
			return nil, nil, ErrUsageLimitCheck(err)
		}
		summary = append(summary, MetricUsage{
			Metric:      metric,
			Current:     current,
			Limit:       limit,
			WithinLimit: limit <= 0 || current < limit,
		})
	}
	return tenant, summary, nil
}

// ChangeTier re-snapshots a tenant's limits from the named tier. The
// update is a single statement so a concurrent gate read sees either the
// old snapshot or the new one, never a mix.
func (s *ProvisioningService) ChangeTier(ctx context.Context, slug, tierName string) (*models.Tenant, error) {
	tenant, err := s.Get(ctx, slug)
	if err != nil {
		return nil, err
	}
	tier, err := s.directory.GetTier(ctx, tierName)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionUpdate(fmt.Sprintf("subscription tier '%s' does not exist", tierName), nil)
		}
		return nil, ErrSubscriptionUpdate("failed to look up subscription tier", err)
	}

	prevTier := tenant.TierName
	if err := s.directory.UpdateTier(ctx, tenant.ID, tier); err != nil {
		return nil, ErrSubscriptionUpdate("failed to update tenant tier", err)
	}
	tenant.TierName = tier.Name
	tenant.Limits = tier.Limits

	s.invalidateCache(ctx, tenant.Slug)
	s.events.PublishTierChanged(tenant, prevTier)
	s.logger.WithFields(logrus.Fields{
		"tenant_id": tenant.ID,
		"slug":      tenant.Slug,
		"from_tier": prevTier,
		"to_tier":   tier.Name,
	}).Info("Tenant tier changed")
	return tenant, nil
}

// Delete permanently destroys a tenant. Nothing is touched unless the
// confirmation token matches exactly. The tenant is deactivated first so
// the gate stops admitting traffic; archive, shared-row removal, and the
// schema drop then commit or roll back as one transaction, with the drop
// as its final statement group.
func (s *ProvisioningService) Delete(ctx context.Context, slug, confirmation, deletedBy, reason string) error {
	if confirmation != DeleteConfirmationToken {
		return ErrConfirmationRequired()
	}

	tenant, err := s.Get(ctx, slug)
	if err != nil {
		return err
	}

	// Step 1: stop new traffic before anything destructive happens
	if err := s.directory.Deactivate(ctx, tenant.ID); err != nil {
		return ErrTenantDelete("failed to deactivate tenant", err)
	}
	s.invalidateCache(ctx, tenant.Slug)

	totals, err := s.usage.TotalsByMetric(ctx, tenant.ID)
	if err != nil {
		return ErrTenantDelete("failed to collect usage totals for archive", err)
	}

	tenantData, err := models.NewJSONB(tenant)
	if err != nil {
		return ErrTenantDelete("failed to snapshot tenant record", err)
	}
	usageTotals, err := models.NewJSONB(totals)
	if err != nil {
		return ErrTenantDelete("failed to snapshot usage totals", err)
	}

	// Step 2: archive, row removal, and schema drop in one transaction.
	// A failure at any point rolls everything back and leaves the tenant
	// deactivated but intact.
	archive := &models.DeletedTenant{
		OriginalTenantID: tenant.ID,
		Slug:             tenant.Slug,
		SchemaName:       tenant.SchemaName,
		Name:             tenant.Name,
		TenantData:       tenantData,
		UsageTotals:      usageTotals,
		DeletedBy:        deletedBy,
		DeletionReason:   reason,
	}
	log.Printf("[ProvisioningService] Dropping schema %s for deleted tenant %s", tenant.SchemaName, tenant.Slug)
	if err := s.schemas.Destroy(ctx, tenant, archive); err != nil {
		return ErrTenantDelete("failed to delete tenant", err)
	}

	s.events.PublishTenantDeleted(tenant.ID.String(), tenant.Slug, tenant.SchemaName)
	s.logger.WithFields(logrus.Fields{
		"tenant_id": tenant.ID,
		"slug":      tenant.Slug,
		"schema":    tenant.SchemaName,
	}).Info("Tenant deleted")
	return nil
}

func (s *ProvisioningService) invalidateCache(ctx context.Context, slug string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateTenant(ctx, slug); err != nil {
		s.logger.WithError(err).WithField("slug", slug).Warn("Failed to invalidate tenant cache")
	}
}
