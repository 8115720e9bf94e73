package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tenancy-service/internal/models"
	"tenancy-service/internal/nats"
	"tenancy-service/internal/redis"
)

// SubscriptionStore is the registry surface billing transitions need.
// Implemented by repository.TenantDirectory.
type SubscriptionStore interface {
	GetBySlug(ctx context.Context, slug string) (*models.Tenant, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string, extra map[string]interface{}) (int64, error)
}

// BillingService applies subscription state transitions. It owns nothing
// about payments themselves; transitions arrive from the billing provider
// via webhooks or from operators via the admin API.
type BillingService struct {
	store  SubscriptionStore
	cache  *redis.Client
	events *nats.Client
	logger *logrus.Logger
}

// NewBillingService creates a new billing service
func NewBillingService(
	store SubscriptionStore,
	cache *redis.Client,
	events *nats.Client,
	logger *logrus.Logger,
) *BillingService {
	return &BillingService{
		store:  store,
		cache:  cache,
		events: events,
		logger: logger,
	}
}

// Activate moves a trial or recovered subscription into active and stamps
// the new billing period end
func (s *BillingService) Activate(ctx context.Context, slug string, periodEndsAt *time.Time) (*models.Tenant, error) {
	extra := map[string]interface{}{"trial_ends_at": nil}
	if periodEndsAt != nil {
		extra["current_period_ends_at"] = periodEndsAt.UTC()
	}
	return s.transition(ctx, slug, models.StatusActive, extra)
}

// MarkPastDue flags a failed renewal. The tenant keeps serving nothing:
// the gate rejects past_due subscriptions until payment recovers.
func (s *BillingService) MarkPastDue(ctx context.Context, slug string) (*models.Tenant, error) {
	return s.transition(ctx, slug, models.StatusPastDue, nil)
}

// RecoverPayment returns a past_due subscription to active
func (s *BillingService) RecoverPayment(ctx context.Context, slug string, periodEndsAt *time.Time) (*models.Tenant, error) {
	var extra map[string]interface{}
	if periodEndsAt != nil {
		extra = map[string]interface{}{"current_period_ends_at": periodEndsAt.UTC()}
	}
	return s.transition(ctx, slug, models.StatusActive, extra)
}

// Suspend parks a subscription whose dunning window ran out
func (s *BillingService) Suspend(ctx context.Context, slug string) (*models.Tenant, error) {
	return s.transition(ctx, slug, models.StatusSuspended, nil)
}

// Cancel ends a subscription. Canceled is terminal; the tenant's data
// survives until an explicit confirmed deletion.
func (s *BillingService) Cancel(ctx context.Context, slug string) (*models.Tenant, error) {
	return s.transition(ctx, slug, models.StatusCanceled, nil)
}

func (s *BillingService) transition(ctx context.Context, slug, to string, extra map[string]interface{}) (*models.Tenant, error) {
	tenant, err := s.store.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTenantNotFound(slug)
		}
		return nil, ErrSubscriptionUpdate("failed to look up tenant", err)
	}

	if !models.CanTransition(tenant.Status, to) {
		return nil, ErrSubscriptionUpdate(
			fmt.Sprintf("cannot move subscription from '%s' to '%s'", tenant.Status, to), nil)
	}

	prev := tenant.Status
	rows, err := s.store.UpdateStatus(ctx, tenant.ID, prev, to, extra)
	if err != nil {
		return nil, ErrSubscriptionUpdate("failed to update subscription status", err)
	}
	if rows == 0 {
		// The guarded update matched nothing: a concurrent transition
		// moved the tenant first. Nothing was changed, so publish
		// nothing and report the lost race.
		return nil, ErrSubscriptionUpdate(
			fmt.Sprintf("subscription for '%s' changed concurrently, transition to '%s' not applied", slug, to), nil)
	}
	tenant.Status = to

	if s.cache != nil {
		if err := s.cache.InvalidateTenant(ctx, tenant.Slug); err != nil {
			s.logger.WithError(err).WithField("slug", tenant.Slug).Warn("Failed to invalidate tenant cache")
		}
	}
	s.events.PublishStatusChanged(tenant, prev)
	s.logger.WithFields(logrus.Fields{
		"tenant_id": tenant.ID,
		"slug":      tenant.Slug,
		"from":      prev,
		"to":        to,
	}).Info("Subscription status changed")
	return tenant, nil
}
