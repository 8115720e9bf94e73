package models

import (
	"time"

	multitenancy "github.com/bartventer/gorm-multitenancy/v8"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Subscription status constants
// The lifecycle is: trialing -> active -> past_due -> suspended -> canceled,
// with canceled terminal short of hard deletion.
const (
	StatusTrialing  = "trialing"
	StatusActive    = "active"
	StatusPastDue   = "past_due"
	StatusSuspended = "suspended"
	StatusCanceled  = "canceled"
)

// Usage metric constants
const (
	MetricAPICalls   = "api_calls"
	MetricBookings   = "bookings"
	MetricProperties = "properties"
)

// allowedTransitions encodes the subscription state machine. Any transition
// not listed here is rejected.
var allowedTransitions = map[string][]string{
	StatusTrialing:  {StatusActive, StatusCanceled},
	StatusActive:    {StatusPastDue, StatusCanceled},
	StatusPastDue:   {StatusActive, StatusSuspended, StatusCanceled},
	StatusSuspended: {StatusCanceled},
	StatusCanceled:  {},
}

// CanTransition reports whether a subscription status change is allowed
func CanTransition(from, to string) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TierLimits is the quota bundle snapshotted onto each tenant at creation
// (or at an explicit tier change). Editing a tier definition never changes
// limits of already-assigned tenants.
type TierLimits struct {
	MaxProperties       int64 `json:"max_properties" gorm:"default:0"`
	MaxBookingsPerMonth int64 `json:"max_bookings_per_month" gorm:"default:0"`
	MaxAPICallsPerDay   int64 `json:"max_api_calls_per_day" gorm:"default:0"`
}

// LimitFor returns the limit for a usage metric. The second return value is
// false for metrics this tier does not meter.
func (l TierLimits) LimitFor(metric string) (int64, bool) {
	switch metric {
	case MetricProperties:
		return l.MaxProperties, true
	case MetricBookings:
		return l.MaxBookingsPerMonth, true
	case MetricAPICalls:
		return l.MaxAPICallsPerDay, true
	default:
		return 0, false
	}
}

// Tenant represents one isolated hotel operator account. The embedded
// TenantModel carries the private Postgres schema name; it is assigned once
// at provisioning time and never recomputed or reused.
type Tenant struct {
	multitenancy.TenantModel

	ID           uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	Name         string    `json:"name" gorm:"not null" validate:"required,min=2,max=255"`
	Slug         string    `json:"slug" gorm:"unique;not null;size:63" validate:"required,min=3,max=63"`
	ContactEmail string    `json:"contact_email" gorm:"not null;size:255" validate:"required,email"`
	ContactPhone string    `json:"contact_phone" gorm:"size:50"`

	// Subscription tier snapshot. TierName records which tier was assigned;
	// Limits are copied from the tier at assignment time.
	TierName string     `json:"tier_name" gorm:"size:50;not null;index"`
	Limits   TierLimits `json:"limits" gorm:"embedded"`

	Status              string     `json:"status" gorm:"size:20;default:'trialing';index" validate:"oneof=trialing active past_due suspended canceled"`
	TrialEndsAt         *time.Time `json:"trial_ends_at"`
	CurrentPeriodEndsAt *time.Time `json:"current_period_ends_at"`
	IsActive            bool       `json:"is_active" gorm:"default:true;index"`

	// Opaque references into the billing provider, never interpreted here
	BillingCustomerID     string `json:"billing_customer_id,omitempty" gorm:"size:255"`
	BillingSubscriptionID string `json:"billing_subscription_id,omitempty" gorm:"size:255"`

	TaxID string `json:"tax_id,omitempty" gorm:"size:100"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName keeps tenants in the shared schema
func (Tenant) TableName() string { return "public.tenants" }

// IsSharedModel marks the tenant registry as cross-tenant reference data
func (Tenant) IsSharedModel() bool { return true }

// BeforeCreate assigns an ID when the caller did not
func (t *Tenant) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Usable reports whether the tenant may serve traffic at all: the active
// flag is set, the subscription is neither suspended nor canceled, and a
// trial (if any) has not lapsed. The gate applies finer-grained rejection
// codes on top of this invariant.
func (t *Tenant) Usable(now time.Time) bool {
	if !t.IsActive {
		return false
	}
	if t.Status == StatusSuspended || t.Status == StatusCanceled {
		return false
	}
	if t.Status == StatusTrialing && t.TrialEndsAt != nil && t.TrialEndsAt.Before(now) {
		return false
	}
	return true
}

// SubscriptionTier is a named quota bundle. Read-mostly reference data,
// seeded at startup and editable via the admin API without touching
// already-assigned tenants.
type SubscriptionTier struct {
	ID          uuid.UUID  `json:"id" gorm:"type:uuid;primary_key"`
	Name        string     `json:"name" gorm:"unique;not null;size:50" validate:"required"`
	DisplayName string     `json:"display_name" gorm:"size:100"`
	Limits      TierLimits `json:"limits" gorm:"embedded"`
	PriceCents  int64      `json:"price_cents" gorm:"default:0"`
	IsActive    bool       `json:"is_active" gorm:"default:true"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (SubscriptionTier) TableName() string   { return "public.subscription_tiers" }
func (SubscriptionTier) IsSharedModel() bool { return true }

func (s *SubscriptionTier) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// UsageRecord holds one counter per (tenant, metric, calendar day).
// Rows are only ever created or incremented, never decremented; the
// increment happens atomically in the store so concurrent writers cannot
// lose updates.
type UsageRecord struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	TenantID uuid.UUID `json:"tenant_id" gorm:"type:uuid;not null;uniqueIndex:idx_usage_tenant_metric_day"`
	Metric   string    `json:"metric" gorm:"size:50;not null;uniqueIndex:idx_usage_tenant_metric_day"`
	Day      time.Time `json:"day" gorm:"type:date;not null;uniqueIndex:idx_usage_tenant_metric_day"`
	Count    int64     `json:"count" gorm:"not null;default:0;check:count >= 0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (UsageRecord) TableName() string   { return "public.usage_records" }
func (UsageRecord) IsSharedModel() bool { return true }

func (u *UsageRecord) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// DeletedTenant is the audit record written inside the deletion transaction
// before the destructive statements run. SchemaName is kept so a dropped
// namespace identifier is provably never handed out again.
type DeletedTenant struct {
	ID               uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	OriginalTenantID uuid.UUID `json:"original_tenant_id" gorm:"type:uuid;not null;index"`
	Slug             string    `json:"slug" gorm:"not null;size:63;index"`
	SchemaName       string    `json:"schema_name" gorm:"not null;size:63;uniqueIndex"`
	Name             string    `json:"name" gorm:"size:255"`
	TenantData       JSONB     `json:"tenant_data" gorm:"type:jsonb"`
	UsageTotals      JSONB     `json:"usage_totals" gorm:"type:jsonb"`
	DeletedBy        string    `json:"deleted_by" gorm:"size:255"`
	DeletionReason   string    `json:"deletion_reason" gorm:"size:500"`
	CreatedAt        time.Time `json:"created_at"`
}

func (DeletedTenant) TableName() string   { return "public.deleted_tenants" }
func (DeletedTenant) IsSharedModel() bool { return true }

func (d *DeletedTenant) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
