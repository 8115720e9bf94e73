package models

import "github.com/google/uuid"

// TenantContext is the immutable snapshot attached to a request once the
// gate has admitted it. It is a value type on purpose: handlers get a copy,
// and nothing downstream can mutate what the gate decided.
type TenantContext struct {
	TenantID   uuid.UUID  `json:"tenant_id"`
	Slug       string     `json:"slug"`
	SchemaName string     `json:"schema_name"`
	TierName   string     `json:"tier_name"`
	Status     string     `json:"status"`
	IsActive   bool       `json:"is_active"`
	Limits     TierLimits `json:"limits"`
}

// NewTenantContext snapshots an admitted tenant
func NewTenantContext(t *Tenant) TenantContext {
	return TenantContext{
		TenantID:   t.ID,
		Slug:       t.Slug,
		SchemaName: t.SchemaName,
		TierName:   t.TierName,
		Status:     t.Status,
		IsActive:   t.IsActive,
		Limits:     t.Limits,
	}
}

// Valid reports whether the context identifies a tenant namespace.
// The zero value is not valid; data operations must fail closed on it.
func (c TenantContext) Valid() bool {
	return c.TenantID != uuid.Nil && c.SchemaName != ""
}
