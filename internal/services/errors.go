package services

import (
	"errors"
	"fmt"
	"net/http"

	"tenancy-service/internal/models"
)

// Rejection and failure kinds returned to API clients. The kind string is
// stable and machine-readable; clients branch on it, not on the message.
const (
	KindTenantRequired     = "TENANT_REQUIRED"
	KindTenantNotFound     = "TENANT_NOT_FOUND"
	KindTenantInactive     = "TENANT_INACTIVE"
	KindSubscriptionNeeded = "SUBSCRIPTION_REQUIRED"
	KindTrialExpired       = "TRIAL_EXPIRED"
	KindTenantValidation   = "TENANT_VALIDATION_ERROR"
	KindUsageLimitExceeded = "USAGE_LIMIT_EXCEEDED"
	KindUsageLimitCheck    = "USAGE_LIMIT_CHECK_ERROR"
	KindTenantCreation     = "TENANT_CREATION_ERROR"
	KindSubscriptionUpdate = "SUBSCRIPTION_UPDATE_ERROR"
	KindTenantDelete       = "TENANT_DELETE_ERROR"
	KindConfirmationNeeded = "CONFIRMATION_REQUIRED"
)

// LimitDetail is attached to USAGE_LIMIT_EXCEEDED rejections so the
// client can show what was exhausted. Tier carries the full limit
// snapshot, not just the exhausted metric, so a self-service caller can
// decide whether upgrading would help.
type LimitDetail struct {
	Metric  string            `json:"metric"`
	Current int64             `json:"current"`
	Limit   int64             `json:"limit"`
	Tier    models.TierLimits `json:"tier"`
}

// GateError carries a rejection kind, the HTTP status it maps to, and a
// human-readable message. It wraps an optional cause for logging.
type GateError struct {
	Kind    string
	Status  int
	Message string
	Limits  *LimitDetail
	cause   error
}

func (e *GateError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *GateError) Unwrap() error {
	return e.cause
}

// AsGateError extracts a *GateError from an error chain
func AsGateError(err error) (*GateError, bool) {
	var ge *GateError
	if errors.As(err, &ge) {
		return ge, true
	}
	return nil, false
}

func ErrTenantRequired() *GateError {
	return &GateError{Kind: KindTenantRequired, Status: http.StatusBadRequest,
		Message: "tenant identification is required for this request"}
}

func ErrTenantNotFound(slug string) *GateError {
	return &GateError{Kind: KindTenantNotFound, Status: http.StatusNotFound,
		Message: fmt.Sprintf("tenant '%s' not found", slug)}
}

func ErrTenantInactive(slug string) *GateError {
	return &GateError{Kind: KindTenantInactive, Status: http.StatusForbidden,
		Message: fmt.Sprintf("tenant '%s' is deactivated", slug)}
}

func ErrSubscriptionRequired(slug string) *GateError {
	return &GateError{Kind: KindSubscriptionNeeded, Status: http.StatusPaymentRequired,
		Message: fmt.Sprintf("tenant '%s' has no active subscription", slug)}
}

func ErrTrialExpired(slug string) *GateError {
	return &GateError{Kind: KindTrialExpired, Status: http.StatusPaymentRequired,
		Message: fmt.Sprintf("trial period for tenant '%s' has ended", slug)}
}

func ErrTenantValidation(cause error) *GateError {
	return &GateError{Kind: KindTenantValidation, Status: http.StatusInternalServerError,
		Message: "unable to validate tenant", cause: cause}
}

func ErrUsageLimitExceeded(metric string, current, limit int64, tier models.TierLimits) *GateError {
	return &GateError{Kind: KindUsageLimitExceeded, Status: http.StatusTooManyRequests,
		Message: fmt.Sprintf("usage limit reached for %s", metric),
		Limits:  &LimitDetail{Metric: metric, Current: current, Limit: limit, Tier: tier}}
}

func ErrUsageLimitCheck(cause error) *GateError {
	return &GateError{Kind: KindUsageLimitCheck, Status: http.StatusInternalServerError,
		Message: "unable to verify usage limits", cause: cause}
}

func ErrTenantCreation(msg string, cause error) *GateError {
	return &GateError{Kind: KindTenantCreation, Status: http.StatusInternalServerError,
		Message: msg, cause: cause}
}

func ErrSubscriptionUpdate(msg string, cause error) *GateError {
	return &GateError{Kind: KindSubscriptionUpdate, Status: http.StatusInternalServerError,
		Message: msg, cause: cause}
}

func ErrTenantDelete(msg string, cause error) *GateError {
	return &GateError{Kind: KindTenantDelete, Status: http.StatusInternalServerError,
		Message: msg, cause: cause}
}

func ErrConfirmationRequired() *GateError {
	return &GateError{Kind: KindConfirmationNeeded, Status: http.StatusBadRequest,
		Message: "tenant deletion requires the confirmation token"}
}
