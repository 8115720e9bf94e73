package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"tenancy-service/internal/models"
	"tenancy-service/internal/services"
)

// TenantHandler exposes the tenant administration API
type TenantHandler struct {
	provisioning *services.ProvisioningService
	billing      *services.BillingService
}

// NewTenantHandler creates a tenant handler
func NewTenantHandler(provisioning *services.ProvisioningService, billing *services.BillingService) *TenantHandler {
	return &TenantHandler{provisioning: provisioning, billing: billing}
}

// Create handles POST /api/v1/tenants
func (h *TenantHandler) Create(c *gin.Context) {
	var req services.CreateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid tenant payload: "+err.Error())
		return
	}

	tenant, err := h.provisioning.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, "Tenant created successfully", tenant)
}

// List handles GET /api/v1/tenants
func (h *TenantHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	tenants, total, err := h.provisioning.List(c.Request.Context(), page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "", gin.H{
		"tenants":   tenants,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// Get handles GET /api/v1/tenants/:slug
func (h *TenantHandler) Get(c *gin.Context) {
	tenant, err := h.provisioning.Get(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "", tenant)
}

// GetUsage handles GET /api/v1/tenants/:slug/usage
func (h *TenantHandler) GetUsage(c *gin.Context) {
	tenant, summary, err := h.provisioning.GetUsage(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "", gin.H{
		"tenant_id": tenant.ID,
		"slug":      tenant.Slug,
		"tier_name": tenant.TierName,
		"usage":     summary,
	})
}

type changeTierRequest struct {
	TierName string `json:"tier_name" binding:"required"`
}

// ChangeTier handles PUT /api/v1/tenants/:slug/tier
func (h *TenantHandler) ChangeTier(c *gin.Context) {
	var req changeTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "tier_name is required")
		return
	}

	tenant, err := h.provisioning.ChangeTier(c.Request.Context(), c.Param("slug"), req.TierName)
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "Tenant tier updated", tenant)
}

type deleteTenantRequest struct {
	Confirmation string `json:"confirmation"`
	DeletedBy    string `json:"deleted_by"`
	Reason       string `json:"reason"`
}

// Delete handles DELETE /api/v1/tenants/:slug. The body must carry the
// exact confirmation token or nothing is touched.
func (h *TenantHandler) Delete(c *gin.Context) {
	var req deleteTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, services.ErrConfirmationRequired())
		return
	}

	if err := h.provisioning.Delete(c.Request.Context(), c.Param("slug"), req.Confirmation, req.DeletedBy, req.Reason); err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "Tenant deleted permanently", nil)
}

type billingTransitionRequest struct {
	PeriodEndsAt *time.Time `json:"period_ends_at"`
}

// BillingTransition handles POST /api/v1/tenants/:slug/billing/:transition
func (h *TenantHandler) BillingTransition(c *gin.Context) {
	var req billingTransitionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid billing payload")
			return
		}
	}

	slug := c.Param("slug")
	var (
		tenant *models.Tenant
		err    error
	)
	switch c.Param("transition") {
	case "activate":
		tenant, err = h.billing.Activate(c.Request.Context(), slug, req.PeriodEndsAt)
	case "past_due":
		tenant, err = h.billing.MarkPastDue(c.Request.Context(), slug)
	case "recover":
		tenant, err = h.billing.RecoverPayment(c.Request.Context(), slug, req.PeriodEndsAt)
	case "suspend":
		tenant, err = h.billing.Suspend(c.Request.Context(), slug)
	case "cancel":
		tenant, err = h.billing.Cancel(c.Request.Context(), slug)
	default:
		respondBadRequest(c, "unknown billing transition")
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "Subscription status updated", tenant)
}
