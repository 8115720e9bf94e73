package handlers

import (
	"errors"
	"net/http"
	"time"

	multitenancy "github.com/bartventer/gorm-multitenancy/v8"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"tenancy-service/internal/db"
	"tenancy-service/internal/middleware"
	"tenancy-service/internal/models"
	"tenancy-service/internal/services"
)

var errPropertyNotFound = errors.New("property not found")

// HotelHandler serves the tenant data plane. Every query runs on a
// connection scoped to the admitted tenant's schema; there is no code path
// here that can read another tenant's rows.
type HotelHandler struct {
	router *db.Router
	usage  *services.UsageService
}

// NewHotelHandler creates a hotel data handler
func NewHotelHandler(router *db.Router, usage *services.UsageService) *HotelHandler {
	return &HotelHandler{router: router, usage: usage}
}

// ListProperties handles GET /api/v1/properties
func (h *HotelHandler) ListProperties(c *gin.Context) {
	tc, ok := middleware.GetTenantContext(c)
	if !ok {
		respondError(c, services.ErrTenantRequired())
		return
	}

	var properties []models.Property
	err := h.router.WithSchema(c.Request.Context(), tc, func(tx *multitenancy.DB) error {
		return tx.Order("created_at DESC").Find(&properties).Error
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "", gin.H{"properties": properties})
}

type createPropertyRequest struct {
	Name      string `json:"name" binding:"required,min=2,max=255"`
	Address   string `json:"address"`
	City      string `json:"city"`
	Country   string `json:"country"`
	Timezone  string `json:"timezone"`
	RoomCount int    `json:"room_count"`
}

// CreateProperty handles POST /api/v1/properties
func (h *HotelHandler) CreateProperty(c *gin.Context) {
	tc, ok := middleware.GetTenantContext(c)
	if !ok {
		respondError(c, services.ErrTenantRequired())
		return
	}

	var req createPropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid property payload: "+err.Error())
		return
	}

	property := models.Property{
		Name:      req.Name,
		Address:   req.Address,
		City:      req.City,
		Country:   req.Country,
		Timezone:  req.Timezone,
		RoomCount: req.RoomCount,
		IsActive:  true,
	}
	if property.Timezone == "" {
		property.Timezone = "UTC"
	}

	err := h.router.WithSchema(c.Request.Context(), tc, func(tx *multitenancy.DB) error {
		return tx.Create(&property).Error
	})
	if err != nil {
		respondError(c, err)
		return
	}

	h.usage.Record(tc.TenantID, models.MetricProperties, 1)
	respondSuccess(c, http.StatusCreated, "Property created", property)
}

// ListBookings handles GET /api/v1/bookings
func (h *HotelHandler) ListBookings(c *gin.Context) {
	tc, ok := middleware.GetTenantContext(c)
	if !ok {
		respondError(c, services.ErrTenantRequired())
		return
	}

	var bookings []models.Booking
	err := h.router.WithSchema(c.Request.Context(), tc, func(tx *multitenancy.DB) error {
		q := tx.Order("check_in DESC")
		if propertyID := c.Query("property_id"); propertyID != "" {
			id, err := uuid.Parse(propertyID)
			if err != nil {
				return err
			}
			q = q.Where("property_id = ?", id)
		}
		return q.Limit(100).Find(&bookings).Error
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, "", gin.H{"bookings": bookings})
}

type createBookingRequest struct {
	PropertyID uuid.UUID `json:"property_id" binding:"required"`
	GuestName  string    `json:"guest_name" binding:"required"`
	GuestEmail string    `json:"guest_email"`
	CheckIn    time.Time `json:"check_in" binding:"required"`
	CheckOut   time.Time `json:"check_out" binding:"required"`
}

// CreateBooking handles POST /api/v1/bookings
func (h *HotelHandler) CreateBooking(c *gin.Context) {
	tc, ok := middleware.GetTenantContext(c)
	if !ok {
		respondError(c, services.ErrTenantRequired())
		return
	}

	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid booking payload: "+err.Error())
		return
	}
	if !req.CheckOut.After(req.CheckIn) {
		respondBadRequest(c, "check_out must be after check_in")
		return
	}

	booking := models.Booking{
		PropertyID: req.PropertyID,
		GuestName:  req.GuestName,
		GuestEmail: req.GuestEmail,
		CheckIn:    req.CheckIn,
		CheckOut:   req.CheckOut,
		Status:     "confirmed",
	}

	err := h.router.WithSchema(c.Request.Context(), tc, func(tx *multitenancy.DB) error {
		var count int64
		if err := tx.Model(&models.Property{}).Where("id = ?", req.PropertyID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return errPropertyNotFound
		}
		return tx.Create(&booking).Error
	})
	if err != nil {
		if errors.Is(err, errPropertyNotFound) {
			respondBadRequest(c, "property not found")
			return
		}
		respondError(c, err)
		return
	}

	h.usage.Record(tc.TenantID, models.MetricBookings, 1)
	respondSuccess(c, http.StatusCreated, "Booking created", booking)
}
