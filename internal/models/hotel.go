package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Property is a hotel property owned by one tenant. Lives in the tenant's
// private schema; there is no tenant_id column because the schema itself is
// the isolation boundary.
type Property struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	Name      string    `json:"name" gorm:"not null;size:255" validate:"required,min=2,max=255"`
	Address   string    `json:"address" gorm:"size:500"`
	City      string    `json:"city" gorm:"size:100"`
	Country   string    `json:"country" gorm:"size:100"`
	Timezone  string    `json:"timezone" gorm:"size:50;default:'UTC'"`
	RoomCount int       `json:"room_count" gorm:"default:0"`
	IsActive  bool      `json:"is_active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Property) TableName() string   { return "properties" }
func (Property) IsSharedModel() bool { return false }

func (p *Property) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Booking is a reservation against a property, confined to the tenant schema
type Booking struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	PropertyID uuid.UUID `json:"property_id" gorm:"type:uuid;not null;index"`
	GuestName  string    `json:"guest_name" gorm:"not null;size:255" validate:"required"`
	GuestEmail string    `json:"guest_email" gorm:"size:255" validate:"omitempty,email"`
	CheckIn    time.Time `json:"check_in" gorm:"not null;index"`
	CheckOut   time.Time `json:"check_out" gorm:"not null"`
	Status     string    `json:"status" gorm:"size:20;default:'confirmed';index" validate:"oneof=confirmed checked_in checked_out canceled"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Booking) TableName() string   { return "bookings" }
func (Booking) IsSharedModel() bool { return false }

func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
