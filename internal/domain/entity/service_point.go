package entity

import (
	"time"

	"github.com/google/uuid"
)

// ServicePoint is the physical or virtual resource (counter, room, kiosk)
// that serves one appointment or ticket at a time.
type ServicePoint struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	BranchID  uuid.UUID `gorm:"type:uuid;not null;index" json:"branch_id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	IsActive  bool      `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Services []Service `gorm:"many2many:service_point_services" json:"services,omitempty"`
}

func (ServicePoint) TableName() string {
	return "service_points"
}
