package entity

import (
	"time"

	"github.com/google/uuid"
)

// Service is a bookable offering of a branch. DurationMinutes drives slot
// length and wait estimation.
type Service struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	BranchID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"branch_id"`
	Name            string     `gorm:"type:varchar(255);not null" json:"name"`
	DurationMinutes int        `gorm:"not null" json:"duration_minutes"`
	FormID          *uuid.UUID `gorm:"type:uuid" json:"form_id,omitempty"`
	IsActive        bool       `gorm:"not null;default:true;index" json:"is_active"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Schedules []Schedule `gorm:"foreignKey:ServiceID" json:"schedules,omitempty"`
	Form      *IntakeForm `gorm:"foreignKey:FormID" json:"form,omitempty"`
}

func (Service) TableName() string {
	return "services"
}

// Duration returns the service duration as a time.Duration.
func (s *Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}
