package entity

import (
	"time"

	"github.com/google/uuid"
)

// BranchPolicy bounds booking windows, cancellation and reschedule rules,
// and emergency mode per branch. The engine consumes it read-only; it is
// the single source of truth for these values.
type BranchPolicy struct {
	BranchID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"branch_id"`
	MaxAdvanceBookingDays  int       `gorm:"not null;default:30" json:"max_advance_booking_days"`
	MinAdvanceBookingHours int       `gorm:"not null;default:0" json:"min_advance_booking_hours"`
	AllowSameDayBooking    bool      `gorm:"not null;default:true" json:"allow_same_day_booking"`
	AutoConfirm            bool      `gorm:"not null;default:false" json:"auto_confirm"`
	AllowCancellation      bool      `gorm:"not null;default:true" json:"allow_cancellation"`
	CancellationHours      int       `gorm:"not null;default:24" json:"cancellation_hours"`
	MaxReschedules         int       `gorm:"not null;default:3" json:"max_reschedules"`
	EmergencyMode          bool      `gorm:"not null;default:false" json:"emergency_mode"`
	PriorityServices       UUIDSlice `gorm:"type:jsonb" json:"priority_services,omitempty"`
	CreatedAt              time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt              time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (BranchPolicy) TableName() string {
	return "branch_policies"
}

// DefaultBranchPolicy returns the policy applied to branches without a
// persisted row.
func DefaultBranchPolicy(branchID uuid.UUID) *BranchPolicy {
	return &BranchPolicy{
		BranchID:              branchID,
		MaxAdvanceBookingDays: 30,
		AllowSameDayBooking:   true,
		AllowCancellation:     true,
		CancellationHours:     24,
		MaxReschedules:        3,
	}
}

// IsPriorityService reports whether emergency mode promotes tickets of the
// given service.
func (p *BranchPolicy) IsPriorityService(serviceID uuid.UUID) bool {
	return p.EmergencyMode && p.PriorityServices.Contains(serviceID)
}

// CancellationDeadline returns the last instant at which a booking
// scheduled at the given time may still be cancelled.
func (p *BranchPolicy) CancellationDeadline(scheduledAt time.Time) time.Time {
	return scheduledAt.Add(-time.Duration(p.CancellationHours) * time.Hour)
}
