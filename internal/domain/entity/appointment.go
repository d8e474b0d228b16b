package entity

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentStatus represents the lifecycle state of an appointment or
// queue ticket.
type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "scheduled"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusWaiting   AppointmentStatus = "waiting"
	StatusServing   AppointmentStatus = "serving"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusNoShow    AppointmentStatus = "no_show"
)

// Appointment is a scheduled booking or an immediate queue ticket. Tickets
// carry a TicketNumber and ScheduledAt equal to their creation time.
type Appointment struct {
	ID                   uuid.UUID         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	ServiceID            uuid.UUID         `gorm:"type:uuid;not null;index" json:"service_id"`
	ServicePointID       uuid.UUID         `gorm:"type:uuid;not null;index" json:"service_point_id"`
	BranchID             uuid.UUID         `gorm:"type:uuid;not null;index" json:"branch_id"`
	ScheduledAt          time.Time         `gorm:"not null;index" json:"scheduled_at"`
	ConfirmationCode     string            `gorm:"type:varchar(20);uniqueIndex;not null" json:"confirmation_code"`
	Status               AppointmentStatus `gorm:"type:varchar(20);not null;default:'scheduled';index" json:"status"`
	CustomerName         string            `gorm:"type:varchar(255);not null" json:"customer_name"`
	CustomerEmail        string            `gorm:"type:varchar(255)" json:"customer_email,omitempty"`
	CustomerPhone        string            `gorm:"type:varchar(50)" json:"customer_phone,omitempty"`
	IntakeData           StringMap         `gorm:"type:jsonb" json:"intake_data,omitempty"`
	TicketNumber         *int              `json:"ticket_number,omitempty"`
	QueuedAt             *time.Time        `gorm:"index" json:"queued_at,omitempty"`
	QueuePosition        *int              `json:"queue_position,omitempty"`
	EstimatedWaitMinutes *int              `json:"estimated_wait_minutes,omitempty"`
	IsPriority           bool              `gorm:"not null;default:false" json:"is_priority"`
	RescheduleCount      int               `gorm:"not null;default:0" json:"reschedule_count"`
	RescheduledFrom      *uuid.UUID        `gorm:"type:uuid" json:"rescheduled_from,omitempty"`
	CancelReason         string            `gorm:"type:varchar(255)" json:"cancel_reason,omitempty"`
	CreatedAt            time.Time         `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt            time.Time         `gorm:"autoUpdateTime" json:"updated_at"`

	// Relationships
	Service      Service      `gorm:"foreignKey:ServiceID" json:"service,omitempty"`
	ServicePoint ServicePoint `gorm:"foreignKey:ServicePointID" json:"service_point,omitempty"`
}

func (Appointment) TableName() string {
	return "appointments"
}

// IsTicket reports whether this record was created by the kiosk turn flow.
func (a *Appointment) IsTicket() bool {
	return a.TicketNumber != nil
}

// IsWaiting checks if the appointment is queued.
func (a *Appointment) IsWaiting() bool {
	return a.Status == StatusWaiting
}

// IsTerminal checks if the appointment reached a final status.
func (a *Appointment) IsTerminal() bool {
	return a.Status == StatusCompleted || a.Status == StatusCancelled || a.Status == StatusNoShow
}

// Overlaps reports whether [a.ScheduledAt, +aDur) intersects
// [start, start+dur).
func (a *Appointment) Overlaps(aDur time.Duration, start time.Time, dur time.Duration) bool {
	aEnd := a.ScheduledAt.Add(aDur)
	end := start.Add(dur)
	return a.ScheduledAt.Before(end) && start.Before(aEnd)
}
