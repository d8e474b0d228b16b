package dto

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs

type CustomerData struct {
	Name       string            `json:"name" validate:"required,max=255"`
	Email      string            `json:"email" validate:"omitempty,email"`
	Phone      string            `json:"phone" validate:"omitempty,max=50"`
	IntakeData map[string]string `json:"intake_data" validate:"omitempty"`
}

type CreateAppointmentRequest struct {
	ServiceID      uuid.UUID    `json:"service_id" validate:"required"`
	ServicePointID uuid.UUID    `json:"service_point_id" validate:"required"`
	ScheduledAt    time.Time    `json:"scheduled_at" validate:"required"`
	Customer       CustomerData `json:"customer" validate:"required"`
}

type IssueTurnRequest struct {
	ServiceID      uuid.UUID    `json:"service_id" validate:"required"`
	ServicePointID uuid.UUID    `json:"service_point_id" validate:"required"`
	Customer       CustomerData `json:"customer" validate:"required"`
}

type TransitionStatusRequest struct {
	Status string `json:"status" validate:"required"`
	Actor  string `json:"actor" validate:"omitempty,max=255"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=255"`
}

type RescheduleAppointmentRequest struct {
	ServicePointID uuid.UUID `json:"service_point_id" validate:"required"`
	ScheduledAt    time.Time `json:"scheduled_at" validate:"required"`
}

// Response DTOs

type AppointmentResponse struct {
	ID                   uuid.UUID         `json:"id"`
	ServiceID            uuid.UUID         `json:"service_id"`
	ServiceName          string            `json:"service_name,omitempty"`
	ServicePointID       uuid.UUID         `json:"service_point_id"`
	ServicePointName     string            `json:"service_point_name,omitempty"`
	BranchID             uuid.UUID         `json:"branch_id"`
	ScheduledAt          time.Time         `json:"scheduled_at"`
	ConfirmationCode     string            `json:"confirmation_code"`
	Status               string            `json:"status"`
	CustomerName         string            `json:"customer_name"`
	IntakeData           map[string]string `json:"intake_data,omitempty"`
	TicketNumber         *int              `json:"ticket_number,omitempty"`
	QueuePosition        *int              `json:"queue_position,omitempty"`
	EstimatedWaitMinutes *int              `json:"estimated_wait_minutes,omitempty"`
	RescheduleCount      int               `json:"reschedule_count"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}
