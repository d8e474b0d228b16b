package dto

import (
	"time"

	"github.com/google/uuid"
)

// ServicePointSlots is the availability of one service point on the
// requested date. Slot sets are independent per service point because
// each point carries its own existing bookings.
type ServicePointSlots struct {
	ServicePointID   uuid.UUID   `json:"service_point_id"`
	ServicePointName string      `json:"service_point_name"`
	Slots            []time.Time `json:"slots"`
}

type AvailabilityResponse struct {
	ServiceID       uuid.UUID           `json:"service_id"`
	Date            string              `json:"date"`
	DurationMinutes int                 `json:"duration_minutes"`
	ServicePoints   []ServicePointSlots `json:"service_points"`
}
