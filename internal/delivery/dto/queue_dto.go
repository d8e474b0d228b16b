package dto

import "github.com/google/uuid"

type QueueSnapshotResponse struct {
	ServicePointID uuid.UUID             `json:"service_point_id"`
	Waiting        []AppointmentResponse `json:"waiting"`
	Serving        *AppointmentResponse  `json:"serving"`
}
