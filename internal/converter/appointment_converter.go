package converter

import (
	"branch-queue-engine/internal/delivery/dto"
	"branch-queue-engine/internal/domain/entity"

	"github.com/google/uuid"
)

// AppointmentToResponse converts an Appointment entity to its response DTO.
func AppointmentToResponse(appointment *entity.Appointment) *dto.AppointmentResponse {
	if appointment == nil {
		return nil
	}

	response := &dto.AppointmentResponse{
		ID:                   appointment.ID,
		ServiceID:            appointment.ServiceID,
		ServicePointID:       appointment.ServicePointID,
		BranchID:             appointment.BranchID,
		ScheduledAt:          appointment.ScheduledAt,
		ConfirmationCode:     appointment.ConfirmationCode,
		Status:               string(appointment.Status),
		CustomerName:         appointment.CustomerName,
		IntakeData:           appointment.IntakeData,
		TicketNumber:         appointment.TicketNumber,
		QueuePosition:        appointment.QueuePosition,
		EstimatedWaitMinutes: appointment.EstimatedWaitMinutes,
		RescheduleCount:      appointment.RescheduleCount,
		CreatedAt:            appointment.CreatedAt,
		UpdatedAt:            appointment.UpdatedAt,
	}

	if appointment.Service.ID != uuid.Nil {
		response.ServiceName = appointment.Service.Name
	}
	if appointment.ServicePoint.ID != uuid.Nil {
		response.ServicePointName = appointment.ServicePoint.Name
	}

	return response
}

// AppointmentsToResponses converts a slice of Appointment entities.
func AppointmentsToResponses(appointments []entity.Appointment) []dto.AppointmentResponse {
	responses := make([]dto.AppointmentResponse, len(appointments))
	for i, appointment := range appointments {
		resp := AppointmentToResponse(&appointment)
		if resp != nil {
			responses[i] = *resp
		}
	}
	return responses
}
