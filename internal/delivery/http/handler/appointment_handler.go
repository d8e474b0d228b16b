package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"branch-queue-engine/internal/delivery/dto"
	"branch-queue-engine/internal/domain/entity"
	"branch-queue-engine/internal/service"
	"branch-queue-engine/internal/usecase"
	"branch-queue-engine/pkg/response"
	"branch-queue-engine/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type AppointmentHandler struct {
	reservationUsecase usecase.ReservationUsecase
	lifecycleUsecase   usecase.LifecycleUsecase
	validator          *validator.CustomValidator
}

func NewAppointmentHandler(
	reservationUsecase usecase.ReservationUsecase,
	lifecycleUsecase usecase.LifecycleUsecase,
	validator *validator.CustomValidator,
) *AppointmentHandler {
	return &AppointmentHandler{
		reservationUsecase: reservationUsecase,
		lifecycleUsecase:   lifecycleUsecase,
		validator:          validator,
	}
}

func (h *AppointmentHandler) ReserveAppointment(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	appointment, err := h.reservationUsecase.Reserve(r.Context(), &req)
	if err != nil {
		writeAppointmentError(w, err, "Failed to reserve appointment")
		return
	}

	response.Success(w, http.StatusCreated, "Appointment reserved successfully", appointment)
}

func (h *AppointmentHandler) TransitionStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseAppointmentID(w, r)
	if !ok {
		return
	}

	var req dto.TransitionStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	appointment, err := h.lifecycleUsecase.TransitionStatus(r.Context(), id, entity.AppointmentStatus(req.Status), req.Actor)
	if err != nil {
		writeAppointmentError(w, err, "Failed to transition appointment")
		return
	}

	response.Success(w, http.StatusOK, "Appointment status updated successfully", appointment)
}

func (h *AppointmentHandler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseAppointmentID(w, r)
	if !ok {
		return
	}

	var req dto.CancelAppointmentRequest
	if r.Body != nil {
		// Body is optional for cancellation.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	appointment, err := h.lifecycleUsecase.CancelAppointment(r.Context(), id, req.Reason)
	if err != nil {
		writeAppointmentError(w, err, "Failed to cancel appointment")
		return
	}

	response.Success(w, http.StatusOK, "Appointment cancelled successfully", appointment)
}

func (h *AppointmentHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	id, ok := parseAppointmentID(w, r)
	if !ok {
		return
	}

	appointment, err := h.lifecycleUsecase.CheckIn(r.Context(), id)
	if err != nil {
		writeAppointmentError(w, err, "Failed to check in appointment")
		return
	}

	response.Success(w, http.StatusOK, "Appointment checked in successfully", appointment)
}

func (h *AppointmentHandler) RescheduleAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseAppointmentID(w, r)
	if !ok {
		return
	}

	var req dto.RescheduleAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	appointment, err := h.lifecycleUsecase.Reschedule(r.Context(), id, &req)
	if err != nil {
		writeAppointmentError(w, err, "Failed to reschedule appointment")
		return
	}

	response.Success(w, http.StatusOK, "Appointment rescheduled successfully", appointment)
}

func (h *AppointmentHandler) GetByConfirmationCode(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	if code == "" {
		response.Error(w, http.StatusBadRequest, "Missing confirmation code", nil)
		return
	}

	appointment, err := h.lifecycleUsecase.GetByConfirmationCode(r.Context(), code)
	if err != nil {
		writeAppointmentError(w, err, "Failed to look up appointment")
		return
	}

	response.Success(w, http.StatusOK, "Appointment retrieved successfully", appointment)
}

func parseAppointmentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid appointment ID", nil)
		return uuid.Nil, false
	}
	return id, true
}

// writeAppointmentError maps engine errors onto the response envelope.
func writeAppointmentError(w http.ResponseWriter, err error, fallback string) {
	var intakeErr *service.IntakeValidationError
	if errors.As(err, &intakeErr) {
		response.ValidationError(w, map[string]interface{}{
			"fields":   intakeErr.Fields,
			"warnings": intakeErr.Warnings,
		})
		return
	}

	switch {
	case errors.Is(err, usecase.ErrServiceNotFound):
		response.NotFound(w, "Service not found")
	case errors.Is(err, usecase.ErrServicePointNotFound):
		response.NotFound(w, "Service point not found")
	case errors.Is(err, usecase.ErrAppointmentNotFound):
		response.NotFound(w, "Appointment not found")
	case errors.Is(err, usecase.ErrServiceNotOffered):
		response.Error(w, http.StatusBadRequest, "Service point does not offer this service", nil)
	case errors.Is(err, usecase.ErrSlotTaken):
		response.Error(w, http.StatusConflict, "Slot is already taken, please pick another", nil)
	case errors.Is(err, usecase.ErrSlotNotAvailable):
		response.Error(w, http.StatusConflict, "Requested time is not a bookable slot", nil)
	case errors.Is(err, usecase.ErrInvalidTransition):
		response.Error(w, http.StatusConflict, "Invalid status transition", nil)
	case errors.Is(err, usecase.ErrServicePointBusy):
		response.Error(w, http.StatusConflict, "Service point is already serving another ticket", nil)
	case errors.Is(err, usecase.ErrPolicyViolation):
		response.Error(w, http.StatusUnprocessableEntity, err.Error(), nil)
	default:
		response.InternalServerError(w, fallback)
	}
}
