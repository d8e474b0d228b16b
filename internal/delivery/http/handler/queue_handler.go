package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"branch-queue-engine/internal/delivery/dto"
	"branch-queue-engine/internal/usecase"
	"branch-queue-engine/pkg/response"
	"branch-queue-engine/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type QueueHandler struct {
	queueUsecase usecase.QueueUsecase
	validator    *validator.CustomValidator
}

func NewQueueHandler(queueUsecase usecase.QueueUsecase, validator *validator.CustomValidator) *QueueHandler {
	return &QueueHandler{
		queueUsecase: queueUsecase,
		validator:    validator,
	}
}

func (h *QueueHandler) IssueTurn(w http.ResponseWriter, r *http.Request) {
	var req dto.IssueTurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	ticket, err := h.queueUsecase.IssueTurn(r.Context(), &req)
	if err != nil {
		if errors.Is(err, usecase.ErrQueueUnavailable) {
			response.Error(w, http.StatusServiceUnavailable, "Queue is temporarily unavailable", nil)
			return
		}
		writeAppointmentError(w, err, "Failed to issue turn")
		return
	}

	response.Success(w, http.StatusCreated, "Turn issued successfully", ticket)
}

func (h *QueueHandler) GetQueueSnapshot(w http.ResponseWriter, r *http.Request) {
	servicePointID, err := uuid.Parse(mux.Vars(r)["servicePointId"])
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid service point ID", nil)
		return
	}

	snapshot, err := h.queueUsecase.GetQueueSnapshot(r.Context(), servicePointID)
	if err != nil {
		writeAppointmentError(w, err, "Failed to get queue snapshot")
		return
	}

	response.Success(w, http.StatusOK, "Queue snapshot retrieved successfully", snapshot)
}
