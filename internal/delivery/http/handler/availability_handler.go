package handler

import (
	"net/http"
	"time"

	"branch-queue-engine/internal/usecase"
	"branch-queue-engine/pkg/response"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type AvailabilityHandler struct {
	availabilityUsecase usecase.AvailabilityUsecase
}

func NewAvailabilityHandler(availabilityUsecase usecase.AvailabilityUsecase) *AvailabilityHandler {
	return &AvailabilityHandler{availabilityUsecase: availabilityUsecase}
}

func (h *AvailabilityHandler) GetAvailableSlots(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	serviceID, err := uuid.Parse(vars["serviceId"])
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid service ID", nil)
		return
	}

	dateParam := r.URL.Query().Get("date")
	date, err := time.ParseInLocation("2006-01-02", dateParam, time.Local)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid or missing date, expected YYYY-MM-DD", nil)
		return
	}

	var servicePointID *uuid.UUID
	if raw := r.URL.Query().Get("service_point_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "Invalid service point ID", nil)
			return
		}
		servicePointID = &id
	}

	availability, err := h.availabilityUsecase.GetAvailableSlots(r.Context(), serviceID, date, servicePointID)
	if err != nil {
		switch err {
		case usecase.ErrServiceNotFound:
			response.NotFound(w, "Service not found")
		case usecase.ErrServicePointNotFound:
			response.NotFound(w, "Service point not found")
		case usecase.ErrServiceNotOffered:
			response.Error(w, http.StatusBadRequest, "Service point does not offer this service", nil)
		default:
			response.InternalServerError(w, "Failed to get available slots")
		}
		return
	}

	response.Success(w, http.StatusOK, "Available slots retrieved successfully", availability)
}
