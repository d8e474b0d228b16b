package http

import (
	"net/http"

	"branch-queue-engine/internal/delivery/http/handler"
	"branch-queue-engine/internal/delivery/http/middleware"

	"github.com/gorilla/mux"
)

type Router struct {
	router              *mux.Router
	availabilityHandler *handler.AvailabilityHandler
	appointmentHandler  *handler.AppointmentHandler
	queueHandler        *handler.QueueHandler
	corsMiddleware      *middleware.CORSMiddleware
	loggingMiddleware   *middleware.LoggingMiddleware
}

func NewRouter(
	availabilityHandler *handler.AvailabilityHandler,
	appointmentHandler *handler.AppointmentHandler,
	queueHandler *handler.QueueHandler,
	corsMiddleware *middleware.CORSMiddleware,
	loggingMiddleware *middleware.LoggingMiddleware,
) *Router {
	return &Router{
		router:              mux.NewRouter(),
		availabilityHandler: availabilityHandler,
		appointmentHandler:  appointmentHandler,
		queueHandler:        queueHandler,
		corsMiddleware:      corsMiddleware,
		loggingMiddleware:   loggingMiddleware,
	}
}

func (r *Router) Setup() *mux.Router {
	// API versioning
	api := r.router.PathPrefix("/api/v1").Subrouter()

	// Health check
	api.HandleFunc("/health", r.healthCheck).Methods(http.MethodGet)

	// Availability
	api.HandleFunc("/services/{serviceId}/slots", r.availabilityHandler.GetAvailableSlots).Methods(http.MethodGet)

	// Appointments
	api.HandleFunc("/appointments", r.appointmentHandler.ReserveAppointment).Methods(http.MethodPost)
	api.HandleFunc("/appointments/code/{code}", r.appointmentHandler.GetByConfirmationCode).Methods(http.MethodGet)
	api.HandleFunc("/appointments/{id}/status", r.appointmentHandler.TransitionStatus).Methods(http.MethodPatch)
	api.HandleFunc("/appointments/{id}/cancel", r.appointmentHandler.CancelAppointment).Methods(http.MethodPost)
	api.HandleFunc("/appointments/{id}/check-in", r.appointmentHandler.CheckIn).Methods(http.MethodPost)
	api.HandleFunc("/appointments/{id}/reschedule", r.appointmentHandler.RescheduleAppointment).Methods(http.MethodPost)

	// Queue / turns
	api.HandleFunc("/turns", r.queueHandler.IssueTurn).Methods(http.MethodPost)
	api.HandleFunc("/service-points/{servicePointId}/queue", r.queueHandler.GetQueueSnapshot).Methods(http.MethodGet)

	r.router.Use(r.corsMiddleware.Handle)
	r.router.Use(r.loggingMiddleware.Handle)

	return r.router
}

func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ok"}`))
}
