package handler

import (
	"fmt"
	"net/http"
	"time"

	"barberline/internal/availability/service"
	apperrors "barberline/pkg/errors"
	httputil "barberline/pkg/http"
	"barberline/pkg/logger"
	"barberline/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type AppointmentHandler struct {
	service service.AvailabilityService
	log     *logger.Logger
}

func NewAppointmentHandler(service service.AvailabilityService, log *logger.Logger) *AppointmentHandler {
	return &AppointmentHandler{
		service: service,
		log:     log,
	}
}

func (h *AppointmentHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	appt, err := h.service.GetAppointment(r.Context(), id)
	if err != nil {
		h.writeError(w, "GetByID", err)
		return
	}

	if err := httputil.WriteSuccess(w, appt); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AppointmentHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	appts, total, err := h.service.ListAppointments(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, "GetAll", err)
		return
	}

	if err := httputil.WritePaginated(w, appts, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "GetAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")

	appt, err := h.service.CancelAppointment(r.Context(), id)
	if err != nil {
		h.writeError(w, "Cancel", err)
		return
	}

	if err := httputil.WriteSuccess(w, appt); err != nil {
		h.log.Error("failed to write success response", "handler", "Cancel", "operation", "WriteSuccess", "error", err)
	}
}

// Candidates lists bookable spans: ?service=HAIRCUT[&from=RFC3339&to=RFC3339].
// Without from/to it searches the whole look-ahead horizon.
func (h *AppointmentHandler) Candidates(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()
	serviceID := query.Get("service")
	if serviceID == "" {
		h.writeError(w, "Candidates", apperrors.InvalidInput("service parameter is required"))
		return
	}

	window := &model.TimeWindow{Open: true}
	if fromStr, toStr := query.Get("from"), query.Get("to"); fromStr != "" || toStr != "" {
		from, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			h.writeError(w, "Candidates", apperrors.InvalidInput(fmt.Sprintf("invalid from parameter: %s", fromStr)))
			return
		}
		to, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			h.writeError(w, "Candidates", apperrors.InvalidInput(fmt.Sprintf("invalid to parameter: %s", toStr)))
			return
		}
		window = &model.TimeWindow{Start: from, End: to}
	}

	candidates, err := h.service.FindCandidateSlots(r.Context(), serviceID, window)
	if err != nil {
		h.writeError(w, "Candidates", err)
		return
	}

	if err := httputil.WriteSuccess(w, candidates); err != nil {
		h.log.Error("failed to write success response", "handler", "Candidates", "operation", "WriteSuccess", "error", err)
	}
}

func (h *AppointmentHandler) writeError(w http.ResponseWriter, handler string, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func (h *AppointmentHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/appointments", h.GetAll)
	router.GET("/api/v1/appointments/id/:id", h.GetByID)
	router.POST("/api/v1/appointments/id/:id/cancel", h.Cancel)
	router.GET("/api/v1/availability", h.Candidates)
}
