// ==============================================================================
// DRIVER STATUS HANDLER - internal/handler/status.go
// ==============================================================================
// The UI-facing read side: overall status with a full document-validity
// breakdown, and the next-step routing decision. Both recompute validity at
// query time; nothing here writes.
// ==============================================================================

package handler

import (
	"encoding/json"
	"net/http"

	"driverid/internal/board"
	"driverid/internal/status"
	"driverid/pkg/config"
	driveriderrors "driverid/pkg/errors"
	"driverid/pkg/logger"

	"github.com/gorilla/mux"
)

// StatusHandler serves driver status and routing queries.
type StatusHandler struct {
	board     board.Reader
	projector *status.Projector
	decider   *status.Decider
	polling   config.StatusConfig
	logger    logger.Logger
}

func NewStatusHandler(b board.Reader, projector *status.Projector, decider *status.Decider, polling config.StatusConfig, log logger.Logger) *StatusHandler {
	return &StatusHandler{
		board:     b,
		projector: projector,
		decider:   decider,
		polling:   polling,
		logger:    log,
	}
}

type statusResponse struct {
	DriverEmail   string                  `json:"driver_email"`
	JobID         string                  `json:"job_id"`
	OverallStatus string                  `json:"overall_status"`
	Validity      status.DocumentValidity `json:"validity"`
	Reason        string                  `json:"reason,omitempty"`
}

// GetStatus is GET /drivers/{email}/jobs/{jobID}/status.
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	email, jobID := vars["email"], vars["jobID"]

	rec, err := h.board.ReadRecord(r.Context(), email, jobID)
	if err != nil {
		if driveriderrors.Is(err, driveriderrors.ErrRecordNotFound) {
			h.respondJSON(w, http.StatusOK, statusResponse{
				DriverEmail:   email,
				JobID:         jobID,
				OverallStatus: string(h.projector.Project(nil)),
			})
			return
		}
		h.logger.Error("Board read failed", map[string]interface{}{
			"driver_email": email,
			"error":        err.Error(),
		})
		h.respondError(w, http.StatusBadGateway, "Record store unavailable")
		return
	}

	h.respondJSON(w, http.StatusOK, statusResponse{
		DriverEmail:   email,
		JobID:         jobID,
		OverallStatus: string(h.projector.Project(rec)),
		Validity:      h.projector.Validity(rec),
		Reason:        rec.Reason,
	})
}

// GetNextStep is GET /drivers/{email}/jobs/{jobID}/next-step. While POA
// analysis is pending it returns 202 with polling advice instead of a step.
func (h *StatusHandler) GetNextStep(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	email, jobID := vars["email"], vars["jobID"]

	rec, err := h.board.ReadRecord(r.Context(), email, jobID)
	if err != nil && !driveriderrors.Is(err, driveriderrors.ErrRecordNotFound) {
		h.respondError(w, http.StatusBadGateway, "Record store unavailable")
		return
	}

	step, err := h.decider.NextStep(rec)
	if err != nil {
		switch {
		case driveriderrors.Is(err, driveriderrors.ErrAnalysisPending):
			// No hard server-side bound exists on the processing window, so
			// the response carries the advisory client timeout.
			h.respondJSON(w, http.StatusAccepted, map[string]interface{}{
				"status":            "processing",
				"retry_after_secs":  int(h.polling.PollInterval.Seconds()),
				"poll_timeout_secs": int(h.polling.PollTimeout.Seconds()),
			})
		case driveriderrors.Is(err, driveriderrors.ErrRecordNotFound):
			h.respondError(w, http.StatusNotFound, "No verification record for driver")
		default:
			h.respondError(w, http.StatusInternalServerError, "Routing decision failed")
		}
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"next_step": string(step)})
}

func (h *StatusHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", map[string]interface{}{
			"error":   err.Error(),
			"handler": "status",
		})
	}
}

func (h *StatusHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
