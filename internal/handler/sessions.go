// ==============================================================================
// SESSION HANDLER - internal/handler/sessions.go
// ==============================================================================

package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"driverid/internal/domain"
	"driverid/internal/reconcile"
	driveriderrors "driverid/pkg/errors"
	"driverid/pkg/logger"
	"driverid/pkg/validator"
)

// SessionHandler starts verification sessions and hands the caller the
// correlation identifier to pass to the vendor capture flow.
type SessionHandler struct {
	reconciler        *reconcile.Reconciler
	validator         *validator.Validator
	correlationPrefix string
	logger            logger.Logger
}

func NewSessionHandler(reconciler *reconcile.Reconciler, val *validator.Validator, correlationPrefix string, log logger.Logger) *SessionHandler {
	return &SessionHandler{
		reconciler:        reconciler,
		validator:         val,
		correlationPrefix: correlationPrefix,
		logger:            log,
	}
}

type startSessionRequest struct {
	DriverEmail      string `json:"driver_email" validate:"required,email"`
	JobID            string `json:"job_id" validate:"required"`
	VerificationType string `json:"verification_type" validate:"required,verification_type"`
}

type startSessionResponse struct {
	DriverEmail      string `json:"driver_email"`
	JobID            string `json:"job_id"`
	VerificationType string `json:"verification_type"`
	ClientID         string `json:"client_id"`
	CreatedAt        string `json:"created_at"`
}

// StartSession is POST /verifications.
func (h *SessionHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req startSessionRequest
	if err := dec.Decode(&req); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "Request body is required")
			return
		}
		h.respondError(w, http.StatusBadRequest, "Invalid request body format")
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.reconciler.StartSession(r.Context(), req.DriverEmail, req.JobID, domain.VerificationType(req.VerificationType))
	if err != nil {
		if driveriderrors.Is(err, driveriderrors.ErrActiveSessionExists) {
			h.respondError(w, http.StatusConflict, "An active verification session already exists")
			return
		}
		if driveriderrors.Is(err, driveriderrors.ErrInvalidVerificationType) {
			h.respondError(w, http.StatusBadRequest, "Unknown verification type")
			return
		}
		h.logger.Error("Failed to start verification session", map[string]interface{}{
			"driver_email": req.DriverEmail,
			"error":        err.Error(),
		})
		h.respondError(w, http.StatusInternalServerError, "Failed to start verification")
		return
	}

	corr := reconcile.Correlation{
		Prefix:    h.correlationPrefix,
		JobID:     session.JobID,
		Email:     session.DriverEmail,
		Timestamp: strconv.FormatInt(session.CreatedAt.UnixMilli(), 10),
	}

	h.respondJSON(w, http.StatusCreated, startSessionResponse{
		DriverEmail:      session.DriverEmail,
		JobID:            session.JobID,
		VerificationType: string(session.Type),
		ClientID:         corr.Encode(),
		CreatedAt:        session.CreatedAt.Format(time.RFC3339),
	})
}

func (h *SessionHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", map[string]interface{}{
			"error":   err.Error(),
			"handler": "sessions",
		})
	}
}

func (h *SessionHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
