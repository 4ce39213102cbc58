// ==============================================================================
// QUEUE ADMIN HANDLER - internal/handler/queue.go
// ==============================================================================
// Operator endpoints over the document-processing queue: inspect items, run a
// background pass, and reset failed items back to queued. All routes sit
// behind operator JWT auth.
// ==============================================================================

package handler

import (
	"encoding/json"
	"net/http"

	"driverid/internal/domain"
	"driverid/internal/middleware"
	"driverid/internal/queue"
	"driverid/pkg/logger"
)

// QueueHandler exposes queue administration.
type QueueHandler struct {
	queue  *queue.Queue
	logger logger.Logger
}

func NewQueueHandler(q *queue.Queue, log logger.Logger) *QueueHandler {
	return &QueueHandler{queue: q, logger: log}
}

// ListItems is GET /admin/queue?status=queued&document_type=poa.
func (h *QueueHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	var statuses []domain.QueueStatus
	if s := r.URL.Query().Get("status"); s != "" {
		statuses = append(statuses, domain.QueueStatus(s))
	}

	var docType domain.QueueDocumentType
	if dt := r.URL.Query().Get("document_type"); dt != "" {
		switch domain.QueueDocumentType(dt) {
		case domain.QueueDocPoa, domain.QueueDocDvla:
			docType = domain.QueueDocumentType(dt)
		default:
			h.respondError(w, http.StatusBadRequest, "Document type must be poa or dvla")
			return
		}
	}

	items, err := h.queue.Items(r.Context(), statuses...)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "Failed to list queue items")
		return
	}

	if docType != "" {
		filtered := items[:0]
		for _, item := range items {
			if item.DocumentType == docType {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}

	// Images are large and irrelevant to an operator listing.
	for _, item := range items {
		item.Request.Image = nil
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(items),
		"items": items,
	})
}

// ProcessPending is POST /admin/queue/process: one background pass over the
// queued items.
func (h *QueueHandler) ProcessPending(w http.ResponseWriter, r *http.Request) {
	if err := h.queue.ProcessPending(r.Context()); err != nil {
		h.logger.Error("Queue pass failed", map[string]interface{}{
			"operator": middleware.OperatorFromContext(r.Context()),
			"error":    err.Error(),
		})
		h.respondError(w, http.StatusInternalServerError, "Queue processing failed")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

// RetryFailed is POST /admin/queue/retry-failed: the explicit operator reset,
// failed items return to queued with attempts cleared.
func (h *QueueHandler) RetryFailed(w http.ResponseWriter, r *http.Request) {
	n, err := h.queue.RetryFailed(r.Context())
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "Failed to reset queue items")
		return
	}

	h.logger.Info("Failed queue items reset", map[string]interface{}{
		"operator": middleware.OperatorFromContext(r.Context()),
		"count":    n,
	})
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"reset": n})
}

func (h *QueueHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", map[string]interface{}{
			"error":   err.Error(),
			"handler": "queue",
		})
	}
}

func (h *QueueHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
