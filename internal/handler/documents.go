// ==============================================================================
// DOCUMENT INTAKE HANDLER - internal/handler/documents.go
// ==============================================================================

package handler

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"driverid/internal/domain"
	driveriderrors "driverid/pkg/errors"
	"driverid/pkg/logger"

	"github.com/gorilla/mux"
)

// maxUploadBytes bounds a single POA image upload.
const maxUploadBytes = 10 << 20

// supportedUploadTypes are the raster and PDF formats the analysis service
// accepts.
var supportedUploadTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/tiff":      true,
	"application/pdf": true,
}

// DocumentSaver persists uploaded POA documents.
type DocumentSaver interface {
	Save(ctx context.Context, doc *domain.PoaDocument) error
}

// DocumentHandler accepts proof-of-address uploads ahead of verification.
type DocumentHandler struct {
	documents DocumentSaver
	logger    logger.Logger
}

func NewDocumentHandler(documents DocumentSaver, log logger.Logger) *DocumentHandler {
	return &DocumentHandler{documents: documents, logger: log}
}

func validateUploadType(contentType string) error {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil || !supportedUploadTypes[mt] {
		return driveriderrors.ErrUnsupportedDocument
	}
	return nil
}

// UploadPoa is POST /drivers/{email}/jobs/{jobID}/poa/{slot}. The body is the
// raw image; Content-Type and X-File-Name carry the metadata. Re-uploading a
// slot replaces the previous document.
func (h *DocumentHandler) UploadPoa(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	email, jobID := vars["email"], vars["jobID"]

	slot, err := strconv.Atoi(vars["slot"])
	if err != nil || (slot != 1 && slot != 2) {
		h.respondError(w, http.StatusBadRequest, "Slot must be 1 or 2")
		return
	}

	if err := validateUploadType(r.Header.Get("Content-Type")); err != nil {
		h.respondError(w, http.StatusUnsupportedMediaType, err.Error())
		return
	}

	image, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxUploadBytes))
	if err != nil {
		h.respondError(w, http.StatusRequestEntityTooLarge, "Document too large")
		return
	}
	if len(image) == 0 {
		h.respondError(w, http.StatusBadRequest, "Document body is required")
		return
	}

	doc := &domain.PoaDocument{
		DriverEmail: email,
		JobID:       jobID,
		Slot:        slot,
		FileName:    r.Header.Get("X-File-Name"),
		ContentType: r.Header.Get("Content-Type"),
		Image:       image,
		UploadedAt:  time.Now(),
	}

	if err := h.documents.Save(r.Context(), doc); err != nil {
		h.logger.Error("Failed to store POA document", map[string]interface{}{
			"driver_email": email,
			"slot":         slot,
			"error":        err.Error(),
		})
		h.respondError(w, http.StatusInternalServerError, "Failed to store document")
		return
	}

	h.logger.Info("POA document stored", map[string]interface{}{
		"driver_email": email,
		"job_id":       jobID,
		"slot":         slot,
		"bytes":        len(image),
	})

	h.respondJSON(w, http.StatusCreated, map[string]interface{}{
		"driver_email": email,
		"job_id":       jobID,
		"slot":         slot,
	})
}

func (h *DocumentHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", map[string]interface{}{
			"error":   err.Error(),
			"handler": "documents",
		})
	}
}

func (h *DocumentHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
