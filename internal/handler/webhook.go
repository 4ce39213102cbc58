// ==============================================================================
// VENDOR WEBHOOK HANDLER - internal/handler/webhook.go
// ==============================================================================
// Receives the identity vendor's verification callbacks. Payload signatures
// are checked before any parsing; non-final callbacks are acknowledged with
// 200 and dropped without reconciliation so the vendor stops redelivering.
// ==============================================================================

package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"driverid/internal/domain"
	"driverid/internal/reconcile"
	driveriderrors "driverid/pkg/errors"
	"driverid/pkg/logger"
)

const signatureHeader = "X-Callback-Signature"

// CallbackReconciler reconciles one vendor callback into the driver record.
type CallbackReconciler interface {
	HandleCallback(ctx context.Context, cb *domain.VendorCallback) (*reconcile.Result, error)
}

// WebhookHandler handles inbound vendor callbacks.
type WebhookHandler struct {
	reconciler CallbackReconciler
	signingKey string
	logger     logger.Logger
}

// NewWebhookHandler creates a WebhookHandler. An empty signing key disables
// signature checks (local development against the vendor sandbox).
func NewWebhookHandler(reconciler CallbackReconciler, signingKey string, log logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		reconciler: reconciler,
		signingKey: signingKey,
		logger:     log,
	}
}

// HandleCallback is POST /webhooks/identity.
func (h *WebhookHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Failed to read request body")
		return
	}

	if err := h.verifySignature(r, body); err != nil {
		h.logger.Warn("Callback signature rejected", map[string]interface{}{
			"remote": r.RemoteAddr,
		})
		h.respondError(w, http.StatusUnauthorized, "Invalid signature")
		return
	}

	var cb domain.VendorCallback
	if err := json.Unmarshal(body, &cb); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid callback payload")
		return
	}

	result, err := h.reconciler.HandleCallback(r.Context(), &cb)
	if err != nil {
		if driveriderrors.Is(err, driveriderrors.ErrMalformedCorrelation) {
			h.respondError(w, http.StatusBadRequest, "Malformed correlation identifier")
			return
		}
		h.logger.Error("Callback reconciliation failed", map[string]interface{}{
			"scan_ref": cb.ScanRef,
			"error":    err.Error(),
		})
		h.respondError(w, http.StatusInternalServerError, "Reconciliation failed")
		return
	}

	if result.Dropped {
		h.respondJSON(w, http.StatusOK, map[string]string{"status": "acknowledged"})
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "reconciled",
		"scan_ref":       result.Session.SessionID,
		"decision":       result.Decision,
		"poas_processed": result.PoasProcessed,
	})
}

func (h *WebhookHandler) verifySignature(r *http.Request, body []byte) error {
	if h.signingKey == "" {
		return nil
	}

	sig, err := hex.DecodeString(r.Header.Get(signatureHeader))
	if err != nil {
		return driveriderrors.ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(h.signingKey))
	mac.Write(body)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return driveriderrors.ErrInvalidSignature
	}
	return nil
}

func (h *WebhookHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", map[string]interface{}{
			"error":   err.Error(),
			"handler": "webhook",
		})
	}
}

func (h *WebhookHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
