package handler

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driverid/internal/domain"
	"driverid/internal/reconcile"
	"driverid/pkg/logger"
)

type stubReconciler struct {
	calls  int
	result *reconcile.Result
}

func (s *stubReconciler) HandleCallback(ctx context.Context, cb *domain.VendorCallback) (*reconcile.Result, error) {
	s.calls++
	if s.result != nil {
		return s.result, nil
	}
	return &reconcile.Result{Dropped: true}, nil
}

func signBody(key string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func postCallback(h *WebhookHandler, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/identity", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(signatureHeader, signature)
	}
	rr := httptest.NewRecorder()
	h.HandleCallback(rr, req)
	return rr
}

func TestHandleCallback_ValidSignature(t *testing.T) {
	recon := &stubReconciler{}
	h := NewWebhookHandler(recon, "signing-key", logger.NewNop())

	body := []byte(`{"final":false,"scanRef":"scan-1"}`)
	rr := postCallback(h, body, signBody("signing-key", body))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, recon.calls)
}

func TestHandleCallback_InvalidSignature(t *testing.T) {
	recon := &stubReconciler{}
	h := NewWebhookHandler(recon, "signing-key", logger.NewNop())

	body := []byte(`{"final":true}`)
	rr := postCallback(h, body, signBody("wrong-key", body))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Zero(t, recon.calls)
}

func TestHandleCallback_MalformedSignature(t *testing.T) {
	recon := &stubReconciler{}
	h := NewWebhookHandler(recon, "signing-key", logger.NewNop())

	rr := postCallback(h, []byte(`{"final":true}`), "not-hex")

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Zero(t, recon.calls)
}

func TestHandleCallback_EmptyKeySkipsCheck(t *testing.T) {
	recon := &stubReconciler{}
	h := NewWebhookHandler(recon, "", logger.NewNop())

	rr := postCallback(h, []byte(`{"final":false}`), "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, recon.calls)
}
