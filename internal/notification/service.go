// Package notification delivers final-decision notifications to drivers.
package notification

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"driverid/internal/domain"
	"driverid/pkg/logger"

	"github.com/google/uuid"
)

// Notification is one message queued for delivery.
type Notification struct {
	ID        uuid.UUID
	Email     string
	JobID     string
	Subject   string
	Body      string
	CreatedAt time.Time
}

// Service composes and dispatches decision notifications. Delivery here is
// simulated; a real deployment plugs an email provider behind SendRaw.
type Service struct {
	logger logger.Logger

	mu   sync.Mutex
	sent []Notification
}

func NewService(log logger.Logger) *Service {
	return &Service{logger: log}
}

// NotifyDecision tells the driver the outcome of their verification.
// Best-effort: failures are logged, never propagated to the reconciler.
func (s *Service) NotifyDecision(ctx context.Context, email, jobID string, decision domain.FinalDecision, reasons []string) {
	var subject, body string
	switch decision {
	case domain.DecisionApproved:
		subject = "Identity verification approved"
		body = "Your identity documents have been verified. No further action is needed."
	case domain.DecisionReviewRequired:
		subject = "Identity verification under review"
		body = "Your identity documents need a manual review. We will be in touch shortly."
	case domain.DecisionRejected:
		subject = "Identity verification unsuccessful"
		body = "We could not verify your identity documents. Please re-submit them."
	default:
		s.logger.Warn("No notification template for decision", map[string]interface{}{
			"decision": string(decision),
		})
		return
	}

	if len(reasons) > 0 && decision != domain.DecisionApproved {
		body = fmt.Sprintf("%s Details: %s.", body, strings.Join(reasons, "; "))
	}

	n := Notification{
		ID:        uuid.New(),
		Email:     email,
		JobID:     jobID,
		Subject:   subject,
		Body:      body,
		CreatedAt: time.Now(),
	}

	if err := s.SendRaw(ctx, &n); err != nil {
		s.logger.Error("Failed to send decision notification", map[string]interface{}{
			"driver_email": email,
			"error":        err.Error(),
		})
	}
}

// SendRaw dispatches one notification. The simulated provider records it and
// logs the delivery.
func (s *Service) SendRaw(ctx context.Context, n *Notification) error {
	s.mu.Lock()
	s.sent = append(s.sent, *n)
	s.mu.Unlock()

	s.logger.Info("Notification dispatched", map[string]interface{}{
		"notification_id": n.ID.String(),
		"driver_email":    n.Email,
		"subject":         n.Subject,
	})
	return nil
}

// Sent returns the delivered notifications. Tests only.
func (s *Service) Sent() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, len(s.sent))
	copy(out, s.sent)
	return out
}
