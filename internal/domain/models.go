// ==============================================================================
// WIRE MODELS - internal/domain/models.go
// ==============================================================================
// Inbound vendor callback shapes, stored POA documents and queue items.
// ==============================================================================
package domain

import (
	"time"

	"github.com/google/uuid"
)

// VendorCallback is the identity vendor's verification webhook body. Only the
// fields reconciliation depends on are modeled.
type VendorCallback struct {
	ClientID string       `json:"clientId" validate:"required"`
	ScanRef  string       `json:"scanRef" validate:"required"`
	Final    bool         `json:"final"`
	Status   VendorStatus `json:"status"`
	Data     VendorData   `json:"data"`
}

// VendorStatus carries the vendor's raw check outcomes.
type VendorStatus struct {
	Overall        string   `json:"overall"`
	AutoDocument   string   `json:"autoDocument"`
	ManualDocument string   `json:"manualDocument"`
	AutoFace       string   `json:"autoFace"`
	ManualFace     string   `json:"manualFace"`
	MismatchTags   []string `json:"mismatchTags"`
	FraudTags      []string `json:"fraudTags"`
}

// VendorData carries the identity fields the vendor extracted.
type VendorData struct {
	DocFirstName      string `json:"docFirstName"`
	DocLastName       string `json:"docLastName"`
	DocDob            string `json:"docDob"`
	DocNumber         string `json:"docNumber"`
	DocExpiry         string `json:"docExpiry"`
	Address           string `json:"address"`
	DocIssuingCountry string `json:"docIssuingCountry"`
	Authority         string `json:"authority"`
}

// PoaDocument is a proof-of-address image uploaded through the document
// intake, waiting for analysis. Slot is 1 or 2.
type PoaDocument struct {
	DriverEmail string    `json:"driver_email" db:"driver_email"`
	JobID       string    `json:"job_id" db:"job_id"`
	Slot        int       `json:"slot" db:"slot"`
	FileName    string    `json:"file_name" db:"file_name"`
	ContentType string    `json:"content_type" db:"content_type"`
	Image       []byte    `json:"-" db:"image"`
	UploadedAt  time.Time `json:"uploaded_at" db:"uploaded_at"`
}

// QueueDocumentType classifies a queued document-processing call.
type QueueDocumentType string

const (
	QueueDocPoa  QueueDocumentType = "poa"
	QueueDocDvla QueueDocumentType = "dvla"
)

// QueueStatus tracks a queue item's lifecycle. Transitions are monotonic
// except failed -> queued on explicit operator reset.
type QueueStatus string

const (
	QueueStatusQueued     QueueStatus = "queued"
	QueueStatusProcessing QueueStatus = "processing"
	QueueStatusCompleted  QueueStatus = "completed"
	QueueStatusFailed     QueueStatus = "failed"
)

// QueuePriority orders background processing.
type QueuePriority string

const (
	PriorityUrgent QueuePriority = "urgent"
	PriorityHigh   QueuePriority = "high"
	PriorityNormal QueuePriority = "normal"
	PriorityLow    QueuePriority = "low"
)

// Rank returns a sortable weight, higher first.
func (p QueuePriority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 1
	default:
		return 0
	}
}

// AnalysisRequest is the payload of one document-processing call.
type AnalysisRequest struct {
	DriverEmail      string `json:"driver_email"`
	JobID            string `json:"job_id"`
	SessionID        string `json:"session_id"`
	Slot             int    `json:"slot"`
	ReferenceAddress string `json:"reference_address"`
	Image            []byte `json:"-"`
}

// QueueItem is a unit of retryable work: one document's analysis call.
type QueueItem struct {
	ID           uuid.UUID         `json:"id" db:"id"`
	DocumentType QueueDocumentType `json:"document_type" db:"document_type"`
	Status       QueueStatus       `json:"status" db:"status"`
	Attempts     int               `json:"attempts" db:"attempts"`
	MaxAttempts  int               `json:"max_attempts" db:"max_attempts"`
	Priority     QueuePriority     `json:"priority" db:"priority"`
	LastAttempt  *time.Time        `json:"last_attempt,omitempty" db:"last_attempt"`
	Error        string            `json:"error,omitempty" db:"error"`
	Request      AnalysisRequest   `json:"request" db:"-"`
	Result       *PoaExtraction    `json:"result,omitempty" db:"-"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
}
