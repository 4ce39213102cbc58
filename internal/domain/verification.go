// ==============================================================================
// VERIFICATION DOMAIN MODEL - internal/domain/verification.go
// ==============================================================================
// Core types for the driver identity verification workflow: sessions,
// normalized vendor verdicts, POA extractions, cross-validation results and
// the authoritative driver verification record.
// ==============================================================================
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// VerificationType identifies which documents a session asks the driver for.
type VerificationType string

const (
	VerificationTypeFull         VerificationType = "full"
	VerificationTypeLicenseOnly  VerificationType = "license_only"
	VerificationTypePoa1         VerificationType = "poa1"
	VerificationTypePoa2         VerificationType = "poa2"
	VerificationTypePoaBoth      VerificationType = "poa_both"
	VerificationTypePassportOnly VerificationType = "passport_only"
	VerificationTypeNone         VerificationType = "none"
)

// RequiredDocumentSet says which documents a verification type collects.
type RequiredDocumentSet struct {
	License  bool
	Face     bool
	Poa1     bool
	Poa2     bool
	Passport bool
}

// requiredDocuments is the exhaustive mapping from verification type to
// required documents. Every VerificationType constant must have an entry.
var requiredDocuments = map[VerificationType]RequiredDocumentSet{
	VerificationTypeFull:         {License: true, Face: true, Poa1: true, Poa2: true},
	VerificationTypeLicenseOnly:  {License: true, Face: true},
	VerificationTypePoa1:         {Poa1: true},
	VerificationTypePoa2:         {Poa2: true},
	VerificationTypePoaBoth:      {Poa1: true, Poa2: true},
	VerificationTypePassportOnly: {Passport: true, Face: true},
	VerificationTypeNone:         {},
}

// RequiredDocuments returns the document set for the type. Unknown types get
// an empty set.
func (t VerificationType) RequiredDocuments() RequiredDocumentSet {
	return requiredDocuments[t]
}

// Valid reports whether the type is a member of the closed enum.
func (t VerificationType) Valid() bool {
	_, ok := requiredDocuments[t]
	return ok
}

// IncludesPoa reports whether the session collects any proof-of-address
// documents.
func (s RequiredDocumentSet) IncludesPoa() bool {
	return s.Poa1 || s.Poa2
}

// PoaSlots returns the POA slot numbers the set collects, in order.
func (s RequiredDocumentSet) PoaSlots() []int {
	var slots []int
	if s.Poa1 {
		slots = append(slots, 1)
	}
	if s.Poa2 {
		slots = append(slots, 2)
	}
	return slots
}

// SessionState tracks the forward-only lifecycle of a verification session.
type SessionState string

const (
	SessionStatePending    SessionState = "pending"
	SessionStateProcessing SessionState = "processing"
	SessionStateFinal      SessionState = "final"
)

// FinalDecision is the reconciler's terminal outcome for a session.
type FinalDecision string

const (
	DecisionApproved       FinalDecision = "approved"
	DecisionReviewRequired FinalDecision = "review_required"
	DecisionRejected       FinalDecision = "rejected"
)

// BoardStatus maps a final decision to the board's free-form status string.
func (d FinalDecision) BoardStatus() string {
	switch d {
	case DecisionApproved:
		return "Done"
	case DecisionReviewRequired:
		return "Working on it"
	default:
		return "Stuck"
	}
}

// VerificationSession is one attempt at identity verification. At most one
// non-final session exists per (driver email, job).
type VerificationSession struct {
	SessionID   string           `json:"session_id" db:"session_id"` // vendor-issued scanRef
	DriverEmail string           `json:"driver_email" db:"driver_email"`
	JobID       string           `json:"job_id" db:"job_id"`
	Type        VerificationType `json:"verification_type" db:"verification_type"`
	State       SessionState     `json:"state" db:"state"`
	Decision    FinalDecision    `json:"decision,omitempty" db:"decision"`
	// Verdict and Extractions persist the interpreted vendor result and the
	// POA analysis results (keyed by slot) once computed, so callback
	// redelivery and deferred finalization reuse them instead of
	// re-interpreting or re-analyzing.
	Verdict     *IdentityVerdict       `json:"verdict,omitempty" db:"-"`
	Extractions map[int]*PoaExtraction `json:"extractions,omitempty" db:"-"`
	CreatedAt   time.Time              `json:"created_at" db:"created_at"`
	FinalizedAt *time.Time             `json:"finalized_at,omitempty" db:"finalized_at"`
}

// Final reports whether the session reached a terminal state. Final sessions
// are never reopened; a new verification need creates a new session.
func (s *VerificationSession) Final() bool {
	return s.State == SessionStateFinal
}

// OverallOutcome is the normalized top-level vendor outcome.
type OverallOutcome string

const (
	OutcomeApproved  OverallOutcome = "approved"
	OutcomeSuspected OverallOutcome = "suspected"
	OutcomeDenied    OverallOutcome = "denied"
)

// ExtractedIdentity carries the identity fields the vendor read off the
// driver's document.
type ExtractedIdentity struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	DateOfBirth    string `json:"date_of_birth"`
	DocNumber      string `json:"doc_number"`
	DocExpiry      string `json:"doc_expiry"`
	DocAddress     string `json:"doc_address"`
	IssuingCountry string `json:"issuing_country"`
	Authority      string `json:"authority"`
}

// IdentityVerdict is the normalized vendor result. Derived deterministically
// from the raw callback; never hand-edited.
type IdentityVerdict struct {
	Overall       OverallOutcome    `json:"overall"`
	DocumentValid bool              `json:"document_valid"`
	FaceValid     bool              `json:"face_valid"`
	MismatchFlags []string          `json:"mismatch_flags,omitempty"`
	Identity      ExtractedIdentity `json:"identity"`
}

// PoaDocumentType classifies a proof-of-address document.
type PoaDocumentType string

const (
	PoaDocUtilityBill         PoaDocumentType = "utility_bill"
	PoaDocBankStatement       PoaDocumentType = "bank_statement"
	PoaDocCouncilTax          PoaDocumentType = "council_tax"
	PoaDocCreditCardStatement PoaDocumentType = "credit_card_statement"
	PoaDocOther               PoaDocumentType = "other"
)

// ConfidenceLevel grades how sure the OCR service is about an extraction.
type ConfidenceLevel string

const (
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

// PoaExtraction is one POA document's OCR result. Immutable after creation.
type PoaExtraction struct {
	DocumentType     PoaDocumentType `json:"document_type"`
	ProviderName     string          `json:"provider_name"`
	DocumentDate     *time.Time      `json:"document_date,omitempty"` // nil = not extracted
	Address          string          `json:"address"`
	AccountReference string          `json:"account_reference,omitempty"`
	AddressMatches   bool            `json:"address_matches"`
	MatchScore       decimal.Decimal `json:"match_score"`
	AgeInDays        int             `json:"age_in_days"`
	Confidence       ConfidenceLevel `json:"confidence"`
	Valid            bool            `json:"valid"`
	Issues           []string        `json:"issues,omitempty"`
}

// PoaCrossValidation is the compliance verdict over a pair of extractions.
type PoaCrossValidation struct {
	BothValid                 bool     `json:"both_valid"`
	DistinctSource            bool     `json:"distinct_source"`
	BothWithinFreshnessWindow bool     `json:"both_within_freshness_window"`
	AddressesMatch            bool     `json:"addresses_match"`
	IsDuplicate               bool     `json:"is_duplicate"`
	Approved                  bool     `json:"approved"`
	Issues                    []string `json:"issues,omitempty"`
}

// ProcessingState tracks async POA analysis for a session.
type ProcessingState string

const (
	ProcessingNo         ProcessingState = "no"
	ProcessingInProgress ProcessingState = "processing"
	ProcessingDone       ProcessingState = "yes"
)

// DriverVerificationRecord is the authoritative aggregate persisted to the
// board. Owned exclusively by the reconciler; everyone else reads a
// projection of it.
type DriverVerificationRecord struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	DateOfBirth   string `json:"date_of_birth"`
	LicenseNumber string `json:"license_number"`
	Address       string `json:"address"`

	IssuingCountry string `json:"issuing_country"`
	Authority      string `json:"authority"`

	LicenseValidTo *time.Time `json:"license_valid_to,omitempty"`
	Poa1ValidUntil *time.Time `json:"poa1_valid_until,omitempty"`
	Poa2ValidUntil *time.Time `json:"poa2_valid_until,omitempty"`
	DvlaCheckDate  *time.Time `json:"dvla_check_date,omitempty"`

	// Document-validity booleans recorded at reconciliation time. Presented
	// status re-derives validity from the boundary dates above at query time.
	LicenseValid      bool `json:"license_valid"`
	FaceValid         bool `json:"face_valid"`
	Poa1Valid         bool `json:"poa1_valid"`
	Poa2Valid         bool `json:"poa2_valid"`
	PassportValid     bool `json:"passport_valid"`
	SignatureCaptured bool `json:"signature_captured"`

	PoasProcessed     ProcessingState `json:"poas_processed"`
	PoaDuplicate      bool            `json:"poa_duplicate"`
	PoaCrossValidated bool            `json:"poa_cross_validated"`

	OverallStatus string    `json:"overall_status"` // board status string
	Reason        string    `json:"reason,omitempty"`
	LastUpdated   time.Time `json:"last_updated"`
}

// HasProfile reports whether the record carries an extracted driver identity.
func (r *DriverVerificationRecord) HasProfile() bool {
	return r != nil && (r.FirstName != "" || r.LastName != "")
}

// OverallStatus is the presentable driver status derived from the record.
type OverallStatus string

const (
	StatusNew         OverallStatus = "new"
	StatusPending     OverallStatus = "pending"
	StatusPartial     OverallStatus = "partial"
	StatusVerified    OverallStatus = "verified"
	StatusPoaExpired  OverallStatus = "poa_expired"
	StatusDvlaExpired OverallStatus = "dvla_expired"
)

// PoaFreshnessWindowDays is the maximum accepted document age.
const PoaFreshnessWindowDays = 90

// PoaFallbackValidityDays bounds validity when OCR could not date a document.
const PoaFallbackValidityDays = 30

// DvlaCheckWindowDays is the rolling validity window of a DVLA check.
const DvlaCheckWindowDays = 30
