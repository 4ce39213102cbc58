// ==============================================================================
// VERIFICATION RECONCILER - internal/reconcile/reconciler.go
// ==============================================================================
// The central state machine. Combines the interpreted vendor verdict with POA
// cross-validation (when the session collects POA documents) into one
// authoritative driver verification record, applying override rules and
// computing document-expiry windows. Sessions only move forward:
// pending -> processing -> final; a final session is never reopened.
// ==============================================================================
package reconcile

import (
	"context"
	"fmt"
	"strings"
	"time"

	"driverid/internal/crossval"
	"driverid/internal/domain"
	"driverid/internal/identity"
	driveriderrors "driverid/pkg/errors"
	"driverid/pkg/logger"

	"github.com/google/uuid"
)

// poaRejectionReason is surfaced when cross-validation overrides an
// otherwise-approved identity verdict.
const poaRejectionReason = "POA documents failed compliance validation"

// SessionStore persists verification sessions.
type SessionStore interface {
	FindByScanRef(ctx context.Context, scanRef string) (*domain.VerificationSession, error)
	FindActive(ctx context.Context, email, jobID string) (*domain.VerificationSession, error)
	FindLatest(ctx context.Context, email, jobID string) (*domain.VerificationSession, error)
	Create(ctx context.Context, session *domain.VerificationSession) error
	Update(ctx context.Context, session *domain.VerificationSession) error
}

// DocumentStore provides the POA documents uploaded through the intake.
type DocumentStore interface {
	ListPoaDocuments(ctx context.Context, email, jobID string) ([]*domain.PoaDocument, error)
}

// Board reads and writes the authoritative driver record. UpdateRecord is a
// single atomic update per session.
type Board interface {
	ReadRecord(ctx context.Context, email, jobID string) (*domain.DriverVerificationRecord, error)
	UpdateRecord(ctx context.Context, email, jobID string, rec *domain.DriverVerificationRecord) error
}

// DocumentProcessor submits a document analysis call through the retry
// queue. The returned item reflects the synchronous first attempt: completed,
// still queued, or failed.
type DocumentProcessor interface {
	Submit(ctx context.Context, item *domain.QueueItem) (*domain.QueueItem, error)
}

// Notifier dispatches decision notifications. Failures are logged, never
// propagated; notification is best-effort.
type Notifier interface {
	NotifyDecision(ctx context.Context, email, jobID string, decision domain.FinalDecision, reasons []string)
}

// Result is what one reconciliation pass produced.
type Result struct {
	Dropped         bool                             `json:"dropped,omitempty"`
	Session         *domain.VerificationSession      `json:"session,omitempty"`
	Verdict         *domain.IdentityVerdict          `json:"verdict,omitempty"`
	CrossValidation *domain.PoaCrossValidation       `json:"cross_validation,omitempty"`
	Decision        domain.FinalDecision             `json:"decision,omitempty"`
	PoasProcessed   domain.ProcessingState           `json:"poas_processed"`
	Record          *domain.DriverVerificationRecord `json:"record,omitempty"`
}

// Reconciler owns the DriverVerificationRecord. All other components read a
// projection of what it persists.
type Reconciler struct {
	sessions    SessionStore
	documents   DocumentStore
	board       Board
	processor   DocumentProcessor
	interpreter *identity.Interpreter
	engine      *crossval.Engine
	notifier    Notifier
	logger      logger.Logger

	// now is only consulted for the 30-day fallback POA expiry and record
	// timestamps; everything else derives from the callback inputs.
	now func() time.Time
}

func NewReconciler(
	sessions SessionStore,
	documents DocumentStore,
	board Board,
	processor DocumentProcessor,
	interpreter *identity.Interpreter,
	engine *crossval.Engine,
	notifier Notifier,
	log logger.Logger,
) *Reconciler {
	return &Reconciler{
		sessions:    sessions,
		documents:   documents,
		board:       board,
		processor:   processor,
		interpreter: interpreter,
		engine:      engine,
		notifier:    notifier,
		logger:      log,
		now:         time.Now,
	}
}

// WithClock swaps the time source. Tests only.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// StartSession registers a new verification attempt for a driver/job pair.
// At most one active session may exist per pair.
func (r *Reconciler) StartSession(ctx context.Context, email, jobID string, vType domain.VerificationType) (*domain.VerificationSession, error) {
	if !vType.Valid() {
		return nil, driveriderrors.ErrInvalidVerificationType
	}
	if _, err := r.sessions.FindActive(ctx, email, jobID); err == nil {
		return nil, driveriderrors.ErrActiveSessionExists
	} else if !driveriderrors.Is(err, driveriderrors.ErrSessionNotFound) {
		return nil, driveriderrors.Wrap(err, "failed to check for active session")
	}

	session := &domain.VerificationSession{
		DriverEmail: email,
		JobID:       jobID,
		Type:        vType,
		State:       domain.SessionStatePending,
		CreatedAt:   r.now(),
	}
	if err := r.sessions.Create(ctx, session); err != nil {
		return nil, driveriderrors.Wrap(err, "failed to create verification session")
	}

	r.logger.Info("Verification session started", map[string]interface{}{
		"driver_email":      email,
		"job_id":            jobID,
		"verification_type": string(vType),
	})
	return session, nil
}

// HandleCallback processes one vendor verification callback. Non-final
// callbacks are acknowledged and dropped. Replaying the same final callback
// recomputes identical derived values (timestamps aside) and never
// re-triggers document analysis once a session's POAs are processed.
func (r *Reconciler) HandleCallback(ctx context.Context, cb *domain.VendorCallback) (*Result, error) {
	if !cb.Final {
		r.logger.Debug("Dropping non-final vendor callback", map[string]interface{}{
			"scan_ref": cb.ScanRef,
		})
		return &Result{Dropped: true}, nil
	}

	corr, err := DecodeCorrelation(cb.ClientID)
	if err != nil {
		return nil, err
	}

	session, err := r.resolveSession(ctx, cb, corr)
	if err != nil {
		return nil, err
	}

	// Reuse the stored verdict on redelivery so the replay path is
	// byte-for-byte deterministic; otherwise interpret the raw callback.
	if session.Verdict == nil {
		verdict := r.interpreter.Interpret(cb.Status, cb.Data)
		session.Verdict = &verdict
	}

	docs := session.Type.RequiredDocuments()
	if session.Verdict.Overall == domain.OutcomeApproved && docs.IncludesPoa() {
		pending, analysisErr := r.ensureExtractions(ctx, session, docs)
		if pending {
			return r.persistProcessing(ctx, session)
		}
		return r.finalize(ctx, session, analysisErr)
	}

	return r.finalize(ctx, session, nil)
}

// resolveSession locates or creates the session a callback belongs to. A
// callback with a new scanRef never mutates a prior final session; it opens
// an independent one.
func (r *Reconciler) resolveSession(ctx context.Context, cb *domain.VendorCallback, corr Correlation) (*domain.VerificationSession, error) {
	session, err := r.sessions.FindByScanRef(ctx, cb.ScanRef)
	if err == nil {
		return session, nil
	}
	if !driveriderrors.Is(err, driveriderrors.ErrSessionNotFound) {
		return nil, driveriderrors.Wrap(err, "failed to look up session by scan reference")
	}

	// First delivery for this scanRef: adopt the driver's active session.
	session, err = r.sessions.FindActive(ctx, corr.Email, corr.JobID)
	if err == nil {
		session.SessionID = cb.ScanRef
		session.State = domain.SessionStateProcessing
		if uerr := r.sessions.Update(ctx, session); uerr != nil {
			return nil, driveriderrors.Wrap(uerr, "failed to adopt active session")
		}
		return session, nil
	}
	if !driveriderrors.Is(err, driveriderrors.ErrSessionNotFound) {
		return nil, driveriderrors.Wrap(err, "failed to look up active session")
	}

	// No active session: a re-triggered verification. Inherit the type from
	// the most recent session for the pair, defaulting to full.
	vType := domain.VerificationTypeFull
	if latest, lerr := r.sessions.FindLatest(ctx, corr.Email, corr.JobID); lerr == nil {
		vType = latest.Type
	}

	session = &domain.VerificationSession{
		SessionID:   cb.ScanRef,
		DriverEmail: corr.Email,
		JobID:       corr.JobID,
		Type:        vType,
		State:       domain.SessionStateProcessing,
		CreatedAt:   r.now(),
	}
	if cerr := r.sessions.Create(ctx, session); cerr != nil {
		return nil, driveriderrors.Wrap(cerr, "failed to create session for callback")
	}
	return session, nil
}

// ensureExtractions makes sure every required POA slot has an analysis
// result, submitting missing slots through the retry queue. Returns
// pending=true when any analysis is still in flight, and a non-nil error when
// analysis failed hard for any slot.
func (r *Reconciler) ensureExtractions(ctx context.Context, session *domain.VerificationSession, docs domain.RequiredDocumentSet) (bool, error) {
	if session.Extractions == nil {
		session.Extractions = make(map[int]*domain.PoaExtraction)
	}

	var missing []int
	for _, slot := range docs.PoaSlots() {
		if session.Extractions[slot] == nil {
			missing = append(missing, slot)
		}
	}
	if len(missing) == 0 {
		return false, nil
	}

	uploads, err := r.documents.ListPoaDocuments(ctx, session.DriverEmail, session.JobID)
	if err != nil {
		return false, driveriderrors.Wrap(err, "failed to load uploaded POA documents")
	}
	bySlot := make(map[int]*domain.PoaDocument, len(uploads))
	for _, d := range uploads {
		bySlot[d.Slot] = d
	}

	pending := false
	var analysisErr error
	for _, slot := range missing {
		doc := bySlot[slot]
		if doc == nil {
			analysisErr = driveriderrors.Wrap(driveriderrors.ErrDocumentNotFound,
				fmt.Sprintf("no POA document uploaded for slot %d", slot))
			continue
		}

		item := &domain.QueueItem{
			ID:           uuid.New(),
			DocumentType: domain.QueueDocPoa,
			Priority:     domain.PriorityHigh,
			Request: domain.AnalysisRequest{
				DriverEmail:      session.DriverEmail,
				JobID:            session.JobID,
				SessionID:        session.SessionID,
				Slot:             slot,
				ReferenceAddress: session.Verdict.Identity.DocAddress,
				Image:            doc.Image,
			},
		}

		submitted, serr := r.processor.Submit(ctx, item)
		if serr != nil {
			analysisErr = serr
			continue
		}

		switch submitted.Status {
		case domain.QueueStatusCompleted:
			session.Extractions[slot] = submitted.Result
		case domain.QueueStatusFailed:
			analysisErr = driveriderrors.Wrap(driveriderrors.ErrAnalysisFailed, submitted.Error)
		default:
			pending = true
		}
	}

	return pending, analysisErr
}

// persistProcessing writes the transient processing state: identity fields are
// recorded but no validity flags are granted until analysis completes.
func (r *Reconciler) persistProcessing(ctx context.Context, session *domain.VerificationSession) (*Result, error) {
	session.State = domain.SessionStateProcessing
	if err := r.sessions.Update(ctx, session); err != nil {
		return nil, driveriderrors.Wrap(err, "failed to persist processing session")
	}

	rec := r.currentRecord(ctx, session)
	r.applyIdentity(rec, session.Verdict)
	rec.PoasProcessed = domain.ProcessingInProgress
	rec.OverallStatus = domain.DecisionReviewRequired.BoardStatus()
	rec.LastUpdated = r.now()

	if err := r.board.UpdateRecord(ctx, session.DriverEmail, session.JobID, rec); err != nil {
		return nil, driveriderrors.Wrap(err, "failed to persist processing record")
	}

	r.logger.Info("POA analysis in flight, deferring final decision", map[string]interface{}{
		"scan_ref":     session.SessionID,
		"driver_email": session.DriverEmail,
	})

	return &Result{
		Session:       session,
		Verdict:       session.Verdict,
		PoasProcessed: domain.ProcessingInProgress,
		Record:        rec,
	}, nil
}

// OnAnalysisCompleted is the queue's completion hook: records the extraction
// and finalizes the session once every required slot has a result.
func (r *Reconciler) OnAnalysisCompleted(ctx context.Context, item *domain.QueueItem) {
	session, err := r.sessions.FindByScanRef(ctx, item.Request.SessionID)
	if err != nil {
		r.logger.Error("Completed analysis for unknown session", map[string]interface{}{
			"scan_ref": item.Request.SessionID,
			"error":    err.Error(),
		})
		return
	}
	if session.Final() {
		return
	}

	if session.Extractions == nil {
		session.Extractions = make(map[int]*domain.PoaExtraction)
	}
	session.Extractions[item.Request.Slot] = item.Result

	for _, slot := range session.Type.RequiredDocuments().PoaSlots() {
		if session.Extractions[slot] == nil {
			if err := r.sessions.Update(ctx, session); err != nil {
				r.logger.Error("Failed to store extraction", map[string]interface{}{
					"scan_ref": session.SessionID,
					"error":    err.Error(),
				})
			}
			return
		}
	}

	if _, err := r.finalize(ctx, session, nil); err != nil {
		r.logger.Error("Deferred finalization failed", map[string]interface{}{
			"scan_ref": session.SessionID,
			"error":    err.Error(),
		})
	}
}

// OnAnalysisFailed is the queue's failure hook: the session finalizes as
// review_required since analysis could not complete.
func (r *Reconciler) OnAnalysisFailed(ctx context.Context, item *domain.QueueItem) {
	session, err := r.sessions.FindByScanRef(ctx, item.Request.SessionID)
	if err != nil || session.Final() {
		return
	}
	if _, err := r.finalize(ctx, session, driveriderrors.Wrap(driveriderrors.ErrAnalysisFailed, item.Error)); err != nil {
		r.logger.Error("Finalization after analysis failure failed", map[string]interface{}{
			"scan_ref": session.SessionID,
			"error":    err.Error(),
		})
	}
}

// finalize computes the final decision, expiry dates and the authoritative
// record, then persists everything as a single board update.
func (r *Reconciler) finalize(ctx context.Context, session *domain.VerificationSession, analysisErr error) (*Result, error) {
	verdict := session.Verdict
	docs := session.Type.RequiredDocuments()
	now := r.now()

	var cv *domain.PoaCrossValidation
	poasProcessed := domain.ProcessingNo
	if verdict.Overall == domain.OutcomeApproved && docs.IncludesPoa() && analysisErr == nil {
		poasProcessed = domain.ProcessingDone
		if docs.Poa1 && docs.Poa2 {
			cv = r.engine.CrossValidate(session.Extractions[1], session.Extractions[2], verdict.Identity.DocAddress)
		}
	}

	decision, reasons := r.decide(verdict, cv, session, docs, analysisErr)

	rec := r.currentRecord(ctx, session)
	r.applyIdentity(rec, verdict)
	r.applyValidity(rec, session, verdict, decision, docs, now)
	rec.PoasProcessed = poasProcessed
	rec.PoaDuplicate = cv != nil && cv.IsDuplicate
	rec.PoaCrossValidated = cv != nil && cv.Approved
	rec.OverallStatus = decision.BoardStatus()
	rec.Reason = strings.Join(reasons, "; ")
	rec.LastUpdated = now

	// Single atomic update: the record is fully built before any write so a
	// failure here leaves no half-written state.
	if err := r.board.UpdateRecord(ctx, session.DriverEmail, session.JobID, rec); err != nil {
		return nil, driveriderrors.Wrap(err, "failed to persist driver verification record")
	}

	firstFinalization := !session.Final()
	session.State = domain.SessionStateFinal
	session.Decision = decision
	if session.FinalizedAt == nil {
		t := now
		session.FinalizedAt = &t
	}
	if err := r.sessions.Update(ctx, session); err != nil {
		return nil, driveriderrors.Wrap(err, "failed to finalize session")
	}

	if firstFinalization && r.notifier != nil {
		r.notifier.NotifyDecision(ctx, session.DriverEmail, session.JobID, decision, reasons)
	}

	r.logger.Info("Verification session finalized", map[string]interface{}{
		"scan_ref":     session.SessionID,
		"driver_email": session.DriverEmail,
		"job_id":       session.JobID,
		"decision":     string(decision),
	})

	return &Result{
		Session:         session,
		Verdict:         verdict,
		CrossValidation: cv,
		Decision:        decision,
		PoasProcessed:   poasProcessed,
		Record:          rec,
	}, nil
}

// decide applies the override rules, in order of severity.
func (r *Reconciler) decide(
	verdict *domain.IdentityVerdict,
	cv *domain.PoaCrossValidation,
	session *domain.VerificationSession,
	docs domain.RequiredDocumentSet,
	analysisErr error,
) (domain.FinalDecision, []string) {
	// Identity denial beats everything, POA outcome included.
	if verdict.Overall == domain.OutcomeDenied {
		reasons := []string{"identity verification denied"}
		reasons = append(reasons, verdict.MismatchFlags...)
		return domain.DecisionRejected, reasons
	}

	// Cross-validation overrides an otherwise-approved identity verdict:
	// identity approval alone is insufficient when POAs are required.
	if cv != nil && !cv.Approved {
		return domain.DecisionRejected, append([]string{poaRejectionReason}, cv.Issues...)
	}

	if verdict.Overall == domain.OutcomeSuspected {
		reasons := []string{"identity verification flagged for review"}
		reasons = append(reasons, verdict.MismatchFlags...)
		return domain.DecisionReviewRequired, reasons
	}

	if analysisErr != nil {
		return domain.DecisionReviewRequired, []string{"POA analysis did not complete: " + analysisErr.Error()}
	}

	// Single-POA sessions carry no cross-validation; an invalid extraction
	// still needs human eyes.
	for _, slot := range docs.PoaSlots() {
		if ex := session.Extractions[slot]; ex != nil && !ex.Valid {
			return domain.DecisionReviewRequired,
				append([]string{fmt.Sprintf("POA document %d requires manual review", slot)}, ex.Issues...)
		}
	}

	return domain.DecisionApproved, nil
}

// currentRecord loads the existing board record so reconciler-owned fields
// overwrite while externally-owned fields (DVLA check date, signature) carry
// through.
func (r *Reconciler) currentRecord(ctx context.Context, session *domain.VerificationSession) *domain.DriverVerificationRecord {
	rec, err := r.board.ReadRecord(ctx, session.DriverEmail, session.JobID)
	if err != nil {
		if !driveriderrors.Is(err, driveriderrors.ErrRecordNotFound) {
			r.logger.Warn("Could not read existing board record, starting fresh", map[string]interface{}{
				"driver_email": session.DriverEmail,
				"error":        err.Error(),
			})
		}
		return &domain.DriverVerificationRecord{}
	}
	return rec
}

func (r *Reconciler) applyIdentity(rec *domain.DriverVerificationRecord, verdict *domain.IdentityVerdict) {
	rec.FirstName = verdict.Identity.FirstName
	rec.LastName = verdict.Identity.LastName
	rec.DateOfBirth = verdict.Identity.DateOfBirth
	rec.LicenseNumber = verdict.Identity.DocNumber
	rec.Address = verdict.Identity.DocAddress
	rec.IssuingCountry = verdict.Identity.IssuingCountry
	rec.Authority = verdict.Identity.Authority
}

// applyValidity sets the document-validity booleans and expiry boundaries.
func (r *Reconciler) applyValidity(
	rec *domain.DriverVerificationRecord,
	session *domain.VerificationSession,
	verdict *domain.IdentityVerdict,
	decision domain.FinalDecision,
	docs domain.RequiredDocumentSet,
	now time.Time,
) {
	if exp := parseDocExpiry(verdict.Identity.DocExpiry); exp != nil {
		rec.LicenseValidTo = exp
	}

	if docs.License {
		rec.LicenseValid = verdict.DocumentValid &&
			(rec.LicenseValidTo == nil || rec.LicenseValidTo.After(now))
	}
	if docs.Passport {
		rec.PassportValid = verdict.DocumentValid
	}
	if docs.Face {
		rec.FaceValid = verdict.FaceValid
	}

	// A rejected outcome grants no POA validity even when an individual
	// extraction looked fine on its own.
	for _, slot := range docs.PoaSlots() {
		ex := session.Extractions[slot]
		valid := ex != nil && ex.Valid && decision != domain.DecisionRejected
		var until *time.Time
		if valid {
			until = poaValidUntil(ex, now)
		}
		if slot == 1 {
			rec.Poa1Valid = valid
			rec.Poa1ValidUntil = until
		} else {
			rec.Poa2Valid = valid
			rec.Poa2ValidUntil = until
		}
	}
}

// poaValidUntil computes a POA's expiry boundary: documentDate + 90 days when
// OCR dated the document, otherwise a conservative now + 30 days that forces
// a re-check soon rather than granting a long window on unknown evidence.
func poaValidUntil(ex *domain.PoaExtraction, now time.Time) *time.Time {
	var until time.Time
	if ex.DocumentDate != nil {
		until = ex.DocumentDate.AddDate(0, 0, domain.PoaFreshnessWindowDays)
	} else {
		until = now.AddDate(0, 0, domain.PoaFallbackValidityDays)
	}
	return &until
}

func parseDocExpiry(s string) *time.Time {
	if s == "" {
		return nil
	}
	if d, err := time.Parse("2006-01-02", s); err == nil {
		return &d
	}
	return nil
}
