// ==============================================================================
// SESSION REPOSITORY - internal/repository/postgres/session.go
// ==============================================================================
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"driverid/internal/domain"
	"driverid/pkg/errors"

	"github.com/jmoiron/sqlx"
)

// SessionRepository persists verification sessions. A partial unique index on
// (driver_email, job_id) WHERE state != 'final' enforces the single-active-
// session rule at the storage layer.
type SessionRepository struct {
	db *sqlx.DB
}

func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// sessionRow is the storage shape: the interpreted verdict and per-slot
// extractions ride along as JSONB so redelivered callbacks replay from
// persisted state.
type sessionRow struct {
	SessionID   string                  `db:"session_id"`
	DriverEmail string                  `db:"driver_email"`
	JobID       string                  `db:"job_id"`
	Type        domain.VerificationType `db:"verification_type"`
	State       domain.SessionState     `db:"state"`
	Decision    domain.FinalDecision    `db:"decision"`
	Verdict     []byte                  `db:"verdict"`
	Extractions []byte                  `db:"extractions"`
	CreatedAt   sql.NullTime            `db:"created_at"`
	FinalizedAt sql.NullTime            `db:"finalized_at"`
}

func toRow(s *domain.VerificationSession) (*sessionRow, error) {
	row := &sessionRow{
		SessionID:   s.SessionID,
		DriverEmail: s.DriverEmail,
		JobID:       s.JobID,
		Type:        s.Type,
		State:       s.State,
		Decision:    s.Decision,
		CreatedAt:   sql.NullTime{Time: s.CreatedAt, Valid: !s.CreatedAt.IsZero()},
	}
	if s.FinalizedAt != nil {
		row.FinalizedAt = sql.NullTime{Time: *s.FinalizedAt, Valid: true}
	}
	if s.Verdict != nil {
		b, err := json.Marshal(s.Verdict)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal verdict")
		}
		row.Verdict = b
	}
	if len(s.Extractions) > 0 {
		b, err := json.Marshal(s.Extractions)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal extractions")
		}
		row.Extractions = b
	}
	return row, nil
}

func (r *sessionRow) toDomain() (*domain.VerificationSession, error) {
	s := &domain.VerificationSession{
		SessionID:   r.SessionID,
		DriverEmail: r.DriverEmail,
		JobID:       r.JobID,
		Type:        r.Type,
		State:       r.State,
		Decision:    r.Decision,
		CreatedAt:   r.CreatedAt.Time,
	}
	if r.FinalizedAt.Valid {
		t := r.FinalizedAt.Time
		s.FinalizedAt = &t
	}
	if len(r.Verdict) > 0 {
		var v domain.IdentityVerdict
		if err := json.Unmarshal(r.Verdict, &v); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal verdict")
		}
		s.Verdict = &v
	}
	if len(r.Extractions) > 0 {
		if err := json.Unmarshal(r.Extractions, &s.Extractions); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal extractions")
		}
	}
	return s, nil
}

func (r *SessionRepository) Create(ctx context.Context, session *domain.VerificationSession) error {
	row, err := toRow(session)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO verification_sessions (
			session_id, driver_email, job_id, verification_type,
			state, decision, verdict, extractions, created_at, finalized_at
		) VALUES (
			:session_id, :driver_email, :job_id, :verification_type,
			:state, :decision, :verdict, :extractions, :created_at, :finalized_at
		)
	`

	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		if isUniqueViolation(err) {
			return errors.ErrActiveSessionExists
		}
		return errors.Wrap(err, "failed to create verification session")
	}
	return nil
}

func (r *SessionRepository) Update(ctx context.Context, session *domain.VerificationSession) error {
	row, err := toRow(session)
	if err != nil {
		return err
	}

	// Sessions are addressed by their vendor scanRef once one is assigned;
	// before adoption only the blank-scanRef active row can match.
	query := `
		UPDATE verification_sessions
		SET session_id = :session_id, state = :state, decision = :decision,
		    verdict = :verdict, extractions = :extractions,
		    finalized_at = :finalized_at
		WHERE (session_id = :session_id AND session_id != '')
		   OR (session_id = '' AND driver_email = :driver_email
		       AND job_id = :job_id AND state != 'final')
	`

	res, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return errors.Wrap(err, "failed to update verification session")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepository) FindByScanRef(ctx context.Context, scanRef string) (*domain.VerificationSession, error) {
	query := `
		SELECT * FROM verification_sessions
		WHERE session_id = $1
	`

	var row sessionRow
	err := r.db.GetContext(ctx, &row, query, scanRef)
	if err == sql.ErrNoRows {
		return nil, errors.ErrSessionNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find session by scan reference")
	}
	return row.toDomain()
}

func (r *SessionRepository) FindActive(ctx context.Context, email, jobID string) (*domain.VerificationSession, error) {
	query := `
		SELECT * FROM verification_sessions
		WHERE driver_email = $1 AND job_id = $2 AND state != 'final'
		ORDER BY created_at DESC
		LIMIT 1
	`

	var row sessionRow
	err := r.db.GetContext(ctx, &row, query, email, jobID)
	if err == sql.ErrNoRows {
		return nil, errors.ErrSessionNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find active session")
	}
	return row.toDomain()
}

func (r *SessionRepository) FindLatest(ctx context.Context, email, jobID string) (*domain.VerificationSession, error) {
	query := `
		SELECT * FROM verification_sessions
		WHERE driver_email = $1 AND job_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	var row sessionRow
	err := r.db.GetContext(ctx, &row, query, email, jobID)
	if err == sql.ErrNoRows {
		return nil, errors.ErrSessionNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find latest session")
	}
	return row.toDomain()
}
