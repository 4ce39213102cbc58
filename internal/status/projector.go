// ==============================================================================
// STATUS PROJECTOR - internal/status/projector.go
// ==============================================================================
// Derives the driver's presented verification status from the persisted board
// record. Validity is always recomputed from the boundary dates at query
// time, never trusted from stored booleans, so a driver whose POA lapsed
// overnight reads poa_expired without any batch job touching the record.
// ==============================================================================
package status

import (
	"time"

	"driverid/internal/domain"
)

// Projector computes presented statuses. Stateless; the clock is injected so
// boundary conditions are testable.
type Projector struct {
	now func() time.Time
}

func NewProjector() *Projector {
	return &Projector{now: time.Now}
}

// WithClock swaps the time source. Tests only.
func (p *Projector) WithClock(now func() time.Time) *Projector {
	p.now = now
	return p
}

// DocumentValidity is the recomputed per-document view of a record.
type DocumentValidity struct {
	LicenseValid bool `json:"license_valid"`
	FaceValid    bool `json:"face_valid"`
	Poa1Valid    bool `json:"poa1_valid"`
	Poa2Valid    bool `json:"poa2_valid"`
	DvlaValid    bool `json:"dvla_valid"`
}

// Validity recomputes document validity from boundary dates. A boundary
// exactly equal to now counts as expired; validity requires the boundary to
// be strictly in the future. A document with no boundary date falls back to
// its recorded boolean.
func (p *Projector) Validity(rec *domain.DriverVerificationRecord) DocumentValidity {
	now := p.now()
	return DocumentValidity{
		LicenseValid: rec.LicenseValid && withinBoundary(rec.LicenseValidTo, now),
		FaceValid:    rec.FaceValid,
		Poa1Valid:    rec.Poa1Valid && withinBoundary(rec.Poa1ValidUntil, now),
		Poa2Valid:    rec.Poa2Valid && withinBoundary(rec.Poa2ValidUntil, now),
		DvlaValid:    dvlaValid(rec.DvlaCheckDate, now),
	}
}

// Project maps a record to the presented overall status.
func (p *Projector) Project(rec *domain.DriverVerificationRecord) domain.OverallStatus {
	if rec == nil {
		return domain.StatusNew
	}

	v := p.Validity(rec)
	done := rec.OverallStatus == domain.DecisionApproved.BoardStatus()

	switch {
	case done && v.LicenseValid && v.Poa1Valid && v.Poa2Valid && v.DvlaValid:
		return domain.StatusVerified
	case done && v.LicenseValid && (!v.Poa1Valid || !v.Poa2Valid):
		return domain.StatusPoaExpired
	case done && v.LicenseValid && v.Poa1Valid && v.Poa2Valid && !v.DvlaValid:
		return domain.StatusDvlaExpired
	case v.LicenseValid || v.Poa1Valid || v.Poa2Valid:
		return domain.StatusPartial
	case rec.HasProfile():
		return domain.StatusPending
	default:
		return domain.StatusNew
	}
}

// withinBoundary reports whether a validity boundary is still in the future.
// A nil boundary means no expiry applies to the document.
func withinBoundary(boundary *time.Time, now time.Time) bool {
	return boundary == nil || boundary.After(now)
}

// dvlaValid derives DVLA-check freshness from the check date: a check is
// current for thirty days after it ran. No stored boolean exists for DVLA;
// the date is the only source of truth.
func dvlaValid(checkDate *time.Time, now time.Time) bool {
	if checkDate == nil {
		return false
	}
	return checkDate.AddDate(0, 0, domain.DvlaCheckWindowDays).After(now)
}
