// ==============================================================================
// ROUTING DECIDER - internal/status/routing.go
// ==============================================================================
package status

import (
	"strings"

	"driverid/internal/domain"
	driveriderrors "driverid/pkg/errors"
)

// Step is the next workflow action for a driver.
type Step string

const (
	StepDvlaCheck      Step = "dvla-check"
	StepPassportUpload Step = "passport-upload"
	StepSignature      Step = "signature"
	StepPoaReUpload    Step = "poa-re-upload"
	// StepComplete is terminal: signature captured and every document valid.
	StepComplete Step = "complete"
)

// Decider picks the next workflow step from the authoritative record.
type Decider struct {
	projector *Projector
}

func NewDecider(projector *Projector) *Decider {
	return &Decider{projector: projector}
}

// NextStep decides what the driver should do next. Returns
// ErrAnalysisPending while POA analysis is in flight; the caller must poll
// again rather than treat that as a step.
func (d *Decider) NextStep(rec *domain.DriverVerificationRecord) (Step, error) {
	if rec == nil {
		return "", driveriderrors.ErrRecordNotFound
	}

	if rec.PoaDuplicate {
		return StepPoaReUpload, nil
	}
	if rec.PoasProcessed == domain.ProcessingInProgress {
		return "", driveriderrors.ErrAnalysisPending
	}

	v := d.projector.Validity(rec)
	allValid := v.LicenseValid && v.Poa1Valid && v.Poa2Valid && v.DvlaValid
	if allValid {
		if rec.SignatureCaptured {
			return StepComplete, nil
		}
		return StepSignature, nil
	}

	if isUKLicense(rec) {
		return StepDvlaCheck, nil
	}
	return StepPassportUpload, nil
}

// isUKLicense reports whether the driver holds a UK-issued license: either
// the issuing country is GB or the issuer is recorded as DVLA.
func isUKLicense(rec *domain.DriverVerificationRecord) bool {
	return strings.EqualFold(rec.IssuingCountry, "GB") ||
		strings.EqualFold(rec.Authority, "DVLA")
}
