// ==============================================================================
// IDENTITY RESULT INTERPRETER - internal/identity/interpreter.go
// ==============================================================================
// Maps the vendor's raw verification callback into a normalized verdict.
// Interpretation only runs on final callbacks; non-final payloads are
// acknowledged and dropped before reaching this package.
// ==============================================================================
package identity

import (
	"strings"

	"driverid/internal/domain"
	"driverid/pkg/logger"
)

// Raw vendor markers a passing check reports.
const (
	docValidated = "DOC_VALIDATED"
	faceMatch    = "FACE_MATCH"
)

// Raw vendor top-level outcomes.
const (
	rawApproved  = "APPROVED"
	rawSuspected = "SUSPECTED"
	rawDenied    = "DENIED"
)

// Interpreter normalizes raw vendor results.
type Interpreter struct {
	logger logger.Logger
}

func NewInterpreter(log logger.Logger) *Interpreter {
	return &Interpreter{logger: log}
}

// Interpret derives an IdentityVerdict from the raw vendor status and data.
// Unknown top-level outcomes fail closed to denied with both validity flags
// forced false.
func (i *Interpreter) Interpret(status domain.VendorStatus, data domain.VendorData) domain.IdentityVerdict {
	verdict := domain.IdentityVerdict{
		MismatchFlags: collectFlags(status),
		Identity:      extractIdentity(data),
	}

	switch strings.ToUpper(strings.TrimSpace(status.Overall)) {
	case rawApproved:
		verdict.Overall = domain.OutcomeApproved
		// Automatic or manual confirmation both count once approved.
		verdict.DocumentValid = status.AutoDocument == docValidated || status.ManualDocument == docValidated
		verdict.FaceValid = status.AutoFace == faceMatch || status.ManualFace == faceMatch

	case rawSuspected:
		verdict.Overall = domain.OutcomeSuspected
		// Suspected results trust the automatic checks only; a manual-only
		// confirmation is not sufficient to clear a suspected flag.
		verdict.DocumentValid = status.AutoDocument == docValidated
		verdict.FaceValid = status.AutoFace == faceMatch

	case rawDenied:
		verdict.Overall = domain.OutcomeDenied

	default:
		i.logger.Warn("Unrecognized vendor outcome, failing closed", map[string]interface{}{
			"overall": status.Overall,
		})
		verdict.Overall = domain.OutcomeDenied
	}

	return verdict
}

func collectFlags(status domain.VendorStatus) []string {
	var flags []string
	flags = append(flags, status.MismatchTags...)
	flags = append(flags, status.FraudTags...)
	return flags
}

func extractIdentity(data domain.VendorData) domain.ExtractedIdentity {
	return domain.ExtractedIdentity{
		FirstName:      data.DocFirstName,
		LastName:       data.DocLastName,
		DateOfBirth:    data.DocDob,
		DocNumber:      data.DocNumber,
		DocExpiry:      data.DocExpiry,
		DocAddress:     data.Address,
		IssuingCountry: data.DocIssuingCountry,
		Authority:      data.Authority,
	}
}
