package identity

import (
	"testing"

	"driverid/internal/domain"
	"driverid/pkg/logger"

	"github.com/stretchr/testify/assert"
)

func TestInterpret_ApprovedHonorsManualChecks(t *testing.T) {
	interp := NewInterpreter(logger.NewNop())

	// Auto face check inconclusive, manual review confirmed the match.
	verdict := interp.Interpret(domain.VendorStatus{
		Overall:        "APPROVED",
		AutoDocument:   "DOC_VALIDATED",
		ManualDocument: "",
		AutoFace:       "FACE_UNCERTAIN",
		ManualFace:     "FACE_MATCH",
	}, domain.VendorData{})

	assert.Equal(t, domain.OutcomeApproved, verdict.Overall)
	assert.True(t, verdict.DocumentValid)
	assert.True(t, verdict.FaceValid)
}

func TestInterpret_SuspectedTrustsAutoOnly(t *testing.T) {
	interp := NewInterpreter(logger.NewNop())

	// Manual confirmations do not clear a suspected flag.
	verdict := interp.Interpret(domain.VendorStatus{
		Overall:        "SUSPECTED",
		AutoDocument:   "DOC_NOT_VALIDATED",
		ManualDocument: "DOC_VALIDATED",
		AutoFace:       "FACE_MISMATCH",
		ManualFace:     "FACE_MATCH",
		FraudTags:      []string{"POSSIBLE_TAMPERING"},
	}, domain.VendorData{})

	assert.Equal(t, domain.OutcomeSuspected, verdict.Overall)
	assert.False(t, verdict.DocumentValid)
	assert.False(t, verdict.FaceValid)
	assert.Contains(t, verdict.MismatchFlags, "POSSIBLE_TAMPERING")
}

func TestInterpret_SuspectedAutoChecksPass(t *testing.T) {
	interp := NewInterpreter(logger.NewNop())

	verdict := interp.Interpret(domain.VendorStatus{
		Overall:      "SUSPECTED",
		AutoDocument: "DOC_VALIDATED",
		AutoFace:     "FACE_MATCH",
		MismatchTags: []string{"NAME_MISMATCH"},
	}, domain.VendorData{})

	assert.Equal(t, domain.OutcomeSuspected, verdict.Overall)
	assert.True(t, verdict.DocumentValid)
	assert.True(t, verdict.FaceValid)
	assert.Equal(t, []string{"NAME_MISMATCH"}, verdict.MismatchFlags)
}

func TestInterpret_Denied(t *testing.T) {
	interp := NewInterpreter(logger.NewNop())

	verdict := interp.Interpret(domain.VendorStatus{
		Overall:      "DENIED",
		AutoDocument: "DOC_VALIDATED",
		AutoFace:     "FACE_MATCH",
	}, domain.VendorData{})

	assert.Equal(t, domain.OutcomeDenied, verdict.Overall)
	assert.False(t, verdict.DocumentValid)
	assert.False(t, verdict.FaceValid)
}

func TestInterpret_UnknownOutcomeFailsClosed(t *testing.T) {
	interp := NewInterpreter(logger.NewNop())

	verdict := interp.Interpret(domain.VendorStatus{
		Overall:      "EXPIRED_WEIRD_STATE",
		AutoDocument: "DOC_VALIDATED",
		AutoFace:     "FACE_MATCH",
	}, domain.VendorData{})

	assert.Equal(t, domain.OutcomeDenied, verdict.Overall)
	assert.False(t, verdict.DocumentValid)
	assert.False(t, verdict.FaceValid)
}

func TestInterpret_OutcomeNormalization(t *testing.T) {
	interp := NewInterpreter(logger.NewNop())

	verdict := interp.Interpret(domain.VendorStatus{Overall: " approved "}, domain.VendorData{})
	assert.Equal(t, domain.OutcomeApproved, verdict.Overall)
}

func TestInterpret_ExtractsIdentityFields(t *testing.T) {
	interp := NewInterpreter(logger.NewNop())

	verdict := interp.Interpret(domain.VendorStatus{Overall: "APPROVED"}, domain.VendorData{
		DocFirstName:      "Amelia",
		DocLastName:       "Hart",
		DocDob:            "1990-04-12",
		DocNumber:         "HART9904121AM9XY",
		DocExpiry:         "2031-04-11",
		Address:           "12 High Street, London",
		DocIssuingCountry: "GB",
		Authority:         "DVLA",
	})

	assert.Equal(t, "Amelia", verdict.Identity.FirstName)
	assert.Equal(t, "Hart", verdict.Identity.LastName)
	assert.Equal(t, "HART9904121AM9XY", verdict.Identity.DocNumber)
	assert.Equal(t, "GB", verdict.Identity.IssuingCountry)
	assert.Equal(t, "DVLA", verdict.Identity.Authority)
}
