package board

import (
	"testing"
	"time"

	"driverid/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldMappingRoundTrip(t *testing.T) {
	licenseExp := time.Date(2031, 4, 11, 0, 0, 0, 0, time.UTC)
	poaExp := time.Date(2026, 11, 20, 0, 0, 0, 0, time.UTC)
	check := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	rec := &domain.DriverVerificationRecord{
		FirstName:         "Amelia",
		LastName:          "Hart",
		DateOfBirth:       "1990-04-12",
		LicenseNumber:     "HART9904121AM9XY",
		Address:           "12 High Street, London",
		IssuingCountry:    "GB",
		Authority:         "DVLA",
		LicenseValidTo:    &licenseExp,
		Poa1ValidUntil:    &poaExp,
		DvlaCheckDate:     &check,
		LicenseValid:      true,
		FaceValid:         true,
		Poa1Valid:         true,
		SignatureCaptured: true,
		PoasProcessed:     domain.ProcessingDone,
		PoaCrossValidated: true,
		OverallStatus:     "Done",
		Reason:            "",
	}

	got := fromFields(toFields(rec))

	assert.Equal(t, rec.FirstName, got.FirstName)
	assert.Equal(t, rec.LicenseNumber, got.LicenseNumber)
	assert.Equal(t, rec.Authority, got.Authority)
	assert.True(t, got.LicenseValid)
	assert.True(t, got.SignatureCaptured)
	assert.False(t, got.Poa2Valid)
	assert.Equal(t, domain.ProcessingDone, got.PoasProcessed)
	assert.Equal(t, "Done", got.OverallStatus)

	require.NotNil(t, got.LicenseValidTo)
	assert.True(t, got.LicenseValidTo.Equal(licenseExp))
	require.NotNil(t, got.Poa1ValidUntil)
	assert.True(t, got.Poa1ValidUntil.Equal(poaExp))
	assert.Nil(t, got.Poa2ValidUntil)
	require.NotNil(t, got.DvlaCheckDate)
	assert.True(t, got.DvlaCheckDate.Equal(check))
}

func TestFromFields_DefaultsAndGarbage(t *testing.T) {
	got := fromFields(map[string]string{
		"check_license_valid":   "not-a-bool",
		"date_poa1_valid_until": "never",
		"unknown_field":         "ignored",
	})

	assert.False(t, got.LicenseValid)
	assert.Nil(t, got.Poa1ValidUntil)
	assert.Equal(t, domain.ProcessingNo, got.PoasProcessed)
}
