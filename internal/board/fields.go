// ==============================================================================
// BOARD FIELD MAPPING - internal/board/fields.go
// ==============================================================================
// The work-management board stores driver records as rows of field-id keyed
// values. These identifiers are stable per board; renaming a column in the
// board UI does not change them. The mapping below is the only place field
// ids appear.
// ==============================================================================
package board

import (
	"strconv"
	"strings"
	"time"

	"driverid/internal/domain"
)

const (
	fieldFirstName      = "text_first_name"
	fieldLastName       = "text_last_name"
	fieldDateOfBirth    = "text_dob"
	fieldLicenseNumber  = "text_license_no"
	fieldAddress        = "text_address"
	fieldIssuingCountry = "text_issuing_country"
	fieldAuthority      = "text_authority"

	fieldLicenseValidTo = "date_license_valid_to"
	fieldPoa1ValidUntil = "date_poa1_valid_until"
	fieldPoa2ValidUntil = "date_poa2_valid_until"
	fieldDvlaCheckDate  = "date_dvla_check"

	fieldLicenseValid      = "check_license_valid"
	fieldFaceValid         = "check_face_valid"
	fieldPoa1Valid         = "check_poa1_valid"
	fieldPoa2Valid         = "check_poa2_valid"
	fieldPassportValid     = "check_passport_valid"
	fieldSignatureCaptured = "check_signature"

	fieldPoasProcessed     = "status_poas_processed"
	fieldPoaDuplicate      = "check_poa_duplicate"
	fieldPoaCrossValidated = "check_poa_cross_validated"

	fieldOverallStatus = "status_overall"
	fieldReason        = "long_text_reason"
	fieldLastUpdated   = "date_last_updated"
)

const boardDateLayout = "2006-01-02"

// toFields flattens a record into the partial field-id map the board write
// API accepts. Every reconciler-owned field is always present so a write
// fully replaces the previous reconciliation outcome.
func toFields(rec *domain.DriverVerificationRecord) map[string]string {
	f := map[string]string{
		fieldFirstName:      rec.FirstName,
		fieldLastName:       rec.LastName,
		fieldDateOfBirth:    rec.DateOfBirth,
		fieldLicenseNumber:  rec.LicenseNumber,
		fieldAddress:        rec.Address,
		fieldIssuingCountry: rec.IssuingCountry,
		fieldAuthority:      rec.Authority,

		fieldLicenseValid:      formatBool(rec.LicenseValid),
		fieldFaceValid:         formatBool(rec.FaceValid),
		fieldPoa1Valid:         formatBool(rec.Poa1Valid),
		fieldPoa2Valid:         formatBool(rec.Poa2Valid),
		fieldPassportValid:     formatBool(rec.PassportValid),
		fieldSignatureCaptured: formatBool(rec.SignatureCaptured),

		fieldPoasProcessed:     string(rec.PoasProcessed),
		fieldPoaDuplicate:      formatBool(rec.PoaDuplicate),
		fieldPoaCrossValidated: formatBool(rec.PoaCrossValidated),

		fieldOverallStatus: rec.OverallStatus,
		fieldReason:        rec.Reason,
	}

	putDate(f, fieldLicenseValidTo, rec.LicenseValidTo)
	putDate(f, fieldPoa1ValidUntil, rec.Poa1ValidUntil)
	putDate(f, fieldPoa2ValidUntil, rec.Poa2ValidUntil)
	putDate(f, fieldDvlaCheckDate, rec.DvlaCheckDate)
	if !rec.LastUpdated.IsZero() {
		f[fieldLastUpdated] = rec.LastUpdated.Format(boardDateLayout)
	}
	return f
}

// fromFields rebuilds a record from a board read. Unknown field ids are
// ignored; missing fields leave zero values.
func fromFields(fields map[string]string) *domain.DriverVerificationRecord {
	rec := &domain.DriverVerificationRecord{
		FirstName:      fields[fieldFirstName],
		LastName:       fields[fieldLastName],
		DateOfBirth:    fields[fieldDateOfBirth],
		LicenseNumber:  fields[fieldLicenseNumber],
		Address:        fields[fieldAddress],
		IssuingCountry: fields[fieldIssuingCountry],
		Authority:      fields[fieldAuthority],

		LicenseValid:      parseBool(fields[fieldLicenseValid]),
		FaceValid:         parseBool(fields[fieldFaceValid]),
		Poa1Valid:         parseBool(fields[fieldPoa1Valid]),
		Poa2Valid:         parseBool(fields[fieldPoa2Valid]),
		PassportValid:     parseBool(fields[fieldPassportValid]),
		SignatureCaptured: parseBool(fields[fieldSignatureCaptured]),

		PoaDuplicate:      parseBool(fields[fieldPoaDuplicate]),
		PoaCrossValidated: parseBool(fields[fieldPoaCrossValidated]),

		OverallStatus: fields[fieldOverallStatus],
		Reason:        fields[fieldReason],
	}

	if v := fields[fieldPoasProcessed]; v != "" {
		rec.PoasProcessed = domain.ProcessingState(v)
	} else {
		rec.PoasProcessed = domain.ProcessingNo
	}

	rec.LicenseValidTo = parseDate(fields[fieldLicenseValidTo])
	rec.Poa1ValidUntil = parseDate(fields[fieldPoa1ValidUntil])
	rec.Poa2ValidUntil = parseDate(fields[fieldPoa2ValidUntil])
	rec.DvlaCheckDate = parseDate(fields[fieldDvlaCheckDate])
	if t := parseDate(fields[fieldLastUpdated]); t != nil {
		rec.LastUpdated = *t
	}
	return rec
}

func putDate(f map[string]string, key string, t *time.Time) {
	if t != nil {
		f[key] = t.Format(boardDateLayout)
	}
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	if t, err := time.Parse(boardDateLayout, strings.TrimSpace(s)); err == nil {
		return &t
	}
	return nil
}

func formatBool(b bool) string {
	return strconv.FormatBool(b)
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(s))
	return b
}
