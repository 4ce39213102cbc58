package status

import (
	"testing"
	"time"

	"driverid/internal/domain"

	"github.com/stretchr/testify/assert"
)

var now = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func fixedProjector() *Projector {
	return NewProjector().WithClock(func() time.Time { return now })
}

func fullyVerifiedRecord() *domain.DriverVerificationRecord {
	future := now.AddDate(0, 0, 60)
	check := now.AddDate(0, 0, -5)
	return &domain.DriverVerificationRecord{
		FirstName:      "Amelia",
		LastName:       "Hart",
		LicenseValid:   true,
		FaceValid:      true,
		Poa1Valid:      true,
		Poa2Valid:      true,
		LicenseValidTo: &future,
		Poa1ValidUntil: &future,
		Poa2ValidUntil: &future,
		DvlaCheckDate:  &check,
		OverallStatus:  "Done",
	}
}

func TestProject_DecisionTable(t *testing.T) {
	p := fixedProjector()
	past := now.AddDate(0, 0, -1)
	staleCheck := now.AddDate(0, 0, -45)

	tests := []struct {
		name   string
		mutate func(*domain.DriverVerificationRecord)
		want   domain.OverallStatus
	}{
		{
			name:   "all valid",
			mutate: func(r *domain.DriverVerificationRecord) {},
			want:   domain.StatusVerified,
		},
		{
			name: "poa lapsed",
			mutate: func(r *domain.DriverVerificationRecord) {
				r.Poa2ValidUntil = &past
			},
			want: domain.StatusPoaExpired,
		},
		{
			name: "dvla check stale",
			mutate: func(r *domain.DriverVerificationRecord) {
				r.DvlaCheckDate = &staleCheck
			},
			want: domain.StatusDvlaExpired,
		},
		{
			name: "dvla check never ran",
			mutate: func(r *domain.DriverVerificationRecord) {
				r.DvlaCheckDate = nil
			},
			want: domain.StatusDvlaExpired,
		},
		{
			name: "not done but partially valid",
			mutate: func(r *domain.DriverVerificationRecord) {
				r.OverallStatus = "Working on it"
			},
			want: domain.StatusPartial,
		},
		{
			name: "license lapsed with valid poas",
			mutate: func(r *domain.DriverVerificationRecord) {
				r.LicenseValidTo = &past
			},
			want: domain.StatusPartial,
		},
		{
			name: "profile but nothing valid",
			mutate: func(r *domain.DriverVerificationRecord) {
				r.LicenseValid = false
				r.Poa1Valid = false
				r.Poa2Valid = false
				r.OverallStatus = ""
			},
			want: domain.StatusPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := fullyVerifiedRecord()
			tt.mutate(rec)
			assert.Equal(t, tt.want, p.Project(rec))
		})
	}
}

func TestProject_NoRecord(t *testing.T) {
	assert.Equal(t, domain.StatusNew, fixedProjector().Project(nil))
}

func TestProject_EmptyRecordIsNew(t *testing.T) {
	assert.Equal(t, domain.StatusNew, fixedProjector().Project(&domain.DriverVerificationRecord{}))
}

func TestValidity_BoundaryExactlyNowIsExpired(t *testing.T) {
	p := fixedProjector()

	rec := fullyVerifiedRecord()
	boundary := now
	rec.Poa1ValidUntil = &boundary

	v := p.Validity(rec)
	assert.False(t, v.Poa1Valid, "a boundary equal to now must read as expired")
	assert.True(t, v.Poa2Valid)
	assert.Equal(t, domain.StatusPoaExpired, p.Project(rec))
}

func TestValidity_DvlaWindowIsThirtyDays(t *testing.T) {
	p := fixedProjector()
	rec := fullyVerifiedRecord()

	exactly := now.AddDate(0, 0, -30)
	rec.DvlaCheckDate = &exactly
	assert.False(t, p.Validity(rec).DvlaValid, "a check exactly 30 days old has lapsed")

	inside := now.AddDate(0, 0, -29)
	rec.DvlaCheckDate = &inside
	assert.True(t, p.Validity(rec).DvlaValid)
}

func TestValidity_RecomputedNotCached(t *testing.T) {
	rec := fullyVerifiedRecord()

	// Stored booleans say valid, but the boundary has passed. The projector
	// must trust the dates.
	expired := now.AddDate(0, 0, -10)
	rec.Poa1ValidUntil = &expired

	v := fixedProjector().Validity(rec)
	assert.True(t, rec.Poa1Valid, "stored flag untouched")
	assert.False(t, v.Poa1Valid, "recomputed validity reflects the expiry")
}
