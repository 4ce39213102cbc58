package reconcile

import (
	"testing"

	driveriderrors "driverid/pkg/errors"

	"github.com/stretchr/testify/assert"
)

func TestCorrelationRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		email string
	}{
		{"plain address", "driver@example.com"},
		{"dotted local part", "jane.doe@example.co.uk"},
		{"underscore in local part", "jane_doe@example.com"},
		{"multiple underscores", "j_d_smith@mail.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Correlation{
				Prefix:    "idv",
				JobID:     "4281904559",
				Email:     tt.email,
				Timestamp: "1756722000000",
			}

			decoded, err := DecodeCorrelation(c.Encode())
			assert.NoError(t, err)
			assert.Equal(t, c.Prefix, decoded.Prefix)
			assert.Equal(t, c.JobID, decoded.JobID)
			assert.Equal(t, tt.email, decoded.Email)
			assert.Equal(t, c.Timestamp, decoded.Timestamp)
		})
	}
}

func TestEncodeEmail(t *testing.T) {
	assert.Equal(t, "jane_dot_doe_at_example_dot_com", EncodeEmail("jane.doe@example.com"))
	assert.Equal(t, "jane.doe@example.com", DecodeEmail("jane_dot_doe_at_example_dot_com"))
}

func TestDecodeCorrelation_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"too few segments", "idv_4281904559_x"},
		{"no email marker", "idv_4281904559_nonsense_1756722000000"},
		{"empty prefix", "_4281904559_a_at_b_dot_c_1756722000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeCorrelation(tt.input)
			assert.ErrorIs(t, err, driveriderrors.ErrMalformedCorrelation)
		})
	}
}
