// ==============================================================================
// CORRELATION IDENTIFIER CODEC - internal/reconcile/correlation.go
// ==============================================================================
// The vendor echoes back an opaque client identifier of the form
// prefix_jobID_encodedEmail_timestamp. The email segment substitutes
// "@" -> "_at_" and "." -> "_dot_"; decoding joins all middle tokens so
// underscores in the email's local part survive the round trip. The encoding
// is lossy only for addresses that literally contain "_at_" or "_dot_".
// ==============================================================================
package reconcile

import (
	"fmt"
	"strings"

	driveriderrors "driverid/pkg/errors"
)

// Correlation links a verification session back to a driver/job pair.
type Correlation struct {
	Prefix    string
	JobID     string
	Email     string
	Timestamp string
}

// EncodeEmail substitutes the separator characters an email cannot carry
// inside the correlation identifier.
func EncodeEmail(email string) string {
	encoded := strings.ReplaceAll(email, "@", "_at_")
	return strings.ReplaceAll(encoded, ".", "_dot_")
}

// DecodeEmail reverses EncodeEmail exactly.
func DecodeEmail(encoded string) string {
	decoded := strings.ReplaceAll(encoded, "_at_", "@")
	return strings.ReplaceAll(decoded, "_dot_", ".")
}

// Encode renders the correlation identifier. JobID must not contain
// underscores; the job board issues numeric item ids.
func (c Correlation) Encode() string {
	return fmt.Sprintf("%s_%s_%s_%s", c.Prefix, c.JobID, EncodeEmail(c.Email), c.Timestamp)
}

// DecodeCorrelation parses a correlation identifier. The first token is the
// prefix, the second the job id, the last the session timestamp; everything
// in between is the encoded email.
func DecodeCorrelation(s string) (Correlation, error) {
	tokens := strings.Split(s, "_")
	if len(tokens) < 4 {
		return Correlation{}, driveriderrors.Wrap(driveriderrors.ErrMalformedCorrelation,
			fmt.Sprintf("expected at least 4 segments, got %d", len(tokens)))
	}

	c := Correlation{
		Prefix:    tokens[0],
		JobID:     tokens[1],
		Timestamp: tokens[len(tokens)-1],
		Email:     DecodeEmail(strings.Join(tokens[2:len(tokens)-1], "_")),
	}

	if c.Prefix == "" || c.JobID == "" || c.Timestamp == "" || !strings.Contains(c.Email, "@") {
		return Correlation{}, driveriderrors.ErrMalformedCorrelation
	}

	return c, nil
}
