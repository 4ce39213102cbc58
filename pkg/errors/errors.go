// Package errors provides common, reusable error values and helpers.
package errors

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// Session errors
	ErrSessionNotFound         = errors.New("verification session not found")
	ErrActiveSessionExists     = errors.New("an active verification session already exists for this driver and job")
	ErrInvalidVerificationType = errors.New("unknown verification type")
	ErrMalformedCorrelation    = errors.New("malformed correlation identifier")

	// Document analysis errors
	ErrServiceOverloaded   = errors.New("document analysis service overloaded")
	ErrAnalysisFailed      = errors.New("document analysis failed")
	ErrAnalysisPending     = errors.New("document analysis still in progress")
	ErrDocumentNotFound    = errors.New("document not found")
	ErrUnsupportedDocument = errors.New("unsupported document type")

	// Board errors
	ErrBoardUnavailable = errors.New("board store unavailable")
	ErrRecordNotFound   = errors.New("driver record not found")

	// Queue errors
	ErrQueueItemNotFound = errors.New("queue item not found")

	// Webhook errors
	ErrInvalidSignature = errors.New("invalid callback signature")
)

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// New re-exports errors.New so callers do not need both packages.
func New(text string) error {
	return errors.New(text)
}

// Is re-exports errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As re-exports errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
