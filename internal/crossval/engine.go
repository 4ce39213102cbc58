// ==============================================================================
// POA CROSS VALIDATION ENGINE - internal/crossval/engine.go
// ==============================================================================
// Computes the compliance verdict over a pair of proof-of-address
// extractions: distinctness, recency and address match. A failed validation
// is a legitimate business outcome, never an error.
// ==============================================================================
package crossval

import (
	"strings"

	"driverid/internal/domain"
)

// Issue messages, appended in a fixed order so the first listed issue is
// always the most severe structural problem present.
const (
	issueInvalidDocuments = "one or both documents are not valid proof-of-address documents"
	issueSameSource       = "documents come from the same provider or document type"
	issueDuplicateAccount = "documents reference the same account and appear to be duplicates"
	issueStaleDocuments   = "one or both documents are older than the 90-day freshness window"
	issueAddressMismatch  = "document addresses do not match the driver's licence address"
)

// Engine validates POA document pairs.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// CrossValidate compares two POA extractions against each other and the
// reference address. The referenceAddress itself has already been matched
// per-document by the analysis service; here only the combined verdict is
// computed.
func (e *Engine) CrossValidate(poa1, poa2 *domain.PoaExtraction, referenceAddress string) *domain.PoaCrossValidation {
	result := &domain.PoaCrossValidation{}

	result.BothValid = poa1.Valid && poa2.Valid

	sameAccount := poa1.AccountReference != "" &&
		poa1.AccountReference == poa2.AccountReference

	// Provider comparison is case-insensitive; "HSBC Bank" and "hsbc bank"
	// are the same provider.
	sameProvider := strings.EqualFold(poa1.ProviderName, poa2.ProviderName)
	result.DistinctSource = poa1.DocumentType != poa2.DocumentType || !sameProvider

	// A shared account reference flags a duplicate even when the declared
	// document types differ.
	result.IsDuplicate = sameAccount

	result.BothWithinFreshnessWindow = poa1.AgeInDays <= domain.PoaFreshnessWindowDays &&
		poa2.AgeInDays <= domain.PoaFreshnessWindowDays

	result.AddressesMatch = poa1.AddressMatches && poa2.AddressMatches

	result.Approved = result.BothValid &&
		result.DistinctSource &&
		result.BothWithinFreshnessWindow &&
		result.AddressesMatch &&
		!result.IsDuplicate

	if !result.BothValid {
		result.Issues = append(result.Issues, issueInvalidDocuments)
	}
	if !result.DistinctSource {
		result.Issues = append(result.Issues, issueSameSource)
	}
	if result.IsDuplicate {
		result.Issues = append(result.Issues, issueDuplicateAccount)
	}
	if !result.BothWithinFreshnessWindow {
		result.Issues = append(result.Issues, issueStaleDocuments)
	}
	if !result.AddressesMatch {
		result.Issues = append(result.Issues, issueAddressMismatch)
	}

	return result
}
