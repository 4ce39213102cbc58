package crossval

import (
	"testing"
	"time"

	"driverid/internal/domain"

	"github.com/stretchr/testify/assert"
)

func freshExtraction(provider string, docType domain.PoaDocumentType) *domain.PoaExtraction {
	date := time.Now().AddDate(0, 0, -20)
	return &domain.PoaExtraction{
		DocumentType:   docType,
		ProviderName:   provider,
		DocumentDate:   &date,
		Address:        "12 High Street, London",
		AddressMatches: true,
		AgeInDays:      20,
		Confidence:     domain.ConfidenceHigh,
		Valid:          true,
	}
}

func TestCrossValidate_ApprovedPair(t *testing.T) {
	engine := NewEngine()

	poa1 := freshExtraction("British Gas", domain.PoaDocUtilityBill)
	poa1.AccountReference = "BG-1001"
	poa2 := freshExtraction("HSBC", domain.PoaDocBankStatement)
	poa2.AccountReference = "HSBC-2002"

	result := engine.CrossValidate(poa1, poa2, "12 High Street, London")

	assert.True(t, result.BothValid)
	assert.True(t, result.DistinctSource)
	assert.True(t, result.BothWithinFreshnessWindow)
	assert.True(t, result.AddressesMatch)
	assert.False(t, result.IsDuplicate)
	assert.True(t, result.Approved)
	assert.Empty(t, result.Issues)
}

func TestCrossValidate_DuplicateAccountDominates(t *testing.T) {
	engine := NewEngine()

	// Same account reference under different declared document types: still
	// a duplicate, and duplicate always defeats approval.
	poa1 := freshExtraction("British Gas", domain.PoaDocUtilityBill)
	poa1.AccountReference = "BG-1001"
	poa2 := freshExtraction("British Gas Billing", domain.PoaDocBankStatement)
	poa2.AccountReference = "BG-1001"

	result := engine.CrossValidate(poa1, poa2, "12 High Street, London")

	assert.True(t, result.IsDuplicate)
	assert.True(t, result.DistinctSource, "differing document types still read as distinct sources")
	assert.False(t, result.Approved)
	assert.Contains(t, result.Issues, "documents reference the same account and appear to be duplicates")
}

func TestCrossValidate_ProviderComparisonCaseInsensitive(t *testing.T) {
	engine := NewEngine()

	poa1 := freshExtraction("HSBC Bank", domain.PoaDocBankStatement)
	poa2 := freshExtraction("hsbc bank", domain.PoaDocBankStatement)

	result := engine.CrossValidate(poa1, poa2, "12 High Street, London")

	assert.False(t, result.DistinctSource)
	assert.False(t, result.Approved)
	assert.Contains(t, result.Issues, "documents come from the same provider or document type")
}

func TestCrossValidate_StaleDocument(t *testing.T) {
	engine := NewEngine()

	poa1 := freshExtraction("British Gas", domain.PoaDocUtilityBill)
	poa2 := freshExtraction("HSBC", domain.PoaDocBankStatement)
	poa2.AgeInDays = 120

	result := engine.CrossValidate(poa1, poa2, "12 High Street, London")

	assert.False(t, result.BothWithinFreshnessWindow)
	assert.False(t, result.Approved)
	assert.Contains(t, result.Issues, "one or both documents are older than the 90-day freshness window")
}

func TestCrossValidate_ExactlyNinetyDaysIsFresh(t *testing.T) {
	engine := NewEngine()

	poa1 := freshExtraction("British Gas", domain.PoaDocUtilityBill)
	poa1.AgeInDays = 90
	poa2 := freshExtraction("HSBC", domain.PoaDocBankStatement)
	poa2.AgeInDays = 90

	result := engine.CrossValidate(poa1, poa2, "12 High Street, London")

	assert.True(t, result.BothWithinFreshnessWindow)
	assert.True(t, result.Approved)
}

func TestCrossValidate_AddressMismatch(t *testing.T) {
	engine := NewEngine()

	poa1 := freshExtraction("British Gas", domain.PoaDocUtilityBill)
	poa2 := freshExtraction("HSBC", domain.PoaDocBankStatement)
	poa2.AddressMatches = false

	result := engine.CrossValidate(poa1, poa2, "12 High Street, London")

	assert.False(t, result.AddressesMatch)
	assert.False(t, result.Approved)
	assert.Contains(t, result.Issues, "document addresses do not match the driver's licence address")
}

func TestCrossValidate_InvalidDocument(t *testing.T) {
	engine := NewEngine()

	poa1 := freshExtraction("British Gas", domain.PoaDocUtilityBill)
	poa1.Valid = false
	poa2 := freshExtraction("HSBC", domain.PoaDocBankStatement)

	result := engine.CrossValidate(poa1, poa2, "12 High Street, London")

	assert.False(t, result.BothValid)
	assert.False(t, result.Approved)
	assert.Equal(t, "one or both documents are not valid proof-of-address documents", result.Issues[0])
}

func TestCrossValidate_IssueOrderIsStable(t *testing.T) {
	engine := NewEngine()

	// Everything wrong at once: invalid, same source, duplicate, stale,
	// mismatched. Issues must come out in that order.
	poa1 := freshExtraction("British Gas", domain.PoaDocUtilityBill)
	poa1.Valid = false
	poa1.AccountReference = "BG-1001"
	poa1.AgeInDays = 200
	poa1.AddressMatches = false
	poa2 := freshExtraction("british gas", domain.PoaDocUtilityBill)
	poa2.Valid = false
	poa2.AccountReference = "BG-1001"
	poa2.AgeInDays = 200
	poa2.AddressMatches = false

	result := engine.CrossValidate(poa1, poa2, "12 High Street, London")

	assert.Equal(t, []string{
		"one or both documents are not valid proof-of-address documents",
		"documents come from the same provider or document type",
		"documents reference the same account and appear to be duplicates",
		"one or both documents are older than the 90-day freshness window",
		"document addresses do not match the driver's licence address",
	}, result.Issues)
}
