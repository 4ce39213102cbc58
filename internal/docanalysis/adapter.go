// ==============================================================================
// DOCUMENT ANALYSIS ADAPTER - internal/docanalysis/adapter.go
// ==============================================================================
// Wraps the OCR/vision collaborator that extracts structured fields from one
// proof-of-address document. A recognizable-but-invalid document is NOT an
// error: the service reports it as a low-confidence extraction with issues.
// Only network/service failures propagate as errors, classified for the
// caller's retry policy.
// ==============================================================================
package docanalysis

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"driverid/internal/domain"
	"driverid/pkg/config"
	driveriderrors "driverid/pkg/errors"
	"driverid/pkg/logger"

	"github.com/shopspring/decimal"
)

// Analyzer is the document analysis contract consumed by the reconciler and
// the retry queue.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte, referenceAddress string) (*domain.PoaExtraction, error)
}

// Match-score thresholds. When the service reports a score, the score is
// authoritative: the address matches at or above addressMatchThreshold, and a
// missing confidence label is derived from the score bands.
var (
	addressMatchThreshold = decimal.RequireFromString("0.75")
	highConfidenceScore   = decimal.RequireFromString("0.9")
	mediumConfidenceScore = decimal.RequireFromString("0.6")
)

// Adapter calls the OCR/vision service, or returns a deterministic stub
// extraction in stub mode so downstream logic stays testable offline.
type Adapter struct {
	cfg    config.DocAnalysisConfig
	client *http.Client
	logger logger.Logger
	// now is swappable in tests; document age falls out of documentDate.
	now func() time.Time
}

func New(cfg config.DocAnalysisConfig, log logger.Logger) *Adapter {
	return &Adapter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: log,
		now:    time.Now,
	}
}

// analysisRequest is the outbound wire shape.
type analysisRequest struct {
	ImageBase64      string `json:"image_base64"`
	ReferenceAddress string `json:"reference_address"`
}

// analysisResponse is the collaborator's PoaExtraction-shaped reply.
type analysisResponse struct {
	DocumentType     string          `json:"document_type"`
	ProviderName     string          `json:"provider_name"`
	DocumentDate     string          `json:"document_date"` // YYYY-MM-DD, empty = not extracted
	Address          string          `json:"address"`
	AccountReference string          `json:"account_reference"`
	AddressMatches   bool            `json:"address_matches"`
	MatchScore       decimal.Decimal `json:"match_score"`
	Confidence       string          `json:"confidence"`
	Valid            bool            `json:"valid"`
	Issues           []string        `json:"issues"`
}

// Analyze runs one document through the OCR/vision service.
func (a *Adapter) Analyze(ctx context.Context, image []byte, referenceAddress string) (*domain.PoaExtraction, error) {
	if a.cfg.Mode == config.ModeStub {
		return a.stubExtraction(image, referenceAddress), nil
	}

	body, err := json.Marshal(analysisRequest{
		ImageBase64:      base64.StdEncoding.EncodeToString(image),
		ReferenceAddress: referenceAddress,
	})
	if err != nil {
		return nil, driveriderrors.Wrap(err, "failed to encode analysis request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.URL+"/v1/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, driveriderrors.Wrap(err, "failed to build analysis request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, driveriderrors.Wrap(err, "document analysis call failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
		// Transient overload: the retry queue treats this as cheap to retry.
		return nil, driveriderrors.ErrServiceOverloaded
	case resp.StatusCode != http.StatusOK:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, driveriderrors.Wrap(driveriderrors.ErrAnalysisFailed,
			fmt.Sprintf("analysis service returned %d: %s", resp.StatusCode, string(data)))
	}

	var ar analysisResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, driveriderrors.Wrap(err, "failed to decode analysis response")
	}

	return a.toExtraction(&ar), nil
}

func (a *Adapter) toExtraction(ar *analysisResponse) *domain.PoaExtraction {
	ex := &domain.PoaExtraction{
		DocumentType:     parseDocumentType(ar.DocumentType),
		ProviderName:     ar.ProviderName,
		Address:          ar.Address,
		AccountReference: ar.AccountReference,
		AddressMatches:   ar.AddressMatches,
		MatchScore:       ar.MatchScore,
		Confidence:       parseConfidence(ar.Confidence),
		Valid:            ar.Valid,
		Issues:           ar.Issues,
	}

	if !ar.MatchScore.IsZero() {
		ex.AddressMatches = ar.MatchScore.GreaterThanOrEqual(addressMatchThreshold)
		if ar.Confidence == "" {
			ex.Confidence = confidenceFromScore(ar.MatchScore)
		}
	}

	if ar.DocumentDate != "" {
		if d, err := time.Parse("2006-01-02", ar.DocumentDate); err == nil {
			ex.DocumentDate = &d
			ex.AgeInDays = ageInDays(d, a.now())
		} else {
			a.logger.Warn("Unparseable document date from analysis service", map[string]interface{}{
				"document_date": ar.DocumentDate,
			})
		}
	}

	return ex
}

func parseDocumentType(s string) domain.PoaDocumentType {
	switch domain.PoaDocumentType(s) {
	case domain.PoaDocUtilityBill, domain.PoaDocBankStatement, domain.PoaDocCouncilTax, domain.PoaDocCreditCardStatement:
		return domain.PoaDocumentType(s)
	}
	return domain.PoaDocOther
}

func parseConfidence(s string) domain.ConfidenceLevel {
	switch domain.ConfidenceLevel(s) {
	case domain.ConfidenceMedium, domain.ConfidenceHigh:
		return domain.ConfidenceLevel(s)
	}
	return domain.ConfidenceLow
}

func confidenceFromScore(score decimal.Decimal) domain.ConfidenceLevel {
	switch {
	case score.GreaterThanOrEqual(highConfidenceScore):
		return domain.ConfidenceHigh
	case score.GreaterThanOrEqual(mediumConfidenceScore):
		return domain.ConfidenceMedium
	}
	return domain.ConfidenceLow
}

func ageInDays(docDate, now time.Time) int {
	days := int(now.Sub(docDate).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// stubExtraction is the degraded/offline result: deterministic for a given
// image so repeated reconciliation of the same callback stays idempotent.
func (a *Adapter) stubExtraction(image []byte, referenceAddress string) *domain.PoaExtraction {
	sum := sha256.Sum256(image)
	date := a.now().AddDate(0, 0, -14)

	return &domain.PoaExtraction{
		DocumentType:     domain.PoaDocUtilityBill,
		ProviderName:     "Stub Energy",
		DocumentDate:     &date,
		Address:          referenceAddress,
		AccountReference: fmt.Sprintf("stub-%x", sum[:4]),
		AddressMatches:   true,
		MatchScore:       decimal.NewFromInt(1),
		AgeInDays:        14,
		Confidence:       domain.ConfidenceHigh,
		Valid:            true,
		Issues:           []string{"stub extraction: analysis service not configured"},
	}
}
