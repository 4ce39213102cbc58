package docanalysis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driverid/internal/domain"
	"driverid/pkg/config"
	driveriderrors "driverid/pkg/errors"
	"driverid/pkg/logger"
)

func liveAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(config.DocAnalysisConfig{
		Mode: config.ModeLive,
		URL:  srv.URL,
	}, logger.NewNop())
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func respondExtraction(t *testing.T, resp analysisResponse) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}
}

func TestAnalyze_MatchScoreDecidesAddressMatch(t *testing.T) {
	tests := []struct {
		name        string
		score       string
		serviceSays bool
		want        bool
	}{
		{"above threshold overrides service false", "0.82", false, true},
		{"below threshold overrides service true", "0.40", true, false},
		{"exactly at threshold matches", "0.75", false, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			a := liveAdapter(t, respondExtraction(t, analysisResponse{
				DocumentType:   "utility_bill",
				ProviderName:   "British Gas",
				AddressMatches: tc.serviceSays,
				MatchScore:     mustDecimal(t, tc.score),
				Confidence:     "high",
				Valid:          true,
			}))

			ex, err := a.Analyze(context.Background(), []byte("img"), "12 High Street, London")
			require.NoError(t, err)
			assert.Equal(t, tc.want, ex.AddressMatches)
		})
	}
}

func TestAnalyze_ConfidenceDerivedFromScore(t *testing.T) {
	tests := []struct {
		score string
		want  domain.ConfidenceLevel
	}{
		{"0.95", domain.ConfidenceHigh},
		{"0.70", domain.ConfidenceMedium},
		{"0.30", domain.ConfidenceLow},
	}

	for _, tc := range tests {
		t.Run(tc.score, func(t *testing.T) {
			a := liveAdapter(t, respondExtraction(t, analysisResponse{
				DocumentType: "bank_statement",
				MatchScore:   mustDecimal(t, tc.score),
				Valid:        true,
			}))

			ex, err := a.Analyze(context.Background(), []byte("img"), "addr")
			require.NoError(t, err)
			assert.Equal(t, tc.want, ex.Confidence)
		})
	}
}

func TestAnalyze_ExplicitConfidenceLabelWins(t *testing.T) {
	a := liveAdapter(t, respondExtraction(t, analysisResponse{
		DocumentType: "utility_bill",
		MatchScore:   mustDecimal(t, "0.95"),
		Confidence:   "medium",
		Valid:        true,
	}))

	ex, err := a.Analyze(context.Background(), []byte("img"), "addr")
	require.NoError(t, err)
	assert.Equal(t, domain.ConfidenceMedium, ex.Confidence)
}

func TestAnalyze_OverloadIsTyped(t *testing.T) {
	a := liveAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := a.Analyze(context.Background(), []byte("img"), "addr")
	assert.ErrorIs(t, err, driveriderrors.ErrServiceOverloaded)
}

func TestStubExtraction_Deterministic(t *testing.T) {
	a := New(config.DocAnalysisConfig{Mode: config.ModeStub}, logger.NewNop())

	first, err := a.Analyze(context.Background(), []byte("same image"), "addr")
	require.NoError(t, err)
	second, err := a.Analyze(context.Background(), []byte("same image"), "addr")
	require.NoError(t, err)

	assert.Equal(t, first.AccountReference, second.AccountReference)
	assert.True(t, first.Valid)
}
