package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type verificationRequest struct {
	Type string `validate:"required,verification_type"`
}

func TestVerificationTypeRule(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"full", "full", false},
		{"poa_both", "poa_both", false},
		{"none", "none", false},
		{"uppercase rejected", "FULL", true},
		{"mixed case rejected", "License_Only", true},
		{"unknown rejected", "everything", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(&verificationRequest{Type: tc.value})
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPoaDocTypeRule(t *testing.T) {
	v := New()

	type req struct {
		DocType string `validate:"poa_doc_type"`
	}

	assert.NoError(t, v.Validate(&req{DocType: "bank_statement"}))
	assert.Error(t, v.Validate(&req{DocType: "Bank_Statement"}))
	assert.Error(t, v.Validate(&req{DocType: "payslip"}))
}
