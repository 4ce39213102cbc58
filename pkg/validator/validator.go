// ==============================================================================
// VALIDATOR PACKAGE - pkg/validator/validator.go
// ==============================================================================
package validator

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := &Validator{
		validate: validator.New(),
	}
	v.registerCustomValidations()
	return v
}

func (v *Validator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		// Format validation errors
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			var errMessages []string
			for _, e := range validationErrors {
				errMessages = append(errMessages, fmt.Sprintf(
					"Field '%s' failed validation '%s'",
					e.Field(),
					e.Tag(),
				))
			}
			return fmt.Errorf("validation failed: %v", errMessages)
		}
		return err
	}
	return nil
}

// The custom rules match the domain enums exactly, case included: the domain
// types are keyed on the lowercase values, so accepting "FULL" here would let
// a value through that the domain layer cannot resolve.
func (v *Validator) registerCustomValidations() {
	// verification_type: closed set of session types
	_ = v.validate.RegisterValidation("verification_type", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "full", "license_only", "poa1", "poa2", "poa_both", "passport_only", "none":
			return true
		}
		return false
	})

	// poa_doc_type: accepted proof-of-address document types
	_ = v.validate.RegisterValidation("poa_doc_type", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "utility_bill", "bank_statement", "council_tax", "credit_card_statement", "other":
			return true
		}
		return false
	})

	// queue_priority: accepted queue priorities
	_ = v.validate.RegisterValidation("queue_priority", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "urgent", "high", "normal", "low":
			return true
		}
		return false
	})
}
