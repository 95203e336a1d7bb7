// Package validator wraps go-playground/validator with reconciliation-specific rules.
package validator

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// referencePattern matches the 6-11 character alphanumeric token used as the
// bank transfer reference (CUS... for customer codes, PC... for deposit
// request references).
var referencePattern = regexp.MustCompile(`^[A-Z0-9]{6,11}$`)

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

func (v *Validator) registerCustomValidations() {
	// Register decimal.Decimal to be validated as float64 for gt/lt checks
	v.validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if val, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := val.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	_ = v.validate.RegisterValidation("customer_code", func(fl validator.FieldLevel) bool {
		code := strings.ToUpper(strings.TrimSpace(fl.Field().String()))
		return referencePattern.MatchString(code) && strings.HasPrefix(code, "CUS")
	})

	_ = v.validate.RegisterValidation("deposit_reference", func(fl validator.FieldLevel) bool {
		ref := strings.ToUpper(strings.TrimSpace(fl.Field().String()))
		return referencePattern.MatchString(ref) && strings.HasPrefix(ref, "PC")
	})

	_ = v.validate.RegisterValidation("bank_reference", func(fl validator.FieldLevel) bool {
		ref := strings.ToUpper(strings.TrimSpace(fl.Field().String()))
		if ref == "" {
			return true // reference-less transactions are legal, handled by the scorer
		}
		return referencePattern.MatchString(ref)
	})
}

// ValidReference reports whether ref is a well-formed transfer reference.
// Empty references are valid; the matcher routes them to the new-deposit path.
func ValidReference(ref string) bool {
	ref = strings.ToUpper(strings.TrimSpace(ref))
	if ref == "" {
		return true
	}
	return referencePattern.MatchString(ref)
}
