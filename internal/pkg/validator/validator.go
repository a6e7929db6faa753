// Package validator wraps go-playground/validator with the project's custom
// tags and a uniform error format.
//
// Custom tags:
//
//	decimal  string holding an arbitrary-precision decimal number (e.g. "12.50")
package validator

import (
	"errors"
	"fmt"
	"reflect"

	gvalidator "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ErrValidationFailed is the first error of the chain returned by Validate.
var ErrValidationFailed = errors.New("struct validation failed")

const errStringFormat = "'%s': value '%v' does not meet the requirements for the '%s' validation"

var validator = newValidator()

func newValidator() *gvalidator.Validate {
	v := gvalidator.New(gvalidator.WithRequiredStructEnabled())

	if err := v.RegisterValidation("decimal", isDecimal); err != nil {
		panic(fmt.Sprintf("validator: register decimal: %v", err))
	}

	return v
}

func isDecimal(fl gvalidator.FieldLevel) bool {
	field := fl.Field()
	if field.Kind() != reflect.String {
		return false
	}

	_, err := decimal.NewFromString(field.String())
	return err == nil
}

// formatError turns validator.ValidationErrors into ErrValidationFailed joined
// with one message per failing field. Other errors pass through unchanged.
func formatError(err error) error {
	var validationErrors gvalidator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	errs := make([]error, 0, len(validationErrors)+1)
	errs = append(errs, ErrValidationFailed)
	for _, fe := range validationErrors {
		errs = append(errs, fmt.Errorf(errStringFormat, fe.Field(), fe.Value(), fe.Tag()))
	}

	return errors.Join(errs...)
}

// Validate checks v against its `validate` tags.
//
//	if err := validator.Validate(settings); errors.Is(err, validator.ErrValidationFailed) {
//	    // reject the record
//	}
func Validate(v any) error {
	if err := validator.Struct(v); err != nil {
		return formatError(err)
	}

	return nil
}
