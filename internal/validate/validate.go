// Package validate checks request payloads before they reach a service.
package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/aquatracking/aquatracking/internal/domain"
)

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	_ = val.RegisterValidation("rut", func(fl validator.FieldLevel) bool {
		return ValidRut(fl.Field().String())
	})
	_ = val.RegisterValidation("iana_tz", func(fl validator.FieldLevel) bool {
		return validTimezone(fl.Field().String())
	})
	return val
}

// Struct validates s against its `validate` tags. Failures wrap
// domain.ErrValidation and list every offending field.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	name := lowerFirst(fe.Field())
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", name, fe.Param())
	case "gtefield":
		return fmt.Sprintf("%s must not be before %s", name, lowerFirst(fe.Param()))
	case "rut":
		return name + " is not a valid RUT"
	case "email":
		return name + " is not a valid email"
	case "iana_tz":
		return name + " is not a known timezone"
	default:
		return fmt.Sprintf("%s failed %s", name, fe.Tag())
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
