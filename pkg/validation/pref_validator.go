// Package validation wraps a shared go-playground validator and converts its
// field errors into apperr validation failures.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"preference_server/core/domain"
	"preference_server/pkg/apperr"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Get returns the process-wide validator.
func Get() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// report json names instead of Go field names
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})

		_ = validate.RegisterValidation("datatype", func(fl validator.FieldLevel) bool {
			return domain.DataType(fl.Field().String()).IsKnown()
		})
	})
	return validate
}

// Struct validates s and returns a VALIDATION_FAILED AppError listing every
// failing field, or nil.
func Struct(s any) error {
	err := Get().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.ValidationFailed(err.Error())
	}

	fields := make([]map[string]any, 0, len(verrs))
	messages := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := message(fe)
		fields = append(fields, map[string]any{
			"field":   fe.Field(),
			"tag":     fe.Tag(),
			"message": msg,
		})
		messages = append(messages, msg)
	}

	return apperr.ValidationFailed(strings.Join(messages, "; ")).WithDetail("fields", fields)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email", fe.Field())
	case "datatype":
		return fmt.Sprintf("%s must be one of purchase, search", fe.Field())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
