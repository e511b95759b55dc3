// Package validation wraps go-playground/validator with the field messages
// shared by the HTTP handlers and the realtime event router.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pathfinder/identity-gateway/internal/core/domain"
)

// Validator validates tagged structs and reports failures as
// domain.ErrValidation.
type Validator struct {
	v *validator.Validate
}

// New returns a Validator that names fields by their json tag.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return &Validator{v: v}
}

// Struct validates s. The returned error wraps domain.ErrValidation and
// carries one message per failing field.
func (v *Validator) Struct(s any) error {
	if err := v.v.Struct(s); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			msgs := make([]string, 0, len(ve))
			for _, fe := range ve {
				msgs = append(msgs, fieldError(fe))
			}
			return fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}

// Message strips the validation prefix from err, leaving the field messages.
func Message(err error) string {
	msg := err.Error()
	if trimmed, ok := strings.CutPrefix(msg, domain.ErrValidation.Error()+": "); ok {
		return trimmed
	}
	return msg
}

// fieldError converts a single FieldError into a human-readable message.
func fieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "url":
		return field + " must be a valid URL"
	case "datetime":
		return field + " must be an RFC 3339 timestamp"
	default:
		return fmt.Sprintf("%s failed validation (%s)", field, fe.Tag())
	}
}
