// Package validation wraps go-playground/validator so that domain forms get
// user-facing, per-field messages in an apperr.ValidationError.
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/strokecare/strokecare/internal/platform/apperr"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

// Messages maps "field.tag" (or just "field") to the message shown for a
// failed rule. Field names are the json tag names of the validated struct.
type Messages map[string]string

// Validator validates tagged structs.
type Validator struct {
	v *validator.Validate
}

// New returns a Validator with the custom "username" and "bcrypt" rules
// registered and json tag names used as field names.
func New() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			name = strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
		}
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	// Registration only fails for an empty tag or nil func.
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("bcrypt", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= MaxPasswordBytes
	})
	return &Validator{v: v}
}

// Struct validates s and returns a *apperr.ValidationError listing every
// failing field, or nil.
func (val *Validator) Struct(s interface{}, messages Messages) error {
	err := val.v.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	out := apperr.NewValidationError()
	for _, fe := range fieldErrs {
		field := fe.Field()
		out.Add(field, messageFor(messages, field, fe.Tag()))
	}
	return out.Err()
}

func messageFor(messages Messages, field, tag string) string {
	if msg, ok := messages[field+"."+tag]; ok {
		return msg
	}
	if msg, ok := messages[field]; ok {
		return msg
	}
	return "Invalid value"
}
