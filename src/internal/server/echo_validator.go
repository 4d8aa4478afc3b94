package server

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// EchoValidator wraps go-playground/validator for Echo
type EchoValidator struct {
	validator *validator.Validate
}

// NewEchoValidator creates a new Echo validator. Field errors are reported
// under the request's query or json name.
func NewEchoValidator() *EchoValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"query", "json"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return ""
	})
	return &EchoValidator{
		validator: v,
	}
}

// Validate implements echo.Validator. Errors are returned as
// validator.ValidationErrors so handlers can report every failed field.
func (ev *EchoValidator) Validate(i interface{}) error {
	return ev.validator.Struct(i)
}
