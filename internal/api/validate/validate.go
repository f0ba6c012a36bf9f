// Package validate wraps go-playground/validator for the HTTP layer,
// grounded on the validation-singleton pattern used across the pack
// (e.g. brain2-backend's interfaces/http/validation package) but
// trimmed to what this API's request DTOs need.
package validate

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	instance *validator.Validate
)

// Get returns the shared validator instance, configured to report JSON
// field names instead of Go struct field names.
func Get() *validator.Validate {
	once.Do(func() {
		instance = validator.New()
		instance.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return instance
}

// Struct validates req against its `validate` struct tags.
func Struct(req interface{}) error {
	return Get().Struct(req)
}

// FieldErrors flattens a validator.ValidationErrors into field→message
// pairs suitable for a JSON response body.
func FieldErrors(err error) map[string]string {
	out := map[string]string{}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return out
	}
	for _, e := range verrs {
		out[e.Field()] = e.Tag()
		if e.Param() != "" {
			out[e.Field()] = e.Tag() + "=" + e.Param()
		}
	}
	return out
}
