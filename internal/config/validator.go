// internal/config/validator.go
//
// Thin wrapper around go-playground/validator.
//
// Context
// -------
// `internal/config/loader.go` calls `validateStruct` immediately after it
// unmarshals the merged Koanf tree into a `Config` instance.  Any tag
// mismatch or validation error aborts startup, ensuring the binary never
// runs with partial, malformed, or missing configuration.
//
// One custom rule is registered: `regexp`, applied to every exclusion
// pattern, so a typo in `dispatch.exclude_patterns` fails at boot instead of
// at filter init.
//
// Notes
// -----
//   • Oxford commas, two spaces after periods.

package config

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

//
// validator instance (package-level singleton)
//

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New()
	_ = val.RegisterValidation("regexp", func(fl validator.FieldLevel) bool {
		_, err := regexp.Compile(fl.Field().String())
		return err == nil
	})
	val.RegisterStructValidation(func(sl validator.StructLevel) {
		d := sl.Current().Interface().(Dispatch)
		for i, p := range d.ExcludePatterns {
			if err := sl.Validator().Var(p, "regexp"); err != nil {
				sl.ReportError(d.ExcludePatterns[i], "ExcludePatterns", "exclude_patterns", "regexp", p)
			}
		}
	}, Dispatch{})
	return val
}

//
// public API
//

// validateStruct returns the first validation error, or nil on success.
func validateStruct(c *Config) error {
	return v.Struct(c)
}
