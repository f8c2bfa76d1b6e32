package domain

import (
	"maps"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the package-level validator instance used for struct validation.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("band", validateBandTag); err != nil {
		panic("domain: register band validation: " + err.Error())
	}
	return v
}

// Validator returns the shared validator with the "band" tag registered.
// Packages decoding external payloads reuse it so rules stay in one place.
func Validator() *validator.Validate {
	return validate
}

// validateBandTag accepts numeric fields holding a legal band score.
// Pointer fields are dereferenced by the validator before this runs.
func validateBandTag(fl validator.FieldLevel) bool {
	f := fl.Field()
	switch f.Kind() {
	case reflect.Float32, reflect.Float64:
		return IsHalfStepBand(f.Float())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return IsHalfStepBand(float64(f.Int()))
	default:
		return false
	}
}

// IsHalfStepBand reports whether x lies in [0,9] on a 0.5 grid.
func IsHalfStepBand(x float64) bool {
	if math.IsNaN(x) || math.IsInf(x, 0) || x < 0 || x > 9 {
		return false
	}
	return math.Mod(x*2, 1) == 0
}

// CountWords counts whitespace-delimited tokens.
func CountWords(text string) int {
	return len(strings.Fields(text))
}

// cloneStrings copies a slice, keeping nil as nil.
func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}

// cloneAnyMap creates a shallow copy of a metadata map.
func cloneAnyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	result := make(map[string]any, len(m))
	maps.Copy(result, m)
	return result
}
