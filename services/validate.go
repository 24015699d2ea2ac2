package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateStruct runs the struct's validate tags and turns the first failure into
// a ValidationError naming the field.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return invalid(describeFieldError(fe))
	}
	return invalid(err.Error())
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
	}
}

// CoerceCalories turns a calories value from loosely typed input into a
// non-negative integer. Fractions are truncated ("350.9" → 350). A nil or empty
// value means no calories were given and yields 0.
func CoerceCalories(v any) (int, error) {
	var f float64
	switch c := v.(type) {
	case nil:
		return 0, nil
	case int:
		f = float64(c)
	case int32:
		f = float64(c)
	case int64:
		f = float64(c)
	case float32:
		f = float64(c)
	case float64:
		f = c
	case json.Number:
		parsed, err := c.Float64()
		if err != nil {
			return 0, invalid("calories must be a number")
		}
		f = parsed
	case string:
		s := strings.TrimSpace(c)
		if s == "" {
			return 0, nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, invalid("calories must be a number")
		}
		f = parsed
	default:
		return 0, invalid("calories must be a number")
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, invalid("calories must be a finite number")
	}
	if f < 0 {
		return 0, invalid("calories cannot be negative")
	}
	if f > math.MaxInt32 {
		return 0, invalid("calories value is too large")
	}
	return int(math.Trunc(f)), nil
}
