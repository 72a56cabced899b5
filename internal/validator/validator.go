package validator

import (
	"reflect"
	"strings"
	"sync"

	ierr "github.com/flexprice/billing-engine/internal/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	validate *validator.Validate
	initOnce sync.Once
)

// NewValidator builds the shared validator. Field names in reported errors
// use the json tag so callers see the names they sent.
func NewValidator() *validator.Validate {
	initOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
		validate = v
	})
	return validate
}

func GetValidator() *validator.Validate {
	return NewValidator()
}

// decimalValue lets numeric tags such as gte=0 and lte=100 apply to
// decimal.Decimal fields. Range checks only; arithmetic stays in decimal.
func decimalValue(field reflect.Value) interface{} {
	if d, ok := field.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}

func ValidateRequest(req interface{}) error {
	if err := GetValidator().Struct(req); err != nil {
		details := make(map[string]any)
		var validateErrs validator.ValidationErrors
		if ierr.As(err, &validateErrs) {
			for _, err := range validateErrs {
				details[err.Field()] = err.Error()
			}
		}
		return ierr.WithError(err).
			WithHint("Request validation failed").
			WithReportableDetails(details).
			Mark(ierr.ErrValidation)
	}
	return nil
}
