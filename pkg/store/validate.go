package store

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/marshallshelly/storefront/pkg/runtime"
	"github.com/shopspring/decimal"
)

var slugRe = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

// maxPrice is the first value numeric(6,2) cannot hold.
var maxPrice = decimal.NewFromInt(10000)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report the column name rather than the Go field name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("po"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	// Decimals are validated as strings so the price rule sees exact values.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})

	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("price", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		if err != nil {
			return false
		}
		return !d.IsNegative() && d.LessThan(maxPrice)
	})
	return v
}

// check validates m and converts failures into *runtime.ValidationError.
func (s *Store) check(model string, m any) error {
	err := s.validate.Struct(m)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate %s: %w", model, err)
	}

	ve := &runtime.ValidationError{Model: model}
	for _, fe := range fieldErrs {
		ve.Fields = append(ve.Fields, runtime.FieldError{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Message: message(fe),
		})
	}
	return ve
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "email":
		return "must be a valid email address"
	case "slug":
		return "may only contain letters, digits, hyphens and underscores"
	case "price":
		return "must be between 0 and 9999.99"
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
