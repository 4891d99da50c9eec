// Package validation checks request payloads with go-playground/validator
// and converts failures into ValidationError.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"time"

	apperr "canchita/internal/errors"
	"canchita/internal/models"

	"github.com/go-playground/validator/v10"
)

var (
	dniPattern   = regexp.MustCompile(`^\d{7,8}$`)
	phonePattern = regexp.MustCompile(`^\+?\d{7,15}$`)
)

var (
	once     sync.Once
	instance *validator.Validate
)

func get() *validator.Validate {
	once.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		mustRegister(v, "dni", func(fl validator.FieldLevel) bool {
			return dniPattern.MatchString(strings.ReplaceAll(fl.Field().String(), ".", ""))
		})
		mustRegister(v, "phone", func(fl validator.FieldLevel) bool {
			return phonePattern.MatchString(stripPhone(fl.Field().String()))
		})
		mustRegister(v, "isodate", func(fl validator.FieldLevel) bool {
			_, err := models.ParseDate(fl.Field().String(), time.UTC)
			return err == nil
		})
		mustRegister(v, "clock", func(fl validator.FieldLevel) bool {
			_, err := models.ParseClock(fl.Field().String())
			return err == nil
		})
		instance = v
	})
	return instance
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

func stripPhone(s string) string {
	return strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(s)
}

// Struct validates s and returns *errors.ValidationError on failure.
func Struct(s any) error {
	err := get().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.NewValidationError("request", err.Error())
	}

	out := &apperr.ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		out.Fields[fe.Field()] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "dni":
		return "must contain 7 or 8 digits"
	case "phone":
		return "must contain 7 to 15 digits, optionally prefixed by +"
	case "isodate":
		return "must be a date in YYYY-MM-DD format"
	case "clock":
		return "must be a time in HH:MM format"
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	case "min":
		return "must be at least " + fe.Param() + " characters long"
	case "max":
		return "must be at most " + fe.Param() + " characters long"
	default:
		return "is invalid (" + fe.Tag() + ")"
	}
}
