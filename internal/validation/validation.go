// Package validation wires the custom binding rules into gin's validator
// and turns binding failures into field-level messages.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"

	"github.com/yukikurage/catena-api/internal/scheduling"
)

// FieldError is one failed rule on one input field. It doubles as the
// error services return for a single invalid field.
type FieldError struct {
	Field      string `json:"field"`
	Validation string `json:"validation"`
	Message    string `json:"message"`
}

func (e *FieldError) Error() string {
	return e.Field + ": " + e.Message
}

var (
	registerOnce sync.Once
	registerErr  error
)

// Register installs the custom rules on gin's default validator. It is safe
// to call more than once.
func Register() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = errors.New("gin validator engine is not validator/v10")
			return
		}
		registerErr = RegisterOn(v)
	})
	return registerErr
}

// RegisterOn installs the custom rules and json field naming on v.
func RegisterOn(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})

	if err := v.RegisterValidation("clock", isClock); err != nil {
		return err
	}
	return v.RegisterValidation("calendardate", isCalendarDate)
}

func isClock(fl validator.FieldLevel) bool {
	raw := fl.Field().String()
	if strings.TrimSpace(raw) == "" {
		return true
	}
	_, err := scheduling.NormalizeClock(raw, "")
	return err == nil
}

func isCalendarDate(fl validator.FieldLevel) bool {
	_, err := scheduling.ParseDueDate(fl.Field().String(), time.UTC)
	return err == nil
}

// Messages converts a binding or schedule error into field messages.
func Messages(err error) []FieldError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]FieldError, 0, len(verrs))
		for _, fe := range verrs {
			field := fieldPath(fe.Namespace())
			out = append(out, FieldError{
				Field:      field,
				Validation: fe.Tag(),
				Message:    message(field, fe),
			})
		}
		return out
	}

	var fieldErr *FieldError
	if errors.As(err, &fieldErr) {
		return []FieldError{*fieldErr}
	}

	var entryErr *scheduling.EntryError
	if errors.As(err, &entryErr) {
		field := fmt.Sprintf("schedules[%d].%s", entryErr.Index, entryErr.Field)
		return []FieldError{{Field: field, Validation: "schedule", Message: entryErr.Message}}
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return []FieldError{{
			Field:      typeErr.Field,
			Validation: "type",
			Message:    fmt.Sprintf("%s must be a %s", typeErr.Field, typeErr.Type.Kind()),
		}}
	}

	return []FieldError{{Field: "body", Validation: "json", Message: "Invalid request body"}}
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func message(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "clock":
		return field + " must be a time of day (HH:MM or HH:MM:SS)"
	case "calendardate":
		return field + " must be a date (YYYY-MM-DD)"
	default:
		return field + " is invalid"
	}
}

var strictPolicy = bluemonday.StrictPolicy()

// StripTags removes HTML markup, keeping text content, and trims the
// result. Script and style bodies are dropped along with their tags.
func StripTags(s string) string {
	return strings.TrimSpace(html.UnescapeString(strictPolicy.Sanitize(s)))
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
