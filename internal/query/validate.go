package query

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// ValidationError reports a malformed filter. Handlers answer it with 422.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

const dateOnly = "2006-01-02"

// dateRange is the resolved date window. to is exclusive when toExclusive is set.
type dateRange struct {
	from, to    *time.Time
	toExclusive bool
}

// Validate checks spec and resolves its date bounds.
func Validate(spec *FilterSpec) error {
	_, err := resolve(spec)
	return err
}

// ValidateStruct checks v against its validate tags. Request bodies that
// embed a FilterSpec use it too, so field names match the JSON.
func ValidateStruct(v any) error {
	if err := getValidator().Struct(v); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &ValidationError{Field: fieldPath(fe), Message: translate(fe)}
		}
		return &ValidationError{Message: err.Error()}
	}
	return nil
}

func resolve(spec *FilterSpec) (*dateRange, error) {
	if err := ValidateStruct(spec); err != nil {
		return nil, err
	}

	r := &dateRange{}
	if spec.DateFrom != "" {
		t, _, err := parseDate(spec.DateFrom)
		if err != nil {
			return nil, &ValidationError{Field: "date_from", Message: err.Error()}
		}
		r.from = &t
	}
	if spec.DateTo != "" {
		t, bare, err := parseDate(spec.DateTo)
		if err != nil {
			return nil, &ValidationError{Field: "date_to", Message: err.Error()}
		}
		if bare {
			t = t.AddDate(0, 0, 1)
			r.toExclusive = true
		}
		r.to = &t
	}
	if r.from != nil && r.to != nil && r.to.Before(*r.from) {
		return nil, &ValidationError{Field: "date_to", Message: "must not be before date_from"}
	}
	return r, nil
}

// parseDate accepts YYYY-MM-DD (reported as bare) or RFC3339.
func parseDate(s string) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateOnly, s); err == nil {
		return t.UTC(), true, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), false, nil
	}
	return time.Time{}, false, fmt.Errorf("invalid date %q: use YYYY-MM-DD or RFC3339", s)
}

func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func translate(fe validator.FieldError) string {
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s long", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must have at least %s items", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}
