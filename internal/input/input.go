// Package input validates request parameters and strips markup from
// user-supplied text.
package input

import (
	"errors"
	"html"
	"reflect"
	"strings"

	"github.com/Ravindra2377/KPR/internal/apperr"
	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
)

var (
	validate = newValidator()
	policy   = bluemonday.StrictPolicy()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks s against its validate tags. Failures come back as an
// Invalid error listing every offending field.
func Validate(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Wrap(apperr.Failed, "validate input", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		param := fe.Param()

		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "min":
			msgs = append(msgs, field+" must be at least "+param+minUnit(fe))
		case "max":
			msgs = append(msgs, field+" must be at most "+param+minUnit(fe))
		case "oneof":
			msgs = append(msgs, field+" must be one of "+param)
		case "nefield":
			msgs = append(msgs, field+" must differ from "+strings.ToLower(param))
		case "gt":
			msgs = append(msgs, field+" must be greater than "+param)
		case "lte":
			msgs = append(msgs, field+" must be at most "+param)
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}

	return apperr.New(apperr.Invalid, strings.Join(msgs, ", "))
}

func minUnit(fe validator.FieldError) string {
	switch fe.Kind() {
	case reflect.String:
		return " characters"
	case reflect.Slice, reflect.Array, reflect.Map:
		return " items"
	default:
		return ""
	}
}

// Clean strips all markup from s and trims surrounding whitespace. Entities
// are decoded again so plain text round-trips unchanged.
func Clean(s string) string {
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(s)))
}

func CleanAll(ss []string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if c := Clean(s); c != "" {
			out = append(out, c)
		}
	}
	return out
}
