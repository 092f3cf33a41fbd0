package utils

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/xelth-com/loomtrace/internal/apperr"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags on input and returns an apperr validation error
// listing every failing field.
func Validate(input any) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation("invalid input: %v", err)
	}

	fields := ProcessValidationErrors(verrs)
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s (%s)", name, fields[name]))
	}
	e := apperr.Validation("invalid fields: %s", strings.Join(parts, ", "))
	e.Fields = fields
	return e
}

// ProcessValidationErrors maps each failing field namespace to the violated tag.
func ProcessValidationErrors(verrs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(verrs))
	for _, ve := range verrs {
		out[ve.Namespace()] = ve.Tag()
	}
	return out
}
