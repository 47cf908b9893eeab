package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// Errors is a field-keyed map of validation messages, serialized as the
// "errors" object of a 422 response.
type Errors map[string][]string

func (e Errors) Error() string {
	var parts []string
	for field, msgs := range e {
		parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(msgs, "; ")))
	}
	return strings.Join(parts, ", ")
}

// Any reports whether at least one field failed.
func (e Errors) Any() bool { return len(e) > 0 }

// Add appends a message for a field.
func (e Errors) Add(field, msg string) {
	e[field] = append(e[field], msg)
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Validator accumulates rule failures against request input.
type Validator struct {
	errs Errors
}

func New() *Validator {
	return &Validator{errs: Errors{}}
}

// Errors returns the accumulated failures, or nil if all rules passed.
func (v *Validator) Errors() Errors {
	if v.errs.Any() {
		return v.errs
	}
	return nil
}

func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.errs.Add(field, "is required")
	}
	return v
}

func (v *Validator) MaxLen(field, value string, max int) *Validator {
	if len(value) > max {
		v.errs.Add(field, fmt.Sprintf("must be at most %d characters", max))
	}
	return v
}

func (v *Validator) MinLen(field, value string, min int) *Validator {
	if value != "" && len(value) < min {
		v.errs.Add(field, fmt.Sprintf("must be at least %d characters", min))
	}
	return v
}

func (v *Validator) Email(field, value string) *Validator {
	if value != "" && !emailPattern.MatchString(value) {
		v.errs.Add(field, "must be a valid email address")
	}
	return v
}

// OneOf checks an enum field. An empty value passes; combine with Required
// when the field is mandatory.
func (v *Validator) OneOf(field, value string, allowed ...string) *Validator {
	if value == "" {
		return v
	}
	for _, a := range allowed {
		if value == a {
			return v
		}
	}
	v.errs.Add(field, fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")))
	return v
}

func (v *Validator) Positive(field string, value int) *Validator {
	if value <= 0 {
		v.errs.Add(field, "must be greater than zero")
	}
	return v
}

func (v *Validator) NonNegative(field string, value float64) *Validator {
	if value < 0 {
		v.errs.Add(field, "must not be negative")
	}
	return v
}
