package errors

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationResult holds validation results keyed by form field name.
type ValidationResult struct {
	IsValid bool
	Fields  map[string]string
}

// AddError records a message for a form field.
func (vr *ValidationResult) AddError(field, message string) {
	vr.IsValid = false
	if vr.Fields == nil {
		vr.Fields = make(map[string]string)
	}
	if _, exists := vr.Fields[field]; !exists {
		vr.Fields[field] = message
	}
}

// Merge copies field errors from other, keeping existing messages.
func (vr *ValidationResult) Merge(fields map[string]string) {
	for k, v := range fields {
		vr.AddError(k, v)
	}
}

// Err returns the result as an AppError, or nil when valid.
func (vr *ValidationResult) Err() error {
	if vr.IsValid {
		return nil
	}
	err := New(ErrTypeValidation, "INVALID_INPUT", "form validation failed").
		WithUserMessage(vr.First())
	for k, v := range vr.Fields {
		err.Context[k] = v
	}
	return err
}

// First returns one message, preferring the general entry.
func (vr *ValidationResult) First() string {
	if msg, ok := vr.Fields["general"]; ok {
		return msg
	}
	keys := make([]string, 0, len(vr.Fields))
	for k := range vr.Fields {
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return ""
	}
	// deterministic pick
	min := keys[0]
	for _, k := range keys[1:] {
		if k < min {
			min = k
		}
	}
	return vr.Fields[min]
}

// Validator wraps go-playground/validator with form-name reporting and the
// messages the forms display.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new validator
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return &Validator{validate: v}
}

// Struct validates a tagged struct.
func (v *Validator) Struct(s interface{}) *ValidationResult {
	result := &ValidationResult{IsValid: true}

	err := v.validate.Struct(s)
	if err == nil {
		return result
	}

	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) {
		result.AddError("general", err.Error())
		return result
	}
	for _, fe := range fieldErrs {
		result.AddError(fe.Field(), message(fe))
	}
	return result
}

// Var validates a single value against a tag, e.g. "email".
func (v *Validator) Var(field interface{}, tag string) error {
	return v.validate.Var(field, tag)
}

func message(fe validator.FieldError) string {
	label := humanize(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", label)
	case "email":
		return "Please enter a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "eqfield":
		return "Passwords do not match"
	case "hexcolor":
		return "Please pick a valid color"
	default:
		return fmt.Sprintf("%s is invalid", label)
	}
}

// humanize turns "firstName" into "First name".
func humanize(field string) string {
	var b strings.Builder
	for i, r := range field {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteRune(' ')
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	s := b.String()
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
