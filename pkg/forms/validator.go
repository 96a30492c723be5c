// Package forms validates lesson form input with struct tags and tracks the
// state of single inputs as the user edits them.
package forms

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator checks forms declared with validate and message struct tags.
type Validator struct {
	validate *validator.Validate
}

// Result is the outcome of checking a form. Fields and Messages are keyed
// by the json name of each field.
type Result struct {
	Fields   map[string]bool
	Messages map[string]string
}

// Valid reports whether every field passed.
func (r Result) Valid() bool {
	for _, ok := range r.Fields {
		if !ok {
			return false
		}
	}
	return true
}

// Error returns the messages of the failed fields, or nil when valid.
func (r Result) Error() error {
	if r.Valid() {
		return nil
	}
	return &ValidationError{Fields: r.Messages}
}

// ValidationError carries the per-field messages of an invalid form.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

// New creates a validator with the lesson tags registered:
//
//	notblank  the value is not empty after trimming spaces
//	postcode  the trimmed value has 6 or 7 characters
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("notblank", validateNotBlank)
	_ = v.RegisterValidation("postcode", validatePostCode)

	v.RegisterTagNameFunc(jsonName)

	return &Validator{validate: v}
}

// Engine exposes the underlying validator for struct checks outside forms.
func (v *Validator) Engine() *validator.Validate {
	return v.validate
}

// Check validates form, which must be a struct or a pointer to one.
func (v *Validator) Check(form interface{}) (Result, error) {
	t := reflect.TypeOf(form)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return Result{}, errors.New("form must be a struct")
	}

	result := Result{
		Fields:   make(map[string]bool),
		Messages: make(map[string]string),
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() || field.Tag.Get("validate") == "" {
			continue
		}
		result.Fields[jsonName(field)] = true
	}

	err := v.validate.Struct(form)
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		for _, fieldErr := range validationErrs {
			name := fieldErr.Field()
			result.Fields[name] = false
			if _, ok := result.Messages[name]; ok {
				continue
			}
			result.Messages[name] = message(t, fieldErr)
		}
		return result, nil
	}

	return result, err
}

// Rule returns a check of a single value against tag, e.g. Rule("notblank").
func (v *Validator) Rule(tag string) func(string) bool {
	return func(value string) bool {
		return v.validate.Var(value, tag) == nil
	}
}

// jsonName names a field after its json key. "-" makes the validator skip it.
func jsonName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "" {
		return field.Name
	}
	return name
}

func message(t reflect.Type, fieldErr validator.FieldError) string {
	if field, ok := t.FieldByName(fieldErr.StructField()); ok {
		if msg := field.Tag.Get("message"); msg != "" {
			return msg
		}
	}
	return fieldErr.Field() + " failed " + fieldErr.Tag()
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func validatePostCode(fl validator.FieldLevel) bool {
	n := len([]rune(strings.TrimSpace(fl.Field().String())))
	return n == 6 || n == 7
}
