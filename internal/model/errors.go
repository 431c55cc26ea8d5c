package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrRequired marks a required field that is missing or null.
	ErrRequired = errors.New("is required")
	// ErrEmpty marks a required field that is present but empty.
	ErrEmpty = errors.New("must not be empty")
	// ErrWrongShape marks a field whose JSON type does not match the model.
	ErrWrongShape = errors.New("wrong shape")
)

// ValidationError identifies the offending field and the rule it broke.
// Field is a path relative to the value being validated, e.g.
// "request.headers[2].name".
type ValidationError struct {
	Field string
	Rule  string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Rule
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Rule)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Rule: err.Error(), Err: err}
}

// within prefixes the field path of err with parent. Errors that are not
// validation errors are wrapped into one first.
func within(parent string, err error) error {
	if err == nil {
		return nil
	}

	var ve *ValidationError
	if !errors.As(err, &ve) {
		return asFieldError(parent, err)
	}

	path := parent
	switch {
	case ve.Field == "":
	case strings.HasPrefix(ve.Field, "["):
		path = parent + ve.Field
	case parent == "":
		path = ve.Field
	default:
		path = parent + "." + ve.Field
	}
	return &ValidationError{Field: path, Rule: ve.Rule, Err: ve.Err}
}

// asFieldError classifies a decode error for field. JSON type and syntax
// errors become ErrWrongShape; anything else keeps its own sentinel.
func asFieldError(field string, err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return within(field, ve)
	}

	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	if errors.As(err, &typeErr) || errors.As(err, &syntaxErr) {
		return &ValidationError{
			Field: field,
			Rule:  fmt.Sprintf("%s: %v", ErrWrongShape, err),
			Err:   fmt.Errorf("%w: %w", ErrWrongShape, err),
		}
	}
	return &ValidationError{Field: field, Rule: err.Error(), Err: err}
}

func requireNonEmpty(field, value string) error {
	if value == "" {
		return invalid(field, ErrEmpty)
	}
	return nil
}

func requireNumber(field string, n Number) error {
	if !n.IsSet() {
		return invalid(field, ErrRequired)
	}
	return nil
}
