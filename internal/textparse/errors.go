package textparse

import (
	"errors"
	"fmt"
)

// ErrNoJSON is wrapped by the ParseError returned when neither the strict
// parse nor the brace scan yields a JSON object.
var ErrNoJSON = errors.New("no valid JSON found")

// ParseError reports structured-text extraction that failed. Field is set
// when a specific key was missing or malformed.
type ParseError struct {
	Reason string
	Field  string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil && e.Err != ErrNoJSON {
		return fmt.Sprintf("parse error: %s: %v", e.Reason, e.Err)
	}
	return "parse error: " + e.Reason
}

func (e *ParseError) Unwrap() error { return e.Err }

func missingField(name string) *ParseError {
	return &ParseError{Reason: "missing required field: " + name, Field: name}
}

func badField(name, reason string, err error) *ParseError {
	return &ParseError{Reason: fmt.Sprintf("field %s: %s", name, reason), Field: name, Err: err}
}
