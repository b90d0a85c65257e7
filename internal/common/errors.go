// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Input errors.
	ErrParse             = errors.New("parse error")
	ErrMissingInput      = errors.New("missing input")
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// Interaction errors.
	ErrInputTerminated = errors.New("input terminated")

	// Configuration errors.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ParseError reports a structural problem in an input file that the operator must fix.
type ParseError struct {
	Err    error
	Source string
	Field  string
	Value  string
	Row    int
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("%s: row %d", e.Source, e.Row)
	if e.Field != "" {
		msg += fmt.Sprintf(", field %s", e.Field)
	}
	if e.Value != "" {
		msg += fmt.Sprintf(" (%q)", e.Value)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap lets errors.Is match both ErrParse and the underlying cause.
func (e *ParseError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrParse}
	}
	return []error{ErrParse, e.Err}
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// UserMessage returns the user-facing message of err, or its text when it carries none.
func UserMessage(err error) string {
	var userErr *UserError
	if errors.As(err, &userErr) {
		return userErr.UserMessage
	}
	return err.Error()
}
