// Package apperror defines the {code, errors} failure shape shared by the
// repositories, the settings service and the console API.
package apperror

import (
	"errors"
	"strings"
)

// Error is the rejection shape of every console operation.
// Code 0 marks client-side validation failures that never reached the
// appliance; any other code is the HTTP status of the failed call.
type Error struct {
	Code   int      `json:"code"`
	Errors []string `json:"errors"`

	cause error
}

func (e *Error) Error() string {
	if len(e.Errors) == 0 {
		return "unknown error"
	}
	return strings.Join(e.Errors, "; ")
}

func (e *Error) Unwrap() error { return e.cause }

// Invalid builds a validation error.
func Invalid(msgs ...string) *Error {
	return &Error{Code: 0, Errors: msgs}
}

// Remote builds an error for a failed appliance call.
func Remote(code int, msg string, cause error) *Error {
	return &Error{Code: code, Errors: []string{msg}, cause: cause}
}

// IsValidation reports whether err is a client-side validation error.
func IsValidation(err error) bool {
	var le *Error
	return errors.As(err, &le) && le.Code == 0
}
