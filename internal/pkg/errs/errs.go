/*
Package errs provides custom error types and application-level error code constants.

This file defines the CustomError struct, which implements the standard Go error interface
and carries a business code, an error kind from the shared taxonomy, a user-friendly message,
an HTTP status code and, for validation failures, a field → message mapping.
*/
package errs

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
	"strings"

	"hotelchat/internal/pkg/logx"
)

// Kind classifies an error into the taxonomy shared by the service and the client.
type Kind string

const (
	KindAuthentication Kind = "authentication"
	KindAuthorization  Kind = "authorization"
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindNetwork        Kind = "network"
	KindInternal       Kind = "internal"
)

// defaultStatus maps a Kind to the HTTP status used when the error template does not set one.
func (k Kind) defaultStatus() int {
	switch k {
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindAuthorization:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// CustomError is the custom error structure used throughout the application.
type CustomError struct {
	// Code is the business error code (see constants definition).
	Code int

	// Kind is the taxonomy bucket of the error.
	Kind Kind

	// Message is the user-friendly error description.
	Message string

	// Status is the HTTP status code corresponding to this error.
	Status int

	// Fields maps a request field name to a field-level message. Only set for validation errors.
	Fields map[string]string

	// cause is the underlying error, if any. It is never sent to clients.
	cause error
}

// Error implements the standard Go error interface.
func (e *CustomError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("Error Code %d (HTTP %d): %s: %v", e.Code, e.Status, e.Message, e.cause)
	}
	return fmt.Sprintf("Error Code %d (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e *CustomError) Unwrap() error {
	return e.cause
}

// NewError constructs a new *CustomError from a predefined error code.
// The optional details are printf arguments for the message template. If the first detail of an
// ErrUnknown or ErrNetwork error is an error, it is logged and kept as the cause instead.
// Unknown codes degrade to ErrUnknown.
func NewError(code int, details ...any) *CustomError {
	templateErr, ok := errorMap[code]

	if !ok {
		logx.Error(
			fmt.Errorf("attempted to create an error with an unknown code in errorMap"),
			"Unknown error code requested",
			"requested_code", code,
		)
		templateErr = errorMap[ErrUnknown]
	}

	customErr := templateErr

	if customErr.Status == 0 {
		customErr.Status = customErr.Kind.defaultStatus()
	}

	if len(details) > 0 {
		if cause, isErr := details[0].(error); isErr {
			customErr.cause = cause
			if code == ErrUnknown {
				logx.Error(cause, "Handling ErrUnknown with underlying error")
			}
		} else if strings.Contains(customErr.Message, "%") {
			customErr.Message = fmt.Sprintf(customErr.Message, details...)
		} else {
			logx.Warn(
				"Details provided for error, but message template has no formatting placeholders. Details ignored.",
				"code", code,
			)
		}
	}

	return &customErr
}

// Validation builds an ErrValidation error carrying the field → message mapping.
func Validation(fields map[string]string) *CustomError {
	e := NewError(ErrValidation)
	e.Fields = maps.Clone(fields)
	return e
}

// Decode rebuilds a *CustomError from the code, message and fields received over the wire.
// The message from the wire wins over the local template so clients show what the service said.
func Decode(code int, message string, status int, fields map[string]string) *CustomError {
	e := NewError(code)
	if _, known := errorMap[code]; known {
		e.Code = code
	}
	if message != "" {
		e.Message = message
	}
	if status != 0 {
		e.Status = status
	}
	if len(fields) > 0 {
		e.Fields = maps.Clone(fields)
	}
	return e
}

// As extracts a *CustomError from err, if there is one in its chain.
func As(err error) (*CustomError, bool) {
	var customErr *CustomError
	if errors.As(err, &customErr) {
		return customErr, true
	}
	return nil, false
}

// Is reports whether err carries the given business code.
func Is(err error, code int) bool {
	customErr, ok := As(err)
	return ok && customErr.Code == code
}

// KindOf returns the taxonomy bucket of err. Plain errors are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if customErr, ok := As(err); ok {
		return customErr.Kind
	}
	return KindInternal
}

// Wrap converts any error into a *CustomError. Errors that already are one pass through;
// everything else becomes ErrUnknown with the original kept as cause.
func Wrap(err error) *CustomError {
	if err == nil {
		return nil
	}
	if customErr, ok := As(err); ok {
		return customErr
	}
	return NewError(ErrUnknown, err)
}
