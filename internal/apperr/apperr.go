// Package apperr carries the service-wide error taxonomy. Handlers map a
// Kind to an HTTP status; everything that is not one of these kinds is a
// dependency failure and surfaces as a generic 500 with the detail kept
// in the logs.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	// Validation is malformed, missing or out-of-range input. Detected
	// before any persistence call, never retried.
	Validation Kind = iota
	// Unauthorized is a missing or unusable credential.
	Unauthorized
	// Forbidden is a valid credential without access to the target.
	Forbidden
	// NotFound covers absent tenants, entities and referenced ids.
	NotFound
	// Gone marks archived tenants on public paths.
	Gone
	// Conflict is an optimistic-concurrency race; the whole operation is
	// safe to retry.
	Conflict
	// Dependency is an unexpected store/object-storage failure.
	Dependency
)

type Error struct {
	Kind Kind
	// Code is the stable machine-readable code in the response envelope.
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

func Validationf(code, format string, args ...any) *Error {
	return &Error{Kind: Validation, Code: code, Message: fmt.Sprintf(format, args...)}
}

func NotFoundf(code, format string, args ...any) *Error {
	return &Error{Kind: NotFound, Code: code, Message: fmt.Sprintf(format, args...)}
}

// As extracts an *Error from a chain, if present.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// HTTPStatus maps a Kind to its fixed response status.
func (k Kind) HTTPStatus() int {
	switch k {
	case Validation:
		return http.StatusBadRequest
	case Unauthorized:
		return http.StatusUnauthorized
	case Forbidden:
		return http.StatusForbidden
	case NotFound:
		return http.StatusNotFound
	case Gone:
		return http.StatusGone
	case Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
