// Package apperror carries the error taxonomy of the API: every failure a
// handler returns is one of a few kinds, each bound to an HTTP status and a
// message that is safe to show. The echo error handler in internal/app
// renders them as the JSON envelope.
//
// Driver and infrastructure errors never reach the client. Services wrap
// them with NewInternal, which keeps the cause for logging only.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an AppError.
type Kind string

const (
	KindBadRequest   Kind = "bad_request"
	KindValidation   Kind = "validation_error"
	KindUnauthorized Kind = "unauthorized"
	KindNotFound     Kind = "not_found"
	KindConflict     Kind = "conflict"
	KindInternal     Kind = "internal_error"
)

// internalMessage is the only text a client sees for a 500.
const internalMessage = "Internal server error"

var kindStatus = map[Kind]int{
	KindBadRequest:   http.StatusBadRequest,
	KindValidation:   http.StatusBadRequest,
	KindUnauthorized: http.StatusUnauthorized,
	KindNotFound:     http.StatusNotFound,
	KindConflict:     http.StatusConflict,
	KindInternal:     http.StatusInternalServerError,
}

// AppError is a classified error with a client-safe message.
type AppError struct {
	Code     int    `json:"-"`
	Type     Kind   `json:"type"`
	Message  string `json:"message"`
	Internal error  `json:"-"` // logged, never rendered
}

func newError(kind Kind, message string) *AppError {
	return &AppError{Code: kindStatus[kind], Type: kind, Message: message}
}

func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error { return e.Internal }

// NewNotFound is used for both "missing" and "belongs to someone else", so
// callers learn nothing about other users' records.
func NewNotFound(message string) *AppError { return newError(KindNotFound, message) }

// NewBadRequest is for bodies that cannot be parsed at all.
func NewBadRequest(message string) *AppError { return newError(KindBadRequest, message) }

// NewValidation is for a missing or malformed field.
func NewValidation(message string) *AppError { return newError(KindValidation, message) }

func NewUnauthorized(message string) *AppError { return newError(KindUnauthorized, message) }

func NewConflict(message string) *AppError { return newError(KindConflict, message) }

// NewInternal hides err behind the generic 500 message.
func NewInternal(err error) *AppError {
	e := newError(KindInternal, internalMessage)
	e.Internal = err
	return e
}

// As returns the AppError in err's chain, if any.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

// IsNotFound reports whether err is (or wraps) a not-found AppError.
func IsNotFound(err error) bool {
	appErr, ok := As(err)
	return ok && appErr.Type == KindNotFound
}

// SafeMessage returns the message to render for err. Anything that is not
// an AppError gets the generic internal message.
func SafeMessage(err error) string {
	if appErr, ok := As(err); ok {
		return appErr.Message
	}
	return internalMessage
}

// SafeCode returns the HTTP status for err, 500 for non-AppErrors.
func SafeCode(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return http.StatusInternalServerError
}
