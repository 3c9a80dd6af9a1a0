// Package errors defines the typed failures shared by encore services.
//
// Each failure carries a Kind that decides how a boundary reacts: inline
// field messages for validation, a blocking alert for transactions, a log
// line for restore problems, a redirect for unknown resources.
package errors

import (
	stderrors "errors"
	"net/http"
	"strings"
)

// Kind classifies failures for consistent handling at the boundary.
type Kind string

const (
	KindUnknown      Kind = "unknown"
	KindValidation   Kind = "validation"
	KindTransaction  Kind = "transaction"
	KindConflict     Kind = "conflict"
	KindRestore      Kind = "restore"
	KindNotFound     Kind = "not_found"
	KindUnauthorized Kind = "unauthorized"
)

// Error is a typed failure.
type Error struct {
	Kind    Kind
	Field   string // input field a validation failure belongs to
	Message string // user-facing message
	Cause   error
}

// Error renders the message and cause.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	message := e.Message
	if message == "" {
		message = string(e.Kind)
	}
	if e.Cause != nil {
		return message + ": " + e.Cause.Error()
	}
	return message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches another *Error of the same kind with no message, so callers can
// test with errors.Is(err, &Error{Kind: KindValidation}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return e.Kind == t.Kind && (t.Message == "" || t.Message == e.Message)
}

// E builds a typed error.
func E(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Field builds a validation error bound to an input field.
func Field(field string, message string) error {
	return &Error{Kind: KindValidation, Field: strings.TrimSpace(field), Message: message}
}

// Wrap builds a typed error around a cause.
func Wrap(kind Kind, message string, cause error) error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the kind of the first typed error in the chain.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var typed *Error
	if stderrors.As(err, &typed) {
		return typed.Kind
	}
	return KindUnknown
}

// UserMessage returns the message meant for display, without causes.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var typed *Error
	if stderrors.As(err, &typed) && typed.Message != "" {
		return typed.Message
	}
	return "Something went wrong. Please try again."
}

// FieldOf returns the input field a validation failure belongs to.
func FieldOf(err error) string {
	var typed *Error
	if stderrors.As(err, &typed) {
		return typed.Field
	}
	return ""
}

// HTTPStatus maps an error to an HTTP status code.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindTransaction:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
