// Package apperr implements the error taxonomy of spec §7 as a typed result
// instead of the "catch a driver error and infer the outcome" pattern the
// spec's design notes (§9) call out for replacement: every case below is a
// first-class constructor, not something recovered from a caught exception.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is one of the seven error categories spec §7 defines.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindForbidden         Kind = "forbidden"
	KindNotFound          Kind = "not_found"
	KindInvalidTransition Kind = "invalid_transition"
	KindConflict          Kind = "conflict"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindInternal          Kind = "internal"
)

// statusByKind maps each Kind to the HTTP status spec §7 assigns it.
var statusByKind = map[Kind]int{
	KindValidation:        http.StatusBadRequest,
	KindForbidden:         http.StatusForbidden,
	KindNotFound:          http.StatusNotFound,
	KindInvalidTransition: http.StatusBadRequest,
	KindConflict:          http.StatusConflict,
	KindInsufficientFunds: http.StatusConflict,
	KindInternal:          http.StatusInternalServerError,
}

// Error is a typed, user-safe application error. Message is always safe to
// return verbatim in the response envelope's "error" field; internal errors
// never leak their Cause to callers.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// HTTPStatus returns the status code this error's Kind maps to.
func (e *Error) HTTPStatus() int {
	if s, ok := statusByKind[e.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// PublicMessage is what a handler should put in the response envelope: the
// typed message for every kind except Internal, which never surfaces detail.
func (e *Error) PublicMessage() string {
	if e.Kind == KindInternal {
		return "internal error"
	}
	return e.Message
}

func new_(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

func Validation(msg string) *Error        { return new_(KindValidation, msg, nil) }
func Forbidden(msg string) *Error         { return new_(KindForbidden, msg, nil) }
func NotFound(msg string) *Error          { return new_(KindNotFound, msg, nil) }
func InvalidTransition(msg string) *Error { return new_(KindInvalidTransition, msg, nil) }
func Conflict(msg string) *Error          { return new_(KindConflict, msg, nil) }
func InsufficientFunds(msg string) *Error { return new_(KindInsufficientFunds, msg, nil) }
func Internal(msg string, cause error) *Error {
	return new_(KindInternal, msg, cause)
}

// As extracts an *Error from err, if any error in its chain is one.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it (or something it wraps) is an
// *Error, or KindInternal otherwise — the safe default for an unreachable
// invariant violation (spec §7).
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}
