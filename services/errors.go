package services

import (
	"errors"

	"food-marketplace-api/store"
)

// Kind classifies a failed operation so callers can react without parsing messages.
type Kind string

const (
	KindUnauthenticated   Kind = "unauthenticated"
	KindForbidden         Kind = "forbidden"
	KindNotFound          Kind = "not_found"
	KindValidation        Kind = "validation_error"
	KindUpload            Kind = "upload_error"
	KindPersistence       Kind = "persistence_error"
	KindInvalidTransition Kind = "invalid_transition"
	KindConflict          Kind = "conflict"
)

// Error is the failure result of every service operation.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or "" if err is nil or not a service error.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// IsKind reports whether err is a service error of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf returns the user-facing message of err.
func MessageOf(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Message
	}
	return err.Error()
}

func unauthenticated(msg string) *Error {
	return &Error{Kind: KindUnauthenticated, Message: msg}
}

func forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func notFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func invalid(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func uploadFailed(err error) *Error {
	return &Error{Kind: KindUpload, Message: "image upload failed", Err: err}
}

// storeError converts a repository error; missing documents become NotFound with
// notFoundMsg, everything else is a persistence failure.
func storeError(err error, notFoundMsg, failMsg string) error {
	var se *Error
	if errors.As(err, &se) {
		return se
	}
	if errors.Is(err, store.ErrNotFound) {
		return &Error{Kind: KindNotFound, Message: notFoundMsg, Err: err}
	}
	return &Error{Kind: KindPersistence, Message: failMsg, Err: err}
}
