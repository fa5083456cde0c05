// Package apperr defines the typed errors that cross the service boundary.
// Every failure a client may see is an *Error carrying a Kind; the HTTP layer
// turns the Kind into a status code and the Message into the response body.
package apperr

import (
	"errors"
	"net/http"
)

// Kind is a machine-readable failure category.
type Kind string

const (
	KindInternal           Kind = "INTERNAL"
	KindMalformedBody      Kind = "MALFORMED_BODY"
	KindMissingField       Kind = "MISSING_FIELD"
	KindInvalidType        Kind = "INVALID_TYPE"
	KindNotTrimmed         Kind = "NOT_TRIMMED"
	KindTooShort           Kind = "TOO_SHORT"
	KindTooLong            Kind = "TOO_LONG"
	KindDuplicateUsername  Kind = "DUPLICATE_USERNAME"
	KindInvalidCredentials Kind = "INVALID_CREDENTIALS"
	KindUnauthenticated    Kind = "UNAUTHENTICATED"
	KindNotFound           Kind = "NOT_FOUND"
)

// HTTPStatus maps a kind to the status code the API answers with.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindMissingField:
		return http.StatusForbidden
	case KindInvalidType:
		return http.StatusNotAcceptable
	case KindNotTrimmed:
		return http.StatusExpectationFailed
	case KindTooShort, KindTooLong:
		return http.StatusLengthRequired
	case KindDuplicateUsername, KindMalformedBody:
		return http.StatusBadRequest
	case KindInvalidCredentials, KindUnauthenticated:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is a failure with a kind, an optional offending field and a
// client-facing message. Cause is kept for logs only.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// ForField creates an error tied to a request field.
func ForField(kind Kind, field, message string) *Error {
	return &Error{Kind: kind, Field: field, Message: message}
}

// Wrap creates an error of the given kind around a cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

var (
	// ErrDuplicateUsername is returned when registering an already taken username.
	ErrDuplicateUsername = New(KindDuplicateUsername, "The username already exists")
	// ErrInvalidCredentials covers both unknown usernames and wrong passwords.
	ErrInvalidCredentials = New(KindInvalidCredentials, "Unauthorized")
	// ErrUnauthenticated is returned for a missing, invalid or expired bearer token.
	ErrUnauthenticated = New(KindUnauthenticated, "Unauthorized")
	// ErrNotFound is returned when a requested user does not exist.
	ErrNotFound = New(KindNotFound, "Not Found")
)
