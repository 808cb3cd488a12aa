package domain

import (
	"fmt"
	"net/http"
)

// ErrorKind is the closed set of failure categories the gateway recognizes.
// The error normalizer in the server package is an exhaustive switch over
// these kinds; anything outside the set falls through to the generic 500.
type ErrorKind string

const (
	// ErrorKindValidation indicates a malformed request body.
	ErrorKindValidation ErrorKind = "validation"

	// ErrorKindUnauthorized indicates no usable credential was presented.
	ErrorKindUnauthorized ErrorKind = "unauthorized"

	// ErrorKindInvalidAPIKey indicates the presented API key matched no identity.
	ErrorKindInvalidAPIKey ErrorKind = "invalid_api_key"

	// ErrorKindNoAPIKey indicates a route that requires an API key received none.
	ErrorKindNoAPIKey ErrorKind = "no_api_key"

	// ErrorKindIdentityProvider indicates the identity provider failed; the
	// provider's own status code is carried through when it supplied one.
	ErrorKindIdentityProvider ErrorKind = "identity_provider"

	// ErrorKindStorageInit indicates the persistence layer could not be
	// opened or initialized.
	ErrorKindStorageInit ErrorKind = "storage_init"

	// ErrorKindStorageQuery indicates a recognized request-level database
	// failure, such as a constraint violation.
	ErrorKindStorageQuery ErrorKind = "storage_query"

	// ErrorKindStorageDriver indicates a low-level or unclassified database
	// failure.
	ErrorKindStorageDriver ErrorKind = "storage_driver"

	// ErrorKindStorageValidation indicates the inputs to a persistence call
	// were invalid before any query ran.
	ErrorKindStorageValidation ErrorKind = "storage_validation"

	// ErrorKindHTTP is an explicit HTTP failure raised by a handler with a
	// declared status.
	ErrorKindHTTP ErrorKind = "http"

	// ErrorKindBackend indicates the model backend failed. The cause is
	// logged server-side and never surfaced to the caller.
	ErrorKindBackend ErrorKind = "backend"
)

// Error is the single failure representation produced at the point of
// detection and consumed once, at the HTTP boundary, by the error normalizer.
// It propagates upward unmodified.
type Error struct {
	Kind    ErrorKind
	Message string

	// Status overrides the kind's default HTTP status when non-zero. Only
	// the HTTP and identity-provider kinds set it.
	Status int

	// FieldErrors and FormErrors carry per-field validation detail; only
	// the validation kind populates them.
	FieldErrors map[string][]string
	FormErrors  []string

	// Err is the underlying cause, kept for server-side logs only.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the status the normalizer responds with for this
// error.
func (e *Error) HTTPStatusCode() int {
	if e.Status != 0 {
		return e.Status
	}

	switch e.Kind {
	case ErrorKindValidation, ErrorKindStorageValidation:
		return http.StatusBadRequest
	case ErrorKindUnauthorized:
		return http.StatusUnauthorized
	case ErrorKindInvalidAPIKey, ErrorKindNoAPIKey:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// ErrValidation creates a validation error carrying one human-readable
// message per offending field plus machine-readable per-field detail.
func ErrValidation(message string, fieldErrors map[string][]string, formErrors []string) *Error {
	return &Error{
		Kind:        ErrorKindValidation,
		Message:     message,
		FieldErrors: fieldErrors,
		FormErrors:  formErrors,
	}
}

// ErrUnauthorized creates an authentication error for requests with no valid
// session and no API key.
func ErrUnauthorized(message string) *Error {
	if message == "" {
		message = "Unauthorized"
	}
	return &Error{Kind: ErrorKindUnauthorized, Message: message}
}

// ErrInvalidAPIKey creates the fixed-message error for API keys that match
// no identity.
func ErrInvalidAPIKey() *Error {
	return &Error{Kind: ErrorKindInvalidAPIKey, Message: "Invalid API key"}
}

// ErrNoAPIKey creates the fixed-message error for routes that require an API
// key when none was presented.
func ErrNoAPIKey() *Error {
	return &Error{Kind: ErrorKindNoAPIKey, Message: "No API key provided"}
}

// ErrIdentityProvider wraps a failure from the identity provider. A zero
// status falls back to 500.
func ErrIdentityProvider(status int, message string, cause error) *Error {
	return &Error{Kind: ErrorKindIdentityProvider, Message: message, Status: status, Err: cause}
}

// ErrStorage wraps a persistence failure under the given storage kind.
func ErrStorage(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// ErrHTTP creates an explicit HTTP failure with a declared status.
func ErrHTTP(status int, message string, cause error) *Error {
	return &Error{Kind: ErrorKindHTTP, Message: message, Status: status, Err: cause}
}

// ErrBackend wraps a model backend failure. The response body carries only a
// fixed message; the cause stays in logs.
func ErrBackend(cause error) *Error {
	return &Error{Kind: ErrorKindBackend, Message: "Internal server error", Err: cause}
}
