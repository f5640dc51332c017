// Package domain defines the core domain models for glovectl.
package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failed request. Every failure surfaced by the request
// pipeline carries exactly one Kind.
type Kind string

const (
	KindUnreachable  Kind = "transport-unreachable"
	KindTimeout      Kind = "transport-timeout"
	KindBadRequest   Kind = "bad-request"
	KindUnauthorized Kind = "authentication-expired"
	KindForbidden    Kind = "authorization-denied"
	KindNotFound     Kind = "not-found"
	KindServerFault  Kind = "server-fault"
	KindBusiness     Kind = "business-failure"
	KindUnknown      Kind = "unknown"
)

// Error is a classified client error. Message is always suitable for direct
// display to the user.
type Error struct {
	Kind    Kind   // Failure class
	Code    string // Stable error code (e.g., "GC-AUTH-4010")
	Status  int    // Envelope code or HTTP status, 0 when no response arrived
	Message string // Human-readable message
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support. Two errors match when their codes match.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError creates a new Error with the given kind, code and message.
func NewError(kind Kind, code, message string) *Error {
	return &Error{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// WithMessage returns a copy of the error carrying a different display message.
// An empty message keeps the original one.
func (e *Error) WithMessage(message string) *Error {
	if message == "" {
		message = e.Message
	}
	return &Error{
		Kind:    e.Kind,
		Code:    e.Code,
		Status:  e.Status,
		Message: message,
		Cause:   e.Cause,
	}
}

// WithStatus returns a copy of the error carrying the given status.
func (e *Error) WithStatus(status int) *Error {
	return &Error{
		Kind:    e.Kind,
		Code:    e.Code,
		Status:  status,
		Message: e.Message,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *Error) WithCause(cause error) *Error {
	return &Error{
		Kind:    e.Kind,
		Code:    e.Code,
		Status:  e.Status,
		Message: e.Message,
		Cause:   cause,
	}
}

// KindOf extracts the Kind from err, or KindUnknown if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's an *Error.
func GetErrorCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// ============================================================================
// Transport errors (NET): no usable response was received.
// ============================================================================

var (
	// ErrUnreachable indicates the request never reached the service.
	ErrUnreachable = NewError(KindUnreachable, "GC-NET-0001", "network connection failed")

	// ErrTimeout indicates the request did not complete in time.
	ErrTimeout = NewError(KindTimeout, "GC-NET-0002", "request timed out")
)

// ============================================================================
// Session errors (AUTH)
// ============================================================================

var (
	// ErrSessionExpired indicates the service rejected the credential.
	ErrSessionExpired = NewError(KindUnauthorized, "GC-AUTH-4010", "session expired, please log in again")

	// ErrUnauthenticated is the transport-level 401 counterpart of ErrSessionExpired.
	ErrUnauthenticated = NewError(KindUnauthorized, "GC-AUTH-4011", "unauthorized, please log in again")

	// ErrNotLoggedIn indicates an operation needs a session but none exists.
	ErrNotLoggedIn = NewError(KindUnauthorized, "GC-AUTH-4012", "not logged in")

	// ErrNoRefreshToken indicates a refresh was requested without a refresh token.
	ErrNoRefreshToken = NewError(KindUnauthorized, "GC-AUTH-4013", "no refresh token available")

	// ErrPermissionDenied indicates the caller lacks the capability.
	ErrPermissionDenied = NewError(KindForbidden, "GC-AUTH-4030", "no permission")
)

// ============================================================================
// Request errors (REQ)
// ============================================================================

var (
	// ErrBadRequest indicates the service rejected the request parameters.
	ErrBadRequest = NewError(KindBadRequest, "GC-REQ-4000", "invalid request parameters")

	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = NewError(KindNotFound, "GC-REQ-4040", "requested resource does not exist")

	// ErrRequestFailed is the generic business failure.
	ErrRequestFailed = NewError(KindBusiness, "GC-REQ-4220", "request failed")

	// ErrMalformedResponse indicates a 2xx reply that is not a valid envelope.
	ErrMalformedResponse = NewError(KindUnknown, "GC-REQ-5020", "malformed response from server")
)

// ============================================================================
// System errors (SYS)
// ============================================================================

var (
	// ErrServerFault indicates an internal error on the service side.
	ErrServerFault = NewError(KindServerFault, "GC-SYS-5000", "internal server error")

	// ErrUnknown is used when no better classification exists.
	ErrUnknown = NewError(KindUnknown, "GC-SYS-9999", "request failed")
)

// StatusError builds the generic "request failed (status N)" error.
func StatusError(status int, message string) *Error {
	if message == "" {
		message = fmt.Sprintf("request failed (status %d)", status)
	}
	return ErrUnknown.WithMessage(message).WithStatus(status)
}
