package keel

import (
	"errors"
	"net/http"
)

// ErrorKind classifies engine failures for transport mapping.
type ErrorKind string

const (
	KindUnauthorized ErrorKind = "unauthorized"
	KindForbidden    ErrorKind = "forbidden"
	KindLocked       ErrorKind = "locked"
	KindConflict     ErrorKind = "conflict"
	KindNotFound     ErrorKind = "not_found"
	KindBadRequest   ErrorKind = "bad_request"
	KindEmailFailed  ErrorKind = "email_delivery_failed"
	KindInternal     ErrorKind = "internal"
)

// Error is the engine's failure type. Operational errors carry a message
// safe to show verbatim to the client; everything else must surface only as
// a generic internal error.
type Error struct {
	Kind        ErrorKind
	Message     string
	HTTPStatus  int
	Operational bool
	cause       error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error of the same kind, so wrapped causes keep working
// with errors.Is against the package sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && t.Message == e.Message
}

func newError(kind ErrorKind, status int, msg string, operational bool) *Error {
	return &Error{Kind: kind, Message: msg, HTTPStatus: status, Operational: operational}
}

// wrapErr attaches a cause to a sentinel without losing errors.Is identity.
func wrapErr(sentinel *Error, cause error) error {
	if cause == nil {
		return sentinel
	}
	return &Error{
		Kind:        sentinel.Kind,
		Message:     sentinel.Message,
		HTTPStatus:  sentinel.HTTPStatus,
		Operational: sentinel.Operational,
		cause:       cause,
	}
}

var (
	// ErrInvalidCredentials deliberately does not say which field was wrong.
	ErrInvalidCredentials = newError(KindUnauthorized, http.StatusUnauthorized, "Invalid email or password", true)

	// ErrTokenInvalid covers every access/refresh token failure class.
	ErrTokenInvalid = newError(KindUnauthorized, http.StatusUnauthorized, "Invalid or expired token", true)

	// ErrVerificationTokenInvalid covers missing, mismatched, and expired
	// email-verification tokens alike.
	ErrVerificationTokenInvalid = newError(KindForbidden, http.StatusForbidden, "Invalid or expired verification token", true)

	// ErrResetTokenInvalid covers missing, mismatched, and expired
	// password-reset tokens alike.
	ErrResetTokenInvalid = newError(KindForbidden, http.StatusForbidden, "Invalid or expired password reset token", true)

	ErrAccountUnverified = newError(KindForbidden, http.StatusForbidden, "Email address is not verified", true)

	// ErrOAuthOnlyAccount is returned for password login against an account
	// created through a provider. The message points at the recovery path.
	ErrOAuthOnlyAccount = newError(KindForbidden, http.StatusForbidden, "This account uses social login; use password reset to set a password", true)

	ErrAccountLocked = newError(KindLocked, http.StatusLocked, "Account is temporarily locked due to repeated failed login attempts", true)

	ErrAccountExists = newError(KindConflict, http.StatusConflict, "An account with this email or phone already exists", true)

	// ErrPendingEmailTaken rejects promoting a pending email another account
	// has since claimed.
	ErrPendingEmailTaken = newError(KindConflict, http.StatusConflict, "Email address is already in use by another account", true)

	ErrAccountNotFound = newError(KindNotFound, http.StatusNotFound, "Account not found", true)

	ErrSessionNotFound = newError(KindNotFound, http.StatusNotFound, "Session not found", true)

	ErrLoginCodeInvalid = newError(KindBadRequest, http.StatusBadRequest, "Invalid or expired login code", true)

	// ErrInvalidInput re-checks shape invariants the core owns; schema
	// validation proper happens upstream.
	ErrInvalidInput = newError(KindBadRequest, http.StatusBadRequest, "Invalid request", true)

	// ErrOAuthEmailMissing is returned when a provider yields no usable email.
	ErrOAuthEmailMissing = newError(KindBadRequest, http.StatusBadRequest, "No email address available from provider", true)

	ErrEmailDelivery = newError(KindEmailFailed, http.StatusBadGateway, "Failed to send email", true)

	ErrInternal = newError(KindInternal, http.StatusInternalServerError, "Internal Server Error", false)

	// ErrEngineNotReady signals a wiring bug, not a runtime condition.
	ErrEngineNotReady = newError(KindInternal, http.StatusInternalServerError, "engine not ready", false)
)

// Envelope is the response shape the HTTP layer emits.
type Envelope struct {
	Status string      `json:"status"`
	Code   int         `json:"code"`
	Msg    string      `json:"msg"`
	Data   interface{} `json:"data,omitempty"`
}

// SuccessEnvelope builds the success response shape.
func SuccessEnvelope(code int, msg string, data interface{}) Envelope {
	return Envelope{Status: "success", Code: code, Msg: msg, Data: data}
}

// ErrorEnvelope maps any error to the client-facing envelope. Operational
// errors pass their message through; everything else collapses to a generic
// 500 so internal detail never leaks.
func ErrorEnvelope(err error) Envelope {
	var e *Error
	if errors.As(err, &e) && e.Operational {
		return Envelope{Status: "error", Code: e.HTTPStatus, Msg: e.Message}
	}
	return Envelope{Status: "error", Code: http.StatusInternalServerError, Msg: "Internal Server Error"}
}

// internalErr wraps an unexpected failure so it surfaces as a generic 500.
func internalErr(cause error) error {
	return wrapErr(ErrInternal, cause)
}
