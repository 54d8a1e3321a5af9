package domain

import (
	"errors"
	"fmt"
)

// ErrKind is used to map domain errors to HTTP status codes consistently.
type ErrKind string

const (
	KindValidation     ErrKind = "validation"     // 400
	KindAuth           ErrKind = "auth"           // 401
	KindForbidden      ErrKind = "forbidden"      // 403
	KindNotFound       ErrKind = "not_found"      // 404
	KindConflict       ErrKind = "conflict"       // 409
	KindRateLimited    ErrKind = "rate_limited"   // 429
	KindInfrastructure ErrKind = "infrastructure" // 503
	KindInternal       ErrKind = "internal"       // 500
)

// Error is a structured domain error.
// - Kind: high-level category for HTTP mapping
// - Code: stable machine code (do not change casually)
// - Message: safe summary for clients (avoid leaking sensitive details)
// - Meta: optional details (field, reason, etc.)
// - Cause: wrapped internal error for logging/diagnostics
type Error struct {
	Kind    ErrKind
	Code    string
	Message string
	Meta    map[string]string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Kind, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(kind ErrKind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

func Wrap(kind ErrKind, code, msg string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Cause: cause}
}

func WithMeta(err *Error, meta map[string]string) *Error {
	err.Meta = meta
	return err
}

func Is(err error, code string) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// ----------------------
// Credential verification (401)
// ----------------------

// IMPORTANT: every verifier failure collapses to "no identity" at the auth
// boundary; these codes exist for logging, never for client responses.

func ErrMissingEmail() *Error {
	return New(KindAuth, "missing_email", "no email in credential")
}

func ErrInvalidEmailFormat(reason string) *Error {
	return WithMeta(New(KindAuth, "invalid_email_format", "invalid email format"), map[string]string{
		"reason": reason,
	})
}

func ErrInvalidToken(cause error) *Error {
	return Wrap(KindAuth, "invalid_token", "token verification failed", cause)
}

func ErrSessionMissing() *Error {
	return New(KindAuth, "session_missing", "no session")
}

func ErrSessionInvalid() *Error {
	return New(KindAuth, "session_invalid", "invalid session")
}

func ErrUnsupportedProvider(id string) *Error {
	return WithMeta(New(KindValidation, "unsupported_provider", "unknown or disabled provider"), map[string]string{
		"provider": id,
	})
}

func ErrInvalidState() *Error {
	return New(KindAuth, "invalid_state", "invalid or expired sign-in state")
}

// ----------------------
// Provisioning
// ----------------------

// ErrProvisioningFailed is an authentication failure from the caller's point
// of view: a half-provisioned identity must never be signed in.
func ErrProvisioningFailed(cause error) *Error {
	return Wrap(KindAuth, "provisioning_failed", "sign-in failed", cause)
}

func ErrUserNotFound() *Error {
	return New(KindNotFound, "user_not_found", "user not found")
}

func ErrEmailAlreadyExists() *Error {
	return New(KindConflict, "email_already_exists", "email already registered")
}

// ----------------------
// Request gate (403)
// ----------------------

// ErrHeaderBypass marks a request that reached the application without the
// trusted proxy's identity headers while header-trust mode is enabled.
func ErrHeaderBypass() *Error {
	return New(KindForbidden, "header_bypass", "forbidden")
}

// ----------------------
// Validation / plumbing
// ----------------------

func ErrRateLimited() *Error {
	return New(KindRateLimited, "rate_limited", "too many requests")
}

func ErrMissingField(field string) *Error {
	return WithMeta(New(KindValidation, "missing_field", "missing required field"), map[string]string{
		"field": field,
	})
}

// ----------------------
// Infrastructure / internal (5xx)
// ----------------------

func ErrDBUnavailable(cause error) *Error {
	return Wrap(KindInfrastructure, "db_unavailable", "database unavailable", cause)
}

func ErrTokenSignFailed(cause error) *Error {
	return Wrap(KindInternal, "token_sign_failed", "token signing failed", cause)
}

func ErrInternal(cause error) *Error {
	return Wrap(KindInternal, "internal_error", "internal error", cause)
}
