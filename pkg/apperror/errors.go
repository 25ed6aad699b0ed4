package apperror

import (
	"fmt"
	"net/http"
)

// Public error codes surfaced in API responses.
const (
	CodeValidation      = "validation"
	CodeUnauthenticated = "unauthenticated"
	CodeForbidden       = "forbidden"
	CodeNotFound        = "not_found"
	CodeConflict        = "conflict"
	CodeRateLimited     = "rate_limited"
	CodeInternal        = "internal"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails attaches client-visible detail data (e.g. field errors).
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// Validation reports malformed input: bad JSON, missing fields, bad amounts.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

// Unauthenticated reports a missing or invalid credential.
func Unauthenticated(message string) *AppError {
	return New(CodeUnauthenticated, message, http.StatusUnauthorized)
}

// ErrInvalidCredentials is the single generic failure for bad API keys and
// bad logins. Unknown key, inactive key and wrong secret all collapse here.
func ErrInvalidCredentials() *AppError {
	return Unauthenticated("invalid credentials")
}

// ErrInvalidToken reports a missing, malformed or expired bearer token.
func ErrInvalidToken() *AppError {
	return Unauthenticated("invalid or expired token")
}

// Forbidden reports a role mismatch or cross-tenant access.
func Forbidden(message string) *AppError {
	return New(CodeForbidden, message, http.StatusForbidden)
}

// NotFound reports an unknown reference.
func NotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// Conflict reports a state-machine violation, an idempotency-key reuse with a
// differing body, or a concurrent update that lost the race.
func Conflict(message string) *AppError {
	return New(CodeConflict, message, http.StatusConflict)
}

// RateLimited reports request throttling.
func RateLimited() *AppError {
	return New(CodeRateLimited, "rate limit exceeded", http.StatusTooManyRequests)
}

// InternalError wraps an unexpected failure. The wrapped cause is logged,
// never returned to the client.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "internal server error", http.StatusInternalServerError, err)
}
