package types

import (
	"errors"
	"fmt"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants for the alert engine. Components MUST use these
// constants instead of hardcoded strings so callers can branch on failure
// class programmatically.
const (
	// Configuration: a required setting is absent or malformed. Fatal to any
	// token acquisition or delivery attempt.
	ErrCodeConfigMissing ErrorCode = "config_missing_values"
	ErrCodeConfigInvalid ErrorCode = "config_invalid"

	// Authentication: the token endpoint rejected the request, returned no
	// usable token, or was unreachable.
	ErrCodeAuthTokenFailed ErrorCode = "auth_token_failed"

	// Delivery: the integration endpoint returned a terminal status or the
	// request failed at the network level.
	ErrCodeDeliveryFailed      ErrorCode = "delivery_failed"
	ErrCodeUpstreamUnavailable ErrorCode = "upstream_unavailable"

	// Storage: the local history store failed.
	ErrCodeStorage ErrorCode = "storage_error"

	// Internal: a bug surfaced (recovered panic, impossible state).
	ErrCodeInternal ErrorCode = "internal_unexpected_error"
)

// AppError is the standard application error type. Domain failures are
// expressed as AppError so that error class survives wrapping and the
// delivery pipeline can map failures onto structured results.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// CodeOf extracts the ErrorCode from err if it is (or wraps) an AppError.
// Returns ErrCodeInternal for anything else.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}
