package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unified error code across the framework.
type ErrorCode string

// Session error codes
const (
	ErrConfiguration    ErrorCode = "CONFIGURATION_ERROR"
	ErrParse            ErrorCode = "PARSE_ERROR"
	ErrValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrValidationFatal  ErrorCode = "VALIDATION_FATAL"
	ErrSessionCancelled ErrorCode = "SESSION_CANCELLED"
	ErrCallClosed       ErrorCode = "CALL_CLOSED"
)

// Backend error codes
const (
	ErrTransport          ErrorCode = "TRANSPORT_ERROR"
	ErrRateLimit          ErrorCode = "RATE_LIMIT"
	ErrUpstreamTimeout    ErrorCode = "UPSTREAM_TIMEOUT"
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrBackendNotSet      ErrorCode = "BACKEND_NOT_SET"
	ErrCircuitOpen        ErrorCode = "CIRCUIT_OPEN"
)

// Store error codes
const (
	ErrStoreClosed   ErrorCode = "STORE_CLOSED"
	ErrStoreNotFound ErrorCode = "STORE_NOT_FOUND"
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Provider  string    `json:"provider,omitempty"`
	Path      string    `json:"path,omitempty"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// WithPath sets the schema path the error refers to.
func (e *Error) WithPath(path string) *Error {
	e.Path = path
	return e
}

// AsError unwraps err looking for a *Error.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// IsErrorCode reports whether err carries the given code.
func IsErrorCode(err error, code ErrorCode) bool {
	return err != nil && GetErrorCode(err) == code
}

// NewConfigurationError creates a configuration error.
func NewConfigurationError(message string) *Error {
	return NewError(ErrConfiguration, message)
}

// NewMissingMetadataError lists every missing key in one message.
func NewMissingMetadataError(keys []string) *Error {
	return NewConfigurationError("Missing required metadata keys: " + strings.Join(keys, ", "))
}

// NewTransportError wraps a backend failure.
func NewTransportError(provider string, cause error) *Error {
	return NewError(ErrTransport, "backend request failed").
		WithProvider(provider).
		WithCause(cause)
}

// IsConfigurationError reports whether err is a configuration error.
func IsConfigurationError(err error) bool {
	return IsErrorCode(err, ErrConfiguration)
}
