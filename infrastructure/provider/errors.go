package provider

import (
	"errors"
	"net/http"
)

// User-facing messages for provider failures.
const (
	MessageRateLimited = "Rate limits exceeded, please try again later."
	MessageAuthFailed  = "API key invalid or quota exceeded. Please check your API key."
	MessageGeneric     = "AI provider error"
)

// ProviderError wraps provider errors with additional context.
type ProviderError struct {
	operation  string
	statusCode int
	message    string
	cause      error
}

// NewProviderError creates a new ProviderError.
func NewProviderError(operation string, statusCode int, message string, cause error) *ProviderError {
	return &ProviderError{
		operation:  operation,
		statusCode: statusCode,
		message:    message,
		cause:      cause,
	}
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.cause != nil {
		return e.operation + ": " + e.message + ": " + e.cause.Error()
	}
	return e.operation + ": " + e.message
}

// Unwrap returns the underlying cause.
func (e *ProviderError) Unwrap() error { return e.cause }

// Operation returns the operation that failed.
func (e *ProviderError) Operation() string { return e.operation }

// StatusCode returns the HTTP status code if available.
func (e *ProviderError) StatusCode() int { return e.statusCode }

// Message returns the error message.
func (e *ProviderError) Message() string { return e.message }

// IsRateLimited returns true if the error is due to rate limiting.
func (e *ProviderError) IsRateLimited() bool { return e.statusCode == http.StatusTooManyRequests }

// IsAuthFailure returns true for rejected or exhausted credentials.
func (e *ProviderError) IsAuthFailure() bool {
	return e.statusCode == http.StatusUnauthorized || e.statusCode == http.StatusForbidden
}

// Retryable reports whether the status is worth retrying.
func (e *ProviderError) Retryable() bool {
	return e.statusCode == http.StatusTooManyRequests || e.statusCode >= 500
}

// ErrorText maps any provider failure to the text shown to users.
func ErrorText(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		switch {
		case pe.IsRateLimited():
			return MessageRateLimited
		case pe.IsAuthFailure():
			return MessageAuthFailed
		}
	}
	return MessageGeneric
}
