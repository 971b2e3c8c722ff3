package errors

import (
	"fmt"
)

// QueryError is the structured error type for codequery.
// It provides rich context for error handling, logging, and transport mapping.
type QueryError struct {
	// Code is the unique error code (e.g., "ERR_201_STORE_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Store, Dependency, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *QueryError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with QueryError.
func (e *QueryError) Is(target error) bool {
	if t, ok := target.(*QueryError); ok {
		return e.Code == t.Code
	}
	return false
}

// Public returns the transport-facing error code for this error.
func (e *QueryError) Public() PublicCode {
	return publicFromCode(e.Code)
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *QueryError) WithDetail(key, value string) *QueryError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new QueryError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *QueryError {
	return &QueryError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a QueryError from an existing error.
// The error's message becomes the QueryError message.
func Wrap(code string, err error) *QueryError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// InvalidQuery creates a query validation error.
func InvalidQuery(message string) *QueryError {
	return New(ErrCodeInvalidQuery, message, nil)
}

// StoreNotFound creates a store lookup error.
func StoreNotFound(store string) *QueryError {
	return New(ErrCodeStoreNotFound, fmt.Sprintf("store %q does not exist", store), nil).
		WithDetail("store", store)
}

// DependencyUnavailable creates a transient dependency error.
func DependencyUnavailable(dependency string, cause error) *QueryError {
	return New(ErrCodeDependencyUnavailable,
		fmt.Sprintf("dependency %s unavailable", dependency), cause).
		WithDetail("dependency", dependency)
}

// Cancelled creates a cancellation error.
func Cancelled(cause error) *QueryError {
	return New(ErrCodeCancelled, "request cancelled", cause)
}

// Internal creates an internal error.
func Internal(message string, cause error) *QueryError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if qe, ok := err.(*QueryError); ok {
		return qe.Retryable
	}
	return false
}

// GetCode extracts the error code from a QueryError.
// Returns empty string if not a QueryError.
func GetCode(err error) string {
	if qe, ok := err.(*QueryError); ok {
		return qe.Code
	}
	return ""
}

// PublicOf returns the transport code for any error.
// Non-QueryError values map to Internal.
func PublicOf(err error) PublicCode {
	if qe, ok := err.(*QueryError); ok {
		return qe.Public()
	}
	return PublicInternal
}
