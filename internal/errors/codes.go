// Package errors provides structured error handling for codequery.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Store errors
//   - 3XX: Dependency errors (embedding, retrievers, reranker)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStore indicates store registry and index errors.
	CategoryStore Category = "STORE"
	// CategoryDependency indicates external collaborator errors.
	CategoryDependency Category = "DEPENDENCY"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Store errors (200-299)
	ErrCodeStoreNotFound = "ERR_201_STORE_NOT_FOUND"
	ErrCodeStoreClosed   = "ERR_202_STORE_CLOSED"
	ErrCodeCorruptIndex  = "ERR_203_CORRUPT_INDEX"

	// Dependency errors (300-399)
	ErrCodeDependencyUnavailable = "ERR_301_DEPENDENCY_UNAVAILABLE"
	ErrCodeEmbeddingFailed       = "ERR_302_EMBEDDING_FAILED"
	ErrCodeRerankFailed          = "ERR_303_RERANK_FAILED"
	ErrCodeDeadlineExceeded      = "ERR_304_DEADLINE_EXCEEDED"

	// Validation errors (400-499)
	ErrCodeInvalidQuery  = "ERR_401_INVALID_QUERY"
	ErrCodeInvalidFilter = "ERR_402_INVALID_FILTER"
	ErrCodeInvalidTopK   = "ERR_403_INVALID_TOP_K"
	ErrCodeCancelled     = "ERR_408_CANCELLED"

	// Internal errors (500-599)
	ErrCodeInternal     = "ERR_501_INTERNAL"
	ErrCodeSearchFailed = "ERR_502_SEARCH_FAILED"
)

// PublicCode is the transport-facing error code used in the uniform
// {code, message, details?} payload across HTTP, WebSocket, and agent bindings.
type PublicCode string

const (
	PublicInvalidQuery          PublicCode = "InvalidQuery"
	PublicStoreNotFound         PublicCode = "StoreNotFound"
	PublicDependencyUnavailable PublicCode = "DependencyUnavailable"
	PublicCancelled             PublicCode = "Cancelled"
	PublicInternal              PublicCode = "Internal"
)

// publicFromCode maps internal error codes to transport codes.
func publicFromCode(code string) PublicCode {
	switch code {
	case ErrCodeInvalidQuery, ErrCodeInvalidFilter, ErrCodeInvalidTopK:
		return PublicInvalidQuery
	case ErrCodeStoreNotFound:
		return PublicStoreNotFound
	case ErrCodeDependencyUnavailable, ErrCodeEmbeddingFailed,
		ErrCodeRerankFailed, ErrCodeDeadlineExceeded:
		return PublicDependencyUnavailable
	case ErrCodeCancelled:
		return PublicCancelled
	default:
		return PublicInternal
	}
}

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStore
	case '3':
		return CategoryDependency
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex:
		return SeverityFatal
	}
	if isRetryableCode(code) {
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeDependencyUnavailable, ErrCodeEmbeddingFailed,
		ErrCodeRerankFailed, ErrCodeDeadlineExceeded:
		return true
	default:
		return false
	}
}
