// Package errors provides structured error types for the storelabs workloads.
// All errors include a category, code, message, and retryable flag so callers
// can branch on what failed without string matching.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by the layer that produced them.
type ErrorCategory string

const (
	ErrCategoryValidation ErrorCategory = "VALIDATION"
	ErrCategoryConnection ErrorCategory = "CONNECTION"
	ErrCategoryStorage    ErrorCategory = "STORAGE"
	ErrCategoryQuery      ErrorCategory = "QUERY"
	ErrCategoryLoad       ErrorCategory = "LOAD"
	ErrCategoryInternal   ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeInvalidConfiguration = "INVALID_CONFIGURATION"
	CodeMalformedRecord      = "MALFORMED_RECORD"

	// Connection codes
	CodeConnectFailed = "CONNECT_FAILED"

	// Storage codes
	CodeUploadFailed   = "UPLOAD_FAILED"
	CodeDownloadFailed = "DOWNLOAD_FAILED"
	CodeObjectNotFound = "OBJECT_NOT_FOUND"

	// Query codes
	CodeQueryFailed = "QUERY_FAILED"
	CodeNotFound    = "NOT_FOUND"

	// Load codes
	CodeLoadFailed = "LOAD_FAILED"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// LabError is the structured error type used throughout the system.
type LabError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *LabError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *LabError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *LabError) Is(target error) bool {
	var t *LabError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new LabError.
func New(category ErrorCategory, code, message string) *LabError {
	return &LabError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Wrap creates a new LabError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *LabError {
	return &LabError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *LabError) WithDetails(details map[string]interface{}) *LabError {
	cp := *e
	cp.Details = details
	return &cp
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var le *LabError
	if errors.As(err, &le) {
		return le.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a LabError.
func GetCategory(err error) ErrorCategory {
	var le *LabError
	if errors.As(err, &le) {
		return le.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a LabError.
func GetCode(err error) string {
	var le *LabError
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryConnection && code == CodeConnectFailed:
		return true
	case category == ErrCategoryStorage && code == CodeUploadFailed:
		return true
	case category == ErrCategoryStorage && code == CodeDownloadFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewInvalidConfiguration(format string, args ...interface{}) *LabError {
	return New(ErrCategoryValidation, CodeInvalidConfiguration, fmt.Sprintf(format, args...))
}

func NewMalformedRecord(message string, cause error) *LabError {
	return Wrap(ErrCategoryValidation, CodeMalformedRecord, message, cause)
}

func NewConnectionError(message string, cause error) *LabError {
	return Wrap(ErrCategoryConnection, CodeConnectFailed, message, cause)
}

func NewStorageError(code, message string, cause error) *LabError {
	return Wrap(ErrCategoryStorage, code, message, cause)
}

func NewQueryError(message string, cause error) *LabError {
	return Wrap(ErrCategoryQuery, CodeQueryFailed, message, cause)
}

func NewLoadError(message string, cause error) *LabError {
	return Wrap(ErrCategoryLoad, CodeLoadFailed, message, cause)
}

func NewInternalError(message string, cause error) *LabError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
