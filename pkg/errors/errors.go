// Package errors provides standardized error types for the benchmark toolkit.
package errors

import (
	"errors"
	"fmt"
)

// Error codes shared across engines, storage, and catalog access.
const (
	CodeInvalidConfig    = "INVALID_CONFIG"
	CodeInvalidWorkload  = "INVALID_WORKLOAD"
	CodeNotFound         = "NOT_FOUND"
	CodeQueryFailed      = "QUERY_FAILED"
	CodeConnectionFailed = "CONNECTION_FAILED"
	CodeCatalogFailed    = "CATALOG_FAILED"
	CodeIndexFailed      = "INDEX_FAILED"
	CodeReportFailed     = "REPORT_FAILED"
	CodeInternal         = "INTERNAL_ERROR"
	CodeDeadlineExceeded = "DEADLINE_EXCEEDED"
	CodeCanceled         = "CANCELED"
)

// BenchError represents a toolkit error with a code and an optional cause.
type BenchError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

// Error implements the error interface.
func (e *BenchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *BenchError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison.
func (e *BenchError) Is(target error) bool {
	t, ok := target.(*BenchError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// ErrEmptyWorkload is returned when a query set yields no queries.
var ErrEmptyWorkload = &BenchError{Code: CodeInvalidWorkload, Message: "workload contains no queries"}

// New creates a new BenchError with the given code and message.
func New(code, message string) *BenchError {
	return &BenchError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new BenchError with a formatted message.
func Newf(code, format string, args ...interface{}) *BenchError {
	return &BenchError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an error with a BenchError.
func Wrap(err error, code, message string) *BenchError {
	if err == nil {
		return nil
	}
	return &BenchError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, code, format string, args ...interface{}) *BenchError {
	if err == nil {
		return nil
	}
	return &BenchError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// GetCode extracts the error code from an error.
func GetCode(err error) string {
	var benchErr *BenchError
	if errors.As(err, &benchErr) {
		return benchErr.Code
	}
	return CodeInternal
}
