// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Extraction errors.
	ErrExtractionFailed   = errors.New("extraction failed")
	ErrUnsupportedFormat  = errors.New("unsupported statement format")
	ErrNoRowsExtracted    = errors.New("no transactions extracted from statement")
	ErrStatementNotReady  = errors.New("statement is not in a processable state")
	ErrStatementUploaded  = errors.New("statement already uploaded")
	ErrStatementProcessed = errors.New("statement already processed")

	// Allocation errors.
	ErrUnknownMember     = errors.New("unknown member")
	ErrNonPositiveAmount = errors.New("allocation amount must be positive")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// RetryableError wraps an error with retry-specific metadata.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}
