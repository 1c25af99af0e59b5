// Package model defines the core domain types shared across the application.
package model

import "time"

// StatementStatus tracks a statement through its processing lifecycle.
type StatementStatus string

// Statement lifecycle states.
const (
	StatementUploaded   StatementStatus = "uploaded"
	StatementProcessing StatementStatus = "processing"
	StatementCompleted  StatementStatus = "completed"
	StatementFailed     StatementStatus = "failed"
)

// IsValid reports whether the status is one of the known lifecycle states.
func (s StatementStatus) IsValid() bool {
	switch s {
	case StatementUploaded, StatementProcessing, StatementCompleted, StatementFailed:
		return true
	}
	return false
}

// Terminal reports whether the statement run has finished, successfully or not.
func (s StatementStatus) Terminal() bool {
	return s == StatementCompleted || s == StatementFailed
}

// Statement represents one uploaded bank document and its processing state.
type Statement struct {
	UploadedAt   time.Time
	ID           string
	SourceHash   string
	FilePath     string
	ErrorMessage string
	Status       StatementStatus
}
