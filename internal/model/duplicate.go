package model

import "time"

// Duplicate reasons.
const (
	DuplicateCrossStatement = "cross_statement"
	DuplicateIntraStatement = "intra_statement"
)

// DuplicateRecord links a re-occurring transaction to the original row it
// duplicates. Duplicates stay visible for audit but are excluded from
// matching, allocation, and financial totals.
type DuplicateRecord struct {
	RecordedAt             time.Time
	StatementID            string
	OriginalTransactionID  string
	DuplicateTransactionID string
	Reason                 string
	ID                     int64
}
