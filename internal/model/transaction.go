package model

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AssignmentStatus records how (or whether) a transaction was tied to a member.
type AssignmentStatus string

// Assignment states.
const (
	AssignmentUnmatched AssignmentStatus = "unmatched"
	AssignmentAuto      AssignmentStatus = "auto_assigned"
	AssignmentManual    AssignmentStatus = "manually_assigned"
	AssignmentDuplicate AssignmentStatus = "duplicate"
)

// Transaction represents a single extracted line item from a bank statement.
type Transaction struct {
	Date             time.Time
	MemberID         *int64
	ID               string
	StatementID      string
	ExternalID       string
	Description      string
	TransactionCode  string
	RowHash          string
	MatchReason      string
	AssignmentStatus AssignmentStatus
	Phones           []string
	Credit           decimal.Decimal
	Debit            decimal.Decimal
	Balance          decimal.Decimal
	MatchConfidence  float64
}

// Fingerprint creates the duplicate-detection key for this transaction.
// When the extractor supplied an external identifier that wins; otherwise the
// key is date + normalized description + exact credit/debit amounts.
func (t *Transaction) Fingerprint() string {
	if t.ExternalID != "" {
		return fmt.Sprintf("ext:%s", t.ExternalID)
	}
	data := fmt.Sprintf("%s|%s|%s|%s",
		t.Date.Format("2006-01-02"),
		NormalizeDescription(t.Description),
		t.Credit.StringFixed(2),
		t.Debit.StringFixed(2))
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// NormalizeDescription collapses whitespace and upper-cases free text so that
// cosmetically different extractions of the same row fingerprint identically.
func NormalizeDescription(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}
