package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AllocationLine records one invoice payment made during an allocation.
type AllocationLine struct {
	InvoiceStatus InvoiceStatus
	Amount        decimal.Decimal
	InvoiceID     int64
}

// AllocationResult describes how a credited amount was applied against a
// member's invoices and wallet.
type AllocationResult struct {
	AllocatedAt      time.Time
	SourceRef        string
	Lines            []AllocationLine
	TotalApplied     decimal.Decimal
	WalletCredit     decimal.Decimal
	MemberID         int64
	AlreadyProcessed bool
}
