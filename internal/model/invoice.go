package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus is derived from how much of the invoice has been paid.
type InvoiceStatus string

// Invoice payment states.
const (
	InvoicePending InvoiceStatus = "pending"
	InvoicePartial InvoiceStatus = "partial"
	InvoicePaid    InvoiceStatus = "paid"
)

// Invoice is a billed amount owed by a member for a period.
// AmountPaid never exceeds AmountDue.
type Invoice struct {
	DueDate    time.Time
	CreatedAt  time.Time
	Period     string
	Status     InvoiceStatus
	AmountDue  decimal.Decimal
	AmountPaid decimal.Decimal
	ID         int64
	MemberID   int64
}

// Remaining returns the unpaid balance on the invoice.
func (i *Invoice) Remaining() decimal.Decimal {
	return i.AmountDue.Sub(i.AmountPaid)
}

// DeriveStatus computes the status from the paid amount.
func (i *Invoice) DeriveStatus() InvoiceStatus {
	switch {
	case i.AmountPaid.GreaterThanOrEqual(i.AmountDue):
		return InvoicePaid
	case i.AmountPaid.IsPositive():
		return InvoicePartial
	default:
		return InvoicePending
	}
}
