// Package storage provides the data persistence layer for the reconciliation
// pipeline.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mchanga/chamaflow/internal/model"
)

// Validation errors.
var (
	ErrNilContext         = errors.New("context cannot be nil")
	ErrEmptyString        = errors.New("string parameter cannot be empty")
	ErrNilParameter       = errors.New("parameter cannot be nil")
	ErrEmptySlice         = errors.New("slice cannot be empty")
	ErrInvalidStatement   = errors.New("invalid statement")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrInvalidMember      = errors.New("invalid member")
	ErrInvalidInvoice     = errors.New("invalid invoice")
	ErrInvalidStatus      = errors.New("invalid status")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateStatement(statement *model.Statement) error {
	if statement == nil {
		return fmt.Errorf("%w: statement", ErrNilParameter)
	}
	if statement.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidStatement)
	}
	if statement.FilePath == "" {
		return fmt.Errorf("%w: missing file path", ErrInvalidStatement)
	}
	if !statement.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, statement.Status)
	}
	return nil
}

func validateTransactions(transactions []model.Transaction) error {
	if transactions == nil {
		return fmt.Errorf("%w: transactions", ErrNilParameter)
	}
	if len(transactions) == 0 {
		return fmt.Errorf("%w: transactions", ErrEmptySlice)
	}

	for i := range transactions {
		if err := validateTransaction(&transactions[i]); err != nil {
			return fmt.Errorf("transaction at index %d: %w", i, err)
		}
	}
	return nil
}

func validateTransaction(txn *model.Transaction) error {
	if txn == nil {
		return fmt.Errorf("%w: transaction", ErrNilParameter)
	}
	if txn.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidTransaction)
	}
	if txn.StatementID == "" {
		return fmt.Errorf("%w: missing statement ID", ErrInvalidTransaction)
	}
	if txn.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTransaction)
	}
	return nil
}

func validateMembers(members []model.Member) error {
	if members == nil {
		return fmt.Errorf("%w: members", ErrNilParameter)
	}
	if len(members) == 0 {
		return fmt.Errorf("%w: members", ErrEmptySlice)
	}
	for i := range members {
		if strings.TrimSpace(members[i].Name) == "" {
			return fmt.Errorf("member at index %d: %w: missing name", i, ErrInvalidMember)
		}
	}
	return nil
}

func validateInvoice(invoice *model.Invoice) error {
	if invoice == nil {
		return fmt.Errorf("%w: invoice", ErrNilParameter)
	}
	if invoice.MemberID == 0 {
		return fmt.Errorf("%w: missing member ID", ErrInvalidInvoice)
	}
	if !invoice.AmountDue.IsPositive() {
		return fmt.Errorf("%w: amount due must be positive", ErrInvalidInvoice)
	}
	if invoice.AmountPaid.GreaterThan(invoice.AmountDue) {
		return fmt.Errorf("%w: amount paid exceeds amount due", ErrInvalidInvoice)
	}
	return nil
}
