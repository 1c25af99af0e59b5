package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mchanga/chamaflow/internal/common"
	"github.com/mchanga/chamaflow/internal/model"
)

// CreateInvoice inserts a new invoice and backfills its generated id.
func (s *SQLiteStorage) CreateInvoice(ctx context.Context, invoice *model.Invoice) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateInvoice(invoice); err != nil {
		return err
	}
	return s.createInvoiceTx(ctx, s.db, invoice)
}

func (s *SQLiteStorage) createInvoiceTx(ctx context.Context, q queryable, invoice *model.Invoice) error {
	if invoice.Status == "" {
		invoice.Status = invoice.DeriveStatus()
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO invoices (member_id, amount_due, amount_paid, status, due_date, period)
		VALUES (?, ?, ?, ?, ?, ?)
	`, invoice.MemberID, invoice.AmountDue.String(), invoice.AmountPaid.String(), string(invoice.Status), invoice.DueDate, invoice.Period)
	if err != nil {
		return fmt.Errorf("failed to insert invoice for member %d: %w", invoice.MemberID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get invoice id: %w", err)
	}
	invoice.ID = id
	return nil
}

// GetInvoice fetches an invoice by id.
func (s *SQLiteStorage) GetInvoice(ctx context.Context, id int64) (*model.Invoice, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getInvoiceTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getInvoiceTx(ctx context.Context, q queryable, id int64) (*model.Invoice, error) {
	row := q.QueryRowContext(ctx, invoiceSelect+` WHERE id = ?`, id)
	invoice, err := scanInvoiceRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("invoice %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// GetOutstandingInvoices returns a member's unpaid invoices ordered oldest
// due date first with creation order as tie-break, the order allocation
// consumes them in.
func (s *SQLiteStorage) GetOutstandingInvoices(ctx context.Context, memberID int64) ([]model.Invoice, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getOutstandingInvoicesTx(ctx, s.db, memberID)
}

func (s *SQLiteStorage) getOutstandingInvoicesTx(ctx context.Context, q queryable, memberID int64) ([]model.Invoice, error) {
	rows, err := q.QueryContext(ctx, invoiceSelect+`
		WHERE member_id = ? AND status IN ('pending', 'partial')
		ORDER BY due_date ASC, id ASC
	`, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outstanding invoices: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var invoices []model.Invoice
	for rows.Next() {
		invoice, scanErr := scanInvoiceRow(rows.Scan)
		if scanErr != nil {
			return nil, scanErr
		}
		invoices = append(invoices, *invoice)
	}
	return invoices, rows.Err()
}

// UpdateInvoicePayment sets an invoice's paid amount and derived status.
func (s *SQLiteStorage) UpdateInvoicePayment(ctx context.Context, id int64, amountPaid decimal.Decimal, status model.InvoiceStatus) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.updateInvoicePaymentTx(ctx, s.db, id, amountPaid, status)
}

func (s *SQLiteStorage) updateInvoicePaymentTx(ctx context.Context, q queryable, id int64, amountPaid decimal.Decimal, status model.InvoiceStatus) error {
	result, err := q.ExecContext(ctx, `
		UPDATE invoices SET amount_paid = ?, status = ? WHERE id = ?
	`, amountPaid.String(), string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update invoice %d: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("invoice %d: %w", id, common.ErrNotFound)
	}
	return nil
}

// HasInvoiceForPeriod reports whether the member was already billed for the
// given period, making scheduled generation idempotent.
func (s *SQLiteStorage) HasInvoiceForPeriod(ctx context.Context, memberID int64, period string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateString(period, "period"); err != nil {
		return false, err
	}
	return s.hasInvoiceForPeriodTx(ctx, s.db, memberID, period)
}

func (s *SQLiteStorage) hasInvoiceForPeriodTx(ctx context.Context, q queryable, memberID int64, period string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM invoices WHERE member_id = ? AND period = ?
	`, memberID, period).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count invoices: %w", err)
	}
	return count > 0, nil
}

const invoiceSelect = `
	SELECT id, member_id, amount_due, amount_paid, status, due_date, period, created_at
	FROM invoices`

func scanInvoiceRow(scan func(...any) error) (*model.Invoice, error) {
	var invoice model.Invoice
	var due, paid, status string

	err := scan(&invoice.ID, &invoice.MemberID, &due, &paid, &status, &invoice.DueDate, &invoice.Period, &invoice.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan invoice: %w", err)
	}

	if invoice.AmountDue, err = parseAmount(due); err != nil {
		return nil, fmt.Errorf("invalid amount due %q: %w", due, err)
	}
	if invoice.AmountPaid, err = parseAmount(paid); err != nil {
		return nil, fmt.Errorf("invalid amount paid %q: %w", paid, err)
	}
	invoice.Status = model.InvoiceStatus(status)
	return &invoice, nil
}
