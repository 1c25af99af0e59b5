package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mchanga/chamaflow/internal/model"
)

// allocationLine is the persisted shape of one invoice payment within an
// allocation.
type allocationLine struct {
	Status    string `json:"status"`
	Amount    string `json:"amount"`
	InvoiceID int64  `json:"invoice_id"`
}

// GetAllocationBySourceRef returns a previously recorded allocation for the
// given source reference, or nil when none exists. This is the durable
// marker that makes re-allocation idempotent.
func (s *SQLiteStorage) GetAllocationBySourceRef(ctx context.Context, sourceRef string) (*model.AllocationResult, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(sourceRef, "sourceRef"); err != nil {
		return nil, err
	}
	return s.getAllocationBySourceRefTx(ctx, s.db, sourceRef)
}

func (s *SQLiteStorage) getAllocationBySourceRefTx(ctx context.Context, q queryable, sourceRef string) (*model.AllocationResult, error) {
	row := q.QueryRowContext(ctx, `
		SELECT source_ref, member_id, total_applied, wallet_credit, lines, allocated_at
		FROM allocations WHERE source_ref = ?
	`, sourceRef)

	var result model.AllocationResult
	var total, walletCredit, linesJSON string
	err := row.Scan(&result.SourceRef, &result.MemberID, &total, &walletCredit, &linesJSON, &result.AllocatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan allocation: %w", err)
	}

	if result.TotalApplied, err = parseAmount(total); err != nil {
		return nil, fmt.Errorf("invalid total applied %q: %w", total, err)
	}
	if result.WalletCredit, err = parseAmount(walletCredit); err != nil {
		return nil, fmt.Errorf("invalid wallet credit %q: %w", walletCredit, err)
	}

	var lines []allocationLine
	if err := json.Unmarshal([]byte(linesJSON), &lines); err != nil {
		return nil, fmt.Errorf("invalid allocation lines: %w", err)
	}
	result.Lines = make([]model.AllocationLine, len(lines))
	for i, line := range lines {
		amount, amountErr := decimal.NewFromString(line.Amount)
		if amountErr != nil {
			return nil, fmt.Errorf("invalid allocation line amount %q: %w", line.Amount, amountErr)
		}
		result.Lines[i] = model.AllocationLine{
			InvoiceID:     line.InvoiceID,
			Amount:        amount,
			InvoiceStatus: model.InvoiceStatus(line.Status),
		}
	}
	return &result, nil
}

// SaveAllocation records a completed allocation in the journal.
func (s *SQLiteStorage) SaveAllocation(ctx context.Context, result *model.AllocationResult) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if result == nil {
		return fmt.Errorf("%w: result", ErrNilParameter)
	}
	if err := validateString(result.SourceRef, "result.SourceRef"); err != nil {
		return err
	}
	return s.saveAllocationTx(ctx, s.db, result)
}

func (s *SQLiteStorage) saveAllocationTx(ctx context.Context, q queryable, result *model.AllocationResult) error {
	lines := make([]allocationLine, len(result.Lines))
	for i, line := range result.Lines {
		lines[i] = allocationLine{
			InvoiceID: line.InvoiceID,
			Amount:    line.Amount.String(),
			Status:    string(line.InvoiceStatus),
		}
	}
	linesJSON, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("failed to marshal allocation lines: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO allocations (source_ref, member_id, total_applied, wallet_credit, lines)
		VALUES (?, ?, ?, ?, ?)
	`, result.SourceRef, result.MemberID, result.TotalApplied.String(), result.WalletCredit.String(), string(linesJSON))
	if err != nil {
		return fmt.Errorf("failed to insert allocation %s: %w", result.SourceRef, err)
	}
	return nil
}
