package storage

import (
	"context"
	"fmt"

	"github.com/mchanga/chamaflow/internal/model"
)

// RecordDuplicate links a duplicate transaction to the original row it
// repeats. Recording the same duplicate twice is a no-op.
func (s *SQLiteStorage) RecordDuplicate(ctx context.Context, record *model.DuplicateRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	if err := validateString(record.DuplicateTransactionID, "record.DuplicateTransactionID"); err != nil {
		return err
	}
	return s.recordDuplicateTx(ctx, s.db, record)
}

func (s *SQLiteStorage) recordDuplicateTx(ctx context.Context, q queryable, record *model.DuplicateRecord) error {
	_, err := q.ExecContext(ctx, `
		INSERT OR IGNORE INTO statement_duplicates
			(statement_id, original_transaction_id, duplicate_transaction_id, reason)
		VALUES (?, ?, ?, ?)
	`, record.StatementID, record.OriginalTransactionID, record.DuplicateTransactionID, record.Reason)
	if err != nil {
		return fmt.Errorf("failed to record duplicate %s: %w", record.DuplicateTransactionID, err)
	}
	return nil
}

// GetDuplicatesByStatement returns a statement's duplicate records in
// recording order.
func (s *SQLiteStorage) GetDuplicatesByStatement(ctx context.Context, statementID string) ([]model.DuplicateRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(statementID, "statementID"); err != nil {
		return nil, err
	}
	return s.getDuplicatesByStatementTx(ctx, s.db, statementID)
}

func (s *SQLiteStorage) getDuplicatesByStatementTx(ctx context.Context, q queryable, statementID string) ([]model.DuplicateRecord, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, statement_id, original_transaction_id, duplicate_transaction_id, reason, recorded_at
		FROM statement_duplicates WHERE statement_id = ?
		ORDER BY id ASC
	`, statementID)
	if err != nil {
		return nil, fmt.Errorf("failed to query duplicates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.DuplicateRecord
	for rows.Next() {
		var record model.DuplicateRecord
		if err := rows.Scan(&record.ID, &record.StatementID, &record.OriginalTransactionID, &record.DuplicateTransactionID, &record.Reason, &record.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan duplicate record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
