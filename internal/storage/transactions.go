package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mchanga/chamaflow/internal/common"
	"github.com/mchanga/chamaflow/internal/model"
)

// SaveTransactions persists a batch of extracted transactions. Fingerprints
// are generated for rows that don't carry one yet.
func (s *SQLiteStorage) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransactions(transactions); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.saveTransactionsTx(ctx, tx, transactions); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStorage) saveTransactionsTx(ctx context.Context, q queryable, transactions []model.Transaction) error {
	for i := range transactions {
		txn := &transactions[i]
		if txn.RowHash == "" {
			txn.RowHash = txn.Fingerprint()
		}

		phones := txn.Phones
		if phones == nil {
			phones = []string{}
		}
		phonesJSON, err := json.Marshal(phones)
		if err != nil {
			return fmt.Errorf("failed to marshal phones for transaction %s: %w", txn.ID, err)
		}

		var memberID any
		if txn.MemberID != nil {
			memberID = *txn.MemberID
		}

		_, err = q.ExecContext(ctx, `
			INSERT INTO transactions (
				id, statement_id, external_id, date, description,
				credit, debit, balance, transaction_code, phones,
				row_hash, member_id, assignment_status, match_confidence, match_reason
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			txn.ID,
			txn.StatementID,
			txn.ExternalID,
			txn.Date,
			txn.Description,
			txn.Credit.String(),
			txn.Debit.String(),
			txn.Balance.String(),
			txn.TransactionCode,
			string(phonesJSON),
			txn.RowHash,
			memberID,
			string(txn.AssignmentStatus),
			txn.MatchConfidence,
			txn.MatchReason,
		)
		if err != nil {
			return fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err)
		}
	}
	return nil
}

// GetTransactionByID fetches a single transaction.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getTransactionByIDTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getTransactionByIDTx(ctx context.Context, q queryable, id string) (*model.Transaction, error) {
	row := q.QueryRowContext(ctx, transactionSelect+` WHERE id = ?`, id)
	txn, err := scanTransactionRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// GetTransactionsByStatement returns a statement's transactions in
// extraction order (insertion order within the statement).
func (s *SQLiteStorage) GetTransactionsByStatement(ctx context.Context, statementID string) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(statementID, "statementID"); err != nil {
		return nil, err
	}
	return s.getTransactionsByStatementTx(ctx, s.db, statementID)
}

func (s *SQLiteStorage) getTransactionsByStatementTx(ctx context.Context, q queryable, statementID string) ([]model.Transaction, error) {
	rows, err := q.QueryContext(ctx, transactionSelect+` WHERE statement_id = ? ORDER BY rowid ASC`, statementID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, scanErr := scanTransactionRow(rows.Scan)
		if scanErr != nil {
			return nil, scanErr
		}
		transactions = append(transactions, *txn)
	}
	return transactions, rows.Err()
}

// UpdateTransactionAssignment records a matching or duplicate decision on a
// transaction.
func (s *SQLiteStorage) UpdateTransactionAssignment(ctx context.Context, id string, memberID *int64, status model.AssignmentStatus, confidence float64, reason string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.updateTransactionAssignmentTx(ctx, s.db, id, memberID, status, confidence, reason)
}

func (s *SQLiteStorage) updateTransactionAssignmentTx(ctx context.Context, q queryable, id string, memberID *int64, status model.AssignmentStatus, confidence float64, reason string) error {
	var member any
	if memberID != nil {
		member = *memberID
	}

	result, err := q.ExecContext(ctx, `
		UPDATE transactions
		SET member_id = ?, assignment_status = ?, match_confidence = ?, match_reason = ?
		WHERE id = ?
	`, member, string(status), confidence, reason, id)
	if err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	return nil
}

// FindOriginalByRowHash returns the earliest transaction outside the given
// statement with the same fingerprint, or nil when the row is first of its
// kind.
func (s *SQLiteStorage) FindOriginalByRowHash(ctx context.Context, rowHash, excludeStatementID string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(rowHash, "rowHash"); err != nil {
		return nil, err
	}
	return s.findOriginalByRowHashTx(ctx, s.db, rowHash, excludeStatementID)
}

func (s *SQLiteStorage) findOriginalByRowHashTx(ctx context.Context, q queryable, rowHash, excludeStatementID string) (*model.Transaction, error) {
	row := q.QueryRowContext(ctx, transactionSelect+`
		WHERE row_hash = ? AND statement_id != ?
		ORDER BY created_at ASC, rowid ASC LIMIT 1
	`, rowHash, excludeStatementID)

	txn, err := scanTransactionRow(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return txn, nil
}

const transactionSelect = `
	SELECT id, statement_id, external_id, date, description,
	       credit, debit, balance, transaction_code, phones,
	       row_hash, member_id, assignment_status, match_confidence, match_reason
	FROM transactions`

func scanTransactionRow(scan func(...any) error) (*model.Transaction, error) {
	var txn model.Transaction
	var credit, debit, balance, phonesJSON, status string
	var memberID sql.NullInt64

	err := scan(
		&txn.ID, &txn.StatementID, &txn.ExternalID, &txn.Date, &txn.Description,
		&credit, &debit, &balance, &txn.TransactionCode, &phonesJSON,
		&txn.RowHash, &memberID, &status, &txn.MatchConfidence, &txn.MatchReason,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	if txn.Credit, err = parseAmount(credit); err != nil {
		return nil, fmt.Errorf("invalid credit amount %q: %w", credit, err)
	}
	if txn.Debit, err = parseAmount(debit); err != nil {
		return nil, fmt.Errorf("invalid debit amount %q: %w", debit, err)
	}
	if txn.Balance, err = parseAmount(balance); err != nil {
		return nil, fmt.Errorf("invalid balance %q: %w", balance, err)
	}
	if err = json.Unmarshal([]byte(phonesJSON), &txn.Phones); err != nil {
		txn.Phones = []string{}
	}
	if memberID.Valid {
		txn.MemberID = &memberID.Int64
	}
	txn.AssignmentStatus = model.AssignmentStatus(status)
	return &txn, nil
}
