package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/mchanga/chamaflow/internal/common"
	"github.com/mchanga/chamaflow/internal/model"
)

// CreateStatement inserts a newly uploaded statement.
func (s *SQLiteStorage) CreateStatement(ctx context.Context, statement *model.Statement) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateStatement(statement); err != nil {
		return err
	}
	return s.createStatementTx(ctx, s.db, statement)
}

func (s *SQLiteStorage) createStatementTx(ctx context.Context, q queryable, statement *model.Statement) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO statements (id, source_hash, file_path, status, error_message, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, statement.ID, statement.SourceHash, statement.FilePath, string(statement.Status), statement.ErrorMessage, statement.UploadedAt)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("statement %s: %w", statement.ID, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to insert statement %s: %w", statement.ID, err)
	}
	return nil
}

// GetStatement fetches a statement by id.
func (s *SQLiteStorage) GetStatement(ctx context.Context, id string) (*model.Statement, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getStatementTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getStatementTx(ctx context.Context, q queryable, id string) (*model.Statement, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, source_hash, file_path, status, error_message, uploaded_at
		FROM statements WHERE id = ?
	`, id)
	statement, err := scanStatement(row)
	if err != nil {
		return nil, err
	}
	if statement == nil {
		return nil, fmt.Errorf("statement %s: %w", id, common.ErrNotFound)
	}
	return statement, nil
}

// GetStatementBySourceHash finds a previously uploaded statement with the
// same file contents, used to warn about re-uploads.
func (s *SQLiteStorage) GetStatementBySourceHash(ctx context.Context, sourceHash string) (*model.Statement, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(sourceHash, "sourceHash"); err != nil {
		return nil, err
	}
	return s.getStatementBySourceHashTx(ctx, s.db, sourceHash)
}

func (s *SQLiteStorage) getStatementBySourceHashTx(ctx context.Context, q queryable, sourceHash string) (*model.Statement, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, source_hash, file_path, status, error_message, uploaded_at
		FROM statements WHERE source_hash = ?
		ORDER BY uploaded_at ASC LIMIT 1
	`, sourceHash)
	return scanStatement(row)
}

// ListStatements returns all statements, newest upload first.
func (s *SQLiteStorage) ListStatements(ctx context.Context) ([]model.Statement, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listStatementsTx(ctx, s.db)
}

func (s *SQLiteStorage) listStatementsTx(ctx context.Context, q queryable) ([]model.Statement, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, source_hash, file_path, status, error_message, uploaded_at
		FROM statements ORDER BY uploaded_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query statements: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanStatements(rows)
}

// ListStatementsByStatus returns statements in any of the given states,
// oldest upload first so pending work processes in order.
func (s *SQLiteStorage) ListStatementsByStatus(ctx context.Context, statuses ...model.StatementStatus) ([]model.Statement, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return nil, fmt.Errorf("%w: statuses", ErrEmptySlice)
	}
	return s.listStatementsByStatusTx(ctx, s.db, statuses...)
}

func (s *SQLiteStorage) listStatementsByStatusTx(ctx context.Context, q queryable, statuses ...model.StatementStatus) ([]model.Statement, error) {
	placeholders := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		placeholders[i] = "?"
		args[i] = string(status)
	}

	query := fmt.Sprintf(`
		SELECT id, source_hash, file_path, status, error_message, uploaded_at
		FROM statements WHERE status IN (%s)
		ORDER BY uploaded_at ASC
	`, strings.Join(placeholders, ", "))

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query statements by status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanStatements(rows)
}

// UpdateStatementStatus transitions a statement's lifecycle state and
// records or clears its error message.
func (s *SQLiteStorage) UpdateStatementStatus(ctx context.Context, id string, status model.StatementStatus, errorMessage string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	if !status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return s.updateStatementStatusTx(ctx, s.db, id, status, errorMessage)
}

func (s *SQLiteStorage) updateStatementStatusTx(ctx context.Context, q queryable, id string, status model.StatementStatus, errorMessage string) error {
	result, err := q.ExecContext(ctx, `
		UPDATE statements SET status = ?, error_message = ? WHERE id = ?
	`, string(status), errorMessage, id)
	if err != nil {
		return fmt.Errorf("failed to update statement %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("statement %s: %w", id, common.ErrNotFound)
	}
	return nil
}

// PurgeStatementRows deletes a statement's transactions and duplicate
// records ahead of re-ingestion, returning the number of removed rows.
func (s *SQLiteStorage) PurgeStatementRows(ctx context.Context, statementID string) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(statementID, "statementID"); err != nil {
		return 0, err
	}
	return s.purgeStatementRowsTx(ctx, s.db, statementID)
}

func (s *SQLiteStorage) purgeStatementRowsTx(ctx context.Context, q queryable, statementID string) (int64, error) {
	dupResult, err := q.ExecContext(ctx, `DELETE FROM statement_duplicates WHERE statement_id = ?`, statementID)
	if err != nil {
		return 0, fmt.Errorf("failed to purge duplicate records for statement %s: %w", statementID, err)
	}
	dupCount, _ := dupResult.RowsAffected()

	txnResult, err := q.ExecContext(ctx, `DELETE FROM transactions WHERE statement_id = ?`, statementID)
	if err != nil {
		return dupCount, fmt.Errorf("failed to purge transactions for statement %s: %w", statementID, err)
	}
	txnCount, _ := txnResult.RowsAffected()

	return dupCount + txnCount, nil
}

// scanStatement returns (nil, nil) when no row matched; lookups that treat
// absence as an error wrap common.ErrNotFound themselves.
func scanStatement(row *sql.Row) (*model.Statement, error) {
	var statement model.Statement
	var status string
	err := row.Scan(&statement.ID, &statement.SourceHash, &statement.FilePath, &status, &statement.ErrorMessage, &statement.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan statement: %w", err)
	}
	statement.Status = model.StatementStatus(status)
	return &statement, nil
}

func scanStatements(rows *sql.Rows) ([]model.Statement, error) {
	var statements []model.Statement
	for rows.Next() {
		var statement model.Statement
		var status string
		if err := rows.Scan(&statement.ID, &statement.SourceHash, &statement.FilePath, &status, &statement.ErrorMessage, &statement.UploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan statement: %w", err)
		}
		statement.Status = model.StatementStatus(status)
		statements = append(statements, statement)
	}
	return statements, rows.Err()
}
