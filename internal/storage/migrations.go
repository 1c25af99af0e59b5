package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS statements (
					id TEXT PRIMARY KEY,
					source_hash TEXT NOT NULL,
					file_path TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'uploaded',
					error_message TEXT NOT NULL DEFAULT '',
					uploaded_at DATETIME NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_statements_status ON statements(status)`,
				`CREATE INDEX idx_statements_source_hash ON statements(source_hash)`,

				`CREATE TABLE IF NOT EXISTS transactions (
					id TEXT PRIMARY KEY,
					statement_id TEXT NOT NULL,
					external_id TEXT NOT NULL DEFAULT '',
					date DATETIME NOT NULL,
					description TEXT NOT NULL,
					credit TEXT NOT NULL DEFAULT '0',
					debit TEXT NOT NULL DEFAULT '0',
					balance TEXT NOT NULL DEFAULT '0',
					transaction_code TEXT NOT NULL DEFAULT '',
					phones TEXT NOT NULL DEFAULT '[]',
					row_hash TEXT NOT NULL,
					member_id INTEGER,
					assignment_status TEXT NOT NULL DEFAULT 'unmatched',
					match_confidence REAL NOT NULL DEFAULT 0,
					match_reason TEXT NOT NULL DEFAULT '',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (statement_id) REFERENCES statements(id) ON DELETE CASCADE
				)`,
				`CREATE INDEX idx_transactions_statement ON transactions(statement_id)`,
				`CREATE INDEX idx_transactions_row_hash ON transactions(row_hash)`,
				`CREATE INDEX idx_transactions_member ON transactions(member_id)`,

				`CREATE TABLE IF NOT EXISTS members (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT NOT NULL,
					phone TEXT NOT NULL DEFAULT '',
					member_code TEXT NOT NULL DEFAULT '',
					active INTEGER NOT NULL DEFAULT 1
				)`,
				`CREATE INDEX idx_members_phone ON members(phone)`,

				`CREATE TABLE IF NOT EXISTS invoices (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					member_id INTEGER NOT NULL,
					amount_due TEXT NOT NULL,
					amount_paid TEXT NOT NULL DEFAULT '0',
					status TEXT NOT NULL DEFAULT 'pending',
					due_date DATETIME NOT NULL,
					period TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (member_id) REFERENCES members(id)
				)`,
				`CREATE INDEX idx_invoices_member_status ON invoices(member_id, status)`,

				`CREATE TABLE IF NOT EXISTS wallets (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					member_id INTEGER NOT NULL UNIQUE,
					balance TEXT NOT NULL DEFAULT '0',
					locked_balance TEXT NOT NULL DEFAULT '0',
					FOREIGN KEY (member_id) REFERENCES members(id)
				)`,

				`CREATE TABLE IF NOT EXISTS contributions (
					id TEXT PRIMARY KEY,
					member_id INTEGER NOT NULL,
					amount TEXT NOT NULL,
					source TEXT NOT NULL DEFAULT 'manual',
					contributed_at DATETIME NOT NULL,
					FOREIGN KEY (member_id) REFERENCES members(id)
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Duplicate records linked to original transactions",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS statement_duplicates (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					statement_id TEXT NOT NULL,
					original_transaction_id TEXT NOT NULL,
					duplicate_transaction_id TEXT NOT NULL,
					reason TEXT NOT NULL,
					recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (statement_id) REFERENCES statements(id) ON DELETE CASCADE,
					UNIQUE (duplicate_transaction_id)
				)`,
				`CREATE INDEX idx_duplicates_statement ON statement_duplicates(statement_id)`,
			}
			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Allocation journal for idempotent re-allocation",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS allocations (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					source_ref TEXT NOT NULL UNIQUE,
					member_id INTEGER NOT NULL,
					total_applied TEXT NOT NULL,
					wallet_credit TEXT NOT NULL,
					lines TEXT NOT NULL DEFAULT '[]',
					allocated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					FOREIGN KEY (member_id) REFERENCES members(id)
				)`,
				`CREATE INDEX idx_allocations_member ON allocations(member_id)`,
			}
			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
}

// Migrate runs all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		slog.Info("Applying migration",
			"version", migration.Version,
			"description", migration.Description)

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration transaction: %w", err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to set schema version: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	var finalVersion int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion); err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}
	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("schema version mismatch: have %d, expected %d", finalVersion, ExpectedSchemaVersion)
	}

	return nil
}
