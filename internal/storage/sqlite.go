package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"github.com/mchanga/chamaflow/internal/model"
	"github.com/mchanga/chamaflow/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTransaction{
		tx:      tx,
		storage: s,
	}, nil
}

// queryable is an interface satisfied by both *sql.DB and *sql.Tx.
type queryable interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// parseAmount converts a stored decimal string back into a Decimal; empty
// columns read as zero.
func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction. Methods
// delegate to the storage's tx-scoped implementations.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTransaction) CreateStatement(ctx context.Context, statement *model.Statement) error {
	return t.storage.createStatementTx(ctx, t.tx, statement)
}

func (t *sqliteTransaction) GetStatement(ctx context.Context, id string) (*model.Statement, error) {
	return t.storage.getStatementTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetStatementBySourceHash(ctx context.Context, sourceHash string) (*model.Statement, error) {
	return t.storage.getStatementBySourceHashTx(ctx, t.tx, sourceHash)
}

func (t *sqliteTransaction) ListStatements(ctx context.Context) ([]model.Statement, error) {
	return t.storage.listStatementsTx(ctx, t.tx)
}

func (t *sqliteTransaction) ListStatementsByStatus(ctx context.Context, statuses ...model.StatementStatus) ([]model.Statement, error) {
	return t.storage.listStatementsByStatusTx(ctx, t.tx, statuses...)
}

func (t *sqliteTransaction) UpdateStatementStatus(ctx context.Context, id string, status model.StatementStatus, errorMessage string) error {
	return t.storage.updateStatementStatusTx(ctx, t.tx, id, status, errorMessage)
}

func (t *sqliteTransaction) PurgeStatementRows(ctx context.Context, statementID string) (int64, error) {
	return t.storage.purgeStatementRowsTx(ctx, t.tx, statementID)
}

func (t *sqliteTransaction) SaveTransactions(ctx context.Context, transactions []model.Transaction) error {
	return t.storage.saveTransactionsTx(ctx, t.tx, transactions)
}

func (t *sqliteTransaction) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	return t.storage.getTransactionByIDTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetTransactionsByStatement(ctx context.Context, statementID string) ([]model.Transaction, error) {
	return t.storage.getTransactionsByStatementTx(ctx, t.tx, statementID)
}

func (t *sqliteTransaction) UpdateTransactionAssignment(ctx context.Context, id string, memberID *int64, status model.AssignmentStatus, confidence float64, reason string) error {
	return t.storage.updateTransactionAssignmentTx(ctx, t.tx, id, memberID, status, confidence, reason)
}

func (t *sqliteTransaction) FindOriginalByRowHash(ctx context.Context, rowHash, excludeStatementID string) (*model.Transaction, error) {
	return t.storage.findOriginalByRowHashTx(ctx, t.tx, rowHash, excludeStatementID)
}

func (t *sqliteTransaction) RecordDuplicate(ctx context.Context, record *model.DuplicateRecord) error {
	return t.storage.recordDuplicateTx(ctx, t.tx, record)
}

func (t *sqliteTransaction) GetDuplicatesByStatement(ctx context.Context, statementID string) ([]model.DuplicateRecord, error) {
	return t.storage.getDuplicatesByStatementTx(ctx, t.tx, statementID)
}

func (t *sqliteTransaction) SaveMembers(ctx context.Context, members []model.Member) error {
	return t.storage.saveMembersTx(ctx, t.tx, members)
}

func (t *sqliteTransaction) GetMember(ctx context.Context, id int64) (*model.Member, error) {
	return t.storage.getMemberTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) ListActiveMembers(ctx context.Context) ([]model.Member, error) {
	return t.storage.listActiveMembersTx(ctx, t.tx)
}

func (t *sqliteTransaction) CreateInvoice(ctx context.Context, invoice *model.Invoice) error {
	return t.storage.createInvoiceTx(ctx, t.tx, invoice)
}

func (t *sqliteTransaction) GetInvoice(ctx context.Context, id int64) (*model.Invoice, error) {
	return t.storage.getInvoiceTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetOutstandingInvoices(ctx context.Context, memberID int64) ([]model.Invoice, error) {
	return t.storage.getOutstandingInvoicesTx(ctx, t.tx, memberID)
}

func (t *sqliteTransaction) UpdateInvoicePayment(ctx context.Context, id int64, amountPaid decimal.Decimal, status model.InvoiceStatus) error {
	return t.storage.updateInvoicePaymentTx(ctx, t.tx, id, amountPaid, status)
}

func (t *sqliteTransaction) HasInvoiceForPeriod(ctx context.Context, memberID int64, period string) (bool, error) {
	return t.storage.hasInvoiceForPeriodTx(ctx, t.tx, memberID, period)
}

func (t *sqliteTransaction) EnsureWallet(ctx context.Context, memberID int64) (*model.Wallet, error) {
	return t.storage.ensureWalletTx(ctx, t.tx, memberID)
}

func (t *sqliteTransaction) CreditWallet(ctx context.Context, memberID int64, amount decimal.Decimal) error {
	return t.storage.creditWalletTx(ctx, t.tx, memberID, amount)
}

func (t *sqliteTransaction) SaveContribution(ctx context.Context, contribution *model.ManualContribution) error {
	return t.storage.saveContributionTx(ctx, t.tx, contribution)
}

func (t *sqliteTransaction) GetContribution(ctx context.Context, id string) (*model.ManualContribution, error) {
	return t.storage.getContributionTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetAllocationBySourceRef(ctx context.Context, sourceRef string) (*model.AllocationResult, error) {
	return t.storage.getAllocationBySourceRefTx(ctx, t.tx, sourceRef)
}

func (t *sqliteTransaction) SaveAllocation(ctx context.Context, result *model.AllocationResult) error {
	return t.storage.saveAllocationTx(ctx, t.tx, result)
}

func (t *sqliteTransaction) Migrate(_ context.Context) error {
	// Migrations should not be run within a transaction
	return fmt.Errorf("migrations cannot be run within a transaction")
}

func (t *sqliteTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	return nil, fmt.Errorf("nested transactions are not supported")
}

func (t *sqliteTransaction) Close() error {
	return fmt.Errorf("cannot close storage from within a transaction")
}
