// Package service defines the interfaces the application's components are
// wired together through.
package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mchanga/chamaflow/internal/model"
)

// Storage defines the contract for the persistence layer.
type Storage interface {
	// Statement lifecycle
	CreateStatement(ctx context.Context, statement *model.Statement) error
	GetStatement(ctx context.Context, id string) (*model.Statement, error)
	GetStatementBySourceHash(ctx context.Context, sourceHash string) (*model.Statement, error)
	ListStatements(ctx context.Context) ([]model.Statement, error)
	ListStatementsByStatus(ctx context.Context, statuses ...model.StatementStatus) ([]model.Statement, error)
	UpdateStatementStatus(ctx context.Context, id string, status model.StatementStatus, errorMessage string) error
	// PurgeStatementRows deletes a statement's transactions and duplicate
	// records ahead of re-ingestion and returns how many rows were removed.
	PurgeStatementRows(ctx context.Context, statementID string) (int64, error)

	// Transactions
	SaveTransactions(ctx context.Context, transactions []model.Transaction) error
	GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error)
	GetTransactionsByStatement(ctx context.Context, statementID string) ([]model.Transaction, error)
	UpdateTransactionAssignment(ctx context.Context, id string, memberID *int64, status model.AssignmentStatus, confidence float64, reason string) error
	// FindOriginalByRowHash returns the earliest transaction outside the
	// given statement carrying the same fingerprint, or nil.
	FindOriginalByRowHash(ctx context.Context, rowHash, excludeStatementID string) (*model.Transaction, error)

	// Duplicate records
	RecordDuplicate(ctx context.Context, record *model.DuplicateRecord) error
	GetDuplicatesByStatement(ctx context.Context, statementID string) ([]model.DuplicateRecord, error)

	// Members
	SaveMembers(ctx context.Context, members []model.Member) error
	GetMember(ctx context.Context, id int64) (*model.Member, error)
	ListActiveMembers(ctx context.Context) ([]model.Member, error)

	// Invoices
	CreateInvoice(ctx context.Context, invoice *model.Invoice) error
	GetInvoice(ctx context.Context, id int64) (*model.Invoice, error)
	GetOutstandingInvoices(ctx context.Context, memberID int64) ([]model.Invoice, error)
	UpdateInvoicePayment(ctx context.Context, id int64, amountPaid decimal.Decimal, status model.InvoiceStatus) error
	HasInvoiceForPeriod(ctx context.Context, memberID int64, period string) (bool, error)

	// Wallets
	EnsureWallet(ctx context.Context, memberID int64) (*model.Wallet, error)
	CreditWallet(ctx context.Context, memberID int64, amount decimal.Decimal) error

	// Manual contributions
	SaveContribution(ctx context.Context, contribution *model.ManualContribution) error
	GetContribution(ctx context.Context, id string) (*model.ManualContribution, error)

	// Allocation journal
	GetAllocationBySourceRef(ctx context.Context, sourceRef string) (*model.AllocationResult, error)
	SaveAllocation(ctx context.Context, result *model.AllocationResult) error

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within the transaction.
	Storage
}

// RetryOptions configures retry behavior for I/O operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// RequeueReport summarizes a re-queue maintenance run.
type RequeueReport struct {
	RowsPurged map[string]int64
	Requeued   int
	Failed     int
}
