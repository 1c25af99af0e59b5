// Package testutil provides shared fixtures for tests that need a real
// database: an in-memory store with migrations applied and a small,
// realistic member roster.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mchanga/chamaflow/internal/model"
	"github.com/mchanga/chamaflow/internal/service"
	"github.com/mchanga/chamaflow/internal/storage"
)

// TestDB wraps an in-memory storage with its seeded fixtures.
type TestDB struct {
	Storage service.Storage
	Members []model.Member
	t       *testing.T
}

// SetupTestDB creates a migrated in-memory database and registers cleanup.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})
	return &TestDB{Storage: store, t: t}
}

// SeedMembers inserts the default roster and returns it with assigned IDs.
func (db *TestDB) SeedMembers() []model.Member {
	db.t.Helper()

	members := []model.Member{
		{Name: "Jacinta Wanjiru", Phone: "254716227320", MemberCode: "MB001", Active: true},
		{Name: "Boniface Mwaura", Phone: "254720499810", MemberCode: "MB002", Active: true},
		{Name: "Peter Otieno", Phone: "254733123456", MemberCode: "MB003", Active: true},
	}
	if err := db.Storage.SaveMembers(context.Background(), members); err != nil {
		db.t.Fatalf("failed to seed members: %v", err)
	}

	seeded, err := db.Storage.ListActiveMembers(context.Background())
	if err != nil {
		db.t.Fatalf("failed to list seeded members: %v", err)
	}
	db.Members = seeded
	return seeded
}

// SeedInvoice creates an invoice for the member and returns it.
func (db *TestDB) SeedInvoice(memberID int64, period string, amountDue string, dueDate time.Time) *model.Invoice {
	db.t.Helper()

	due, err := decimal.NewFromString(amountDue)
	if err != nil {
		db.t.Fatalf("invalid amount %q: %v", amountDue, err)
	}
	invoice := &model.Invoice{
		MemberID:  memberID,
		Period:    period,
		AmountDue: due,
		DueDate:   dueDate,
		Status:    model.InvoicePending,
	}
	if err := db.Storage.CreateInvoice(context.Background(), invoice); err != nil {
		db.t.Fatalf("failed to seed invoice: %v", err)
	}
	return invoice
}

// SeedStatement creates a statement record in the uploaded state.
func (db *TestDB) SeedStatement(id, filePath string) *model.Statement {
	db.t.Helper()

	statement := &model.Statement{
		ID:         id,
		SourceHash: "hash-" + id,
		FilePath:   filePath,
		Status:     model.StatementUploaded,
	}
	if err := db.Storage.CreateStatement(context.Background(), statement); err != nil {
		db.t.Fatalf("failed to seed statement: %v", err)
	}
	return statement
}
