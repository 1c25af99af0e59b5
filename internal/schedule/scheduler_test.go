package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mchanga/chamaflow/internal/model"
	"github.com/mchanga/chamaflow/internal/testutil"
)

func TestGenerateInvoices(t *testing.T) {
	ctx := context.Background()

	t.Run("bills every active member once", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		members := db.SeedMembers()

		amount := decimal.NewFromInt(1000)
		created, err := GenerateInvoices(ctx, db.Storage, "2024-03", amount)
		require.NoError(t, err)
		assert.Equal(t, len(members), created)

		invoices, err := db.Storage.GetOutstandingInvoices(ctx, members[0].ID)
		require.NoError(t, err)
		require.Len(t, invoices, 1)
		assert.Equal(t, "2024-03", invoices[0].Period)
		assert.Equal(t, "1000", invoices[0].AmountDue.String())
		assert.Equal(t, model.InvoicePending, invoices[0].Status)
		assert.Equal(t, "2024-03-31", invoices[0].DueDate.Format("2006-01-02"))
	})

	t.Run("repeat run creates nothing", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		db.SeedMembers()

		amount := decimal.NewFromInt(1000)
		_, err := GenerateInvoices(ctx, db.Storage, "2024-03", amount)
		require.NoError(t, err)

		created, err := GenerateInvoices(ctx, db.Storage, "2024-03", amount)
		require.NoError(t, err)
		assert.Equal(t, 0, created)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		db.SeedMembers()

		_, err := GenerateInvoices(ctx, db.Storage, "2024-03", decimal.Zero)
		assert.Error(t, err)

		_, err = GenerateInvoices(ctx, db.Storage, "March 2024", decimal.NewFromInt(1000))
		assert.Error(t, err)
	})

	t.Run("separate periods bill separately", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		members := db.SeedMembers()

		amount := decimal.NewFromInt(1000)
		_, err := GenerateInvoices(ctx, db.Storage, "2024-03", amount)
		require.NoError(t, err)
		_, err = GenerateInvoices(ctx, db.Storage, "2024-04", amount)
		require.NoError(t, err)

		invoices, err := db.Storage.GetOutstandingInvoices(ctx, members[0].ID)
		require.NoError(t, err)
		assert.Len(t, invoices, 2)
		// Oldest due date first.
		assert.True(t, invoices[0].DueDate.Before(invoices[1].DueDate))
	})
}

func TestSchedulerConfig(t *testing.T) {
	db := testutil.SetupTestDB(t)
	scheduler := New(db.Storage, nil, Config{})
	assert.Equal(t, DefaultConfig().ProcessSchedule, scheduler.config.ProcessSchedule)
	assert.Equal(t, DefaultConfig().InvoiceSchedule, scheduler.config.InvoiceSchedule)

	err := scheduler.Start(context.Background())
	require.NoError(t, err)
	done := make(chan struct{})
	go func() {
		scheduler.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
