package allocate

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mchanga/chamaflow/internal/common"
	"github.com/mchanga/chamaflow/internal/model"
	"github.com/mchanga/chamaflow/internal/testutil"
)

func TestAllocate(t *testing.T) {
	ctx := context.Background()

	t.Run("pays invoices oldest first and banks the remainder", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		members := db.SeedMembers()
		member := members[0]

		january := db.SeedInvoice(member.ID, "2024-01", "1000", time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
		february := db.SeedInvoice(member.ID, "2024-02", "1000", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC))

		allocator := New(db.Storage)
		result, err := allocator.Allocate(ctx, member.ID, decimal.RequireFromString("1600"), "txn:hash-1")
		require.NoError(t, err)
		require.Len(t, result.Lines, 2)

		// January consumed in full, February partially, nothing left over.
		assert.Equal(t, january.ID, result.Lines[0].InvoiceID)
		assert.Equal(t, "1000", result.Lines[0].Amount.String())
		assert.Equal(t, model.InvoicePaid, result.Lines[0].InvoiceStatus)
		assert.Equal(t, february.ID, result.Lines[1].InvoiceID)
		assert.Equal(t, "600", result.Lines[1].Amount.String())
		assert.Equal(t, model.InvoicePartial, result.Lines[1].InvoiceStatus)
		assert.True(t, result.WalletCredit.IsZero())

		// Conservation: lines plus wallet equal the credited amount.
		applied := result.WalletCredit
		for _, line := range result.Lines {
			applied = applied.Add(line.Amount)
		}
		assert.Equal(t, "1600", applied.String())

		got, err := db.Storage.GetInvoice(ctx, february.ID)
		require.NoError(t, err)
		assert.Equal(t, "400", got.Remaining().String())
	})

	t.Run("excess lands in the wallet", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		members := db.SeedMembers()
		member := members[0]
		db.SeedInvoice(member.ID, "2024-01", "1000", time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))

		allocator := New(db.Storage)
		result, err := allocator.Allocate(ctx, member.ID, decimal.RequireFromString("1250"), "txn:hash-1")
		require.NoError(t, err)
		assert.Equal(t, "250", result.WalletCredit.String())

		wallet, err := db.Storage.EnsureWallet(ctx, member.ID)
		require.NoError(t, err)
		assert.Equal(t, "250", wallet.Balance.String())
	})

	t.Run("no invoices sends everything to the wallet", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		members := db.SeedMembers()
		member := members[0]

		allocator := New(db.Storage)
		result, err := allocator.Allocate(ctx, member.ID, decimal.RequireFromString("500"), "txn:hash-1")
		require.NoError(t, err)
		assert.Empty(t, result.Lines)
		assert.Equal(t, "500", result.WalletCredit.String())
	})

	t.Run("same source reference is applied once", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		members := db.SeedMembers()
		member := members[0]
		invoice := db.SeedInvoice(member.ID, "2024-01", "1000", time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))

		allocator := New(db.Storage)
		first, err := allocator.Allocate(ctx, member.ID, decimal.RequireFromString("1000"), "txn:hash-1")
		require.NoError(t, err)
		assert.False(t, first.AlreadyProcessed)

		second, err := allocator.Allocate(ctx, member.ID, decimal.RequireFromString("1000"), "txn:hash-1")
		require.NoError(t, err)
		assert.True(t, second.AlreadyProcessed)

		got, err := db.Storage.GetInvoice(ctx, invoice.ID)
		require.NoError(t, err)
		assert.Equal(t, "1000", got.AmountPaid.String())

		wallet, err := db.Storage.EnsureWallet(ctx, member.ID)
		require.NoError(t, err)
		assert.True(t, wallet.Balance.IsZero())
	})

	t.Run("rejects bad input", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		members := db.SeedMembers()
		allocator := New(db.Storage)

		_, err := allocator.Allocate(ctx, members[0].ID, decimal.Zero, "txn:hash-1")
		assert.ErrorIs(t, err, common.ErrNonPositiveAmount)

		_, err = allocator.Allocate(ctx, members[0].ID, decimal.RequireFromString("100"), "")
		assert.Error(t, err)

		_, err = allocator.Allocate(ctx, 9999, decimal.RequireFromString("100"), "txn:hash-1")
		assert.ErrorIs(t, err, common.ErrUnknownMember)
	})
}

func TestAllocateConcurrent(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	members := db.SeedMembers()
	member := members[0]
	invoice := db.SeedInvoice(member.ID, "2024-01", "1000", time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))

	allocator := New(db.Storage)
	const workers = 10
	amount := decimal.RequireFromString("100")

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := allocator.Allocate(ctx, member.ID, amount, fmt.Sprintf("txn:hash-%d", n))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// 10 x 100 against a 1000 invoice: exactly paid, wallet untouched.
	got, err := db.Storage.GetInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InvoicePaid, got.Status)
	assert.Equal(t, "1000", got.AmountPaid.String())

	wallet, err := db.Storage.EnsureWallet(ctx, member.ID)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.IsZero())
}
