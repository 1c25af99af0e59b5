package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mchanga/chamaflow/internal/allocate"
	"github.com/mchanga/chamaflow/internal/model"
	"github.com/mchanga/chamaflow/internal/testutil"
)

func TestBus(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes to every subscriber and drains", func(t *testing.T) {
		bus := NewBus()
		var calls atomic.Int32
		bus.Subscribe(EventTransactionAssigned, func(_ context.Context, _ Event) {
			calls.Add(1)
		})
		bus.Subscribe(EventTransactionAssigned, func(_ context.Context, _ Event) {
			time.Sleep(10 * time.Millisecond)
			calls.Add(1)
		})

		bus.Publish(ctx, Event{Kind: EventTransactionAssigned, TransactionID: "txn-1"})
		bus.Drain()
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("unsubscribed kinds are ignored", func(t *testing.T) {
		bus := NewBus()
		bus.Publish(ctx, Event{Kind: EventContributionCreated})
		bus.Drain()
	})

	t.Run("a panicking handler does not take down the publisher", func(t *testing.T) {
		bus := NewBus()
		var after atomic.Bool
		bus.Subscribe(EventTransactionCreated, func(_ context.Context, _ Event) {
			panic("handler bug")
		})
		bus.Subscribe(EventTransactionCreated, func(_ context.Context, _ Event) {
			after.Store(true)
		})

		bus.Publish(ctx, Event{Kind: EventTransactionCreated})
		bus.Drain()
		assert.True(t, after.Load())
	})

	t.Run("concurrent publishers", func(t *testing.T) {
		bus := NewBus()
		var calls atomic.Int32
		bus.Subscribe(EventTransactionAssigned, func(_ context.Context, _ Event) {
			calls.Add(1)
		})

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				bus.Publish(ctx, Event{Kind: EventTransactionAssigned})
			}()
		}
		wg.Wait()
		bus.Drain()
		assert.Equal(t, int32(20), calls.Load())
	})
}

func TestAutoAllocationHandlers(t *testing.T) {
	ctx := context.Background()

	seedAssignedTransaction := func(t *testing.T, db *testutil.TestDB, id string, memberID int64, credit string, status model.AssignmentStatus) {
		t.Helper()
		db.SeedStatement("stmt-"+id, "/a.csv")
		txn := model.Transaction{
			ID:               id,
			StatementID:      "stmt-" + id,
			Date:             time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			Description:      "MPESA DEPOSIT",
			Credit:           decimal.RequireFromString(credit),
			MemberID:         &memberID,
			AssignmentStatus: status,
		}
		txn.RowHash = txn.Fingerprint()
		require.NoError(t, db.Storage.SaveTransactions(ctx, []model.Transaction{txn}))
	}

	t.Run("assigned credit reaches the wallet", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		members := db.SeedMembers()
		bus := NewBus()
		RegisterAutoAllocation(bus, db.Storage, allocate.New(db.Storage))

		seedAssignedTransaction(t, db, "txn-1", members[0].ID, "750", model.AssignmentAuto)
		bus.Publish(ctx, Event{Kind: EventTransactionAssigned, TransactionID: "txn-1"})
		bus.Drain()

		wallet, err := db.Storage.EnsureWallet(ctx, members[0].ID)
		require.NoError(t, err)
		assert.Equal(t, "750", wallet.Balance.String())
	})

	t.Run("created transaction carrying a member allocates", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		members := db.SeedMembers()
		bus := NewBus()
		RegisterAutoAllocation(bus, db.Storage, allocate.New(db.Storage))

		seedAssignedTransaction(t, db, "txn-1", members[0].ID, "300", model.AssignmentManual)
		bus.Publish(ctx, Event{Kind: EventTransactionCreated, TransactionID: "txn-1"})
		bus.Drain()

		wallet, err := db.Storage.EnsureWallet(ctx, members[0].ID)
		require.NoError(t, err)
		assert.Equal(t, "300", wallet.Balance.String())
	})

	t.Run("duplicates and debits never allocate", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		members := db.SeedMembers()
		bus := NewBus()
		RegisterAutoAllocation(bus, db.Storage, allocate.New(db.Storage))

		seedAssignedTransaction(t, db, "txn-1", members[0].ID, "750", model.AssignmentDuplicate)
		seedAssignedTransaction(t, db, "txn-2", members[0].ID, "0", model.AssignmentAuto)
		bus.Publish(ctx, Event{Kind: EventTransactionAssigned, TransactionID: "txn-1"})
		bus.Publish(ctx, Event{Kind: EventTransactionAssigned, TransactionID: "txn-2"})
		bus.Drain()

		wallet, err := db.Storage.EnsureWallet(ctx, members[0].ID)
		require.NoError(t, err)
		assert.True(t, wallet.Balance.IsZero())
	})

	t.Run("missing transaction is logged, not fatal", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		db.SeedMembers()
		bus := NewBus()
		RegisterAutoAllocation(bus, db.Storage, allocate.New(db.Storage))

		bus.Publish(ctx, Event{Kind: EventTransactionAssigned, TransactionID: "missing"})
		bus.Drain()
	})

	t.Run("manual contribution settles invoices", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		members := db.SeedMembers()
		invoice := db.SeedInvoice(members[0].ID, "2024-03", "1000", time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC))

		bus := NewBus()
		RegisterAutoAllocation(bus, db.Storage, allocate.New(db.Storage))

		contribution := &model.ManualContribution{
			ID:            "contrib-1",
			MemberID:      members[0].ID,
			Amount:        decimal.RequireFromString("1000"),
			Source:        "manual",
			ContributedAt: time.Now(),
		}
		require.NoError(t, db.Storage.SaveContribution(ctx, contribution))

		bus.Publish(ctx, Event{Kind: EventContributionCreated, ContributionID: "contrib-1"})
		bus.Drain()

		got, err := db.Storage.GetInvoice(ctx, invoice.ID)
		require.NoError(t, err)
		assert.Equal(t, model.InvoicePaid, got.Status)
	})
}
