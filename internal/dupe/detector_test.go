package dupe

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

func seedTransaction(t *testing.T, db *testutil.TestDB, id, statementID, description, credit string) model.Transaction {
	t.Helper()

	txn := model.Transaction{
		ID:               id,
		StatementID:      statementID,
		Date:             time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Description:      description,
		Credit:           decimal.RequireFromString(credit),
		AssignmentStatus: model.AssignmentUnmatched,
	}
	txn.RowHash = txn.Fingerprint()
	require.NoError(t, db.Storage.SaveTransactions(context.Background(), []model.Transaction{txn}))
	return txn
}

func TestFlagStatement(t *testing.T) {
	ctx := context.Background()

	t.Run("cross statement repeats flag against the original", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		db.SeedStatement("stmt-1", "/a.csv")
		db.SeedStatement("stmt-2", "/b.csv")

		original := seedTransaction(t, db, "txn-1", "stmt-1", "MPESA JACINTA 0716227320", "1500")
		seedTransaction(t, db, "txn-2", "stmt-2", "MPESA JACINTA 0716227320", "1500")
		seedTransaction(t, db, "txn-3", "stmt-2", "FRESH DEPOSIT", "200")

		detector := NewDetector(db.Storage)
		flagged, err := detector.FlagStatement(ctx, "stmt-2")
		require.NoError(t, err)
		assert.Equal(t, 1, flagged)

		records, err := db.Storage.GetDuplicatesByStatement(ctx, "stmt-2")
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, original.ID, records[0].OriginalTransactionID)
		assert.Equal(t, "txn-2", records[0].DuplicateTransactionID)
		assert.Equal(t, model.DuplicateCrossStatement, records[0].Reason)

		dupTxn, err := db.Storage.GetTransactionByID(ctx, "txn-2")
		require.NoError(t, err)
		assert.Equal(t, model.AssignmentDuplicate, dupTxn.AssignmentStatus)

		fresh, err := db.Storage.GetTransactionByID(ctx, "txn-3")
		require.NoError(t, err)
		assert.Equal(t, model.AssignmentUnmatched, fresh.AssignmentStatus)
	})

	t.Run("intra statement repeats keep the first occurrence primary", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		db.SeedStatement("stmt-1", "/a.csv")

		first := seedTransaction(t, db, "txn-1", "stmt-1", "MPESA JACINTA 0716227320", "500")
		seedTransaction(t, db, "txn-2", "stmt-1", "MPESA JACINTA 0716227320", "500")
		seedTransaction(t, db, "txn-3", "stmt-1", "MPESA JACINTA 0716227320", "500")

		detector := NewDetector(db.Storage)
		flagged, err := detector.FlagStatement(ctx, "stmt-1")
		require.NoError(t, err)
		assert.Equal(t, 2, flagged)

		primary, err := db.Storage.GetTransactionByID(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, model.AssignmentUnmatched, primary.AssignmentStatus)

		records, err := db.Storage.GetDuplicatesByStatement(ctx, "stmt-1")
		require.NoError(t, err)
		require.Len(t, records, 2)
		for _, record := range records {
			assert.Equal(t, first.ID, record.OriginalTransactionID)
			assert.Equal(t, model.DuplicateIntraStatement, record.Reason)
		}
	})

	t.Run("different external ids are not duplicates", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		db.SeedStatement("stmt-1", "/a.csv")

		// Identical rows except for the bank's own identifier.
		for i, externalID := range []string{"FT0001", "FT0002"} {
			txn := model.Transaction{
				ID:               []string{"txn-1", "txn-2"}[i],
				StatementID:      "stmt-1",
				ExternalID:       externalID,
				Date:             time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
				Description:      "MPESA JACINTA 0716227320",
				Credit:           decimal.RequireFromString("500"),
				AssignmentStatus: model.AssignmentUnmatched,
			}
			txn.RowHash = txn.Fingerprint()
			require.NoError(t, db.Storage.SaveTransactions(ctx, []model.Transaction{txn}))
		}

		detector := NewDetector(db.Storage)
		flagged, err := detector.FlagStatement(ctx, "stmt-1")
		require.NoError(t, err)
		assert.Equal(t, 0, flagged)
	})

	t.Run("re-running makes the same decisions", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		db.SeedStatement("stmt-1", "/a.csv")

		seedTransaction(t, db, "txn-1", "stmt-1", "MPESA JACINTA 0716227320", "500")
		seedTransaction(t, db, "txn-2", "stmt-1", "MPESA JACINTA 0716227320", "500")

		detector := NewDetector(db.Storage)
		flagged, err := detector.FlagStatement(ctx, "stmt-1")
		require.NoError(t, err)
		assert.Equal(t, 1, flagged)

		flagged, err = detector.FlagStatement(ctx, "stmt-1")
		require.NoError(t, err)
		assert.Equal(t, 1, flagged)

		records, err := db.Storage.GetDuplicatesByStatement(ctx, "stmt-1")
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})
}
