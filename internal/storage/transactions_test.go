package storage

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mchanga/chamaflow/internal/common"
	"github.com/mchanga/chamaflow/internal/model"
)

func newTestTransaction(id, statementID, description, credit string) model.Transaction {
	txn := model.Transaction{
		ID:               id,
		StatementID:      statementID,
		Date:             time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Description:      description,
		Credit:           decimal.RequireFromString(credit),
		AssignmentStatus: model.AssignmentUnmatched,
	}
	txn.RowHash = txn.Fingerprint()
	return txn
}

func TestSaveAndGetTransactions(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)
	seedStatement(t, store, "stmt-1", time.Now())

	transactions := []model.Transaction{
		newTestTransaction("txn-1", "stmt-1", "MPESA JACINTA WANJIRU 0716227320", "1500"),
		newTestTransaction("txn-2", "stmt-1", "BANK CHARGES", "0"),
	}
	transactions[0].Phones = []string{"254716227320"}
	transactions[1].Debit = decimal.RequireFromString("35.50")
	require.NoError(t, store.SaveTransactions(ctx, transactions))

	got, err := store.GetTransactionsByStatement(ctx, "stmt-1")
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Extraction order is preserved.
	assert.Equal(t, "txn-1", got[0].ID)
	assert.Equal(t, []string{"254716227320"}, got[0].Phones)
	assert.Equal(t, "1500", got[0].Credit.String())
	assert.Equal(t, "35.5", got[1].Debit.String())
	assert.Equal(t, model.AssignmentUnmatched, got[1].AssignmentStatus)

	single, err := store.GetTransactionByID(ctx, "txn-2")
	require.NoError(t, err)
	assert.Equal(t, "BANK CHARGES", single.Description)

	_, err = store.GetTransactionByID(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestUpdateTransactionAssignment(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)
	seedStatement(t, store, "stmt-1", time.Now())

	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{
		newTestTransaction("txn-1", "stmt-1", "MPESA JACINTA WANJIRU", "500"),
	}))

	memberID := int64(7)
	require.NoError(t, store.UpdateTransactionAssignment(ctx, "txn-1", &memberID, model.AssignmentAuto, 0.98, "Exact phone match"))

	got, err := store.GetTransactionByID(ctx, "txn-1")
	require.NoError(t, err)
	require.NotNil(t, got.MemberID)
	assert.Equal(t, memberID, *got.MemberID)
	assert.Equal(t, model.AssignmentAuto, got.AssignmentStatus)
	assert.InDelta(t, 0.98, got.MatchConfidence, 0.0001)
	assert.Equal(t, "Exact phone match", got.MatchReason)

	// Clearing the assignment nulls the member.
	require.NoError(t, store.UpdateTransactionAssignment(ctx, "txn-1", nil, model.AssignmentUnmatched, 0, "No match found"))
	got, err = store.GetTransactionByID(ctx, "txn-1")
	require.NoError(t, err)
	assert.Nil(t, got.MemberID)

	err = store.UpdateTransactionAssignment(ctx, "missing", nil, model.AssignmentUnmatched, 0, "")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestFindOriginalByRowHash(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)
	seedStatement(t, store, "stmt-1", time.Now())
	seedStatement(t, store, "stmt-2", time.Now())

	original := newTestTransaction("txn-1", "stmt-1", "MPESA JACINTA WANJIRU 0716227320", "1500")
	dup := newTestTransaction("txn-2", "stmt-2", "MPESA JACINTA WANJIRU 0716227320", "1500")
	require.Equal(t, original.RowHash, dup.RowHash)

	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{original}))
	require.NoError(t, store.SaveTransactions(ctx, []model.Transaction{dup}))

	// From stmt-2's perspective the original lives in stmt-1.
	found, err := store.FindOriginalByRowHash(ctx, dup.RowHash, "stmt-2")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "txn-1", found.ID)

	// Excluding the original's own statement finds the copy only.
	found, err = store.FindOriginalByRowHash(ctx, original.RowHash, "stmt-1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "txn-2", found.ID)

	missing, err := store.FindOriginalByRowHash(ctx, "unseen-hash", "stmt-1")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRecordDuplicateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStorage(t)
	seedStatement(t, store, "stmt-1", time.Now())

	record := &model.DuplicateRecord{
		StatementID:            "stmt-1",
		OriginalTransactionID:  "txn-1",
		DuplicateTransactionID: "txn-2",
		Reason:                 model.DuplicateCrossStatement,
	}
	require.NoError(t, store.RecordDuplicate(ctx, record))
	require.NoError(t, store.RecordDuplicate(ctx, record))

	records, err := store.GetDuplicatesByStatement(ctx, "stmt-1")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}
