package match

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mchanga/chamaflow/internal/model"
)

func testMembers() []model.Member {
	return []model.Member{
		{ID: 1, Name: "Jacinta Wanjiru", Phone: "0716227320", MemberCode: "MB001", Active: true},
		{ID: 2, Name: "Boniface Mwaura", Phone: "0720499810", MemberCode: "MB002", Active: true},
		{ID: 3, Name: "Peter Otieno", Phone: "0733123456", MemberCode: "MB003", Active: true},
	}
}

func creditTxn(description string, amount int64) model.Transaction {
	return model.Transaction{
		ID:          "txn-1",
		Date:        time.Date(2024, 12, 3, 0, 0, 0, 0, time.UTC),
		Description: description,
		Credit:      decimal.NewFromInt(amount),
	}
}

func TestHeuristicMatcher_ExactPhone(t *testing.T) {
	m := NewHeuristicMatcher(DefaultThresholds())

	txn := creditTxn("MPS2547 JACINTA WAN 0716227320", 3000)
	result, err := m.MatchTransaction(context.Background(), txn, testMembers())
	require.NoError(t, err)

	require.True(t, result.Matched())
	assert.Equal(t, int64(1), *result.CandidateMemberID)
	assert.InDelta(t, 0.98, result.Confidence, 0.0001)
	assert.Contains(t, result.MatchedTokens, "254716227320")
	assert.Equal(t, "Exact phone match", result.Reason)
}

func TestHeuristicMatcher_PhonePrecedesName(t *testing.T) {
	// The phone belongs to member 2 but the name resembles member 1. The
	// ladder stops at the phone rung, so member 2 must win at 0.98.
	m := NewHeuristicMatcher(DefaultThresholds())

	txn := creditTxn("MPS JACINTA WANJIRU 0720499810", 500)
	result, err := m.MatchTransaction(context.Background(), txn, testMembers())
	require.NoError(t, err)

	require.True(t, result.Matched())
	assert.Equal(t, int64(2), *result.CandidateMemberID)
	assert.InDelta(t, 0.98, result.Confidence, 0.0001)
}

func TestHeuristicMatcher_CodeContainment(t *testing.T) {
	m := NewHeuristicMatcher(DefaultThresholds())

	txn := creditTxn("CHEQUE DEPOSIT", 1200)
	txn.TransactionCode = "XMB002Y"

	result, err := m.MatchTransaction(context.Background(), txn, testMembers())
	require.NoError(t, err)

	require.True(t, result.Matched())
	assert.Equal(t, int64(2), *result.CandidateMemberID)
	assert.InDelta(t, 0.90, result.Confidence, 0.0001)
	assert.Equal(t, "Member code match", result.Reason)
}

func TestHeuristicMatcher_FuzzyName(t *testing.T) {
	m := NewHeuristicMatcher(DefaultThresholds())

	txn := creditTxn("TRANSFER FROM OTIENO", 800)
	result, err := m.MatchTransaction(context.Background(), txn, testMembers())
	require.NoError(t, err)

	require.True(t, result.Matched())
	assert.Equal(t, int64(3), *result.CandidateMemberID)
	assert.Greater(t, result.Confidence, 0.5)
	assert.LessOrEqual(t, result.Confidence, 0.85)
	assert.Contains(t, result.Reason, "Name similarity")
}

func TestHeuristicMatcher_PhoneSuffix(t *testing.T) {
	m := NewHeuristicMatcher(DefaultThresholds())

	// Masked number keeps only enough digits for the suffix strategy; make
	// sure the full-phone rung cannot fire first.
	txn := creditTxn("AGENT DEPOSIT", 2000)
	txn.Phones = []string{"254799227320"}

	result, err := m.MatchTransaction(context.Background(), txn, testMembers())
	require.NoError(t, err)

	require.True(t, result.Matched())
	assert.Equal(t, int64(1), *result.CandidateMemberID)
	assert.InDelta(t, 0.75, result.Confidence, 0.0001)
	assert.Equal(t, "Partial phone match (last 6 digits)", result.Reason)
}

func TestHeuristicMatcher_NoMatch(t *testing.T) {
	m := NewHeuristicMatcher(DefaultThresholds())

	txn := creditTxn("SALARY DISBURSEMENT ACME LTD", 50000)
	result, err := m.MatchTransaction(context.Background(), txn, testMembers())
	require.NoError(t, err)

	assert.False(t, result.Matched())
	assert.Zero(t, result.Confidence)
	assert.Equal(t, NoMatchReason, result.Reason)
	assert.NotNil(t, result.MatchedTokens)
}

func TestHeuristicMatcher_Deterministic(t *testing.T) {
	m := NewHeuristicMatcher(DefaultThresholds())
	txn := creditTxn("MPS2547 JACINTA WAN 0716227320", 3000)

	first, err := m.MatchTransaction(context.Background(), txn, testMembers())
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		again, matchErr := m.MatchTransaction(context.Background(), txn, testMembers())
		require.NoError(t, matchErr)
		assert.Equal(t, first, again)
	}
}

func TestHeuristicMatcher_MatchBatchPreservesOrder(t *testing.T) {
	m := NewHeuristicMatcher(DefaultThresholds())

	txns := []model.Transaction{
		creditTxn("MPS2547 JACINTA WAN 0716227320", 3000),
		creditTxn("SALARY DISBURSEMENT ACME LTD", 50000),
		creditTxn("MPS 254720499810 BONIFACE MWAURA", 1500),
	}

	results, err := m.MatchBatch(context.Background(), txns, testMembers())
	require.NoError(t, err)
	require.Len(t, results, 3)

	require.True(t, results[0].Matched())
	assert.Equal(t, int64(1), *results[0].CandidateMemberID)

	assert.False(t, results[1].Matched())

	require.True(t, results[2].Matched())
	assert.Equal(t, int64(2), *results[2].CandidateMemberID)
}

func TestHeuristicMatcher_FuzzyTieBreaksOnFirstMember(t *testing.T) {
	m := NewHeuristicMatcher(DefaultThresholds())

	members := []model.Member{
		{ID: 10, Name: "Wanjiru", Phone: "", MemberCode: ""},
		{ID: 11, Name: "Wanjiru", Phone: "", MemberCode: ""},
	}

	txn := creditTxn("PAYMENT WANJIRU", 100)
	result, err := m.MatchTransaction(context.Background(), txn, members)
	require.NoError(t, err)

	require.True(t, result.Matched())
	assert.Equal(t, int64(10), *result.CandidateMemberID)
}
