// Package allocate applies matched credit amounts against a member's
// outstanding invoices and wallet.
package allocate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/mchanga/chamaflow/internal/common"
	"github.com/mchanga/chamaflow/internal/model"
	"github.com/mchanga/chamaflow/internal/service"
)

// lockShards bounds the memory used for per-member serialization while
// keeping contention between unrelated members unlikely.
const lockShards = 64

// Allocator credits matched amounts to invoices oldest-due-first and sends
// any remainder to the member's wallet. Allocations for the same member are
// mutually exclusive, and a durable journal keyed by source reference makes
// re-allocation a no-op.
type Allocator struct {
	storage service.Storage
	locks   [lockShards]sync.Mutex
}

// New creates an allocator backed by the given storage.
func New(storage service.Storage) *Allocator {
	return &Allocator{storage: storage}
}

func (a *Allocator) lockFor(memberID int64) *sync.Mutex {
	return &a.locks[uint64(memberID)%lockShards]
}

// Allocate applies amount against the member's outstanding invoices (oldest
// due date first, creation order as tie-break) and credits any remainder to
// the wallet. Invoking it twice with the same sourceRef returns the original
// result with AlreadyProcessed set and changes nothing.
func (a *Allocator) Allocate(ctx context.Context, memberID int64, amount decimal.Decimal, sourceRef string) (*model.AllocationResult, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: %s", common.ErrNonPositiveAmount, amount)
	}
	if sourceRef == "" {
		return nil, fmt.Errorf("%w: source reference is required", common.ErrInvalidConfig)
	}

	mu := a.lockFor(memberID)
	mu.Lock()
	defer mu.Unlock()

	tx, err := a.storage.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin allocation transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Idempotency check first: a journal entry means this source has
	// already been applied.
	existing, err := tx.GetAllocationBySourceRef(ctx, sourceRef)
	if err != nil {
		return nil, fmt.Errorf("failed to check allocation journal: %w", err)
	}
	if existing != nil {
		existing.AlreadyProcessed = true
		slog.Debug("Allocation already processed",
			"source_ref", sourceRef,
			"member_id", memberID)
		return existing, nil
	}

	if _, err = tx.GetMember(ctx, memberID); err != nil {
		return nil, fmt.Errorf("%w: member %d: %v", common.ErrUnknownMember, memberID, err)
	}

	invoices, err := tx.GetOutstandingInvoices(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to load outstanding invoices: %w", err)
	}

	result := &model.AllocationResult{
		SourceRef:    sourceRef,
		MemberID:     memberID,
		TotalApplied: amount,
		WalletCredit: decimal.Zero,
	}

	remaining := amount
	for i := range invoices {
		if !remaining.IsPositive() {
			break
		}
		invoice := &invoices[i]

		payment := decimal.Min(remaining, invoice.Remaining())
		if !payment.IsPositive() {
			continue
		}

		newPaid := invoice.AmountPaid.Add(payment)
		invoice.AmountPaid = newPaid
		status := invoice.DeriveStatus()

		if err = tx.UpdateInvoicePayment(ctx, invoice.ID, newPaid, status); err != nil {
			return nil, fmt.Errorf("failed to apply payment to invoice %d: %w", invoice.ID, err)
		}

		result.Lines = append(result.Lines, model.AllocationLine{
			InvoiceID:     invoice.ID,
			Amount:        payment,
			InvoiceStatus: status,
		})
		remaining = remaining.Sub(payment)
	}

	if remaining.IsPositive() {
		if err = tx.CreditWallet(ctx, memberID, remaining); err != nil {
			return nil, fmt.Errorf("failed to credit wallet: %w", err)
		}
		result.WalletCredit = remaining
	}

	if err = tx.SaveAllocation(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to journal allocation: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit allocation: %w", err)
	}

	slog.Info("Allocated credit",
		"member_id", memberID,
		"source_ref", sourceRef,
		"amount", amount.String(),
		"invoices_paid", len(result.Lines),
		"wallet_credit", result.WalletCredit.String())

	return result, nil
}
