package engine

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mchanga/chamaflow/internal/allocate"
	"github.com/mchanga/chamaflow/internal/model"
	"github.com/mchanga/chamaflow/internal/service"
)

// EventKind identifies a pipeline event.
type EventKind string

// Pipeline events.
const (
	EventTransactionCreated  EventKind = "transaction.created"
	EventTransactionAssigned EventKind = "transaction.assigned"
	EventContributionCreated EventKind = "contribution.created"
)

// Event carries the identifiers a handler needs to load the full record.
type Event struct {
	Kind           EventKind
	StatementID    string
	TransactionID  string
	ContributionID string
}

// Handler reacts to one event. Handlers run outside the publishing call
// path; a handler failure is logged and never reaches the publisher.
type Handler func(ctx context.Context, event Event)

// Bus is an in-process publish/subscribe dispatcher. Publishing is
// fire-and-forget: each handler runs in its own goroutine, and Drain waits
// for all in-flight handlers before a statement run is declared finished.
type Bus struct {
	handlers map[EventKind][]Handler
	mu       sync.RWMutex
	wg       sync.WaitGroup
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[EventKind][]Handler)}
}

// Subscribe registers a handler for an event kind.
func (b *Bus) Subscribe(kind EventKind, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[kind] = append(b.handlers[kind], handler)
}

// Publish dispatches the event to every subscribed handler asynchronously.
// It never blocks on handler work and never returns handler errors.
func (b *Bus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := b.handlers[event.Kind]
	b.mu.RUnlock()

	for _, handler := range handlers {
		b.wg.Add(1)
		go func(h Handler) {
			defer b.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					slog.Error("Event handler panicked",
						"kind", event.Kind,
						"transaction_id", event.TransactionID,
						"panic", r)
				}
			}()
			h(ctx, event)
		}(handler)
	}
}

// Drain blocks until every published handler invocation has returned.
func (b *Bus) Drain() {
	b.wg.Wait()
}

// RegisterAutoAllocation subscribes the allocation side effects: an assigned
// credit or a recorded manual contribution is applied to the member's
// invoices and wallet. Allocation failures are logged with the record's
// identifier and never surface to the pipeline; the allocation journal
// makes a later manual retry safe.
func RegisterAutoAllocation(bus *Bus, storage service.Storage, allocator *allocate.Allocator) {
	transactionHandler := func(ctx context.Context, event Event) {
		txn, err := storage.GetTransactionByID(ctx, event.TransactionID)
		if err != nil {
			slog.Error("Auto-allocation could not load transaction",
				"transaction_id", event.TransactionID,
				"error", err)
			return
		}
		if txn.MemberID == nil || txn.AssignmentStatus == model.AssignmentDuplicate || !txn.Credit.IsPositive() {
			return
		}
		// Keyed by row fingerprint, not transaction id: a re-queued
		// statement gets fresh transaction ids but must not be
		// allocated twice.
		if _, err := allocator.Allocate(ctx, *txn.MemberID, txn.Credit, "txn:"+txn.RowHash); err != nil {
			slog.Error("Auto-allocation failed for transaction",
				"transaction_id", txn.ID,
				"member_id", *txn.MemberID,
				"error", err)
		}
	}

	// A freshly extracted row usually has no member yet, so the created
	// hook is a no-op for it and the assigned hook fires once matching or
	// an operator ties it to someone. Rows written with a member already
	// set allocate on creation.
	bus.Subscribe(EventTransactionCreated, transactionHandler)
	bus.Subscribe(EventTransactionAssigned, transactionHandler)

	bus.Subscribe(EventContributionCreated, func(ctx context.Context, event Event) {
		contribution, err := storage.GetContribution(ctx, event.ContributionID)
		if err != nil {
			slog.Error("Auto-allocation could not load contribution",
				"contribution_id", event.ContributionID,
				"error", err)
			return
		}
		if _, err := allocator.Allocate(ctx, contribution.MemberID, contribution.Amount, "contrib:"+contribution.ID); err != nil {
			slog.Error("Auto-allocation failed for contribution",
				"contribution_id", contribution.ID,
				"member_id", contribution.MemberID,
				"error", err)
		}
	})
}
