// Package engine orchestrates statement reconciliation: extraction,
// duplicate flagging, member matching, and the events that drive
// allocation.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mchanga/chamaflow/internal/common"
	"github.com/mchanga/chamaflow/internal/dupe"
	"github.com/mchanga/chamaflow/internal/extract"
	"github.com/mchanga/chamaflow/internal/match"
	"github.com/mchanga/chamaflow/internal/model"
	"github.com/mchanga/chamaflow/internal/phone"
	"github.com/mchanga/chamaflow/internal/service"
)

// ReconcileEngine runs uploaded statements through the pipeline.
type ReconcileEngine struct {
	storage    service.Storage
	matcher    match.Matcher
	detector   *dupe.Detector
	bus        *Bus
	autoAssign float64
	workers    int
	retryOpts  service.RetryOptions
}

// Config holds engine tuning knobs.
type Config struct {
	// AutoAssignThreshold is the minimum match confidence at which a
	// transaction is assigned without human review.
	AutoAssignThreshold float64
	// Workers bounds concurrent statement processing in ProcessPending.
	Workers int
	// Retry applies to extractor I/O.
	Retry service.RetryOptions
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		AutoAssignThreshold: match.DefaultThresholds().AutoAssign,
		Workers:             4,
		Retry: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
		},
	}
}

// New creates a reconciliation engine with default configuration.
func New(storage service.Storage, matcher match.Matcher, bus *Bus) *ReconcileEngine {
	return NewWithConfig(storage, matcher, bus, DefaultConfig())
}

// NewWithConfig creates a reconciliation engine with custom configuration.
func NewWithConfig(storage service.Storage, matcher match.Matcher, bus *Bus, config Config) *ReconcileEngine {
	if config.AutoAssignThreshold <= 0 {
		config.AutoAssignThreshold = match.DefaultThresholds().AutoAssign
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	return &ReconcileEngine{
		storage:    storage,
		matcher:    matcher,
		detector:   dupe.NewDetector(storage),
		bus:        bus,
		autoAssign: config.AutoAssignThreshold,
		workers:    config.Workers,
		retryOpts:  config.Retry,
	}
}

// ProcessReport summarizes one statement run.
type ProcessReport struct {
	StatementID  string
	Extracted    int
	Duplicates   int
	AutoAssigned int
	Unmatched    int
	FailedRows   int
}

// transactionCodePattern picks bank reference codes out of free-text
// descriptions. Codes are 8 to 15 upper-case alphanumerics containing at
// least one digit, which keeps ordinary words out.
var transactionCodePattern = regexp.MustCompile(`\b[A-Z0-9]{8,15}\b`)

func extractTransactionCode(description string) string {
	for _, candidate := range transactionCodePattern.FindAllString(description, -1) {
		hasDigit, hasLetter := false, false
		for _, r := range candidate {
			switch {
			case r >= '0' && r <= '9':
				hasDigit = true
			case r >= 'A' && r <= 'Z':
				hasLetter = true
			}
		}
		if hasDigit && hasLetter {
			return candidate
		}
	}
	return ""
}

// ProcessStatement runs one statement through extraction, duplicate
// flagging, and matching. Only statements in the uploaded state are
// eligible. A failure at any stage marks the statement failed with the
// error message; rows persisted before the failure are kept for
// inspection.
func (e *ReconcileEngine) ProcessStatement(ctx context.Context, statementID string) (report *ProcessReport, err error) {
	statement, err := e.storage.GetStatement(ctx, statementID)
	if err != nil {
		return nil, fmt.Errorf("failed to load statement %s: %w", statementID, err)
	}
	switch statement.Status {
	case model.StatementUploaded:
	case model.StatementCompleted:
		return nil, fmt.Errorf("%w: %s", common.ErrStatementProcessed, statementID)
	default:
		return nil, fmt.Errorf("%w: statement %s is %s", common.ErrStatementNotReady, statementID, statement.Status)
	}

	if err = e.storage.UpdateStatementStatus(ctx, statementID, model.StatementProcessing, ""); err != nil {
		return nil, fmt.Errorf("failed to mark statement processing: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("statement processing panicked: %v", r)
		}
		if err != nil {
			e.markFailed(statementID, err)
		}
	}()

	slog.Info("Processing statement",
		"statement_id", statementID,
		"file", statement.FilePath)

	rows, err := e.extractRows(ctx, statement)
	if err != nil {
		return nil, err
	}

	transactions := e.buildTransactions(statement.ID, rows)
	if err = e.storage.SaveTransactions(ctx, transactions); err != nil {
		return nil, fmt.Errorf("failed to persist transactions: %w", err)
	}
	for _, txn := range transactions {
		e.bus.Publish(ctx, Event{
			Kind:          EventTransactionCreated,
			StatementID:   statement.ID,
			TransactionID: txn.ID,
		})
	}

	duplicates, err := e.detector.FlagStatement(ctx, statement.ID)
	if err != nil {
		return nil, fmt.Errorf("duplicate detection failed: %w", err)
	}

	report = &ProcessReport{
		StatementID: statement.ID,
		Extracted:   len(transactions),
		Duplicates:  duplicates,
	}
	if err = e.matchStatement(ctx, statement.ID, report); err != nil {
		return nil, err
	}

	// Allocation handlers must finish before the statement is declared
	// done, otherwise a caller could observe a completed statement whose
	// wallet effects are still in flight.
	e.bus.Drain()

	if err = e.storage.UpdateStatementStatus(ctx, statementID, model.StatementCompleted, ""); err != nil {
		return nil, fmt.Errorf("failed to mark statement completed: %w", err)
	}

	slog.Info("Statement completed",
		"statement_id", statementID,
		"extracted", report.Extracted,
		"duplicates", report.Duplicates,
		"auto_assigned", report.AutoAssigned,
		"unmatched", report.Unmatched,
		"failed_rows", report.FailedRows)
	return report, nil
}

func (e *ReconcileEngine) extractRows(ctx context.Context, statement *model.Statement) ([]extract.Row, error) {
	extractor, err := extract.ForFile(statement.FilePath)
	if err != nil {
		return nil, err
	}

	var rows []extract.Row
	err = common.WithRetry(ctx, func() error {
		var extractErr error
		rows, extractErr = extractor.Extract(ctx, statement.FilePath)
		return extractErr
	}, e.retryOpts)
	if err != nil {
		return nil, fmt.Errorf("extraction (%s) failed: %w", extractor.Format(), err)
	}
	return rows, nil
}

func (e *ReconcileEngine) buildTransactions(statementID string, rows []extract.Row) []model.Transaction {
	transactions := make([]model.Transaction, len(rows))
	for i, row := range rows {
		txn := model.Transaction{
			ID:               uuid.New().String(),
			StatementID:      statementID,
			ExternalID:       row.ExternalID,
			Date:             row.Date,
			Description:      row.Description,
			TransactionCode:  extractTransactionCode(row.Description),
			Phones:           phone.Extract(row.Description),
			Credit:           row.Credit,
			Debit:            row.Debit,
			Balance:          row.Balance,
			AssignmentStatus: model.AssignmentUnmatched,
		}
		txn.RowHash = txn.Fingerprint()
		transactions[i] = txn
	}
	return transactions
}

// matchStatement scores the statement's non-duplicate rows and applies
// assignments. A matcher failure leaves rows unmatched rather than failing
// the statement; a single row's persistence failure is logged and skipped.
func (e *ReconcileEngine) matchStatement(ctx context.Context, statementID string, report *ProcessReport) error {
	transactions, err := e.storage.GetTransactionsByStatement(ctx, statementID)
	if err != nil {
		return fmt.Errorf("failed to reload transactions: %w", err)
	}

	candidates := make([]model.Transaction, 0, len(transactions))
	for _, txn := range transactions {
		if txn.AssignmentStatus != model.AssignmentDuplicate {
			candidates = append(candidates, txn)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	members, err := e.storage.ListActiveMembers(ctx)
	if err != nil {
		return fmt.Errorf("failed to load members: %w", err)
	}

	results, err := e.matcher.MatchBatch(ctx, candidates, members)
	if err != nil {
		slog.Error("Matcher unavailable, leaving rows unmatched",
			"statement_id", statementID,
			"rows", len(candidates),
			"error", err)
		report.Unmatched = len(candidates)
		return nil
	}

	for i, result := range results {
		txn := candidates[i]
		if err := e.applyMatch(ctx, txn, result); err != nil {
			slog.Error("Failed to apply match result",
				"transaction_id", txn.ID,
				"error", err)
			report.FailedRows++
			continue
		}
		if result.Matched() && result.Confidence >= e.autoAssign {
			report.AutoAssigned++
		} else {
			report.Unmatched++
		}
	}
	return nil
}

func (e *ReconcileEngine) applyMatch(ctx context.Context, txn model.Transaction, result model.MatchResult) error {
	if result.Matched() && result.Confidence >= e.autoAssign {
		if err := e.storage.UpdateTransactionAssignment(ctx, txn.ID, result.CandidateMemberID, model.AssignmentAuto, result.Confidence, result.Reason); err != nil {
			return err
		}
		e.bus.Publish(ctx, Event{
			Kind:          EventTransactionAssigned,
			StatementID:   txn.StatementID,
			TransactionID: txn.ID,
		})
		return nil
	}
	// Below the cutoff the candidate is recorded for review but nothing is
	// assigned.
	return e.storage.UpdateTransactionAssignment(ctx, txn.ID, nil, model.AssignmentUnmatched, result.Confidence, result.Reason)
}

// AssignTransaction records an operator's decision tying a transaction to a
// member. It publishes the same assignment event the matcher does, so the
// credit flows through allocation; the allocation journal makes repeating an
// assignment safe. Duplicate rows cannot be assigned.
func (e *ReconcileEngine) AssignTransaction(ctx context.Context, transactionID string, memberID int64) error {
	txn, err := e.storage.GetTransactionByID(ctx, transactionID)
	if err != nil {
		return fmt.Errorf("failed to load transaction %s: %w", transactionID, err)
	}
	if txn.AssignmentStatus == model.AssignmentDuplicate {
		return fmt.Errorf("transaction %s is flagged as a duplicate", transactionID)
	}

	member, err := e.storage.GetMember(ctx, memberID)
	if err != nil {
		return fmt.Errorf("%w: member %d", common.ErrUnknownMember, memberID)
	}

	reason := fmt.Sprintf("Manually assigned to %s", member.Name)
	if err := e.storage.UpdateTransactionAssignment(ctx, transactionID, &memberID, model.AssignmentManual, 1, reason); err != nil {
		return fmt.Errorf("failed to record assignment: %w", err)
	}

	e.bus.Publish(ctx, Event{
		Kind:          EventTransactionAssigned,
		StatementID:   txn.StatementID,
		TransactionID: transactionID,
	})
	e.bus.Drain()

	slog.Info("Transaction manually assigned",
		"transaction_id", transactionID,
		"member_id", memberID)
	return nil
}

// markFailed records a failure on the statement. Rows already persisted
// stay for inspection.
func (e *ReconcileEngine) markFailed(statementID string, cause error) {
	// The run's context may already be canceled.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if updateErr := e.storage.UpdateStatementStatus(ctx, statementID, model.StatementFailed, cause.Error()); updateErr != nil {
		slog.Error("Failed to mark statement failed",
			"statement_id", statementID,
			"error", updateErr)
	}
	slog.Error("Statement processing failed",
		"statement_id", statementID,
		"error", cause)
}

// ProcessPending runs every uploaded statement through the pipeline using
// a bounded worker pool. It returns how many statements completed and how
// many failed.
func (e *ReconcileEngine) ProcessPending(ctx context.Context) (completed, failed int, err error) {
	pending, err := e.storage.ListStatementsByStatus(ctx, model.StatementUploaded)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list pending statements: %w", err)
	}
	if len(pending) == 0 {
		return 0, 0, nil
	}

	ids := make(chan string, len(pending))
	for _, statement := range pending {
		ids <- statement.ID
	}
	close(ids)

	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range ids {
				_, runErr := e.ProcessStatement(ctx, id)
				mu.Lock()
				if runErr != nil {
					failed++
				} else {
					completed++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return completed, failed, nil
}

// Requeue resets the given statements back to uploaded for a fresh run,
// purging their previously extracted rows and duplicate records first. Only
// finished statements qualify; a statement whose source file has gone missing
// is marked failed instead.
func (e *ReconcileEngine) Requeue(ctx context.Context, statementIDs []string) (*service.RequeueReport, error) {
	report := &service.RequeueReport{RowsPurged: make(map[string]int64)}

	for _, id := range statementIDs {
		statement, err := e.storage.GetStatement(ctx, id)
		if err != nil {
			return report, fmt.Errorf("failed to load statement %s: %w", id, err)
		}

		switch statement.Status {
		case model.StatementUploaded:
			return report, fmt.Errorf("%w: %s", common.ErrStatementUploaded, id)
		case model.StatementProcessing:
			return report, fmt.Errorf("%w: statement %s is processing", common.ErrStatementNotReady, id)
		}

		if _, statErr := os.Stat(statement.FilePath); statErr != nil {
			if updateErr := e.storage.UpdateStatementStatus(ctx, id, model.StatementFailed, fmt.Sprintf("source file missing: %v", statErr)); updateErr != nil {
				return report, fmt.Errorf("failed to mark statement %s failed: %w", id, updateErr)
			}
			report.Failed++
			slog.Warn("Cannot re-queue statement, source file missing",
				"statement_id", id,
				"file", statement.FilePath)
			continue
		}

		purged, err := e.storage.PurgeStatementRows(ctx, id)
		if err != nil {
			return report, fmt.Errorf("failed to purge rows for statement %s: %w", id, err)
		}
		if err := e.storage.UpdateStatementStatus(ctx, id, model.StatementUploaded, ""); err != nil {
			return report, fmt.Errorf("failed to reset statement %s: %w", id, err)
		}

		report.RowsPurged[id] = purged
		report.Requeued++
		slog.Info("Re-queued statement",
			"statement_id", id,
			"rows_purged", purged)
	}
	return report, nil
}

// RequeueAll re-queues every statement that has finished, successfully or
// not.
func (e *ReconcileEngine) RequeueAll(ctx context.Context) (*service.RequeueReport, error) {
	finished, err := e.storage.ListStatementsByStatus(ctx, model.StatementCompleted, model.StatementFailed)
	if err != nil {
		return nil, fmt.Errorf("failed to list statements: %w", err)
	}
	ids := make([]string, len(finished))
	for i, statement := range finished {
		ids[i] = statement.ID
	}
	return e.Requeue(ctx, ids)
}
