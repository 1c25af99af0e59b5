// Package dupe flags transactions that re-occur across or within
// statements. Duplicates remain visible for audit but are excluded from
// matching and allocation.
package dupe

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mchanga/chamaflow/internal/model"
	"github.com/mchanga/chamaflow/internal/service"
)

// Detector decides whether newly extracted transactions repeat previously
// ingested ones. Equality is by fingerprint: external id when the extractor
// supplied one, otherwise date + amounts + normalized description.
type Detector struct {
	storage service.Storage
}

// NewDetector creates a detector backed by the given storage.
func NewDetector(storage service.Storage) *Detector {
	return &Detector{storage: storage}
}

// FlagStatement scans a statement's rows in extraction order and flags both
// cross-statement repeats (the original lives in an earlier statement) and
// intra-statement repeats (the first occurrence in this statement stays
// primary). Flagging depends only on fingerprints and row order, so
// re-running it over the same rows yields the same decisions.
func (d *Detector) FlagStatement(ctx context.Context, statementID string) (int, error) {
	transactions, err := d.storage.GetTransactionsByStatement(ctx, statementID)
	if err != nil {
		return 0, fmt.Errorf("failed to load transactions for duplicate check: %w", err)
	}

	flagged := 0
	firstSeen := make(map[string]string)

	for i := range transactions {
		txn := &transactions[i]

		original, findErr := d.storage.FindOriginalByRowHash(ctx, txn.RowHash, statementID)
		if findErr != nil {
			return flagged, fmt.Errorf("failed to look up fingerprint for transaction %s: %w", txn.ID, findErr)
		}

		var originalID, reason string
		switch {
		case original != nil:
			originalID = original.ID
			reason = model.DuplicateCrossStatement
		default:
			prior, seen := firstSeen[txn.RowHash]
			if !seen {
				firstSeen[txn.RowHash] = txn.ID
				continue
			}
			originalID = prior
			reason = model.DuplicateIntraStatement
		}

		if err := d.flag(ctx, txn, originalID, reason); err != nil {
			return flagged, err
		}
		flagged++
	}

	if flagged > 0 {
		slog.Info("Flagged duplicate transactions",
			"statement_id", statementID,
			"count", flagged)
	}
	return flagged, nil
}

func (d *Detector) flag(ctx context.Context, txn *model.Transaction, originalID, reason string) error {
	if txn.AssignmentStatus != model.AssignmentDuplicate {
		if err := d.storage.UpdateTransactionAssignment(ctx, txn.ID, nil, model.AssignmentDuplicate, 0, "Duplicate of previously ingested transaction"); err != nil {
			return fmt.Errorf("failed to mark transaction %s duplicate: %w", txn.ID, err)
		}
	}

	record := &model.DuplicateRecord{
		StatementID:            txn.StatementID,
		OriginalTransactionID:  originalID,
		DuplicateTransactionID: txn.ID,
		Reason:                 reason,
	}
	if err := d.storage.RecordDuplicate(ctx, record); err != nil {
		return fmt.Errorf("failed to record duplicate for transaction %s: %w", txn.ID, err)
	}
	return nil
}
