package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mchanga/chamaflow/internal/common"
	"github.com/mchanga/chamaflow/internal/model"
)

// SaveContribution persists a manual contribution.
func (s *SQLiteStorage) SaveContribution(ctx context.Context, contribution *model.ManualContribution) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if contribution == nil {
		return fmt.Errorf("%w: contribution", ErrNilParameter)
	}
	if err := validateString(contribution.ID, "contribution.ID"); err != nil {
		return err
	}
	return s.saveContributionTx(ctx, s.db, contribution)
}

func (s *SQLiteStorage) saveContributionTx(ctx context.Context, q queryable, contribution *model.ManualContribution) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO contributions (id, member_id, amount, source, contributed_at)
		VALUES (?, ?, ?, ?, ?)
	`, contribution.ID, contribution.MemberID, contribution.Amount.String(), contribution.Source, contribution.ContributedAt)
	if err != nil {
		return fmt.Errorf("failed to insert contribution %s: %w", contribution.ID, err)
	}
	return nil
}

// GetContribution fetches a manual contribution by id.
func (s *SQLiteStorage) GetContribution(ctx context.Context, id string) (*model.ManualContribution, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getContributionTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getContributionTx(ctx context.Context, q queryable, id string) (*model.ManualContribution, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, member_id, amount, source, contributed_at FROM contributions WHERE id = ?
	`, id)

	var contribution model.ManualContribution
	var amount string
	err := row.Scan(&contribution.ID, &contribution.MemberID, &amount, &contribution.Source, &contribution.ContributedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("contribution %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan contribution: %w", err)
	}

	if contribution.Amount, err = parseAmount(amount); err != nil {
		return nil, fmt.Errorf("invalid contribution amount %q: %w", amount, err)
	}
	return &contribution, nil
}
