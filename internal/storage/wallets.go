package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/mchanga/chamaflow/internal/common"
	"github.com/mchanga/chamaflow/internal/model"
)

// EnsureWallet returns the member's wallet, creating an empty one on first
// use. Exactly one wallet exists per member.
func (s *SQLiteStorage) EnsureWallet(ctx context.Context, memberID int64) (*model.Wallet, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.ensureWalletTx(ctx, s.db, memberID)
}

func (s *SQLiteStorage) ensureWalletTx(ctx context.Context, q queryable, memberID int64) (*model.Wallet, error) {
	_, err := q.ExecContext(ctx, `
		INSERT OR IGNORE INTO wallets (member_id, balance, locked_balance) VALUES (?, '0', '0')
	`, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet for member %d: %w", memberID, err)
	}

	row := q.QueryRowContext(ctx, `
		SELECT id, member_id, balance, locked_balance FROM wallets WHERE member_id = ?
	`, memberID)

	var wallet model.Wallet
	var balance, locked string
	err = row.Scan(&wallet.ID, &wallet.MemberID, &balance, &locked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("wallet for member %d: %w", memberID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan wallet: %w", err)
	}

	if wallet.Balance, err = parseAmount(balance); err != nil {
		return nil, fmt.Errorf("invalid wallet balance %q: %w", balance, err)
	}
	if wallet.LockedBalance, err = parseAmount(locked); err != nil {
		return nil, fmt.Errorf("invalid locked balance %q: %w", locked, err)
	}
	return &wallet, nil
}

// CreditWallet adds a positive amount to the member's wallet balance.
func (s *SQLiteStorage) CreditWallet(ctx context.Context, memberID int64, amount decimal.Decimal) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return s.creditWalletTx(ctx, s.db, memberID, amount)
}

func (s *SQLiteStorage) creditWalletTx(ctx context.Context, q queryable, memberID int64, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s", common.ErrNonPositiveAmount, amount)
	}

	wallet, err := s.ensureWalletTx(ctx, q, memberID)
	if err != nil {
		return err
	}

	newBalance := wallet.Balance.Add(amount)
	_, err = q.ExecContext(ctx, `
		UPDATE wallets SET balance = ? WHERE member_id = ?
	`, newBalance.String(), memberID)
	if err != nil {
		return fmt.Errorf("failed to credit wallet for member %d: %w", memberID, err)
	}
	return nil
}
