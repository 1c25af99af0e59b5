package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/mchanga/chamaflow/internal/allocate"
	"github.com/mchanga/chamaflow/internal/cli"
	"github.com/mchanga/chamaflow/internal/common"
	"github.com/mchanga/chamaflow/internal/model"
)

func contributeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contribute <member-id> <amount>",
		Short: "Record a manual contribution for a member",
		Long: `Record a contribution received outside any bank statement (cash, a
correction, an opening balance). The amount is applied to the member's
outstanding invoices immediately, oldest first, with any remainder
credited to their wallet.`,
		Args: cobra.ExactArgs(2),
		RunE: runContribute,
	}
	cmd.Flags().String("source", "manual", "Where this contribution came from, for the audit trail")
	return cmd
}

func runContribute(cmd *cobra.Command, args []string) error {
	var memberID int64
	if _, err := fmt.Sscanf(args[0], "%d", &memberID); err != nil {
		return fmt.Errorf("invalid member id %q", args[0])
	}
	amount, err := decimal.NewFromString(args[1])
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", args[1], err)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s", common.ErrNonPositiveAmount, amount)
	}
	source, _ := cmd.Flags().GetString("source")

	store, err := openStorage()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	if _, err := store.GetMember(ctx, memberID); err != nil {
		return fmt.Errorf("%w: member %d", common.ErrUnknownMember, memberID)
	}

	contribution := &model.ManualContribution{
		ID:            uuid.New().String(),
		MemberID:      memberID,
		Amount:        amount,
		Source:        source,
		ContributedAt: time.Now(),
	}
	if err := store.SaveContribution(ctx, contribution); err != nil {
		return fmt.Errorf("failed to record contribution: %w", err)
	}

	result, err := allocate.New(store).Allocate(ctx, memberID, amount, "contrib:"+contribution.ID)
	if err != nil {
		return fmt.Errorf("contribution recorded but allocation failed: %w", err)
	}

	cmd.Println(cli.FormatSuccess(fmt.Sprintf(
		"contribution %s recorded: %s applied to %d invoices, %s to wallet",
		contribution.ID, result.TotalApplied.StringFixed(2),
		len(result.Lines), result.WalletCredit.StringFixed(2))))
	return nil
}
