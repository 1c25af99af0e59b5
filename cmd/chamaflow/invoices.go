package main

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/mchanga/chamaflow/internal/cli"
	"github.com/mchanga/chamaflow/internal/schedule"
)

func invoicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoices",
		Short: "Manage member invoices",
	}
	cmd.AddCommand(invoicesGenerateCmd())
	return cmd
}

func invoicesGenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Bill every active member for a period",
		Long: `Create one invoice per active member for the given period. Members
already invoiced for that period are skipped, so the command can be
re-run safely.`,
		RunE: runInvoicesGenerate,
	}
	cmd.Flags().String("period", time.Now().Format("2006-01"), "Billing period (YYYY-MM)")
	cmd.Flags().String("amount", "", "Amount due per member (required)")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func runInvoicesGenerate(cmd *cobra.Command, _ []string) error {
	period, _ := cmd.Flags().GetString("period")
	rawAmount, _ := cmd.Flags().GetString("amount")

	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", rawAmount, err)
	}

	store, err := openStorage()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	created, err := schedule.GenerateInvoices(ctx, store, period, amount)
	if err != nil {
		return err
	}
	cmd.Println(cli.FormatSuccess(fmt.Sprintf(
		"created %d invoices for %s at %s each", created, period, amount.StringFixed(2))))
	return nil
}
