package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mchanga/chamaflow/internal/schedule"
)

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the reconciliation loop continuously",
		Long: `Process newly uploaded statements on a schedule and, when an invoice
amount is configured, generate monthly invoices automatically. Runs
until interrupted.`,
		RunE: runWatch,
	}
	cmd.Flags().String("process-schedule", "", "Cron expression for statement processing (default: every 5 minutes)")
	cmd.Flags().String("invoice-schedule", "", "Cron expression for invoice generation (default: 06:00 on the 1st)")
	cmd.Flags().String("invoice-amount", "", "Monthly amount billed per member; empty disables scheduled invoicing")
	_ = viper.BindPFlag("schedule.process", cmd.Flags().Lookup("process-schedule"))
	_ = viper.BindPFlag("schedule.invoices", cmd.Flags().Lookup("invoice-schedule"))
	_ = viper.BindPFlag("schedule.invoice_amount", cmd.Flags().Lookup("invoice-amount"))
	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	store, err := openStorage()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	eng, err := newEngine(store)
	if err != nil {
		return err
	}

	config := schedule.Config{
		ProcessSchedule: viper.GetString("schedule.process"),
		InvoiceSchedule: viper.GetString("schedule.invoices"),
	}
	if raw := viper.GetString("schedule.invoice_amount"); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("invalid invoice amount %q: %w", raw, err)
		}
		config.InvoiceAmount = amount
	}

	scheduler := schedule.New(store, eng, config)
	if err := scheduler.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	scheduler.Stop()
	return nil
}
