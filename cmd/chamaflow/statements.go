package main

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/mchanga/chamaflow/internal/cli"
	"github.com/mchanga/chamaflow/internal/model"
	"github.com/mchanga/chamaflow/internal/service"
)

func statementsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "statements",
		Short: "Inspect uploaded statements",
	}
	cmd.AddCommand(statementsListCmd())
	cmd.AddCommand(statementsShowCmd())
	return cmd
}

func statementsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List statements and their processing state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ctx := cmd.Context()
			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}

			statements, err := store.ListStatements(ctx)
			if err != nil {
				return fmt.Errorf("failed to list statements: %w", err)
			}
			if len(statements) == 0 {
				cmd.Println("No statements uploaded yet.")
				return nil
			}

			header := fmt.Sprintf("%-36s  %-10s  %-16s  %s", "ID", "STATUS", "UPLOADED", "FILE")
			cmd.Println(cli.TableHeaderStyle.Render(header))
			for _, statement := range statements {
				status := cli.StatementStatusStyle(statement.Status).Render(string(statement.Status))
				cmd.Printf("%-36s  %-10s  %-16s  %s\n",
					statement.ID, status,
					formatTime(statement.UploadedAt),
					statement.FilePath)
				if statement.Status == model.StatementFailed && statement.ErrorMessage != "" {
					cmd.Println(cli.ErrorStyle.Render("    " + statement.ErrorMessage))
				}
			}
			return nil
		},
	}
}

func statementsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <statement-id>",
		Short: "Show a statement's transactions, duplicates, and totals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStorage()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ctx := cmd.Context()
			if err := store.Migrate(ctx); err != nil {
				return fmt.Errorf("failed to migrate database: %w", err)
			}
			return showStatement(cmd, store, args[0])
		},
	}
}

func showStatement(cmd *cobra.Command, store service.Storage, id string) error {
	ctx := cmd.Context()

	statement, err := store.GetStatement(ctx, id)
	if err != nil {
		return err
	}
	transactions, err := store.GetTransactionsByStatement(ctx, id)
	if err != nil {
		return err
	}
	duplicates, err := store.GetDuplicatesByStatement(ctx, id)
	if err != nil {
		return err
	}

	cmd.Println(cli.TitleStyle.Render(fmt.Sprintf("Statement %s", statement.ID)))
	cmd.Printf("  status:   %s\n", cli.StatementStatusStyle(statement.Status).Render(string(statement.Status)))
	cmd.Printf("  uploaded: %s\n", formatTime(statement.UploadedAt))
	cmd.Printf("  file:     %s\n", statement.FilePath)
	if statement.ErrorMessage != "" {
		cmd.Printf("  error:    %s\n", cli.ErrorStyle.Render(statement.ErrorMessage))
	}
	cmd.Println()

	// Totals exclude flagged duplicates so re-uploaded rows never inflate
	// the money moved.
	totalCredit, totalDebit := decimal.Zero, decimal.Zero
	for _, txn := range transactions {
		if txn.AssignmentStatus == model.AssignmentDuplicate {
			continue
		}
		totalCredit = totalCredit.Add(txn.Credit)
		totalDebit = totalDebit.Add(txn.Debit)
	}

	header := fmt.Sprintf("%-12s  %-34s  %12s  %12s  %-16s  %s",
		"DATE", "DESCRIPTION", "CREDIT", "DEBIT", "STATUS", "MATCH")
	cmd.Println(cli.TableHeaderStyle.Render(header))
	for _, txn := range transactions {
		description := txn.Description
		if len(description) > 34 {
			description = description[:31] + "..."
		}
		matchInfo := txn.MatchReason
		if txn.MatchConfidence > 0 {
			matchInfo = fmt.Sprintf("%s (%.0f%%)", txn.MatchReason, txn.MatchConfidence*100)
		}
		status := cli.AssignmentStatusStyle(txn.AssignmentStatus).Render(string(txn.AssignmentStatus))
		cmd.Printf("%-12s  %-34s  %12s  %12s  %-16s  %s\n",
			txn.Date.Format("2006-01-02"), description,
			txn.Credit.StringFixed(2), txn.Debit.StringFixed(2),
			status, matchInfo)
	}

	cmd.Println()
	cmd.Printf("  rows: %d   duplicates: %d   credit: %s   debit: %s\n",
		len(transactions), len(duplicates),
		totalCredit.StringFixed(2), totalDebit.StringFixed(2))

	if len(duplicates) > 0 {
		cmd.Println()
		cmd.Println(cli.SubtleStyle.Render("Duplicates:"))
		for _, record := range duplicates {
			cmd.Println(cli.SubtleStyle.Render(fmt.Sprintf(
				"  %s duplicates %s (%s)",
				record.DuplicateTransactionID,
				record.OriginalTransactionID,
				strings.ReplaceAll(record.Reason, "_", " "))))
		}
	}
	return nil
}
