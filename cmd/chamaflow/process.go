package main

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/mchanga/chamaflow/internal/cli"
	"github.com/mchanga/chamaflow/internal/engine"
	"github.com/mchanga/chamaflow/internal/model"
)

func processCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process [statement-id...]",
		Short: "Reconcile uploaded statements",
		Long: `Run uploaded statements through extraction, duplicate flagging, member
matching, and allocation. With no arguments every uploaded statement is
processed.`,
		RunE: runProcess,
	}
	return cmd
}

func runProcess(cmd *cobra.Command, args []string) error {
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

	ids := args
	if len(ids) == 0 {
		pending, err := store.ListStatementsByStatus(ctx, model.StatementUploaded)
		if err != nil {
			return fmt.Errorf("failed to list uploaded statements: %w", err)
		}
		if len(pending) == 0 {
			cmd.Println("Nothing to process.")
			return nil
		}
		for _, statement := range pending {
			ids = append(ids, statement.ID)
		}
	}

	bar := progressbar.NewOptions(len(ids),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Reconciling statements..."),
	)

	failures := 0
	for _, id := range ids {
		report, runErr := eng.ProcessStatement(ctx, id)
		_ = bar.Add(1)
		if runErr != nil {
			failures++
			cmd.Println(cli.FormatError(fmt.Sprintf("statement %s: %v", id, runErr)))
			continue
		}
		printReport(cmd, report)
	}
	_ = bar.Finish()
	cmd.Println()

	if failures > 0 {
		return fmt.Errorf("%d of %d statements failed", failures, len(ids))
	}
	return nil
}

func printReport(cmd *cobra.Command, report *engine.ProcessReport) {
	cmd.Println(cli.FormatSuccess(fmt.Sprintf(
		"statement %s: %d rows, %d duplicates, %d auto-assigned, %d for review",
		report.StatementID, report.Extracted, report.Duplicates,
		report.AutoAssigned, report.Unmatched)))
	if report.FailedRows > 0 {
		cmd.Println(cli.FormatWarning(fmt.Sprintf(
			"%d rows could not be updated, see logs", report.FailedRows)))
	}
}
