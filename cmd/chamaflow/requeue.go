package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mchanga/chamaflow/internal/cli"
	"github.com/mchanga/chamaflow/internal/service"
)

func requeueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requeue [statement-id...]",
		Short: "Reset statements for a fresh reconciliation run",
		Long: `Purge a statement's extracted rows and duplicate records and put it back
in the uploaded state. Useful after fixing member data or matcher
configuration. Money already allocated is never allocated twice; the
allocation journal survives the re-run.`,
		RunE: runRequeue,
	}
	cmd.Flags().Bool("all", false, "Re-queue every completed and failed statement")
	return cmd
}

func runRequeue(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	if !all && len(args) == 0 {
		return fmt.Errorf("pass statement ids or --all")
	}
	if all && len(args) > 0 {
		return fmt.Errorf("--all cannot be combined with statement ids")
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

	eng, err := newEngine(store)
	if err != nil {
		return err
	}

	report, err := func() (*service.RequeueReport, error) {
		if all {
			return eng.RequeueAll(ctx)
		}
		return eng.Requeue(ctx, args)
	}()
	if err != nil {
		return err
	}

	for id, purged := range report.RowsPurged {
		cmd.Println(cli.SubtleStyle.Render(fmt.Sprintf("  %s: purged %d rows", id, purged)))
	}
	cmd.Println(cli.FormatSuccess(fmt.Sprintf("re-queued %d statements", report.Requeued)))
	if report.Failed > 0 {
		cmd.Println(cli.FormatWarning(fmt.Sprintf(
			"%d statements could not be re-queued (source file missing)", report.Failed)))
	}
	return nil
}
