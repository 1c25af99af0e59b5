package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mchanga/chamaflow/internal/cli"
)

func assignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assign <transaction-id> <member-id>",
		Short: "Manually assign a transaction to a member",
		Long: `Tie a transaction the matcher could not place to a member. The credit is
applied to the member's outstanding invoices and wallet exactly as an
automatic match would be. Use "chamaflow statements show" to find the
transaction id.`,
		Args: cobra.ExactArgs(2),
		RunE: runAssign,
	}
}

func runAssign(cmd *cobra.Command, args []string) error {
	transactionID := args[0]
	var memberID int64
	if _, err := fmt.Sscanf(args[1], "%d", &memberID); err != nil {
		return fmt.Errorf("invalid member id %q", args[1])
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
	if err := eng.AssignTransaction(ctx, transactionID, memberID); err != nil {
		return err
	}

	cmd.Println(cli.FormatSuccess(fmt.Sprintf(
		"transaction %s assigned to member %d", transactionID, memberID)))
	return nil
}
