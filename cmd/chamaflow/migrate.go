package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mchanga/chamaflow/internal/cli"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version. Other
commands migrate automatically; this exists for provisioning and
scripted setups.`,
		RunE: runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	store, err := openStorage()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(cmd.Context()); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("Database schema is up to date")
	cmd.Println(cli.FormatSuccess("database schema is up to date"))
	return nil
}
