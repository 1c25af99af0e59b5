package main

import (
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mchanga/chamaflow/internal/cli"
	"github.com/mchanga/chamaflow/internal/config"
	"github.com/mchanga/chamaflow/internal/extract"
	"github.com/mchanga/chamaflow/internal/model"
)

func uploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Register a bank statement for processing",
		Long: `Register a statement file (CSV, OFX/QFX, or PDF) for reconciliation.

The file's content hash is recorded; uploading the same file twice is
reported so duplicate ingestion is a deliberate choice, not an accident.
Run "chamaflow process" afterwards to reconcile it.`,
		Args: cobra.ExactArgs(1),
		RunE: runUpload,
	}
	cmd.Flags().Bool("process", false, "Process the statement immediately after upload")
	cmd.Flags().Bool("archive", false, "Copy the file into the statement archive so re-queues survive the original moving")
	return cmd
}

func runUpload(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	// Reject unsupported formats before touching storage.
	if _, err := extract.ForFile(path); err != nil {
		return err
	}

	sourceHash, err := hashFile(path)
	if err != nil {
		return err
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

	if existing, err := store.GetStatementBySourceHash(ctx, sourceHash); err != nil {
		return fmt.Errorf("failed to check for prior upload: %w", err)
	} else if existing != nil {
		cmd.Println(cli.FormatWarning(fmt.Sprintf(
			"this file was already uploaded as statement %s (%s); duplicate rows will be flagged",
			existing.ID, existing.Status)))
	}

	statementID := uuid.New().String()
	if archive, _ := cmd.Flags().GetBool("archive"); archive {
		path, err = archiveStatement(path, statementID)
		if err != nil {
			return err
		}
	}

	statement := &model.Statement{
		ID:         statementID,
		SourceHash: sourceHash,
		FilePath:   path,
		Status:     model.StatementUploaded,
		UploadedAt: time.Now(),
	}
	if err := store.CreateStatement(ctx, statement); err != nil {
		return fmt.Errorf("failed to record statement: %w", err)
	}

	slog.Info("Statement uploaded",
		"statement_id", statement.ID,
		"file", path)
	cmd.Println(cli.FormatSuccess(fmt.Sprintf("uploaded statement %s", statement.ID)))

	if immediate, _ := cmd.Flags().GetBool("process"); immediate {
		eng, err := newEngine(store)
		if err != nil {
			return err
		}
		report, err := eng.ProcessStatement(ctx, statement.ID)
		if err != nil {
			return err
		}
		printReport(cmd, report)
	}
	return nil
}

// archiveStatement copies the source file into the statement archive and
// returns the archived path. The original extension is kept so format
// dispatch still works when the statement is reprocessed.
func archiveStatement(path, statementID string) (string, error) {
	dir := viper.GetString("statements.dir")
	if dir == "" {
		dir = config.DefaultStatementDir()
	}
	dir = config.ExpandPath(dir)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create statement archive: %w", err)
	}

	dest := filepath.Join(dir, statementID+filepath.Ext(path))
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open statement file: %w", err)
	}
	defer func() { _ = src.Close() }()

	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("failed to create archived statement: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return "", fmt.Errorf("failed to copy statement into archive: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("failed to finish archived statement: %w", err)
	}
	return dest, nil
}

func hashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open statement file: %w", err)
	}
	defer func() { _ = file.Close() }()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("failed to hash statement file: %w", err)
	}
	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}
