// Package schedule runs the pipeline's recurring jobs: processing newly
// uploaded statements and generating monthly invoices.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"

	"github.com/mchanga/chamaflow/internal/engine"
	"github.com/mchanga/chamaflow/internal/model"
	"github.com/mchanga/chamaflow/internal/service"
)

// Config holds the cron expressions and billing defaults for watch mode.
type Config struct {
	// ProcessSchedule fires statement processing. Defaults to every five
	// minutes.
	ProcessSchedule string
	// InvoiceSchedule fires invoice generation. Defaults to 06:00 on the
	// first of the month.
	InvoiceSchedule string
	// InvoiceAmount is the standard contribution billed per member per
	// period. Zero disables scheduled invoicing.
	InvoiceAmount decimal.Decimal
}

// DefaultConfig returns the default schedules.
func DefaultConfig() Config {
	return Config{
		ProcessSchedule: "*/5 * * * *",
		InvoiceSchedule: "0 6 1 * *",
	}
}

// Scheduler owns the cron runner for watch mode.
type Scheduler struct {
	storage service.Storage
	engine  *engine.ReconcileEngine
	cron    *cron.Cron
	config  Config
}

// New creates a scheduler. Start must be called to begin running jobs.
func New(storage service.Storage, eng *engine.ReconcileEngine, config Config) *Scheduler {
	if config.ProcessSchedule == "" {
		config.ProcessSchedule = DefaultConfig().ProcessSchedule
	}
	if config.InvoiceSchedule == "" {
		config.InvoiceSchedule = DefaultConfig().InvoiceSchedule
	}
	return &Scheduler{
		storage: storage,
		engine:  eng,
		cron:    cron.New(),
		config:  config,
	}
}

// Start registers the jobs and starts the cron runner. Jobs use the given
// context so shutdown cancels in-flight work.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.config.ProcessSchedule, func() { s.runProcessing(ctx) }); err != nil {
		return fmt.Errorf("invalid processing schedule %q: %w", s.config.ProcessSchedule, err)
	}
	if s.config.InvoiceAmount.IsPositive() {
		if _, err := s.cron.AddFunc(s.config.InvoiceSchedule, func() { s.runInvoicing(ctx) }); err != nil {
			return fmt.Errorf("invalid invoice schedule %q: %w", s.config.InvoiceSchedule, err)
		}
	}

	s.cron.Start()
	slog.Info("Scheduler started",
		"process_schedule", s.config.ProcessSchedule,
		"invoice_schedule", s.config.InvoiceSchedule,
		"invoicing_enabled", s.config.InvoiceAmount.IsPositive())
	return nil
}

// Stop stops the cron runner and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("Scheduler stopped")
}

func (s *Scheduler) runProcessing(ctx context.Context) {
	completed, failed, err := s.engine.ProcessPending(ctx)
	if err != nil {
		slog.Error("Scheduled processing run failed", "error", err)
		return
	}
	if completed+failed > 0 {
		slog.Info("Scheduled processing run finished",
			"completed", completed,
			"failed", failed)
	}
}

func (s *Scheduler) runInvoicing(ctx context.Context) {
	period := time.Now().Format("2006-01")
	created, err := GenerateInvoices(ctx, s.storage, period, s.config.InvoiceAmount)
	if err != nil {
		slog.Error("Scheduled invoice generation failed",
			"period", period,
			"error", err)
		return
	}
	slog.Info("Scheduled invoice generation finished",
		"period", period,
		"created", created)
}

// GenerateInvoices bills every active member the given amount for the
// period. Members already invoiced for the period are skipped, so the
// operation is safe to repeat.
func GenerateInvoices(ctx context.Context, storage service.Storage, period string, amount decimal.Decimal) (int, error) {
	if !amount.IsPositive() {
		return 0, fmt.Errorf("invoice amount must be positive, got %s", amount)
	}
	periodStart, err := time.Parse("2006-01", period)
	if err != nil {
		return 0, fmt.Errorf("invalid period %q, want YYYY-MM: %w", period, err)
	}
	// Due on the last day of the billed month.
	dueDate := periodStart.AddDate(0, 1, -1)

	members, err := storage.ListActiveMembers(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list members: %w", err)
	}

	created := 0
	for _, member := range members {
		exists, err := storage.HasInvoiceForPeriod(ctx, member.ID, period)
		if err != nil {
			return created, fmt.Errorf("failed to check invoices for member %d: %w", member.ID, err)
		}
		if exists {
			continue
		}
		invoice := &model.Invoice{
			MemberID:  member.ID,
			Period:    period,
			AmountDue: amount,
			DueDate:   dueDate,
			Status:    model.InvoicePending,
		}
		if err := storage.CreateInvoice(ctx, invoice); err != nil {
			return created, fmt.Errorf("failed to create invoice for member %d: %w", member.ID, err)
		}
		created++
	}
	return created, nil
}
