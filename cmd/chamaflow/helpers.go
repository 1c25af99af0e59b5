package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/mchanga/chamaflow/internal/allocate"
	"github.com/mchanga/chamaflow/internal/config"
	"github.com/mchanga/chamaflow/internal/engine"
	"github.com/mchanga/chamaflow/internal/match"
	"github.com/mchanga/chamaflow/internal/service"
	"github.com/mchanga/chamaflow/internal/storage"
)

// openStorage opens the configured database and ensures the schema is
// current.
func openStorage() (service.Storage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = config.DefaultDatabasePath()
	}
	dbPath = config.ExpandPath(dbPath)

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}

// newMatcher builds the configured matcher backend.
func newMatcher() (match.Matcher, error) {
	thresholds := match.DefaultThresholds()
	if cutoff := viper.GetFloat64("matching.auto_assign_threshold"); cutoff > 0 {
		thresholds.AutoAssign = cutoff
	}
	return match.New(match.Config{
		Backend:    viper.GetString("matching.backend"),
		RemoteURL:  viper.GetString("matching.remote_url"),
		Timeout:    viper.GetDuration("matching.timeout"),
		Thresholds: thresholds,
	})
}

// newEngine wires storage, matcher, and the allocation event handlers into
// a ready reconciliation engine.
func newEngine(store service.Storage) (*engine.ReconcileEngine, error) {
	matcher, err := newMatcher()
	if err != nil {
		return nil, err
	}

	bus := engine.NewBus()
	engine.RegisterAutoAllocation(bus, store, allocate.New(store))

	cfg := engine.DefaultConfig()
	if cutoff := viper.GetFloat64("matching.auto_assign_threshold"); cutoff > 0 {
		cfg.AutoAssignThreshold = cutoff
	}
	if workers := viper.GetInt("processing.workers"); workers > 0 {
		cfg.Workers = workers
	}
	return engine.NewWithConfig(store, matcher, bus, cfg), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
