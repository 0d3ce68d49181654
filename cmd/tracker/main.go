package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ouredu/request-tracker/internal/domain/tracking"
	"github.com/ouredu/request-tracker/internal/infrastructure/persistence/postgres/connection"
	"github.com/ouredu/request-tracker/pkg/config"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "tracker",
		Short: "Inspect and maintain request-access tracking data",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")

	root.AddCommand(
		statsCmd(),
		journeyCmd(),
		moduleAccessCmd(),
		cleanupCmd(),
		testCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// env bundles everything a command needs against a live database.
type env struct {
	cfg       *config.Config
	db        *connection.Database
	repo      tracking.Repository
	service   tracking.Service
	reporting tracking.ReportingService
}

// rebuildService re-creates the tracking service after a command mutated
// the loaded config (retention overrides).
func rebuildService(e *env) (tracking.Service, error) {
	return tracking.NewService(e.repo, e.cfg.Tracking, tracking.NewRegistry())
}

func setup() (*env, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	db, err := connection.NewDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	repo := tracking.NewRepository(db)
	service, err := tracking.NewService(repo, cfg.Tracking, tracking.NewRegistry())
	if err != nil {
		return nil, fmt.Errorf("tracking config: %w", err)
	}

	return &env{
		cfg:       cfg,
		db:        db,
		repo:      repo,
		service:   service,
		reporting: tracking.NewReportingService(repo),
	}, nil
}
