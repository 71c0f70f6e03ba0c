package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kjstillabower/drought-index-service/internal/observability"
	"github.com/kjstillabower/drought-index-service/internal/store"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long:  `Connect to the configured database and apply every pending schema migration.`,
		RunE:  runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := observability.NewLogger()
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	st, err := store.Open(cmd.Context(), store.Options{
		Driver:       cfg.DatabaseDriver,
		URL:          cfg.DatabaseURL,
		MaxOpenConns: cfg.DatabaseMaxOpenConns,
		Migrate:      true,
	}, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	logger.Info("migrations applied", zap.String("driver", cfg.DatabaseDriver))
	fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
	return nil
}
