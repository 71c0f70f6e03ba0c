package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kjstillabower/drought-index-service/internal/alerts"
	"github.com/kjstillabower/drought-index-service/internal/cache"
	"github.com/kjstillabower/drought-index-service/internal/client"
	"github.com/kjstillabower/drought-index-service/internal/etl"
	"github.com/kjstillabower/drought-index-service/internal/observability"
	"github.com/kjstillabower/drought-index-service/internal/service"
	"github.com/kjstillabower/drought-index-service/internal/store"
	"github.com/kjstillabower/drought-index-service/internal/validation"
)

func newCollectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect current conditions for regions once",
		Long: `Fetch current conditions from Open-Meteo for each region, ingest them and
evaluate alerts. Without --region the configured tracked regions are used.`,
		RunE: runCollect,
	}
	cmd.Flags().StringSlice("region", nil, "region id to collect (repeatable)")
	return cmd
}

func runCollect(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	regions, _ := cmd.Flags().GetStringSlice("region")
	if len(regions) == 0 {
		regions = cfg.TrackedRegions
	}
	if len(regions) == 0 {
		return fmt.Errorf("no regions: pass --region or configure tracked_regions")
	}
	for i, r := range regions {
		id, err := validation.ValidateRegionID(r)
		if err != nil {
			return fmt.Errorf("region %q: %w", r, err)
		}
		regions[i] = id
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
		Migrate:      cfg.DatabaseMigrate,
	}, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	meteoClient, err := client.NewOpenMeteoClientWithRetry(cfg.OpenMeteoURL, cfg.OpenMeteoTimeout, cfg.RetryAttempts, cfg.RetryBaseDelay, cfg.RetryMaxDelay)
	if err != nil {
		return err
	}

	svc := service.NewDroughtService(st, cache.NewInMemoryCache(nil), alerts.NewLogPublisher(logger), service.Options{
		CacheTTL:     cfg.CacheTTL,
		HistoryLimit: cfg.ForecastHistoryLimit,
		Logger:       logger,
	})
	result, runErr := etl.NewCollector(svc, meteoClient, svc, svc, logger, nil).RunOnce(cmd.Context(), regions)
	if runErr != nil {
		logger.Warn("collection had failures", zap.Error(runErr))
	}
	logger.Info("collection finished", zap.String("run_id", result.RunID), zap.String("status", result.Status))

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return err
	}
	if result.Status == etl.StatusFailure {
		return fmt.Errorf("collection failed for every region: %w", runErr)
	}
	return nil
}
