package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/kjstillabower/drought-index-service/internal/drought"
	"github.com/kjstillabower/drought-index-service/internal/models"
	"github.com/kjstillabower/drought-index-service/internal/validation"
)

const (
	cliDefaultForecastDays = 30
	cliMaxForecastDays     = 365
)

func newForecastCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Forecast drought severity from an exported index history",
		Long: `Read a JSON array of drought index records and print the projected
severity for the next N days. No database connection is needed.`,
		RunE: runForecast,
	}
	cmd.Flags().String("history", "", "JSON file holding an array of drought index records")
	cmd.Flags().String("days", "", fmt.Sprintf("forecast horizon in days (default %d)", cliDefaultForecastDays))
	cmd.Flags().String("region", "", "region id recorded on the forecast (default: taken from the history)")
	_ = cmd.MarkFlagRequired("history")
	return cmd
}

func runForecast(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("history")
	rawDays, _ := cmd.Flags().GetString("days")
	regionID, _ := cmd.Flags().GetString("region")

	days, err := validation.ParseDays(rawDays, cliDefaultForecastDays, cliMaxForecastDays)
	if err != nil {
		return err
	}

	history, err := readHistory(path)
	if err != nil {
		return err
	}
	if regionID == "" && len(history) > 0 {
		regionID = history[0].RegionID
	}

	forecast := drought.BuildForecast(regionID, history, days, time.Now())
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(forecast)
}

// readHistory loads index records and orders them newest first.
func readHistory(path string) ([]models.DroughtIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	var history []models.DroughtIndex
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("parse history %s: %w", path, err)
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].CreatedAt.After(history[j].CreatedAt)
	})
	return history, nil
}
