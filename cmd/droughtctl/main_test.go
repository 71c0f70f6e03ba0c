package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kjstillabower/drought-index-service/internal/etl"
	"github.com/kjstillabower/drought-index-service/internal/models"
	"github.com/kjstillabower/drought-index-service/internal/store"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// writeConfig points the CLI at a file-backed SQLite database and the given Open-Meteo URL.
func writeConfig(t *testing.T, dbPath, meteoURL string, tracked ...string) string {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("CACHE_BACKEND", "")
	t.Setenv("KAFKA_BROKERS", "")
	yaml := fmt.Sprintf(`database:
  driver: "sqlite"
  url: %q
  migrate: true
open_meteo:
  url: %q
  timeout: "2s"
reliability:
  retry_max_attempts: 1
`, dbPath, meteoURL)
	if len(tracked) > 0 {
		yaml += "regions:\n  tracked:\n"
		for _, r := range tracked {
			yaml += fmt.Sprintf("    - %q\n", r)
		}
	}
	return writeFile(t, "config.yaml", yaml)
}

func openStore(t *testing.T, dbPath string) *store.SQLStore {
	t.Helper()
	st, err := store.Open(context.Background(), store.Options{Driver: store.DriverSQLite, URL: dbPath, Migrate: true}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestForecast_FromHistoryFile(t *testing.T) {
	now := time.Now().UTC()
	history := []models.DroughtIndex{
		{RegionID: "turkana", AnomalyScore: -1.0, CreatedAt: now.Add(-72 * time.Hour)},
		{RegionID: "turkana", AnomalyScore: -1.6, CreatedAt: now},
		{RegionID: "turkana", AnomalyScore: -1.3, CreatedAt: now.Add(-24 * time.Hour)},
	}
	data, err := json.Marshal(history)
	require.NoError(t, err)
	path := writeFile(t, "history.json", string(data))

	out, err := execute(t, "forecast", "--history", path, "--days", "5")
	require.NoError(t, err)

	var forecast models.Forecast
	require.NoError(t, json.Unmarshal([]byte(out), &forecast))
	assert.Equal(t, "turkana", forecast.RegionID)
	assert.Equal(t, 5, forecast.HorizonDays)
	assert.Equal(t, 3, forecast.HistorySize)
	assert.InDelta(t, -1.6, forecast.BaselineScore, 1e-9, "baseline is the newest record after sorting")
	assert.Len(t, forecast.Points, 5)
}

func TestForecast_RegionOverrideAndEmptyHistory(t *testing.T) {
	path := writeFile(t, "history.json", "[]")

	out, err := execute(t, "forecast", "--history", path, "--region", "garissa")
	require.NoError(t, err)

	var forecast models.Forecast
	require.NoError(t, json.Unmarshal([]byte(out), &forecast))
	assert.Equal(t, "garissa", forecast.RegionID)
	assert.Equal(t, cliDefaultForecastDays, forecast.HorizonDays)
	assert.Empty(t, forecast.Points)
}

func TestForecast_Errors(t *testing.T) {
	good := writeFile(t, "history.json", "[]")
	bad := writeFile(t, "bad.json", "{not json")

	tests := []struct {
		name string
		args []string
	}{
		{"missing history flag", []string{"forecast"}},
		{"missing file", []string{"forecast", "--history", filepath.Join(t.TempDir(), "nope.json")}},
		{"invalid json", []string{"forecast", "--history", bad}},
		{"zero days", []string{"forecast", "--history", good, "--days", "0"}},
		{"too many days", []string{"forecast", "--history", good, "--days", "366"}},
		{"non-numeric days", []string{"forecast", "--history", good, "--days", "week"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestMigrate_CreatesSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "drought.db")
	cfgPath := writeConfig(t, dbPath, "http://127.0.0.1:1")

	out, err := execute(t, "migrate", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "migrations applied")

	st := openStore(t, dbPath)
	regions, err := st.ListRegions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, regions)
}

func TestMigrate_BadConfig(t *testing.T) {
	_, err := execute(t, "migrate", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestCollect_NoRegions(t *testing.T) {
	cfgPath := writeConfig(t, filepath.Join(t.TempDir(), "drought.db"), "http://127.0.0.1:1")

	_, err := execute(t, "collect", "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no regions")
}

func TestCollect_InvalidRegion(t *testing.T) {
	cfgPath := writeConfig(t, filepath.Join(t.TempDir(), "drought.db"), "http://127.0.0.1:1")

	_, err := execute(t, "collect", "--config", cfgPath, "--region", "bad region!")
	assert.Error(t, err)
}

func TestCollect_IngestsFromUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"utc_offset_seconds": 0,
			"current": {
				"time": "2026-01-15T12:00",
				"temperature_2m": 31.5,
				"relative_humidity_2m": 22,
				"precipitation": 0.2,
				"wind_speed_10m": 14
			},
			"hourly": {
				"soil_moisture_0_to_1cm": [0.12],
				"et0_fao_evapotranspiration": [0.2, 0.3]
			}
		}`)
	}))
	defer upstream.Close()

	dbPath := filepath.Join(t.TempDir(), "drought.db")
	st := openStore(t, dbPath)
	_, err := st.CreateRegion(context.Background(), models.Region{ID: "turkana", Name: "Turkana", Latitude: 3.1, Longitude: 35.6, CreatedAt: time.Now().UTC()})
	require.NoError(t, err)

	cfgPath := writeConfig(t, dbPath, upstream.URL, "turkana")
	out, err := execute(t, "collect", "--config", cfgPath)
	require.NoError(t, err)

	var result etl.RunResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, etl.StatusSuccess, result.Status)
	require.Len(t, result.Regions, 1)
	assert.Equal(t, "turkana", result.Regions[0].RegionID)

	idx, err := st.LatestIndex(context.Background(), "turkana")
	require.NoError(t, err)
	assert.Equal(t, etl.DataSource, idx.DataSource)
}

func TestCollect_UnknownRegionFails(t *testing.T) {
	cfgPath := writeConfig(t, filepath.Join(t.TempDir(), "drought.db"), "http://127.0.0.1:1")

	out, err := execute(t, "collect", "--config", cfgPath, "--region", "nowhere")
	require.Error(t, err)
	assert.Contains(t, out, etl.StatusFailure)
}
