//go:build integration
// +build integration

package testhelpers

import (
	"context"
	"os"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/kjstillabower/drought-index-service/internal/alerts"
	"github.com/kjstillabower/drought-index-service/internal/cache"
	"github.com/kjstillabower/drought-index-service/internal/client"
	"github.com/kjstillabower/drought-index-service/internal/service"
	"github.com/kjstillabower/drought-index-service/internal/store"
)

// IntegrationTestConfig holds configuration for integration tests.
type IntegrationTestConfig struct {
	OpenMeteoURL  string
	DatabaseURL   string // postgres DSN; empty uses in-memory SQLite
	CacheBackend  string // "in_memory" or "memcached"
	MemcachedAddr string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Skips the test unless INTEGRATION_LIVE is set, since it calls the live Open-Meteo API.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	if os.Getenv("INTEGRATION_LIVE") == "" {
		t.Skip("INTEGRATION_LIVE not set, skipping integration test")
	}

	apiURL := os.Getenv("OPEN_METEO_URL")
	if apiURL == "" {
		apiURL = "https://api.open-meteo.com/v1/forecast"
	}
	memcachedAddr := os.Getenv("MEMCACHED_ADDRS")
	if memcachedAddr == "" {
		memcachedAddr = "localhost:11211"
	}

	return IntegrationTestConfig{
		OpenMeteoURL:  apiURL,
		DatabaseURL:   os.Getenv("INTEGRATION_DATABASE_URL"),
		CacheBackend:  os.Getenv("INTEGRATION_CACHE_BACKEND"),
		MemcachedAddr: memcachedAddr,
	}
}

// SetupIntegrationService creates a fully configured service for integration tests.
// Returns the service, its store and cache, and a cleanup function.
func SetupIntegrationService(t *testing.T, cfg IntegrationTestConfig) (*service.DroughtService, store.Store, cache.Cache, func()) {
	logger := zaptest.NewLogger(t)

	opts := store.Options{Driver: store.DriverSQLite, URL: ":memory:", Migrate: true}
	if cfg.DatabaseURL != "" {
		opts = store.Options{Driver: store.DriverPostgres, URL: cfg.DatabaseURL, MaxOpenConns: 4, Migrate: true}
	}
	st, err := store.Open(context.Background(), opts, logger)
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}

	var cacheSvc cache.Cache
	cleanup := func() { _ = st.Close() }
	if cfg.CacheBackend == "memcached" {
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddr, 500*time.Millisecond, 2)
		if err == nil {
			cacheSvc = mc
			cleanup = func() { _ = mc.Close(); _ = st.Close() }
			t.Logf("Using Memcached cache at %s", cfg.MemcachedAddr)
		} else {
			t.Logf("Memcached not available (%v), using in-memory cache", err)
		}
	}
	if cacheSvc == nil {
		cacheSvc = cache.NewInMemoryCache(nil)
	}

	svc := service.NewDroughtService(st, cacheSvc, alerts.NewLogPublisher(logger), service.Options{
		CacheTTL: 5 * time.Minute,
		Logger:   logger,
	})
	return svc, st, cacheSvc, cleanup
}

// SetupIntegrationClient creates an Open-Meteo client for integration tests.
func SetupIntegrationClient(t *testing.T, cfg IntegrationTestConfig) *client.OpenMeteoClient {
	c, err := client.NewOpenMeteoClient(cfg.OpenMeteoURL, 10*time.Second)
	if err != nil {
		t.Fatalf("NewOpenMeteoClient() error = %v", err)
	}
	return c
}
