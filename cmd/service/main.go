package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/drought-index-service/internal/alerts"
	"github.com/kjstillabower/drought-index-service/internal/cache"
	"github.com/kjstillabower/drought-index-service/internal/circuitbreaker"
	"github.com/kjstillabower/drought-index-service/internal/client"
	"github.com/kjstillabower/drought-index-service/internal/config"
	"github.com/kjstillabower/drought-index-service/internal/etl"
	"github.com/kjstillabower/drought-index-service/internal/health"
	httphandler "github.com/kjstillabower/drought-index-service/internal/http"
	"github.com/kjstillabower/drought-index-service/internal/observability"
	"github.com/kjstillabower/drought-index-service/internal/service"
	"github.com/kjstillabower/drought-index-service/internal/store"
)

var version = "dev"

const (
	inFlightWaitTimeout   = 10 * time.Second
	inFlightCheckInterval = 100 * time.Millisecond
	warmStartupTimeout    = 30 * time.Second
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	st, err := store.Open(startCtx, storeOptions(cfg), logger)
	startCancel()
	if err != nil {
		logger.Fatal("store", zap.Error(err))
	}
	logger.Info("store opened", zap.String("driver", cfg.DatabaseDriver), zap.Bool("migrate", cfg.DatabaseMigrate))

	var cacheSvc cache.Cache
	var memcacheCloser *cache.MemcachedCache
	switch cfg.CacheBackend {
	case "memcached":
		mc, err := cache.NewMemcachedCache(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns)
		if err != nil {
			logger.Fatal("memcached cache", zap.Error(err))
		}
		memcacheCloser = mc
		cacheSvc = mc
		logger.Info("cache backend: memcached", zap.String("addrs", cfg.MemcachedAddrs))
	default:
		cacheSvc = cache.NewInMemoryCache(nil)
		logger.Info("cache backend: in_memory")
	}

	meteoClient, err := client.NewOpenMeteoClientWithRetry(
		cfg.OpenMeteoURL,
		cfg.OpenMeteoTimeout,
		cfg.RetryAttempts,
		cfg.RetryBaseDelay,
		cfg.RetryMaxDelay,
	)
	if err != nil {
		logger.Fatal("open-meteo client", zap.Error(err))
	}

	if cfg.CircuitBreakerEnabled {
		cb := circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: cfg.CircuitBreakerThreshold,
			SuccessThreshold: 1,
			Timeout:          cfg.CircuitBreakerCooldown,
			Component:        "open_meteo",
			OnStateChange: func(component string, from, to circuitbreaker.State) {
				observability.RecordCircuitBreakerTransition(component, from.String(), to.String(), int(to))
				logger.Warn("circuit breaker state change",
					zap.String("component", component),
					zap.String("from", from.String()),
					zap.String("to", to.String()),
				)
			},
		})
		meteoClient.WithCircuitBreaker(cb)
		logger.Info("circuit breaker enabled", zap.Int("failure_threshold", cfg.CircuitBreakerThreshold), zap.Duration("cooldown", cfg.CircuitBreakerCooldown))
	}

	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		logger.Fatal("alert publisher", zap.Error(err))
	}

	droughtService := service.NewDroughtService(st, cacheSvc, publisher, service.Options{
		CacheTTL:     cfg.CacheTTL,
		HistoryLimit: cfg.ForecastHistoryLimit,
		Logger:       logger,
	})
	collector := etl.NewCollector(droughtService, meteoClient, droughtService, droughtService, logger, nil)

	tracker := health.NewTracker(nil)
	monitor := health.NewMonitor(monitorConfig(cfg), tracker, nil, logger)
	monitor.AddCheck("database", droughtService.Ping)
	if memcacheCloser != nil {
		monitor.AddCheck("cache", memcacheCloser.Ping)
	}

	observability.RegisterWindowGauges(
		func() float64 { return float64(tracker.RequestCount(cfg.OverloadWindow)) },
		func() float64 { return float64(tracker.DenialCount(cfg.OverloadWindow)) },
	)
	if len(cfg.TrackedRegions) > 0 {
		observability.SetTrackedRegions(cfg.TrackedRegions)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(cfg.TrackedRegions) > 0 {
		if cfg.CollectorInterval > 0 {
			go func() {
				if err := collector.Run(ctx, cfg.TrackedRegions, cfg.CollectorInterval); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("collector stopped", zap.Error(err))
				}
			}()
		}
		if cfg.WarmInterval > 0 {
			warmer := cache.NewCacheWarmer(droughtService, logger, nil)
			warmCtx, warmCancel := context.WithTimeout(ctx, warmStartupTimeout)
			if err := warmer.Warm(warmCtx, cfg.TrackedRegions, cfg.ForecastDefaultDays); err != nil {
				logger.Warn("cache warming failed", zap.Error(err))
			}
			warmCancel()
			go func() {
				if err := warmer.WarmPeriodic(ctx, cfg.TrackedRegions, cfg.ForecastDefaultDays, cfg.WarmInterval); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("periodic cache warming stopped", zap.Error(err))
				}
			}()
		}
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(droughtService, collector, monitor, logger, httphandler.Options{
		DefaultDays:    cfg.ForecastDefaultDays,
		MaxDays:        cfg.ForecastMaxDays,
		TrackedRegions: cfg.TrackedRegions,
		Version:        version,
	})
	router := httphandler.NewRouter(handler, logger, httphandler.RouterConfig{
		RequestTimeout: cfg.RequestTimeout,
		Limiter:        limiter,
		TestingMode:    cfg.TestingMode,
	})
	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	monitor.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := tracker.InFlight()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	observability.ShutdownInFlightRequests.Set(float64(inFlight))
	waitCtx, waitCancel := context.WithTimeout(context.Background(), inFlightWaitTimeout)
	defer waitCancel()
	if err := tracker.WaitIdle(waitCtx, inFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", tracker.InFlight()))
	}

	flushPublisher := func(context.Context) error { return publisher.Close() }
	if err := observability.FlushTelemetry(context.Background(), logger, flushPublisher); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}

	if err := st.Close(); err != nil {
		logger.Error("store close", zap.Error(err))
	}
	if memcacheCloser != nil {
		if err := memcacheCloser.Close(); err != nil {
			logger.Error("memcached close", zap.Error(err))
		}
	}
	logger.Info("shutdown complete")
}

func storeOptions(cfg *config.Config) store.Options {
	return store.Options{
		Driver:       cfg.DatabaseDriver,
		URL:          cfg.DatabaseURL,
		MaxOpenConns: cfg.DatabaseMaxOpenConns,
		Migrate:      cfg.DatabaseMigrate,
	}
}

func monitorConfig(cfg *config.Config) health.Config {
	return health.Config{
		ReadyDelay:           cfg.ReadyDelay,
		OverloadWindow:       cfg.OverloadWindow,
		OverloadThresholdPct: cfg.OverloadThresholdPct,
		RateLimitRPS:         cfg.RateLimitRPS,
		DegradedWindow:       cfg.DegradedWindow,
		DegradedErrorPct:     cfg.DegradedErrorPct,
	}
}

// newPublisher selects the alert publisher named by alerts.publisher.
func newPublisher(cfg *config.Config, logger *zap.Logger) (alerts.Publisher, error) {
	switch cfg.AlertPublisher {
	case "kafka":
		kp, err := alerts.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaWriteTimeout)
		if err != nil {
			return nil, err
		}
		logger.Info("alert publisher: kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
		return kp, nil
	default:
		logger.Info("alert publisher: log")
		return alerts.NewLogPublisher(logger), nil
	}
}
