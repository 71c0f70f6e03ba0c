package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	TestingMode bool

	ServerPort string

	DatabaseDriver       string // "postgres" or "sqlite"
	DatabaseURL          string
	DatabaseMaxOpenConns int
	DatabaseMigrate      bool

	OpenMeteoURL     string
	OpenMeteoTimeout time.Duration

	RequestTimeout time.Duration
	CacheTTL       time.Duration
	CacheBackend   string // "in_memory" or "memcached"

	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	RateLimitRPS   int
	RateLimitBurst int

	CircuitBreakerEnabled   bool
	CircuitBreakerThreshold int
	CircuitBreakerCooldown  time.Duration

	AlertPublisher    string // "log" or "kafka"
	KafkaBrokers      []string
	KafkaTopic        string
	KafkaWriteTimeout time.Duration

	ForecastDefaultDays  int
	ForecastMaxDays      int
	ForecastHistoryLimit int

	CollectorInterval time.Duration // zero disables the periodic collector
	WarmInterval      time.Duration // zero disables forecast warming

	ShutdownTimeout time.Duration

	ReadyDelay           time.Duration
	OverloadWindow       time.Duration
	OverloadThresholdPct int
	DegradedWindow       time.Duration
	DegradedErrorPct     int

	TrackedRegions []string
}

type fileConfig struct {
	TestingMode *bool `yaml:"testing_mode"`

	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Driver       string `yaml:"driver"`
		URL          string `yaml:"url"`
		MaxOpenConns int    `yaml:"max_open_conns"`
		Migrate      *bool  `yaml:"migrate"`
	} `yaml:"database"`

	OpenMeteo struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"open_meteo"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Cache struct {
		Backend   string `yaml:"backend"`
		TTL       string `yaml:"ttl"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
		WarmInterval string `yaml:"warm_interval"`
	} `yaml:"cache"`

	Reliability struct {
		RetryMaxAttempts int    `yaml:"retry_max_attempts"`
		RetryBaseDelay   string `yaml:"retry_base_delay"`
		RetryMaxDelay    string `yaml:"retry_max_delay"`
		RateLimitRPS     int    `yaml:"rate_limit_rps"`
		RateLimitBurst   int    `yaml:"rate_limit_burst"`
		CircuitBreaker   struct {
			Enabled   bool   `yaml:"enabled"`
			Threshold int    `yaml:"failure_threshold"`
			Cooldown  string `yaml:"cooldown"`
		} `yaml:"circuit_breaker"`
	} `yaml:"reliability"`

	Alerts struct {
		Publisher string `yaml:"publisher"`
		Kafka     struct {
			Brokers      []string `yaml:"brokers"`
			Topic        string   `yaml:"topic"`
			WriteTimeout string   `yaml:"write_timeout"`
		} `yaml:"kafka"`
	} `yaml:"alerts"`

	Forecast struct {
		DefaultDays  int `yaml:"default_days"`
		MaxDays      int `yaml:"max_days"`
		HistoryLimit int `yaml:"history_limit"`
	} `yaml:"forecast"`

	Collector struct {
		Interval string `yaml:"interval"`
	} `yaml:"collector"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Health struct {
		ReadyDelay           string `yaml:"ready_delay"`
		OverloadWindow       string `yaml:"overload_window"`
		OverloadThresholdPct int    `yaml:"overload_threshold_pct"`
		DegradedWindow       string `yaml:"degraded_window"`
		DegradedErrorPct     int    `yaml:"degraded_error_pct"`
	} `yaml:"health"`

	Regions struct {
		Tracked []string `yaml:"tracked"`
	} `yaml:"regions"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev).
// DATABASE_URL, CACHE_BACKEND, MEMCACHED_ADDRS and KAFKA_BROKERS override the file.
// Call from project root.
func Load() (*Config, error) {
	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	return LoadFile(filepath.Join(cwd, "config", env+".yaml"))
}

// LoadFile reads configuration from an explicit path. Env overrides still apply.
func LoadFile(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{
		TestingMode: false,
	}
	if fc.TestingMode != nil {
		cfg.TestingMode = *fc.TestingMode
	}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.DatabaseDriver = strings.TrimSpace(strings.ToLower(fc.Database.Driver))
	if cfg.DatabaseDriver == "" {
		cfg.DatabaseDriver = "sqlite"
	}
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = strings.TrimSpace(fc.Database.URL)
	}
	if cfg.DatabaseURL == "" && cfg.DatabaseDriver == "sqlite" {
		cfg.DatabaseURL = "drought.db"
	}
	cfg.DatabaseMaxOpenConns = fc.Database.MaxOpenConns
	if cfg.DatabaseMaxOpenConns <= 0 {
		cfg.DatabaseMaxOpenConns = 10
	}
	cfg.DatabaseMigrate = true
	if fc.Database.Migrate != nil {
		cfg.DatabaseMigrate = *fc.Database.Migrate
	}

	cfg.OpenMeteoURL = fc.OpenMeteo.URL
	if cfg.OpenMeteoURL == "" {
		cfg.OpenMeteoURL = "https://api.open-meteo.com/v1/forecast"
	}
	cfg.OpenMeteoTimeout = parseDurationOrZero(fc.OpenMeteo.Timeout, 2*time.Second)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 5*time.Second)
	cfg.CacheTTL = parseDuration(fc.Cache.TTL, 15*time.Minute)
	cfg.CacheBackend = strings.TrimSpace(strings.ToLower(os.Getenv("CACHE_BACKEND")))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = strings.TrimSpace(strings.ToLower(fc.Cache.Backend))
	}
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = "in_memory"
	}
	cfg.MemcachedAddrs = strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS"))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = strings.TrimSpace(fc.Cache.Memcached.Addrs)
	}
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Cache.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Cache.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}
	cfg.WarmInterval = parseDurationOrZero(fc.Cache.WarmInterval, 0)

	cfg.RetryAttempts = fc.Reliability.RetryMaxAttempts
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	cfg.RetryBaseDelay = parseDuration(fc.Reliability.RetryBaseDelay, 100*time.Millisecond)
	cfg.RetryMaxDelay = parseDuration(fc.Reliability.RetryMaxDelay, 2*time.Second)
	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 250
	}
	cfg.CircuitBreakerEnabled = fc.Reliability.CircuitBreaker.Enabled
	cfg.CircuitBreakerThreshold = fc.Reliability.CircuitBreaker.Threshold
	if cfg.CircuitBreakerThreshold <= 0 {
		cfg.CircuitBreakerThreshold = 5
	}
	cfg.CircuitBreakerCooldown = parseDuration(fc.Reliability.CircuitBreaker.Cooldown, 30*time.Second)

	cfg.AlertPublisher = strings.TrimSpace(strings.ToLower(fc.Alerts.Publisher))
	if cfg.AlertPublisher == "" {
		cfg.AlertPublisher = "log"
	}
	if brokers := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); brokers != "" {
		cfg.KafkaBrokers = splitList(brokers)
	} else {
		cfg.KafkaBrokers = fc.Alerts.Kafka.Brokers
	}
	cfg.KafkaTopic = fc.Alerts.Kafka.Topic
	if cfg.KafkaTopic == "" {
		cfg.KafkaTopic = "drought-alerts"
	}
	cfg.KafkaWriteTimeout = parseDuration(fc.Alerts.Kafka.WriteTimeout, 5*time.Second)

	cfg.ForecastDefaultDays = fc.Forecast.DefaultDays
	if cfg.ForecastDefaultDays <= 0 {
		cfg.ForecastDefaultDays = 30
	}
	cfg.ForecastMaxDays = fc.Forecast.MaxDays
	if cfg.ForecastMaxDays <= 0 {
		cfg.ForecastMaxDays = 365
	}
	cfg.ForecastHistoryLimit = fc.Forecast.HistoryLimit
	if cfg.ForecastHistoryLimit <= 0 {
		cfg.ForecastHistoryLimit = 100
	}

	cfg.CollectorInterval = parseDurationOrZero(fc.Collector.Interval, 0)

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	cfg.ReadyDelay = parseDuration(fc.Health.ReadyDelay, 3*time.Second)
	cfg.OverloadWindow = parseDuration(fc.Health.OverloadWindow, 60*time.Second)
	cfg.OverloadThresholdPct = fc.Health.OverloadThresholdPct
	if cfg.OverloadThresholdPct <= 0 {
		cfg.OverloadThresholdPct = 80
	}
	cfg.DegradedWindow = parseDuration(fc.Health.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Health.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 5
	}

	cfg.TrackedRegions = fc.Regions.Tracked

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// validate performs post-load validation of configuration values.
// Auto-adjusts RequestTimeout so it always exceeds OpenMeteoTimeout.
func validate(cfg *Config) error {
	if cfg.OpenMeteoTimeout <= 0 {
		return fmt.Errorf("open_meteo.timeout must be positive")
	}
	if cfg.RequestTimeout <= cfg.OpenMeteoTimeout {
		cfg.RequestTimeout = cfg.OpenMeteoTimeout + time.Second
	}
	switch cfg.CacheBackend {
	case "in_memory", "memcached":
		// valid
	default:
		return fmt.Errorf("cache.backend must be in_memory or memcached, got %q", cfg.CacheBackend)
	}
	switch cfg.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", cfg.DatabaseDriver)
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL required for database.driver %q", cfg.DatabaseDriver)
	}
	switch cfg.AlertPublisher {
	case "log":
	case "kafka":
		if len(cfg.KafkaBrokers) == 0 {
			return fmt.Errorf("alerts.kafka.brokers required when alerts.publisher is kafka")
		}
	default:
		return fmt.Errorf("alerts.publisher must be log or kafka, got %q", cfg.AlertPublisher)
	}
	if cfg.ForecastDefaultDays > cfg.ForecastMaxDays {
		return fmt.Errorf("forecast.default_days (%d) exceeds forecast.max_days (%d)", cfg.ForecastDefaultDays, cfg.ForecastMaxDays)
	}
	return nil
}
