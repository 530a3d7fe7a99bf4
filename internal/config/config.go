package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultBaseURL         = "https://api.openweathermap.org/data/2.5/weather"
	defaultUnits           = "metric"
	defaultRequestTimeout  = 30 * time.Second
	defaultConnectTimeout  = 10 * time.Second
	defaultRetryAttempts   = 3
	defaultRetryBackoff    = time.Second
	defaultRequestsPerMin  = 60
	defaultUpdateInterval  = time.Hour
	defaultMaxConcurrent   = 10
	defaultCitiesToMonitor = 20
	defaultBackfillMonths  = 1
	defaultPort            = 8080
	defaultHistoryDays     = 7
)

// Config holds runtime configuration for the aeris service.
type Config struct {
	DatabaseURL string

	// OpenWeatherMap client
	OWMAPIKey      string
	OWMBaseURL     string
	OWMUnits       string
	RequestTimeout time.Duration
	ConnectTimeout time.Duration
	RetryAttempts  int
	RetryBackoff   time.Duration
	RequestsPerMin int

	// Collection
	UpdateInterval  time.Duration
	MaxConcurrent   int
	CitiesToMonitor int
	BackfillMonths  int

	// HTTP API
	Port        int
	BearerToken string
	DefaultDays int
	LogLevel    string
	PrettyLogs  bool
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file

	cfg := Config{
		OWMBaseURL:      defaultBaseURL,
		OWMUnits:        defaultUnits,
		RequestTimeout:  defaultRequestTimeout,
		ConnectTimeout:  defaultConnectTimeout,
		RetryAttempts:   defaultRetryAttempts,
		RetryBackoff:    defaultRetryBackoff,
		RequestsPerMin:  defaultRequestsPerMin,
		UpdateInterval:  defaultUpdateInterval,
		MaxConcurrent:   defaultMaxConcurrent,
		CitiesToMonitor: defaultCitiesToMonitor,
		BackfillMonths:  defaultBackfillMonths,
		Port:            defaultPort,
		DefaultDays:     defaultHistoryDays,
		LogLevel:        "info",
	}

	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}

	cfg.OWMAPIKey = strings.TrimSpace(os.Getenv("OPENWEATHER_API_KEY"))
	if cfg.OWMAPIKey == "" {
		return cfg, errors.New("OPENWEATHER_API_KEY is required")
	}

	if v := strings.TrimSpace(os.Getenv("OPENWEATHER_BASE_URL")); v != "" {
		cfg.OWMBaseURL = v
	}

	if v := strings.TrimSpace(os.Getenv("OPENWEATHER_UNITS")); v != "" {
		if v != "metric" && v != "imperial" && v != "standard" {
			return cfg, fmt.Errorf("invalid OPENWEATHER_UNITS: %s", v)
		}
		cfg.OWMUnits = v
	}

	var err error
	if cfg.RequestTimeout, err = durationEnv("AERIS_REQUEST_TIMEOUT", cfg.RequestTimeout); err != nil {
		return cfg, err
	}
	if cfg.ConnectTimeout, err = durationEnv("AERIS_CONNECT_TIMEOUT", cfg.ConnectTimeout); err != nil {
		return cfg, err
	}
	if cfg.ConnectTimeout >= cfg.RequestTimeout {
		return cfg, errors.New("AERIS_CONNECT_TIMEOUT must be shorter than AERIS_REQUEST_TIMEOUT")
	}
	if cfg.RetryBackoff, err = durationEnv("AERIS_RETRY_BACKOFF", cfg.RetryBackoff); err != nil {
		return cfg, err
	}
	if cfg.UpdateInterval, err = durationEnv("AERIS_UPDATE_INTERVAL", cfg.UpdateInterval); err != nil {
		return cfg, err
	}
	if cfg.UpdateInterval < time.Minute {
		return cfg, errors.New("AERIS_UPDATE_INTERVAL must be at least 1m")
	}

	if cfg.RetryAttempts, err = intEnv("AERIS_RETRY_ATTEMPTS", cfg.RetryAttempts); err != nil {
		return cfg, err
	}
	if cfg.RequestsPerMin, err = intEnv("AERIS_REQUESTS_PER_MINUTE", cfg.RequestsPerMin); err != nil {
		return cfg, err
	}
	if cfg.MaxConcurrent, err = intEnv("AERIS_MAX_CONCURRENT", cfg.MaxConcurrent); err != nil {
		return cfg, err
	}
	if cfg.CitiesToMonitor, err = intEnv("AERIS_CITIES_TO_MONITOR", cfg.CitiesToMonitor); err != nil {
		return cfg, err
	}
	if cfg.BackfillMonths, err = intEnv("AERIS_BACKFILL_MONTHS", cfg.BackfillMonths); err != nil {
		return cfg, err
	}
	if cfg.Port, err = intEnv("PORT", cfg.Port); err != nil {
		return cfg, err
	}
	if cfg.DefaultDays, err = intEnv("AERIS_DEFAULT_DAYS", cfg.DefaultDays); err != nil {
		return cfg, err
	}

	cfg.BearerToken = os.Getenv("API_BEARER_TOKEN")

	if v := strings.TrimSpace(os.Getenv("LOG_LEVEL")); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	pretty := strings.TrimSpace(os.Getenv("LOG_PRETTY"))
	cfg.PrettyLogs = pretty == "1" || strings.EqualFold(pretty, "true")

	return cfg, nil
}

// ExpectedDays converts the backfill target from months to days.
func (c Config) ExpectedDays() int {
	return 30 * c.BackfillMonths
}

// ListenAddr returns the host:port string for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback, fmt.Errorf("invalid %s: %s", key, v)
	}
	return n, nil
}
