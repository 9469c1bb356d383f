// Package config contains everything related to configuration
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/j-veylop/watercare-dashboard-tui/internal/models"
)

// ErrMissingCredentials is returned when no Watercare login is configured.
var ErrMissingCredentials = errors.New(
	"WATERCARE_USERNAME (or WATERCARE_EMAIL) and WATERCARE_PASSWORD are required")

// Config holds the application configuration.
type Config struct {
	Username         string
	Password         string
	Endpoint         models.EndpointKind
	Rates            models.Rates
	DatabasePath     string
	OptionsPath      string
	RefreshInterval  time.Duration
	HTTPTimeout      time.Duration
	LookbackDays     int
	UsageAlertLitres float64
	MetricsAddr      string
	PostgresURL      string
	LogLevel         string
	LogFormat        string
	LogPath          string
}

// DefaultRefreshInterval is the polling interval used when REFRESH_INTERVAL
// is unset.
const DefaultRefreshInterval = 12 * time.Hour

const (
	defaultHTTPTimeout  = 30 * time.Second
	defaultLookbackDays = 7
)

// Load reads configuration from .env files and environment variables and
// requires Watercare credentials.
func Load() (*Config, error) {
	cfg, err := LoadLocal()
	if err != nil {
		return nil, err
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, ErrMissingCredentials
	}
	return cfg, nil
}

// LoadLocal is Load without the credential check, for commands that only
// read the local store.
func LoadLocal() (*Config, error) {
	// Try loading .env from multiple locations
	envPaths := getEnvPaths()
	for _, path := range envPaths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	endpoint, err := models.ParseEndpointKind(getEnvString("WATERCARE_ENDPOINT", string(models.DefaultEndpoint)))
	if err != nil {
		return nil, fmt.Errorf("WATERCARE_ENDPOINT: %w", err)
	}

	cfg := &Config{
		// WATERCARE_EMAIL is the older name of the same setting.
		Username: getEnvString("WATERCARE_USERNAME", os.Getenv("WATERCARE_EMAIL")),
		Password: os.Getenv("WATERCARE_PASSWORD"),
		Endpoint: endpoint,
		Rates: models.Rates{
			ConsumptionRate:  getEnvFloat("CONSUMPTION_RATE", models.DefaultConsumptionRate),
			WastewaterRate:   getEnvFloat("WASTEWATER_RATE", models.DefaultWastewaterRate),
			WastewaterRatio:  getEnvFloat("WASTEWATER_RATIO", models.DefaultWastewaterRatio),
			AnnualLineCharge: getEnvFloat("ANNUAL_LINE_CHARGE", models.DefaultAnnualLineCharge),
		},
		DatabasePath:     getEnvString("DATABASE_PATH", getDefaultDatabasePath()),
		OptionsPath:      getEnvString("OPTIONS_PATH", getDefaultOptionsPath()),
		RefreshInterval:  getEnvDuration("REFRESH_INTERVAL", DefaultRefreshInterval),
		HTTPTimeout:      getEnvDuration("HTTP_TIMEOUT", defaultHTTPTimeout),
		LookbackDays:     getEnvInt("FETCH_LOOKBACK_DAYS", defaultLookbackDays),
		UsageAlertLitres: getEnvFloat("USAGE_ALERT_LITRES", 0),
		MetricsAddr:      os.Getenv("METRICS_ADDR"),
		PostgresURL:      os.Getenv("POSTGRES_URL"),
		LogLevel:         getEnvString("LOG_LEVEL", "info"),
		LogFormat:        getEnvString("LOG_FORMAT", "text"),
		LogPath:          getEnvString("LOG_PATH", getDefaultLogPath()),
	}

	if cfg.RefreshInterval <= 0 {
		return nil, fmt.Errorf("%w: REFRESH_INTERVAL must be positive, got %s",
			models.ErrValidation, cfg.RefreshInterval)
	}

	// Ensure database directory exists
	if err := ensureDir(filepath.Dir(cfg.DatabasePath)); err != nil {
		return nil, err
	}

	// Ensure options directory exists
	if err := ensureDir(filepath.Dir(cfg.OptionsPath)); err != nil {
		return nil, err
	}

	return cfg, nil
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	// Current directory
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	// Home directory locations
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "watercare-tui", ".env"),
			filepath.Join(home, ".watercare", ".env"),
		)
	}

	// Parent directory (useful for development)
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(cwd), ".env"))
	}

	return paths
}

func configDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "watercare-tui")
}

// getDefaultDatabasePath returns the default path for the SQLite database.
func getDefaultDatabasePath() string {
	return filepath.Join(configDir(), "statistics.db")
}

// getDefaultOptionsPath returns the default path for the options file.
func getDefaultOptionsPath() string {
	return filepath.Join(configDir(), "options.yaml")
}

func getDefaultLogPath() string {
	return filepath.Join(configDir(), "wdt.log")
}

// getEnvString retrieves a string environment variable or returns the default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns the default.
// Accepts values like "30s", "1m", "12h".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// Try parsing as seconds if no unit specified
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// ensureDir creates a directory and all parent directories if they don't exist.
func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o750)
}
