// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/aristath/corrscope/internal/modules/settings"
)

// DefaultTickers is the fixed asset basket the dashboard tracks. One ticker
// maps to one remote-API symbol; the polygon client owns the rewrite table
// for symbols whose API-side identifier differs (BTC-USD).
var DefaultTickers = []string{
	"SPY", "IWM", "VEA", "VWO", "AGG", "GOVT", "GLD", "DBC", "VNQ", "BTC-USD",
}

// Config holds application configuration
type Config struct {
	DataDir        string // Base directory for config.db (always absolute)
	Port           int
	LogLevel       string
	DevMode        bool
	PolygonAPIKey  string
	PolygonBaseURL string

	Tickers    []string
	FetchStart string        // YYYY-MM-DD, inclusive
	FetchEnd   string        // YYYY-MM-DD; empty means "today" at request time
	FetchDelay time.Duration // minimum spacing between outbound requests

	WindowDefault int
	WindowMin     int
	WindowMax     int
	WindowStep    int

	PrefetchEnabled  bool
	PrefetchSchedule string // cron spec for the cache warm job
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("CORRSCOPE_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:        absDataDir,
		Port:           getEnvAsInt("PORT", 8010),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DevMode:        getEnvAsBool("DEV_MODE", false),
		PolygonAPIKey:  getEnv("POLYGON_API_KEY", ""),
		PolygonBaseURL: getEnv("POLYGON_BASE_URL", "https://api.polygon.io"),

		Tickers:    getEnvAsList("TICKERS", DefaultTickers),
		FetchStart: getEnv("FETCH_START", "2020-01-01"),
		FetchEnd:   getEnv("FETCH_END", ""),
		FetchDelay: time.Duration(getEnvAsInt("FETCH_DELAY_SECONDS", 13)) * time.Second,

		WindowDefault: getEnvAsInt("WINDOW_DEFAULT", 90),
		WindowMin:     getEnvAsInt("WINDOW_MIN", 30),
		WindowMax:     getEnvAsInt("WINDOW_MAX", 365),
		WindowStep:    getEnvAsInt("WINDOW_STEP", 10),

		PrefetchEnabled:  getEnvAsBool("PREFETCH_ENABLED", false),
		PrefetchSchedule: getEnv("PREFETCH_SCHEDULE", "0 0 6 * * *"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// UpdateFromSettings updates configuration from the settings database.
// This should be called after the config database is initialized.
// Settings DB values take precedence over environment variables.
func (c *Config) UpdateFromSettings(settingsRepo *settings.Repository) error {
	apiKey, err := settingsRepo.Get(settings.KeyPolygonAPIKey)
	if err != nil {
		return fmt.Errorf("failed to get polygon_api_key from settings: %w", err)
	}
	// Only use the settings DB value if it's not empty; the env var (if any)
	// remains the fallback.
	if apiKey != nil && *apiKey != "" {
		c.PolygonAPIKey = *apiKey
	}

	return nil
}

// DateRange resolves the fetch date range. An empty FetchEnd means "up to
// today", so each calendar day produces a distinct cache key and the daily
// prefetch job has something new to warm.
func (c *Config) DateRange() (from, to string) {
	from = c.FetchStart
	to = c.FetchEnd
	if to == "" {
		to = time.Now().UTC().Format("2006-01-02")
	}
	return from, to
}

// ClampWindow bounds a requested rolling window to [WindowMin, WindowMax]
// and snaps it down to the configured step, mirroring the dashboard slider.
func (c *Config) ClampWindow(window int) int {
	if window <= 0 {
		window = c.WindowDefault
	}
	if window < c.WindowMin {
		window = c.WindowMin
	}
	if window > c.WindowMax {
		window = c.WindowMax
	}
	if c.WindowStep > 1 {
		window = c.WindowMin + ((window-c.WindowMin)/c.WindowStep)*c.WindowStep
	}
	return window
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if len(c.Tickers) == 0 {
		return fmt.Errorf("ticker basket must not be empty")
	}
	if c.WindowMin <= 1 || c.WindowMax < c.WindowMin {
		return fmt.Errorf("invalid window bounds: min=%d max=%d", c.WindowMin, c.WindowMax)
	}
	if _, err := time.Parse("2006-01-02", c.FetchStart); err != nil {
		return fmt.Errorf("invalid FETCH_START: %w", err)
	}
	if c.FetchEnd != "" {
		if _, err := time.Parse("2006-01-02", c.FetchEnd); err != nil {
			return fmt.Errorf("invalid FETCH_END: %w", err)
		}
	}

	// Note: the API key is optional at startup. An empty credential puts the
	// service into a configuration-needed state instead of failing.
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
