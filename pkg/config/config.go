package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every tunable of the scraping pipeline and monitor. Values
// come from the environment (a .env file is loaded by main before this runs).
type Config struct {
	Env string

	DatabasePath string
	CachePath    string
	CacheTTL     time.Duration

	FetchTimeout time.Duration
	Headless     bool
	UseBrowser   bool

	MaxAttempts   int
	BackoffBase   time.Duration
	BackoffJitter time.Duration

	MonitorInterval time.Duration
	DelayMin        time.Duration
	DelayMax        time.Duration
}

// Load reads configuration from environment variables, applying defaults
// that match the upstream site's tolerance for automated traffic.
func Load() *Config {
	return &Config{
		Env:          envString("APP_ENV", "development"),
		DatabasePath: envString("DB_PATH", "./pricewatch.db"),
		CachePath:    envString("CACHE_DB_PATH", "./cache.db"),
		CacheTTL:     time.Duration(envInt("CACHE_TTL_MINUTES", 60)) * time.Minute,

		FetchTimeout: time.Duration(envInt("FETCH_TIMEOUT_SECONDS", 30)) * time.Second,
		Headless:     envBool("HEADLESS", true),
		UseBrowser:   envBool("USE_BROWSER", true),

		MaxAttempts:   envInt("MAX_ATTEMPTS", 2),
		BackoffBase:   time.Duration(envInt("BACKOFF_BASE_SECONDS", 30)) * time.Second,
		BackoffJitter: time.Duration(envInt("BACKOFF_JITTER_SECONDS", 30)) * time.Second,

		MonitorInterval: time.Duration(envInt("CHECK_INTERVAL_MINUTES", 30)) * time.Minute,
		DelayMin:        time.Duration(envInt("SCRAPING_DELAY_MIN_SECONDS", 2)) * time.Second,
		DelayMax:        time.Duration(envInt("SCRAPING_DELAY_MAX_SECONDS", 4)) * time.Second,
	}
}

func envString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}
