package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv loads a .env file when present and overlays cfg with environment
// variables. Environment variables win over every other source.
func parseEnv(cfg *Config) error {
	// Missing .env is the normal case outside development.
	_ = godotenv.Load()

	cfg.Backend = getEnvString("SHEETBOOK_BACKEND", cfg.Backend)
	cfg.SheetsBaseURL = getEnvString("SHEETBOOK_SHEETS_BASE_URL", cfg.SheetsBaseURL)
	cfg.SheetsToken = getEnvString("SHEETBOOK_SHEETS_TOKEN", cfg.SheetsToken)
	cfg.LocalDBPath = getEnvString("SHEETBOOK_LOCAL_DB_PATH", cfg.LocalDBPath)
	cfg.DirectoryBookRef = getEnvString("SHEETBOOK_DIRECTORY_BOOK", cfg.DirectoryBookRef)
	cfg.RatesEndpoint = getEnvString("SHEETBOOK_RATES_ENDPOINT", cfg.RatesEndpoint)
	cfg.BaseCurrency = getEnvString("SHEETBOOK_BASE_CURRENCY", cfg.BaseCurrency)
	cfg.SecretKey = getEnvString("SHEETBOOK_SECRET_KEY", cfg.SecretKey)
	cfg.TrialDays = getEnvInt("SHEETBOOK_TRIAL_DAYS", cfg.TrialDays)

	var err error
	if cfg.StoreTimeout, err = getEnvDuration("SHEETBOOK_STORE_TIMEOUT", cfg.StoreTimeout); err != nil {
		return err
	}
	if cfg.RatesTTL, err = getEnvDuration("SHEETBOOK_RATES_TTL", cfg.RatesTTL); err != nil {
		return err
	}
	if cfg.CacheShortTTL, err = getEnvDuration("SHEETBOOK_CACHE_SHORT_TTL", cfg.CacheShortTTL); err != nil {
		return err
	}
	if cfg.CacheLongTTL, err = getEnvDuration("SHEETBOOK_CACHE_LONG_TTL", cfg.CacheLongTTL); err != nil {
		return err
	}
	if cfg.SessionValidity, err = getEnvDuration("SHEETBOOK_SESSION_VALIDITY", cfg.SessionValidity); err != nil {
		return err
	}

	if cfg.Backend != BackendSheets && cfg.Backend != BackendSQLite {
		return fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
