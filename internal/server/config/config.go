// Package config handles configuration for the server component: defaults,
// an optional YAML overlay, a .env file, and environment variables, applied
// in that order.
package config

import "time"

// Backend selects the store implementation.
const (
	BackendSheets = "sheets"
	BackendSQLite = "sqlite"
)

// Config holds runtime settings for the sheetbook server.
//
// Fields:
//   - Backend: "sheets" for the remote spreadsheet API, "sqlite" for the
//     local file-backed store.
//   - SheetsBaseURL / SheetsToken: endpoint and bearer token of the
//     spreadsheet values API.
//   - StoreTimeout: per-request timeout against the remote store.
//   - LocalDBPath: SQLite file path for the local backend.
//   - DirectoryBookRef: book reference of the directory spreadsheet holding
//     Users and Book_Bindings.
//   - RatesEndpoint: exchange-rate service URL, with a "{base}" placeholder.
//   - BaseCurrency: reference currency of the rate table.
//   - RatesTTL: how long a fetched rate table is reused.
//   - CacheShortTTL / CacheLongTTL: read-cache lifetimes for data tables and
//     long-lived tables respectively.
//   - SecretKey: HMAC secret for signing session JWTs (HS256). Do not use
//     the test default in prod.
//   - SessionValidity: session token lifetime.
//   - TrialDays: trial window granted at registration and activation.
type Config struct {
	Backend          string
	SheetsBaseURL    string
	SheetsToken      string
	StoreTimeout     time.Duration
	LocalDBPath      string
	DirectoryBookRef string
	RatesEndpoint    string
	BaseCurrency     string
	RatesTTL         time.Duration
	CacheShortTTL    time.Duration
	CacheLongTTL     time.Duration
	SecretKey        string
	SessionValidity  time.Duration
	TrialDays        int
}

// LoadDefaults populates Config with sensible development defaults.
// NOTE: These values are insecure for production and should be overridden.
func (c *Config) LoadDefaults() {
	c.Backend = BackendSQLite
	c.SheetsBaseURL = "https://sheets.googleapis.com"
	c.StoreTimeout = 15 * time.Second
	c.LocalDBPath = "sheetbook.db"
	c.DirectoryBookRef = "directory"
	c.RatesEndpoint = "https://open.er-api.com/v6/latest/{base}"
	c.BaseCurrency = "TWD"
	c.RatesTTL = time.Hour
	c.CacheShortTTL = 5 * time.Minute
	c.CacheLongTTL = time.Hour
	c.SecretKey = "secretKey"
	c.SessionValidity = 24 * time.Hour
	c.TrialDays = 30
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional YAML file, a .env file, and finally environment
// variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseYaml(cfg); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
