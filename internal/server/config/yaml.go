package config

import (
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"
)

// yamlConfigEnv names the environment variable pointing at the optional
// YAML configuration file.
const yamlConfigEnv = "SHEETBOOK_CONFIG"

// yamlConfig is the intermediate DTO for YAML unmarshalling. Durations are
// strings in "2h45m" notation and get parsed when copied into Config; only
// keys present in the file overlay the running config.
type yamlConfig struct {
	Backend          string `yaml:"backend"`
	SheetsBaseURL    string `yaml:"sheets_base_url"`
	SheetsToken      string `yaml:"sheets_token"`
	StoreTimeout     string `yaml:"store_timeout"`
	LocalDBPath      string `yaml:"local_db_path"`
	DirectoryBookRef string `yaml:"directory_book_ref"`
	RatesEndpoint    string `yaml:"rates_endpoint"`
	BaseCurrency     string `yaml:"base_currency"`
	RatesTTL         string `yaml:"rates_ttl"`
	CacheShortTTL    string `yaml:"cache_short_ttl"`
	CacheLongTTL     string `yaml:"cache_long_ttl"`
	SecretKey        string `yaml:"secret_key"`
	SessionValidity  string `yaml:"session_validity"`
	TrialDays        int    `yaml:"trial_days"`
}

// parseYaml overlays cfg with values from the YAML file named by
// SHEETBOOK_CONFIG. No variable set means no overlay; a named file that is
// missing or malformed is an error.
func parseYaml(cfg *Config) error {
	path := os.Getenv(yamlConfigEnv)
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	c := &yamlConfig{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}

	setString(&cfg.Backend, c.Backend)
	setString(&cfg.SheetsBaseURL, c.SheetsBaseURL)
	setString(&cfg.SheetsToken, c.SheetsToken)
	setString(&cfg.LocalDBPath, c.LocalDBPath)
	setString(&cfg.DirectoryBookRef, c.DirectoryBookRef)
	setString(&cfg.RatesEndpoint, c.RatesEndpoint)
	setString(&cfg.BaseCurrency, c.BaseCurrency)
	setString(&cfg.SecretKey, c.SecretKey)
	if c.TrialDays != 0 {
		cfg.TrialDays = c.TrialDays
	}

	if err := setDuration(&cfg.StoreTimeout, c.StoreTimeout); err != nil {
		return fmt.Errorf("config file %s: store_timeout: %w", path, err)
	}
	if err := setDuration(&cfg.RatesTTL, c.RatesTTL); err != nil {
		return fmt.Errorf("config file %s: rates_ttl: %w", path, err)
	}
	if err := setDuration(&cfg.CacheShortTTL, c.CacheShortTTL); err != nil {
		return fmt.Errorf("config file %s: cache_short_ttl: %w", path, err)
	}
	if err := setDuration(&cfg.CacheLongTTL, c.CacheLongTTL); err != nil {
		return fmt.Errorf("config file %s: cache_long_ttl: %w", path, err)
	}
	if err := setDuration(&cfg.SessionValidity, c.SessionValidity); err != nil {
		return fmt.Errorf("config file %s: session_validity: %w", path, err)
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
