package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, BackendSQLite, cfg.Backend)
	// The store client appends "/v4/..." itself, so the default must be the
	// bare API root.
	assert.Equal(t, "https://sheets.googleapis.com", cfg.SheetsBaseURL)
	assert.Equal(t, "TWD", cfg.BaseCurrency)
	assert.Equal(t, 5*time.Minute, cfg.CacheShortTTL)
	assert.Equal(t, time.Hour, cfg.CacheLongTTL)
	assert.Equal(t, 30, cfg.TrialDays)
}

func TestLoadConfigEnvOverridesDefaults(t *testing.T) {
	t.Setenv("SHEETBOOK_BACKEND", BackendSheets)
	t.Setenv("SHEETBOOK_SHEETS_TOKEN", "tok-123")
	t.Setenv("SHEETBOOK_SESSION_VALIDITY", "45m")
	t.Setenv("SHEETBOOK_TRIAL_DAYS", "7")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, BackendSheets, cfg.Backend)
	assert.Equal(t, "tok-123", cfg.SheetsToken)
	assert.Equal(t, 45*time.Minute, cfg.SessionValidity)
	assert.Equal(t, 7, cfg.TrialDays)
}

func TestLoadConfigYamlOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "backend: sheets\nbase_currency: USD\nrates_ttl: 2h\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	t.Setenv("SHEETBOOK_CONFIG", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, BackendSheets, cfg.Backend)
	assert.Equal(t, "USD", cfg.BaseCurrency)
	assert.Equal(t, 2*time.Hour, cfg.RatesTTL)
	// Untouched keys keep their defaults.
	assert.Equal(t, "directory", cfg.DirectoryBookRef)
}

func TestLoadConfigEnvWinsOverYaml(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_currency: USD\n"), 0o600))
	t.Setenv("SHEETBOOK_CONFIG", path)
	t.Setenv("SHEETBOOK_BASE_CURRENCY", "JPY")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "JPY", cfg.BaseCurrency)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("SHEETBOOK_STORE_TIMEOUT", "soon")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigRejectsUnknownBackend(t *testing.T) {
	t.Setenv("SHEETBOOK_BACKEND", "postgres")
	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigMissingYamlFileIsError(t *testing.T) {
	t.Setenv("SHEETBOOK_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
	_, err := LoadConfig()
	assert.Error(t, err)
}
