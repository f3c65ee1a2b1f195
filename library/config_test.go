package library

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultGraceDays, cfg.GraceDays)
	assert.Equal(t, Limits{MaxBooks: 100, MaxMembers: 50, MaxLoans: 200}, cfg.Limits())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Config)
		field string
	}{
		{"grace days", func(c *Config) { c.GraceDays = 0 }, "grace_days"},
		{"negative limit", func(c *Config) { c.MaxLoans = -1 }, "limits"},
		{"backend", func(c *Config) { c.Backend = "csv" }, "backend"},
		{"data dir", func(c *Config) { c.DataDir = " " }, "data_dir"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.edit(&cfg)
			var verr *ValidationError
			require.ErrorAs(t, cfg.Validate(), &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}

	cfg := DefaultConfig()
	cfg.MaxBooks = 0
	assert.NoError(t, cfg.Validate(), "zero means unlimited")
}

// chdir moves into a fresh directory so stray .env files do not leak in.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
	return dir
}

func TestLoadConfigFromEnv(t *testing.T) {
	chdir(t)
	t.Setenv("LIBRARY_DATA_DIR", "/var/lib/catalog")
	t.Setenv("LIBRARY_BACKEND", BackendSQLite)
	t.Setenv("LIBRARY_GRACE_DAYS", "14")
	t.Setenv("LIBRARY_MAX_BOOKS", "0")
	t.Setenv("LIBRARY_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/catalog", cfg.DataDir)
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.Equal(t, 14, cfg.GraceDays)
	assert.Equal(t, 0, cfg.MaxBooks)
	assert.Equal(t, 50, cfg.MaxMembers)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigDotEnv(t *testing.T) {
	dir := chdir(t)
	writeData(t, dir, ".env", "LIBRARY_MAX_MEMBERS=5\nLIBRARY_GRACE_DAYS=3\n")
	t.Setenv("LIBRARY_GRACE_DAYS", "10")
	t.Cleanup(func() { os.Unsetenv("LIBRARY_MAX_MEMBERS") })

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxMembers)
	// the real environment wins over .env
	assert.Equal(t, 10, cfg.GraceDays)
}

func TestLoadConfigBadNumber(t *testing.T) {
	chdir(t)
	t.Setenv("LIBRARY_MAX_LOANS", "many")
	_, err := LoadConfig()
	assert.ErrorContains(t, err, "LIBRARY_MAX_LOANS")
}

func TestParseLogLevel(t *testing.T) {
	lvl, err := ParseLogLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)

	lvl, err = ParseLogLevel(" DEBUG ")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	_, err = ParseLogLevel("loud")
	assert.Error(t, err)
}
