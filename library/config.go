package library

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config selects where the catalog lives and how it behaves.
type Config struct {
	DataDir    string
	Backend    string
	GraceDays  int
	MaxBooks   int
	MaxMembers int
	MaxLoans   int
	LogLevel   string
}

// DefaultConfig mirrors the historical limits of the catalog: 100 books,
// 50 members, 200 loans and a 7 day loan period.
func DefaultConfig() Config {
	return Config{
		DataDir:    "data",
		Backend:    BackendFiles,
		GraceDays:  DefaultGraceDays,
		MaxBooks:   100,
		MaxMembers: 50,
		MaxLoans:   200,
		LogLevel:   "info",
	}
}

// Limits returns the collection caps of c.
func (c Config) Limits() Limits {
	return Limits{MaxBooks: c.MaxBooks, MaxMembers: c.MaxMembers, MaxLoans: c.MaxLoans}
}

// Validate rejects settings the catalog cannot run with.
func (c Config) Validate() error {
	if c.GraceDays < 1 {
		return invalid("grace_days", "must be at least 1")
	}
	if c.MaxBooks < 0 || c.MaxMembers < 0 || c.MaxLoans < 0 {
		return invalid("limits", "must not be negative")
	}
	if c.Backend != BackendFiles && c.Backend != BackendSQLite {
		return invalid("backend", "must be %q or %q", BackendFiles, BackendSQLite)
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return invalid("data_dir", "must be provided")
	}
	return nil
}

// LoadConfig starts from DefaultConfig, loads .env files without overriding
// the real environment, and applies the LIBRARY_* variables.
func LoadConfig() (Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	cfg := DefaultConfig()
	cfg.DataDir = getEnv("LIBRARY_DATA_DIR", cfg.DataDir)
	cfg.Backend = getEnv("LIBRARY_BACKEND", cfg.Backend)
	cfg.LogLevel = getEnv("LIBRARY_LOG_LEVEL", cfg.LogLevel)

	ints := []struct {
		key string
		dst *int
	}{
		{"LIBRARY_GRACE_DAYS", &cfg.GraceDays},
		{"LIBRARY_MAX_BOOKS", &cfg.MaxBooks},
		{"LIBRARY_MAX_MEMBERS", &cfg.MaxMembers},
		{"LIBRARY_MAX_LOANS", &cfg.MaxLoans},
	}
	for _, it := range ints {
		v := os.Getenv(it.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("%s: %w", it.key, err)
		}
		*it.dst = n
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// ParseLogLevel maps debug/info/warn/error onto slog levels.
func ParseLogLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", s, err)
	}
	return lvl, nil
}
