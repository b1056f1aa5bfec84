package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the process-wide settings read from the environment
type Config struct {
	// Telegram bot token
	Token string
	// Enables tgbotapi request logging
	Debug bool
	// Long-poll timeout in seconds
	PollTimeout int

	// Database driver name and DSN (file path for sqlite3)
	DBDriver string
	DBDSN    string

	// The single zone every time-of-day comparison uses
	Location *time.Location
	// Register a one-shot job for the first occurrence of a new or edited reminder
	OneShotEnabled bool

	LogLevel  string
	LogFormat string
	LogFile   string
}

// Defaults used when the variable is unset
const (
	DefaultDBDriver    = "sqlite3"
	DefaultDBDSN       = "data/bot.sqlite"
	DefaultTimezone    = "Asia/Ho_Chi_Minh"
	DefaultPollTimeout = 60
)

// LoadDotEnv loads variables from the given files, ignoring files that don't exist.
// Variables already present in the environment are not overridden.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the configuration from the environment
func Load() (*Config, error) {
	cfg := &Config{
		Token:     strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")),
		DBDriver:  GetEnv("DB_DRIVER", DefaultDBDriver),
		DBDSN:     GetEnv("DB_DSN", DefaultDBDSN),
		LogLevel:  GetEnv("LOG_LEVEL", "info"),
		LogFormat: GetEnv("LOG_FORMAT", "text"),
		LogFile:   os.Getenv("LOG_FILE"),
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable is not set")
	}

	switch cfg.DBDriver {
	case "sqlite3", "postgres":
	default:
		return nil, fmt.Errorf("DB_DRIVER must be sqlite3 or postgres, got %q", cfg.DBDriver)
	}

	loc, err := time.LoadLocation(GetEnv("TIMEZONE", DefaultTimezone))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Location = loc

	if cfg.Debug, err = getBool("BOT_DEBUG", false); err != nil {
		return nil, err
	}
	if cfg.OneShotEnabled, err = getBool("ONESHOT_ENABLED", true); err != nil {
		return nil, err
	}

	cfg.PollTimeout = DefaultPollTimeout
	if v := os.Getenv("POLL_TIMEOUT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("POLL_TIMEOUT must be a non-negative integer, got %q", v)
		}
		cfg.PollTimeout = n
	}

	return cfg, nil
}

// GetEnv returns the variable's value, or defaultValue when it is empty
func GetEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean, got %q", key, v)
	}
	return b, nil
}
