package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	for _, k := range []string{"DB_DRIVER", "DB_DSN", "TIMEZONE", "ONESHOT_ENABLED", "POLL_TIMEOUT", "BOT_DEBUG"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBDriver != DefaultDBDriver || cfg.DBDSN != DefaultDBDSN {
		t.Fatalf("db = %s %s", cfg.DBDriver, cfg.DBDSN)
	}
	if cfg.Location.String() != DefaultTimezone {
		t.Fatalf("Location = %s", cfg.Location)
	}
	if !cfg.OneShotEnabled || cfg.Debug {
		t.Fatalf("OneShotEnabled = %v, Debug = %v", cfg.OneShotEnabled, cfg.Debug)
	}
	if cfg.PollTimeout != DefaultPollTimeout {
		t.Fatalf("PollTimeout = %d", cfg.PollTimeout)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing token", env: map[string]string{"TELEGRAM_BOT_TOKEN": ""}},
		{name: "bad driver", env: map[string]string{"DB_DRIVER": "mysql"}},
		{name: "bad timezone", env: map[string]string{"TIMEZONE": "Mars/Olympus"}},
		{name: "bad bool", env: map[string]string{"ONESHOT_ENABLED": "maybe"}},
		{name: "bad poll timeout", env: map[string]string{"POLL_TIMEOUT": "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	if err := os.WriteFile(file, []byte("TAGBOT_TEST_VALUE=from-file\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("TAGBOT_TEST_VALUE", "")
	os.Unsetenv("TAGBOT_TEST_VALUE")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), file); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("TAGBOT_TEST_VALUE"); got != "from-file" {
		t.Fatalf("value = %q", got)
	}
}
