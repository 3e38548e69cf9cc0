package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tinytelemetry/querylens/internal/model"
)

func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_RUNTIME_DIR", "")
	for _, key := range []string{"QUERYLENS_LOG_TYPE", "QUERYLENS_LOG_TARGET", "QUERYLENS_DEMO_MODE", "QUERY_LOG_TYPE", "QUERY_LOG_TARGET", "DEMO_MODE"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	return home
}

func TestLoadConfigDefaults(t *testing.T) {
	home := isolateHome(t)

	cfg, err := loadConfig("", nil)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.LogType != "" || cfg.DemoMode {
		t.Errorf("unexpected backend defaults: %+v", cfg)
	}
	if cfg.CacheTTL != model.DefaultCacheTTL || cfg.QueryTimeout != model.DefaultQueryTimeout {
		t.Errorf("timing defaults = %s/%s", cfg.CacheTTL, cfg.QueryTimeout)
	}
	if !cfg.APIEnabled || cfg.APIAddr != defaultAPIAddr {
		t.Errorf("api defaults = %v %q", cfg.APIEnabled, cfg.APIAddr)
	}
	if want := filepath.Join(home, ".local", "state", "querylens", "querylens.log"); cfg.LogFile != want {
		t.Errorf("log file = %q, want %q", cfg.LogFile, want)
	}
	if cfg.ConfigPath != "" {
		t.Errorf("config path = %q, want empty", cfg.ConfigPath)
	}
}

func TestLoadConfigEnv(t *testing.T) {
	isolateHome(t)
	t.Setenv("QUERYLENS_LOG_TYPE", "sqlite")
	t.Setenv("QUERYLENS_LOG_TARGET", "/var/lib/blocky/log.db")
	t.Setenv("QUERYLENS_CACHE_TTL", "30s")
	t.Setenv("QUERYLENS_API_ENABLED", "false")

	cfg, err := loadConfig("", nil)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.LogType != "sqlite" || cfg.LogTarget != "/var/lib/blocky/log.db" {
		t.Errorf("backend = %q %q", cfg.LogType, cfg.LogTarget)
	}
	if cfg.CacheTTL != 30*time.Second {
		t.Errorf("cache ttl = %s", cfg.CacheTTL)
	}
	if cfg.APIEnabled {
		t.Error("api should be disabled")
	}
}

func TestLoadConfigLegacyEnv(t *testing.T) {
	isolateHome(t)
	t.Setenv("QUERY_LOG_TYPE", "csv-client")
	t.Setenv("QUERY_LOG_TARGET", "/logs")
	t.Setenv("DEMO_MODE", "true")

	cfg, err := loadConfig("", nil)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.LogType != "csv-client" || cfg.LogTarget != "/logs" || !cfg.DemoMode {
		t.Errorf("legacy env not honoured: %+v", cfg)
	}

	// the prefixed variable wins
	t.Setenv("QUERYLENS_LOG_TYPE", "duckdb")
	cfg, err = loadConfig("", nil)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.LogType != "duckdb" {
		t.Errorf("log type = %q, want duckdb", cfg.LogType)
	}
}

func TestLoadConfigFile(t *testing.T) {
	home := isolateHome(t)
	path := filepath.Join(t.TempDir(), "config.yml")
	body := "log-type: csv\nlog-target: ~/blocky/logs\nquery-timeout: 5s\nstrict: true\n"
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path, nil)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.LogType != "csv" || !cfg.Strict || cfg.QueryTimeout != 5*time.Second {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if want := filepath.Join(home, "blocky", "logs"); cfg.LogTarget != want {
		t.Errorf("log target = %q, want %q", cfg.LogTarget, want)
	}
	if cfg.ConfigPath != path {
		t.Errorf("config path = %q, want %q", cfg.ConfigPath, path)
	}
}

func TestLoadConfigFlagsOverride(t *testing.T) {
	isolateHome(t)
	t.Setenv("QUERYLENS_LOG_TYPE", "mysql")

	root := newRootCommand()
	serve, _, err := root.Find([]string{"serve"})
	if err != nil {
		t.Fatalf("find serve: %v", err)
	}
	if err := serve.ParseFlags([]string{"--log-type", "duckdb", "--api-addr", "0.0.0.0:8080"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := loadConfig("", serve)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.LogType != "duckdb" {
		t.Errorf("log type = %q, want flag value duckdb", cfg.LogType)
	}
	if cfg.APIAddr != "0.0.0.0:8080" {
		t.Errorf("api addr = %q", cfg.APIAddr)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	isolateHome(t)
	t.Setenv("QUERYLENS_QUERY_TIMEOUT", "0s")
	if _, err := loadConfig("", nil); err == nil {
		t.Error("expected error for zero query timeout")
	}

	t.Setenv("QUERYLENS_QUERY_TIMEOUT", "")
	path := filepath.Join(t.TempDir(), "broken.yml")
	if err := os.WriteFile(path, []byte("log-type: [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(path, nil); err == nil {
		t.Error("expected error for malformed config file")
	}
}

func TestRedact(t *testing.T) {
	for in, want := range map[string]string{
		"postgres://blocky:hunter2@db:5432/blocky": "postgres://blocky:***@db:5432/blocky",
		"clickhouse://db:9000/default":             "clickhouse://db:9000/default",
		"blocky:secret@tcp(db:3306)/blocky":        "blocky:***@tcp(db:3306)/blocky",
	} {
		if got := redact(in); got != want {
			t.Errorf("redact(%q) = %q, want %q", in, got, want)
		}
	}
}
