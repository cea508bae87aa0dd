package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	want := Default()
	if cfg != want {
		t.Fatalf("Load = %+v, want %+v", cfg, want)
	}
	if !strings.HasPrefix(cfg.DataDir, home) {
		t.Fatalf("DataDir = %q, want it under HOME %q", cfg.DataDir, home)
	}
	if cfg.DBPath() != filepath.Join(cfg.DataDir, "explorer.db") {
		t.Fatalf("DBPath = %q", cfg.DBPath())
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := writeConfig(t, `
api_base = "  http://localhost:8080  "
storage = " Redis "
redis_url = "redis://localhost:6379/1"
namespace = "tab-test"
list_fresh_for = "90s"
revalidate_every = "2m"
max_attempts = 5
log_path = "~/logs/explorer.log"
log_level = "DEBUG"
metrics_addr = "127.0.0.1:9464"
theme = "light"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIBase != "http://localhost:8080" {
		t.Fatalf("APIBase = %q", cfg.APIBase)
	}
	if cfg.Storage != StorageRedis {
		t.Fatalf("Storage = %q, want %q", cfg.Storage, StorageRedis)
	}
	if cfg.Namespace != "tab-test" {
		t.Fatalf("Namespace = %q", cfg.Namespace)
	}
	if cfg.ListFreshFor != 90*time.Second {
		t.Fatalf("ListFreshFor = %s, want 90s", cfg.ListFreshFor)
	}
	if cfg.RevalidateEvery != 2*time.Minute {
		t.Fatalf("RevalidateEvery = %s, want 2m", cfg.RevalidateEvery)
	}
	if cfg.MaxAttempts != 5 {
		t.Fatalf("MaxAttempts = %d, want 5", cfg.MaxAttempts)
	}
	if cfg.LogPath != filepath.Join(home, "logs/explorer.log") {
		t.Fatalf("LogPath = %q, want it expanded under HOME", cfg.LogPath)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.Theme != "light" {
		t.Fatalf("Theme = %q, want light", cfg.Theme)
	}
	if cfg.RecordFreshFor != Default().RecordFreshFor {
		t.Fatalf("unset RecordFreshFor changed to %s", cfg.RecordFreshFor)
	}
}

func TestLoad_EmptyValuesUseDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	path := writeConfig(t, `
api_base = "   "
storage = ""
retain_for = ""
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	def := Default()
	if cfg.APIBase != def.APIBase || cfg.Storage != def.Storage || cfg.RetainFor != def.RetainFor {
		t.Fatalf("Load = %+v, want defaults", cfg)
	}
}

func TestLoad_EmptyLogPathDisablesFileLogging(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(writeConfig(t, `log_path = ""`))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.LogPath != "" {
		t.Fatalf("LogPath = %q, want empty", cfg.LogPath)
	}
}

func TestLoad_InvalidTOMLFails(t *testing.T) {
	_, err := Load(writeConfig(t, `api_base = [`))
	if err == nil {
		t.Fatalf("Load returned nil error, want parse error")
	}
	if !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("Load error = %q, want it to mention parse config", err.Error())
	}
}

func TestLoad_InvalidDurationFails(t *testing.T) {
	_, err := Load(writeConfig(t, `retry_base = "soon"`))
	if err == nil || !strings.Contains(err.Error(), "retry_base") {
		t.Fatalf("Load error = %v, want it to name retry_base", err)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("EXPLORER_STORAGE", "memory")
	t.Setenv("EXPLORER_MAX_ATTEMPTS", "7")
	t.Setenv("EXPLORER_SEARCH_DEBOUNCE", "150ms")

	cfg, err := Load(writeConfig(t, `
storage = "sqlite"
max_attempts = 2
`))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Storage != StorageMemory {
		t.Fatalf("Storage = %q, want memory", cfg.Storage)
	}
	if cfg.MaxAttempts != 7 {
		t.Fatalf("MaxAttempts = %d, want 7", cfg.MaxAttempts)
	}
	if cfg.SearchDebounce != 150*time.Millisecond {
		t.Fatalf("SearchDebounce = %s, want 150ms", cfg.SearchDebounce)
	}
}

func TestLoad_BadEnvFails(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("EXPLORER_MAX_ATTEMPTS", "lots")

	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil || !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("Load error = %v, want parse env prefix", err)
	}
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"unknown storage", `storage = "postgres"`, "Storage"},
		{"redis without url", `storage = "redis"`, "RedisURL"},
		{"bad level", `log_level = "loud"`, "LogLevel"},
		{"zero attempts", `max_attempts = 0`, "MaxAttempts"},
		{"bad theme", `theme = "neon"`, "Theme"},
		{"bad metrics addr", `metrics_addr = "nowhere"`, "MetricsAddr"},
		{"namespace with separator", `namespace = "a:b"`, "Namespace"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HOME", t.TempDir())
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatalf("Load returned nil error")
			}
			if !strings.Contains(err.Error(), "invalid config") || !strings.Contains(err.Error(), tt.field) {
				t.Fatalf("Load error = %q, want invalid %s", err.Error(), tt.field)
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing env file returned error: %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("EXPLORER_NAMESPACE=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("EXPLORER_NAMESPACE", "")
	os.Unsetenv("EXPLORER_NAMESPACE")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv returned error: %v", err)
	}
	if got := os.Getenv("EXPLORER_NAMESPACE"); got != "from-dotenv" {
		t.Fatalf("EXPLORER_NAMESPACE = %q, want from-dotenv", got)
	}
}

func TestExpandPath_ExpandsTildeAndReturnsAbs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandPath("~/a/b")
	if err != nil {
		t.Fatalf("expandPath returned error: %v", err)
	}
	want := filepath.Join(home, "a/b")
	if got != want {
		t.Fatalf("expandPath = %q, want %q", got, want)
	}
}

func TestExpandPath_EmptyErrors(t *testing.T) {
	if _, err := expandPath("   "); err == nil {
		t.Fatalf("expandPath returned nil error, want error")
	}
}
