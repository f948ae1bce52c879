package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_DefaultConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Store.Driver != "sqlite" {
		t.Errorf("Expected store driver 'sqlite', got '%s'", cfg.Store.Driver)
	}
	if cfg.Store.Firestore.ReportsCollection != "SharedReports" {
		t.Errorf("Expected reports collection 'SharedReports', got '%s'", cfg.Store.Firestore.ReportsCollection)
	}
	if cfg.Store.Firestore.KeysCollection != "KeyGemini" {
		t.Errorf("Expected keys collection 'KeyGemini', got '%s'", cfg.Store.Firestore.KeysCollection)
	}
	if cfg.Assistant.Model != "gemini-2.5-flash" {
		t.Errorf("Expected model 'gemini-2.5-flash', got '%s'", cfg.Assistant.Model)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Expected log level 'info', got '%s'", cfg.Logging.Level)
	}

	info, err := os.Stat(configPath)
	if err != nil {
		t.Fatalf("Config file was not created: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("Expected config file mode 0600, got %o", perm)
	}
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	partial := `{"server": {"port": 9090}, "assistant": {"provider": "openai", "model": "gpt-4o-mini"}}`
	if err := os.WriteFile(configPath, []byte(partial), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.BindAddress != "127.0.0.1" {
		t.Errorf("Expected default bind address, got '%s'", cfg.Server.BindAddress)
	}
	if cfg.Assistant.Provider != "openai" || cfg.Assistant.Model != "gpt-4o-mini" {
		t.Errorf("Assistant section not read: %+v", cfg.Assistant)
	}
	if cfg.Assistant.TimeoutSeconds != 60 {
		t.Errorf("Expected default timeout 60, got %d", cfg.Assistant.TimeoutSeconds)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	os.WriteFile(configPath, []byte("{not json"), 0600)

	if _, err := Load(configPath); err == nil {
		t.Error("Expected error for malformed config file")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")

	t.Setenv("REPORTVIEW_SERVER_PORT", "9191")
	t.Setenv("REPORTVIEW_STORE_DRIVER", "memory")
	t.Setenv("REPORTVIEW_ASSISTANT_API_KEY", "env-key")
	t.Setenv("REPORTVIEW_LOG_LEVEL", "debug")
	t.Setenv("REPORTVIEW_TIMEZONE", "UTC")
	t.Setenv("REPORTVIEW_IMPORT_FOLDERS", strings.Join([]string{"/data/a", " ", "/data/b"}, string(os.PathListSeparator)))

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Server.Port != 9191 {
		t.Errorf("Expected port 9191, got %d", cfg.Server.Port)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("Expected driver 'memory', got '%s'", cfg.Store.Driver)
	}
	if cfg.Assistant.APIKey != "env-key" {
		t.Errorf("Expected api key from env, got '%s'", cfg.Assistant.APIKey)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected log level 'debug', got '%s'", cfg.Logging.Level)
	}
	if cfg.Views.Timezone != "UTC" {
		t.Errorf("Expected timezone 'UTC', got '%s'", cfg.Views.Timezone)
	}
	if len(cfg.Import.Folders) != 2 || cfg.Import.Folders[1] != "/data/b" {
		t.Errorf("Unexpected import folders: %v", cfg.Import.Folders)
	}
}

func TestLoad_EnvOverrideInvalidPortIgnored(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	t.Setenv("REPORTVIEW_SERVER_PORT", "eighty")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected unparseable port to be ignored, got %d", cfg.Server.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"memory driver", func(c *Config) { c.Store.Driver = "memory" }, ""},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mongo" }, "unknown store driver"},
		{"sqlite without path", func(c *Config) { c.Store.SQLitePath = "" }, "sqlite_path"},
		{"mysql without database", func(c *Config) { c.Store.Driver = "mysql" }, "mysql host and database"},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = "postgres" }, "postgres_dsn"},
		{"firestore without project", func(c *Config) { c.Store.Driver = "firestore" }, "project_id"},
		{"firestore with project", func(c *Config) {
			c.Store.Driver = "firestore"
			c.Store.Firestore.ProjectID = "cme-prod"
		}, ""},
		{"unknown provider", func(c *Config) { c.Assistant.Provider = "anthropic" }, "unknown assistant provider"},
		{"empty model", func(c *Config) { c.Assistant.Model = "" }, "model is required"},
		{"zero timeout", func(c *Config) { c.Assistant.TimeoutSeconds = 0 }, "timeout_seconds"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "invalid log level"},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "invalid port"},
		{"zero ttl", func(c *Config) { c.Views.TTLMinutes = 0 }, "ttl_minutes"},
		{"zero store timeout", func(c *Config) { c.Store.TimeoutMS = 0 }, "store timeout_ms"},
		{"zero max views", func(c *Config) { c.Views.MaxViews = 0 }, "max_views"},
		{"unknown timezone", func(c *Config) { c.Views.Timezone = "Mars/Olympus" }, "invalid views timezone"},
		{"utc timezone", func(c *Config) { c.Views.Timezone = "UTC" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.json")
	cfg := Default()
	cfg.Import.Folders = []string{"/srv/snapshots"}

	if err := cfg.Save(configPath); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	data, _ := os.ReadFile(configPath)
	var raw map[string]map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("saved config is not JSON: %v", err)
	}
	if _, ok := raw["store"]["firestore"]; !ok {
		t.Error("saved config missing store.firestore section")
	}
}

func TestDurations(t *testing.T) {
	cfg := Default()
	if got := cfg.Assistant.Timeout(); got != time.Minute {
		t.Errorf("Assistant.Timeout() = %v", got)
	}
	if got := cfg.Views.TTL(); got != 2*time.Hour {
		t.Errorf("Views.TTL() = %v", got)
	}
	loc, err := cfg.Views.Location()
	if err != nil {
		t.Fatalf("Views.Location() error = %v", err)
	}
	if _, offset := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC).In(loc).Zone(); offset != 7*3600 {
		t.Errorf("default timezone offset = %d, want +7h", offset)
	}
	if got := cfg.Server.Addr(); got != "127.0.0.1:8080" {
		t.Errorf("Server.Addr() = %q", got)
	}
	read, write, idle := cfg.Server.Timeouts()
	if read != 15*time.Second || write != 15*time.Second || idle != time.Minute {
		t.Errorf("Server.Timeouts() = %v %v %v", read, write, idle)
	}
}
