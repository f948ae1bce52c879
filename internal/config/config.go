package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `json:"server"`
	Store     StoreConfig     `json:"store"`
	Assistant AssistantConfig `json:"assistant"`
	Logging   LoggingConfig   `json:"logging"`
	Views     ViewsConfig     `json:"views"`
	Import    ImportConfig    `json:"import"`
}

// ServerConfig controls the HTTP server
type ServerConfig struct {
	Port                int    `json:"port"`
	BindAddress         string `json:"bind_address"`
	ReadTimeoutSeconds  int    `json:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `json:"write_timeout_seconds"`
	IdleTimeoutSeconds  int    `json:"idle_timeout_seconds"`
}

// StoreConfig selects where shared reports and the assistant key are read from
type StoreConfig struct {
	Driver      string          `json:"driver"` // "sqlite", "mysql", "postgres", "firestore", "memory"
	SQLitePath  string          `json:"sqlite_path"`
	MySQL       MySQLConfig     `json:"mysql"`
	PostgresDSN string          `json:"postgres_dsn"`
	Firestore   FirestoreConfig `json:"firestore"`
	TimeoutMS   int             `json:"timeout_ms"`
}

type MySQLConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
}

// FirestoreConfig addresses the document database holding the
// SharedReports and KeyGemini collections.
type FirestoreConfig struct {
	ProjectID         string `json:"project_id"`
	DatabaseID        string `json:"database_id"`
	APIKey            string `json:"api_key"`
	CredentialsFile   string `json:"credentials_file"`
	Endpoint          string `json:"endpoint"`
	ReportsCollection string `json:"reports_collection"`
	KeysCollection    string `json:"keys_collection"`
}

// AssistantConfig configures the report chat assistant
type AssistantConfig struct {
	Provider       string `json:"provider"` // "gemini" or "openai"
	Model          string `json:"model"`
	BaseURL        string `json:"base_url"`
	APIKey         string `json:"api_key"` // overrides the key read from the store
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level      string `json:"level"` // "debug", "info", "warn", "error"
	File       string `json:"file"`  // empty disables file logging
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
}

// ViewsConfig controls how long a rendered report stays addressable for chat and drilldown
type ViewsConfig struct {
	TTLMinutes int `json:"ttl_minutes"`
	// MaxViews caps the views held at once; the oldest is dropped first.
	MaxViews int    `json:"max_views"`
	Timezone string `json:"timezone"` // IANA name used for displayed dates
}

// ImportConfig lists folders watched for report snapshot files
type ImportConfig struct {
	Folders       []string `json:"folders"`
	MaxFileSizeMB int      `json:"max_file_size_mb"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                8080,
			BindAddress:         "127.0.0.1",
			ReadTimeoutSeconds:  15,
			WriteTimeoutSeconds: 15,
			IdleTimeoutSeconds:  60,
		},
		Store: StoreConfig{
			Driver:     "sqlite",
			SQLitePath: "reports.db",
			MySQL: MySQLConfig{
				Host: "127.0.0.1",
				Port: 3306,
			},
			Firestore: FirestoreConfig{
				DatabaseID:        "(default)",
				ReportsCollection: "SharedReports",
				KeysCollection:    "KeyGemini",
			},
			TimeoutMS: 10000,
		},
		Assistant: AssistantConfig{
			Provider:       "gemini",
			Model:          "gemini-2.5-flash",
			TimeoutSeconds: 60,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Views: ViewsConfig{
			TTLMinutes: 120,
			MaxViews:   500,
			Timezone:   "Asia/Ho_Chi_Minh",
		},
		Import: ImportConfig{
			Folders:       []string{},
			MaxFileSizeMB: 20,
		},
	}
}

// Load reads configuration from file and environment. A missing file is
// created with defaults; fields absent from an existing file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist):
		if err := cfg.Save(path); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

func (c *Config) applyEnvOverrides() {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setInt("REPORTVIEW_SERVER_PORT", &c.Server.Port)
	setString("REPORTVIEW_SERVER_BIND_ADDRESS", &c.Server.BindAddress)

	setString("REPORTVIEW_STORE_DRIVER", &c.Store.Driver)
	setString("REPORTVIEW_SQLITE_PATH", &c.Store.SQLitePath)
	setString("REPORTVIEW_MYSQL_HOST", &c.Store.MySQL.Host)
	setInt("REPORTVIEW_MYSQL_PORT", &c.Store.MySQL.Port)
	setString("REPORTVIEW_MYSQL_USER", &c.Store.MySQL.User)
	setString("REPORTVIEW_MYSQL_PASSWORD", &c.Store.MySQL.Password)
	setString("REPORTVIEW_MYSQL_DATABASE", &c.Store.MySQL.Database)
	setString("REPORTVIEW_POSTGRES_DSN", &c.Store.PostgresDSN)
	setString("REPORTVIEW_FIRESTORE_PROJECT", &c.Store.Firestore.ProjectID)
	setString("REPORTVIEW_FIRESTORE_API_KEY", &c.Store.Firestore.APIKey)
	setString("REPORTVIEW_FIRESTORE_CREDENTIALS", &c.Store.Firestore.CredentialsFile)

	setString("REPORTVIEW_ASSISTANT_PROVIDER", &c.Assistant.Provider)
	setString("REPORTVIEW_ASSISTANT_MODEL", &c.Assistant.Model)
	setString("REPORTVIEW_ASSISTANT_BASE_URL", &c.Assistant.BaseURL)
	setString("REPORTVIEW_ASSISTANT_API_KEY", &c.Assistant.APIKey)

	setString("REPORTVIEW_LOG_LEVEL", &c.Logging.Level)
	setString("REPORTVIEW_LOG_FILE", &c.Logging.File)

	setInt("REPORTVIEW_VIEWS_MAX", &c.Views.MaxViews)
	setString("REPORTVIEW_TIMEZONE", &c.Views.Timezone)

	if v := os.Getenv("REPORTVIEW_IMPORT_FOLDERS"); v != "" {
		c.Import.Folders = nil
		for _, f := range strings.Split(v, string(os.PathListSeparator)) {
			if f = strings.TrimSpace(f); f != "" {
				c.Import.Folders = append(c.Import.Folders, f)
			}
		}
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.Port < 1024 && os.Geteuid() != 0 {
		return fmt.Errorf("privileged port %d requires root", c.Server.Port)
	}

	switch c.Store.Driver {
	case "memory":
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("sqlite_path is required for the sqlite driver")
		}
	case "mysql":
		if c.Store.MySQL.Host == "" || c.Store.MySQL.Database == "" {
			return fmt.Errorf("mysql host and database are required for the mysql driver")
		}
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("postgres_dsn is required for the postgres driver")
		}
	case "firestore":
		if c.Store.Firestore.ProjectID == "" {
			return fmt.Errorf("firestore project_id is required for the firestore driver")
		}
		if c.Store.Firestore.ReportsCollection == "" || c.Store.Firestore.KeysCollection == "" {
			return fmt.Errorf("firestore collections must not be empty")
		}
	default:
		return fmt.Errorf("unknown store driver: %s (must be sqlite, mysql, postgres, firestore, or memory)", c.Store.Driver)
	}

	if c.Store.TimeoutMS <= 0 {
		return fmt.Errorf("store timeout_ms must be positive")
	}

	switch c.Assistant.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("unknown assistant provider: %s (must be gemini or openai)", c.Assistant.Provider)
	}
	if c.Assistant.Model == "" {
		return fmt.Errorf("assistant model is required")
	}
	if c.Assistant.TimeoutSeconds <= 0 {
		return fmt.Errorf("assistant timeout_seconds must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	if c.Views.TTLMinutes <= 0 {
		return fmt.Errorf("views ttl_minutes must be positive")
	}
	if c.Views.MaxViews <= 0 {
		return fmt.Errorf("views max_views must be positive")
	}
	if _, err := c.Views.Location(); err != nil {
		return err
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.BindAddress, s.Port)
}

func (s ServerConfig) Timeouts() (read, write, idle time.Duration) {
	return time.Duration(s.ReadTimeoutSeconds) * time.Second,
		time.Duration(s.WriteTimeoutSeconds) * time.Second,
		time.Duration(s.IdleTimeoutSeconds) * time.Second
}

func (s StoreConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutMS) * time.Millisecond
}

func (a AssistantConfig) Timeout() time.Duration {
	return time.Duration(a.TimeoutSeconds) * time.Second
}

func (v ViewsConfig) TTL() time.Duration {
	return time.Duration(v.TTLMinutes) * time.Minute
}

// Location loads Timezone. An empty name means UTC.
func (v ViewsConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(v.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid views timezone %q: %w", v.Timezone, err)
	}
	return loc, nil
}
