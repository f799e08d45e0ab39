// Package config provides configuration loading for the security server.
// Configuration sources (in priority order): env vars > config file > defaults.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all security server configuration.
type Config struct {
	// Data directory for session records and embedded databases
	// (default "/var/lib/buildgate")
	DataDir string `json:"data_dir"`

	// Security manager mode: "internal", "file", or "none"
	Mode string `json:"mode"`

	// Settings files for the file-backed manager, loaded in order
	SettingsFiles []string `json:"settings_files,omitempty"`

	// Server-wide default right ("Allow", "Deny", "Inherit")
	DefaultRight string `json:"default_right"`

	// Session cache settings
	Session SessionConfig `json:"session,omitempty"`

	// Audit sink settings
	Audit AuditConfig `json:"audit,omitempty"`

	// LDAP directory settings (optional)
	LDAP LDAPConfig `json:"ldap,omitempty"`

	// OTLP trace endpoint; empty disables tracing
	OTLPEndpoint string `json:"otlp_endpoint,omitempty"`

	// Log level (debug, info, warn, error)
	LogLevel string `json:"log_level"`
}

// SessionConfig configures the session cache.
type SessionConfig struct {
	// Store backend: "memory" or "file"
	Store string `json:"store,omitempty"`
	// Expiry mode: "sliding" or "fixed"
	Mode string `json:"mode,omitempty"`
	// Session lifetime in minutes (default 10)
	DurationMinutes int `json:"duration_minutes,omitempty"`
	// Cron schedule for the background sweep; empty disables it
	SweepSchedule string `json:"sweep_schedule,omitempty"`
}

// AuditConfig configures audit sinks. All sinks are optional; with
// none configured audit events are dropped.
type AuditConfig struct {
	// JSONL audit log path
	FilePath string `json:"file_path,omitempty"`
	// SQLite audit database path
	SQLitePath string `json:"sqlite_path,omitempty"`
	// Postgres DSN for centralized audit storage
	PostgresDSN string `json:"postgres_dsn,omitempty"`
	// Retention for the embedded store, in days; 0 keeps forever
	RetentionDays int `json:"retention_days,omitempty"`
	// In-memory ring size for recent-event queries
	MemoryRing int `json:"memory_ring,omitempty"`
}

// LDAPConfig configures the directory service used by ldap users.
type LDAPConfig struct {
	URL            string `json:"url,omitempty"`
	Domain         string `json:"domain,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// Default returns configuration with sensible defaults.
func Default() Config {
	return Config{
		DataDir:      "/var/lib/buildgate",
		Mode:         "internal",
		DefaultRight: "Deny",
		LogLevel:     "info",
		Session: SessionConfig{
			Store:           "memory",
			Mode:            "sliding",
			DurationMinutes: 10,
		},
		Audit: AuditConfig{
			MemoryRing: 1000,
		},
		LDAP: LDAPConfig{
			TimeoutSeconds: 10,
		},
	}
}

// Load reads configuration from a file, then overlays environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	// Load from file if it exists
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("BUILDGATE_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("BUILDGATE_MODE"); v != "" {
		cfg.Mode = v
	}
	if v := os.Getenv("BUILDGATE_SETTINGS_FILES"); v != "" {
		cfg.SettingsFiles = strings.Split(v, ",")
	}
	if v := os.Getenv("BUILDGATE_DEFAULT_RIGHT"); v != "" {
		cfg.DefaultRight = v
	}
	if v := os.Getenv("BUILDGATE_SESSION_STORE"); v != "" {
		cfg.Session.Store = v
	}
	if v := os.Getenv("BUILDGATE_SESSION_MODE"); v != "" {
		cfg.Session.Mode = v
	}
	if v := os.Getenv("BUILDGATE_SESSION_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Session.DurationMinutes = n
		}
	}
	if v := os.Getenv("BUILDGATE_SESSION_SWEEP"); v != "" {
		cfg.Session.SweepSchedule = v
	}
	if v := os.Getenv("BUILDGATE_AUDIT_FILE"); v != "" {
		cfg.Audit.FilePath = v
	}
	if v := os.Getenv("BUILDGATE_AUDIT_SQLITE"); v != "" {
		cfg.Audit.SQLitePath = v
	}
	if v := os.Getenv("BUILDGATE_AUDIT_POSTGRES_DSN"); v != "" {
		cfg.Audit.PostgresDSN = v
	}
	if v := os.Getenv("BUILDGATE_AUDIT_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Audit.RetentionDays = n
		}
	}
	if v := os.Getenv("BUILDGATE_LDAP_URL"); v != "" {
		cfg.LDAP.URL = v
	}
	if v := os.Getenv("BUILDGATE_LDAP_DOMAIN"); v != "" {
		cfg.LDAP.Domain = v
	}
	if v := os.Getenv("BUILDGATE_OTLP_ENDPOINT"); v != "" {
		cfg.OTLPEndpoint = v
	}
	if v := os.Getenv("BUILDGATE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() Config {
	cfg, _ := Load("")
	return cfg
}

// Save writes configuration to a file.
func (c Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0640)
}

// HasLDAP returns true if a directory service is configured.
func (c Config) HasLDAP() bool {
	return c.LDAP.URL != ""
}
