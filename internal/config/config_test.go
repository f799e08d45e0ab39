package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()
	if cfg.DataDir != "/var/lib/buildgate" {
		t.Errorf("expected /var/lib/buildgate, got %s", cfg.DataDir)
	}
	if cfg.Mode != "internal" {
		t.Errorf("expected internal, got %s", cfg.Mode)
	}
	if cfg.DefaultRight != "Deny" {
		t.Errorf("expected Deny, got %s", cfg.DefaultRight)
	}
	if cfg.Session.DurationMinutes != 10 {
		t.Errorf("expected 10 minute sessions, got %d", cfg.Session.DurationMinutes)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected info, got %s", cfg.LogLevel)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	os.WriteFile(path, []byte(`{
		"data_dir": "/tmp/test",
		"mode": "file",
		"settings_files": ["/etc/buildgate/security.yaml"],
		"session": {
			"store": "file",
			"mode": "fixed",
			"duration_minutes": 30
		},
		"audit": {
			"sqlite_path": "/tmp/audit.db"
		}
	}`), 0644)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.DataDir != "/tmp/test" {
		t.Errorf("expected /tmp/test, got %s", cfg.DataDir)
	}
	if cfg.Mode != "file" {
		t.Errorf("expected file, got %s", cfg.Mode)
	}
	if len(cfg.SettingsFiles) != 1 {
		t.Errorf("expected 1 settings file, got %v", cfg.SettingsFiles)
	}
	if cfg.Session.Mode != "fixed" || cfg.Session.DurationMinutes != 30 {
		t.Errorf("session config mismatch: %+v", cfg.Session)
	}
	if cfg.Audit.SQLitePath != "/tmp/audit.db" {
		t.Errorf("audit config mismatch: %+v", cfg.Audit)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	os.WriteFile(path, []byte(`{"mode": "internal"}`), 0644)

	t.Setenv("BUILDGATE_MODE", "none")
	t.Setenv("BUILDGATE_DEFAULT_RIGHT", "Allow")
	t.Setenv("BUILDGATE_SETTINGS_FILES", "/a.yaml,/b.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Mode != "none" {
		t.Errorf("env should override file: got %s", cfg.Mode)
	}
	if cfg.DefaultRight != "Allow" {
		t.Errorf("env BUILDGATE_DEFAULT_RIGHT should apply: got %s", cfg.DefaultRight)
	}
	if len(cfg.SettingsFiles) != 2 {
		t.Errorf("expected 2 settings files, got %v", cfg.SettingsFiles)
	}
}

func TestLoadFromEnvOnly(t *testing.T) {
	t.Setenv("BUILDGATE_DATA_DIR", "/tmp/env-test")
	t.Setenv("BUILDGATE_LOG_LEVEL", "debug")

	cfg := LoadFromEnv()
	if cfg.DataDir != "/tmp/env-test" {
		t.Errorf("expected /tmp/env-test, got %s", cfg.DataDir)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected debug, got %s", cfg.LogLevel)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	cfg := Default()
	cfg.Mode = "file"
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Mode != "file" {
		t.Errorf("round trip lost mode: %s", got.Mode)
	}
}
