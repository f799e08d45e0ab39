package manager

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ccnet/buildgate/internal/config"
	"github.com/ccnet/buildgate/internal/security"
)

func TestFromConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = dir
	cfg.Mode = "internal"
	cfg.DefaultRight = "Allow"
	cfg.Session.Store = "file"
	cfg.Session.SweepSchedule = "*/5 * * * *"
	cfg.Audit.FilePath = filepath.Join(dir, "audit.jsonl")
	cfg.Audit.SQLitePath = filepath.Join(dir, "audit.db")
	cfg.Audit.MemoryRing = 16
	cfg.Audit.RetentionDays = 30

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m, release, err := FromConfig(ctx, cfg, nil)
	if err != nil {
		t.Fatal(err)
	}

	allowed, err := m.CheckServerPermission("johndoe", security.ActionViewProject)
	if err != nil {
		t.Fatal(err)
	}
	if !allowed {
		t.Error("Allow default should admit the check")
	}

	// The durable store is the reader, so the decision just made must
	// be visible through the manager's own audit query path.
	recs, err := m.ReadAuditRecords(ctx, 0, 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d audit records, want 1", len(recs))
	}

	if err := release(); err != nil {
		t.Fatalf("release: %v", err)
	}
}

func TestFromConfigNoneMode(t *testing.T) {
	cfg := config.Default()
	cfg.Mode = "none"

	m, release, err := FromConfig(context.Background(), cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	token, err := m.Login(context.Background(), security.NewCredentials("johndoe"))
	if err != nil {
		t.Fatal(err)
	}
	if token != "johndoe" {
		t.Errorf("disabled security should pass the user name through, got %q", token)
	}
}

func TestFromConfigRejectsBadInput(t *testing.T) {
	base := func() config.Config {
		cfg := config.Default()
		cfg.DataDir = t.TempDir()
		return cfg
	}

	for name, mutate := range map[string]func(*config.Config){
		"default right": func(c *config.Config) { c.DefaultRight = "Maybe" },
		"sweep":         func(c *config.Config) { c.Session.SweepSchedule = "not a schedule" },
		"store":         func(c *config.Config) { c.Session.Store = "redis" },
		"mode":          func(c *config.Config) { c.Mode = "kerberos" },
	} {
		cfg := base()
		mutate(&cfg)
		if _, _, err := FromConfig(context.Background(), cfg, nil); err == nil {
			t.Errorf("%s: bad value accepted", name)
		}
	}
}
