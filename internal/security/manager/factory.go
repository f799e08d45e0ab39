package manager

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ccnet/buildgate/internal/config"
	"github.com/ccnet/buildgate/internal/security"
	"github.com/ccnet/buildgate/internal/security/audit"
	"github.com/ccnet/buildgate/internal/security/auth"
	"github.com/ccnet/buildgate/internal/security/permission"
	"github.com/ccnet/buildgate/internal/security/session"
)

// FromConfig assembles the fully wired manager a server embeds:
// session cache and sweeper, audit sinks and reader, directory
// service and the configured manager mode. The returned release
// function stops the sweeper and closes every opened store.
//
// Inline user and rule definitions are a code-level concern; a
// config-built "internal" manager starts empty and decides everything
// from the default right. Callers that need inline definitions use
// NewInternal directly.
func FromConfig(ctx context.Context, cfg config.Config, logger *zap.Logger) (Manager, func() error, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if cfg.Mode == "none" {
		return NewNull(), func() error { return nil }, nil
	}

	right, err := security.ParseRight(cfg.DefaultRight)
	if err != nil {
		return nil, nil, fmt.Errorf("default_right: %w", err)
	}

	var closers []func() error
	release := func() error {
		var firstErr error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
	fail := func(err error) (Manager, func() error, error) {
		_ = release()
		return nil, nil, err
	}

	mode, err := session.ParseExpiryMode(cfg.Session.Mode)
	if err != nil {
		return nil, nil, err
	}
	duration := time.Duration(cfg.Session.DurationMinutes) * time.Minute

	var cache session.Cache
	switch cfg.Session.Store {
	case "", "memory":
		cache = session.NewMemory(duration, mode)
	case "file":
		cache = session.NewFile(filepath.Join(cfg.DataDir, "sessions"), duration, mode, logger)
	default:
		return nil, nil, fmt.Errorf("unknown session store %q", cfg.Session.Store)
	}

	if cfg.Session.SweepSchedule != "" {
		sweeper, err := session.NewSweeper(cfg.Session.SweepSchedule, cache, logger)
		if err != nil {
			return fail(fmt.Errorf("sweep_schedule: %w", err))
		}
		sweeper.Start()
		closers = append(closers, func() error { sweeper.Stop(); return nil })
	}

	// The in-memory ring always participates so recent events stay
	// queryable even with no durable sink configured. A durable store
	// takes over as the reader when present.
	ring := audit.NewLog(cfg.Audit.MemoryRing)
	sinks := []audit.Sink{ring}
	var reader audit.Reader = ring

	if cfg.Audit.FilePath != "" {
		flog, err := audit.NewFileLog(cfg.Audit.FilePath)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, flog)
		closers = append(closers, flog.Close)
		reader = flog
	}
	if cfg.Audit.PostgresDSN != "" {
		pg, err := audit.NewPostgres(ctx, cfg.Audit.PostgresDSN)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, pg)
		closers = append(closers, func() error { pg.Close(); return nil })
		reader = pg
	}
	if cfg.Audit.SQLitePath != "" {
		store, err := audit.NewStore(cfg.Audit.SQLitePath)
		if err != nil {
			return fail(err)
		}
		sinks = append(sinks, store)
		closers = append(closers, store.Close)
		reader = store
		if cfg.Audit.RetentionDays > 0 {
			retention := time.Duration(cfg.Audit.RetentionDays) * 24 * time.Hour
			go store.PurgeLoop(ctx, retention, time.Hour)
		}
	}

	opts := Options{
		Cache:    cache,
		Sinks:    sinks,
		Reader:   reader,
		Defaults: permission.Rights{Default: right},
		Logger:   logger,
	}

	var m Manager
	switch cfg.Mode {
	case "file":
		var dir auth.DirectoryService
		if cfg.HasLDAP() {
			dir = auth.NewLDAPService(cfg.LDAP.URL, time.Duration(cfg.LDAP.TimeoutSeconds)*time.Second)
		}
		m = NewFile(opts, dir, cfg.SettingsFiles...)
	case "", "internal":
		m = NewInternal(opts, nil, nil)
	default:
		return fail(fmt.Errorf("unknown manager mode %q", cfg.Mode))
	}

	if err := m.Init(); err != nil {
		return fail(err)
	}
	return m, release, nil
}
