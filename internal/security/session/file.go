package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

const fileSuffix = ".session"

// persistedSession is the durable record shape: one JSON document per
// session, one file per session.
type persistedSession struct {
	Token     string            `json:"token"`
	UserName  string            `json:"user_name"`
	ExpiresAt time.Time         `json:"expires_at"`
	Values    map[string]string `json:"values,omitempty"`
}

// File is the durable session cache. It wraps the in-memory cache and
// mirrors every mutation to a per-session file before returning, so a
// crash loses at most the in-flight operation. On Init all persisted
// sessions are loaded back; records that fail to parse are dropped
// silently, never failing startup.
type File struct {
	*Memory
	dir    string
	logger *zap.Logger
}

// NewFile builds a file-backed cache storing one file per session
// under dir.
func NewFile(dir string, duration time.Duration, mode ExpiryMode, logger *zap.Logger) *File {
	if logger == nil {
		logger = zap.NewNop()
	}
	f := &File{
		Memory: NewMemory(duration, mode),
		dir:    dir,
		logger: logger,
	}
	f.Memory.persist = f.save
	f.Memory.unpersist = f.remove
	return f
}

// Init creates the storage directory and loads surviving sessions.
func (f *File) Init() error {
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return fmt.Errorf("read session dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileSuffix) {
			continue
		}
		path := filepath.Join(f.dir, entry.Name())

		data, err := os.ReadFile(path)
		if err != nil {
			f.logger.Warn("unreadable session record dropped", zap.String("path", path), zap.Error(err))
			_ = os.Remove(path)
			continue
		}

		var rec persistedSession
		if err := json.Unmarshal(data, &rec); err != nil || rec.Token == "" || rec.UserName == "" {
			// Corrupt or partial record: the session is lost, nothing
			// more.
			f.logger.Warn("corrupt session record dropped", zap.String("path", path))
			_ = os.Remove(path)
			continue
		}

		f.Memory.restore(rec.Token, rec.UserName, rec.ExpiresAt, rec.Values)
	}
	return nil
}

func (f *File) save(token string, r *record) error {
	f.Memory.mu.Lock()
	rec := persistedSession{
		Token:     token,
		UserName:  r.userName,
		ExpiresAt: r.expiry,
		Values:    make(map[string]string, len(r.values)),
	}
	for k, v := range r.values {
		rec.Values[k] = v
	}
	f.Memory.mu.Unlock()

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session record: %w", err)
	}

	// Write-then-rename keeps a crashed write from producing a
	// half-written record under the live name.
	path := f.path(token)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("publish session record: %w", err)
	}
	return nil
}

func (f *File) remove(token string) {
	if err := os.Remove(f.path(token)); err != nil && !os.IsNotExist(err) {
		f.logger.Warn("remove session record", zap.String("token", token), zap.Error(err))
	}
}

func (f *File) path(token string) string {
	return filepath.Join(f.dir, token+fileSuffix)
}
