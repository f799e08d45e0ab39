package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ccnet/buildgate/internal/security"
)

// Store provides persistent audit storage backed by SQLite. It is
// both a Sink and a Reader and supports retention purging.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) a SQLite-backed audit store.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}

	// WAL mode for concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS audit_records (
		id         TEXT PRIMARY KEY,
		timestamp  TEXT NOT NULL,
		project    TEXT,
		user_name  TEXT,
		type       TEXT NOT NULL,
		outcome    TEXT NOT NULL,
		message    TEXT
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create audit table: %w", err)
	}

	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit_records(timestamp)`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_user ON audit_records(user_name)`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_project ON audit_records(project)`)

	return &Store{db: db}, nil
}

// LogEvent implements Sink.
func (s *Store) LogEvent(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO audit_records
		(id, timestamp, project, user_name, type, outcome, message)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.Timestamp.UTC().Format(time.RFC3339Nano),
		rec.Project,
		rec.UserName,
		string(rec.Type),
		rec.Right.String(),
		rec.Message,
	)
	if err != nil {
		return fmt.Errorf("persist audit record: %w", err)
	}
	return nil
}

// Read implements Reader: records oldest first, offset by start.
func (s *Store) Read(ctx context.Context, start, count int, filter *Filter) ([]Record, error) {
	query := `SELECT id, timestamp, project, user_name, type, outcome, message
		FROM audit_records WHERE 1=1`
	var args []any

	if filter != nil {
		if filter.Project != "" {
			query += " AND project = ?"
			args = append(args, filter.Project)
		}
		if filter.UserName != "" {
			query += " AND user_name = ?"
			args = append(args, filter.UserName)
		}
		if filter.Type != "" {
			query += " AND type = ?"
			args = append(args, string(filter.Type))
		}
		if filter.Right != nil {
			query += " AND outcome = ?"
			args = append(args, filter.Right.String())
		}
		if !filter.Since.IsZero() {
			query += " AND timestamp >= ?"
			args = append(args, filter.Since.UTC().Format(time.RFC3339Nano))
		}
		if !filter.Until.IsZero() {
			query += " AND timestamp <= ?"
			args = append(args, filter.Until.UTC().Format(time.RFC3339Nano))
		}
	}

	query += " ORDER BY timestamp ASC, id ASC"
	if count > 0 {
		query += " LIMIT ?"
		args = append(args, count)
	} else if start > 0 {
		query += " LIMIT -1"
	}
	if start > 0 {
		query += " OFFSET ?"
		args = append(args, start)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var ts, right string
		if err := rows.Scan(&rec.ID, &ts, &rec.Project, &rec.UserName, &rec.Type, &right, &rec.Message); err != nil {
			continue
		}
		rec.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		rec.Right, _ = security.ParseRight(right)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Count returns the total persisted record count.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_records").Scan(&count); err != nil {
		return 0, fmt.Errorf("count audit records: %w", err)
	}
	return count, nil
}

// Purge deletes records older than now-retention and returns the
// deleted row count.
func (s *Store) Purge(retention time.Duration) (int64, error) {
	if retention < 0 {
		return 0, errors.New("retention must be >= 0")
	}

	cutoff := time.Now().UTC().Add(-retention).Format(time.RFC3339Nano)
	res, err := s.db.Exec("DELETE FROM audit_records WHERE timestamp < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge audit records: %w", err)
	}
	return res.RowsAffected()
}

// PurgeLoop periodically applies retention until ctx is canceled.
func (s *Store) PurgeLoop(ctx context.Context, retention, interval time.Duration) {
	if retention <= 0 || interval <= 0 {
		return
	}

	_, _ = s.Purge(retention)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = s.Purge(retention)
		}
	}
}

// Close shuts down the store.
func (s *Store) Close() error {
	return s.db.Close()
}
