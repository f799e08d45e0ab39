package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ccnet/buildgate/internal/security"
)

// Postgres is an audit Sink and Reader backed by a PostgreSQL
// database, for deployments that centralize audit trails off the
// build server host.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to the given DSN and ensures the audit table
// exists.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect audit database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping audit database: %w", err)
	}

	_, err = pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS audit_records (
		id         TEXT PRIMARY KEY,
		timestamp  TIMESTAMPTZ NOT NULL,
		project    TEXT,
		user_name  TEXT,
		type       TEXT NOT NULL,
		outcome    TEXT NOT NULL,
		message    TEXT
	)`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create audit table: %w", err)
	}
	_, _ = pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit_records(timestamp)`)
	_, _ = pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_audit_user ON audit_records(user_name)`)

	return &Postgres{pool: pool}, nil
}

// LogEvent implements Sink.
func (p *Postgres) LogEvent(ctx context.Context, rec Record) error {
	_, err := p.pool.Exec(ctx, `INSERT INTO audit_records
		(id, timestamp, project, user_name, type, outcome, message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		rec.ID,
		rec.Timestamp.UTC(),
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
func (p *Postgres) Read(ctx context.Context, start, count int, filter *Filter) ([]Record, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT id, timestamp, project, user_name, type, outcome, message
		FROM audit_records WHERE true`)
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter != nil {
		if filter.Project != "" {
			sb.WriteString(" AND project = " + arg(filter.Project))
		}
		if filter.UserName != "" {
			sb.WriteString(" AND user_name = " + arg(filter.UserName))
		}
		if filter.Type != "" {
			sb.WriteString(" AND type = " + arg(string(filter.Type)))
		}
		if filter.Right != nil {
			sb.WriteString(" AND outcome = " + arg(filter.Right.String()))
		}
		if !filter.Since.IsZero() {
			sb.WriteString(" AND timestamp >= " + arg(filter.Since.UTC()))
		}
		if !filter.Until.IsZero() {
			sb.WriteString(" AND timestamp <= " + arg(filter.Until.UTC()))
		}
	}

	sb.WriteString(" ORDER BY timestamp ASC, id ASC")
	if count > 0 {
		sb.WriteString(" LIMIT " + arg(count))
	}
	if start > 0 {
		sb.WriteString(" OFFSET " + arg(start))
	}

	rows, err := p.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var right string
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.Project, &rec.UserName, &rec.Type, &right, &rec.Message); err != nil {
			continue
		}
		rec.Right, _ = security.ParseRight(right)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Purge deletes records older than now-retention.
func (p *Postgres) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)
	tag, err := p.pool.Exec(ctx, "DELETE FROM audit_records WHERE timestamp < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge audit records: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Close releases the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}
