// Package audit provides the append-only audit trail for security
// decisions. Every login, logout, password change and permission check
// is fanned out to the configured sinks; a manager with no sinks is a
// silent no-op.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ccnet/buildgate/internal/metrics"
	"github.com/ccnet/buildgate/internal/security"
	"github.com/ccnet/buildgate/internal/shared/redact"
)

// EventType classifies security audit events.
type EventType string

const (
	EventLogin           EventType = "login"
	EventLogout          EventType = "logout"
	EventChangePassword  EventType = "change-password"
	EventResetPassword   EventType = "reset-password"
	EventPermissionCheck EventType = "permission-check"
)

// Record is a single audit entry. Records are immutable once created.
type Record struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Project   string         `json:"project,omitempty"`
	UserName  string         `json:"user_name,omitempty"`
	Type      EventType      `json:"type"`
	Right     security.Right `json:"right"`
	Message   string         `json:"message,omitempty"`
}

// Filter narrows an audit query. Zero fields match everything.
type Filter struct {
	Project  string
	UserName string
	Type     EventType
	Right    *security.Right
	Since    time.Time
	Until    time.Time
}

// matches reports whether a record passes the filter.
func (f Filter) matches(rec Record) bool {
	if f.Project != "" && rec.Project != f.Project {
		return false
	}
	if f.UserName != "" && rec.UserName != f.UserName {
		return false
	}
	if f.Type != "" && rec.Type != f.Type {
		return false
	}
	if f.Right != nil && rec.Right != *f.Right {
		return false
	}
	if !f.Since.IsZero() && rec.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && rec.Timestamp.After(f.Until) {
		return false
	}
	return true
}

// Sink receives audit records. Sink errors never fail the security
// operation that produced the record.
type Sink interface {
	LogEvent(ctx context.Context, rec Record) error
}

// Reader pages stored audit records, oldest first.
type Reader interface {
	Read(ctx context.Context, start, count int, filter *Filter) ([]Record, error)
}

// Dispatcher fans records out to zero or more sinks, enriching each
// with an ID and timestamp and scrubbing credential material from the
// message.
type Dispatcher struct {
	sinks  []Sink
	logger *zap.Logger
}

// NewDispatcher builds a fan-out dispatcher.
func NewDispatcher(logger *zap.Logger, sinks ...Sink) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{sinks: sinks, logger: logger}
}

// LogEvent dispatches a record to every sink.
func (d *Dispatcher) LogEvent(ctx context.Context, rec Record) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	rec.Message = redact.Scrub(rec.Message)

	metrics.AuditEventsTotal.WithLabelValues(string(rec.Type)).Inc()

	for _, sink := range d.sinks {
		if err := sink.LogEvent(ctx, rec); err != nil {
			d.logger.Warn("audit sink write failed",
				zap.String("event_type", string(rec.Type)), zap.Error(err))
		}
	}
}

// Log is an in-memory, append-only ring of audit records. It is both a
// Sink and a Reader.
type Log struct {
	mu      sync.RWMutex
	records []Record
	maxLen  int // ring size, 0 = unbounded
}

// NewLog creates an in-memory audit log. maxLen=0 means unbounded.
func NewLog(maxLen int) *Log {
	return &Log{
		records: make([]Record, 0, 256),
		maxLen:  maxLen,
	}
}

// LogEvent implements Sink.
func (l *Log) LogEvent(_ context.Context, rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append(l.records, rec)
	if l.maxLen > 0 && len(l.records) > l.maxLen {
		l.records = l.records[len(l.records)-l.maxLen:]
	}
	return nil
}

// Read implements Reader: records in append order, starting at start.
func (l *Log) Read(_ context.Context, start, count int, filter *Filter) ([]Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Record
	skipped := 0
	for _, rec := range l.records {
		if filter != nil && !filter.matches(rec) {
			continue
		}
		if skipped < start {
			skipped++
			continue
		}
		out = append(out, rec)
		if count > 0 && len(out) >= count {
			break
		}
	}
	return out, nil
}

// Count returns the number of retained records.
func (l *Log) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}
