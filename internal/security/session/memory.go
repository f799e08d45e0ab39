package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ccnet/buildgate/internal/metrics"
	"github.com/ccnet/buildgate/internal/telemetry"
)

// record is the stored session state. It never leaves the cache; reads
// hand out copies of individual fields only.
type record struct {
	userName string
	expiry   time.Time
	values   map[string]string
}

// Memory is the in-memory session cache. A single mutex guards every
// mutating operation, including the touch-on-read renewal in sliding
// mode.
type Memory struct {
	duration time.Duration
	mode     ExpiryMode

	mu       sync.Mutex
	sessions map[string]*record

	// now is replaceable in tests.
	now func() time.Time

	// persist and unpersist mirror mutations to a durable store when
	// the cache is wrapped by one.
	persist   func(token string, r *record) error
	unpersist func(token string)
}

// NewMemory builds an in-memory cache. A non-positive duration uses
// the default.
func NewMemory(duration time.Duration, mode ExpiryMode) *Memory {
	if duration <= 0 {
		duration = DefaultDuration
	}
	return &Memory{
		duration: duration,
		mode:     mode,
		sessions: make(map[string]*record),
		now:      time.Now,
	}
}

// Init implements Cache. The in-memory cache needs no preparation.
func (m *Memory) Init() error { return nil }

// Add mints a new session token for a user.
func (m *Memory) Add(ctx context.Context, userName string) (string, error) {
	_, span := telemetry.StartSessionSpan(ctx, "add")
	defer span.End()

	token := uuid.NewString()
	rec := &record{
		userName: userName,
		expiry:   m.now().Add(m.duration),
		values:   make(map[string]string),
	}

	m.mu.Lock()
	m.sessions[token] = rec
	m.updateGauge()
	m.mu.Unlock()

	if m.persist != nil {
		if err := m.persist(token, rec); err != nil {
			m.Remove(context.Background(), token)
			return "", err
		}
	}
	return token, nil
}

// UserName returns the user bound to a token. The read renews the
// session in sliding mode and lazily evicts it when expired.
func (m *Memory) UserName(token string) string {
	rec, ok := m.get(token)
	if !ok {
		return ""
	}
	return rec.userName
}

// Remove destroys a session. Idempotent.
func (m *Memory) Remove(ctx context.Context, token string) {
	_, span := telemetry.StartSessionSpan(ctx, "remove")
	defer span.End()

	m.mu.Lock()
	_, existed := m.sessions[token]
	delete(m.sessions, token)
	m.updateGauge()
	m.mu.Unlock()

	if existed && m.unpersist != nil {
		m.unpersist(token)
	}
}

// StoreValue attaches a named value to a live session.
func (m *Memory) StoreValue(_ context.Context, token, key, value string) error {
	rec, ok := m.get(token)
	if !ok {
		return nil
	}

	m.mu.Lock()
	rec.values[key] = value
	m.mu.Unlock()

	if m.persist != nil {
		return m.persist(token, rec)
	}
	return nil
}

// Value reads a named session value.
func (m *Memory) Value(token, key string) string {
	rec, ok := m.get(token)
	if !ok {
		return ""
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return rec.values[key]
}

// Purge removes every expired session.
func (m *Memory) Purge() int {
	_, span := telemetry.StartSessionSpan(context.Background(), "purge")
	defer span.End()

	now := m.now()

	m.mu.Lock()
	var evicted []string
	for token, rec := range m.sessions {
		if !now.Before(rec.expiry) {
			evicted = append(evicted, token)
			delete(m.sessions, token)
		}
	}
	m.updateGauge()
	m.mu.Unlock()

	for _, token := range evicted {
		metrics.SessionEvictionsTotal.Inc()
		if m.unpersist != nil {
			m.unpersist(token)
		}
	}
	return len(evicted)
}

// Len reports the number of stored sessions, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// get fetches a live session, evicting it when expired and renewing
// it in sliding mode.
func (m *Memory) get(token string) (*record, bool) {
	if token == "" {
		return nil, false
	}

	m.mu.Lock()
	rec, ok := m.sessions[token]
	if !ok {
		m.mu.Unlock()
		return nil, false
	}

	now := m.now()
	if !now.Before(rec.expiry) {
		delete(m.sessions, token)
		m.updateGauge()
		m.mu.Unlock()

		metrics.SessionEvictionsTotal.Inc()
		if m.unpersist != nil {
			m.unpersist(token)
		}
		return nil, false
	}

	renewed := false
	if m.mode == Sliding {
		rec.expiry = now.Add(m.duration)
		renewed = true
	}
	m.mu.Unlock()

	if renewed && m.persist != nil {
		// Renewal is best-effort on disk: losing it costs at most one
		// extension after a crash.
		_ = m.persist(token, rec)
	}
	return rec, true
}

// restore inserts a previously persisted session. Used by durable
// caches at load time.
func (m *Memory) restore(token string, userName string, expiry time.Time, values map[string]string) {
	if values == nil {
		values = make(map[string]string)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[token] = &record{userName: userName, expiry: expiry, values: values}
	m.updateGauge()
}

// updateGauge must be called with the lock held.
func (m *Memory) updateGauge() {
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
}
