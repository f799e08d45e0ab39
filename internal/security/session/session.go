// Package session implements the login session cache: an in-memory
// TTL store with sliding or fixed expiry, and a durable file-backed
// variant that survives server restarts.
//
// Eviction is lazy: an expired session is removed when a read
// discovers it, never by a background timer. The optional Sweeper adds
// a scheduled purge on top without changing read semantics.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DisplayNameKey is the session value under which the security manager
// stores the resolved display name.
const DisplayNameKey = "display_name"

// DefaultDuration is the session lifetime when none is configured.
const DefaultDuration = 10 * time.Minute

// ExpiryMode selects how a session's lifetime behaves on access.
type ExpiryMode int

const (
	// Sliding renews the expiry to now+duration on every successful
	// read.
	Sliding ExpiryMode = iota
	// Fixed sets the expiry once at creation and never extends it.
	Fixed
)

func (m ExpiryMode) String() string {
	if m == Fixed {
		return "Fixed"
	}
	return "Sliding"
}

// ParseExpiryMode converts a configuration value into an ExpiryMode.
// The empty string parses as Sliding, the default.
func ParseExpiryMode(s string) (ExpiryMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "sliding":
		return Sliding, nil
	case "fixed":
		return Fixed, nil
	default:
		return Sliding, fmt.Errorf("unknown session expiry mode %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m ExpiryMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *ExpiryMode) UnmarshalText(text []byte) error {
	parsed, err := ParseExpiryMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Cache stores login sessions keyed by opaque token. Callers only ever
// hold the token; the record itself never leaves the cache.
type Cache interface {
	// Init prepares the cache for use. For durable caches this loads
	// previously persisted sessions.
	Init() error

	// Add mints a session for a user and returns its token.
	Add(ctx context.Context, userName string) (string, error)

	// UserName returns the user bound to a token, or the empty string
	// when the token is unknown or the session has expired. A read of
	// a live session renews it in sliding mode.
	UserName(token string) string

	// Remove destroys a session. Removing an absent token is not an
	// error.
	Remove(ctx context.Context, token string)

	// StoreValue attaches a named value to a live session.
	StoreValue(ctx context.Context, token, key, value string) error

	// Value reads a named session value, empty when absent.
	Value(token, key string) string

	// Purge removes every expired session and reports how many were
	// evicted.
	Purge() int
}
