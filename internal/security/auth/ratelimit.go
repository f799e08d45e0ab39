package auth

import (
	"strings"
	"sync"
	"time"
)

// Limiter throttles login attempts per user name using a sliding
// window, so a scripted client cannot grind through passwords.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int           // max attempts per window
	window  time.Duration // window size

	now func() time.Time
}

type window struct {
	count   int
	resetAt time.Time
}

// NewLimiter creates an attempt limiter.
// Example: NewLimiter(10, time.Minute) → 10 attempts per minute per user.
func NewLimiter(limit int, windowSize time.Duration) *Limiter {
	return &Limiter{
		windows: make(map[string]*window),
		limit:   limit,
		window:  windowSize,
		now:     time.Now,
	}
}

// Allow checks if another attempt for the given user name is allowed.
// Names are folded so "John" and "john" share a window.
func (l *Limiter) Allow(userName string) bool {
	key := strings.ToLower(userName)

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.After(w.resetAt) {
		l.windows[key] = &window{count: 1, resetAt: now.Add(l.window)}
		return true
	}

	if w.count >= l.limit {
		return false
	}

	w.count++
	return true
}

// Remaining returns how many attempts are left in the current window.
func (l *Limiter) Remaining(userName string) int {
	key := strings.ToLower(userName)

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || l.now().After(w.resetAt) {
		return l.limit
	}
	rem := l.limit - w.count
	if rem < 0 {
		return 0
	}
	return rem
}

// Reset clears the window for a user, typically after a successful
// login.
func (l *Limiter) Reset(userName string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, strings.ToLower(userName))
}
