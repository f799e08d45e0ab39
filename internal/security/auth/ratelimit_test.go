package auth

import (
	"testing"
	"time"
)

func TestLimiterAllowsWithinWindow(t *testing.T) {
	l := NewLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if !l.Allow("johndoe") {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	if l.Allow("johndoe") {
		t.Error("fourth attempt should be throttled")
	}
	if l.Remaining("johndoe") != 0 {
		t.Errorf("remaining = %d, want 0", l.Remaining("johndoe"))
	}

	// Other users have their own windows.
	if !l.Allow("janedoe") {
		t.Error("a different user should not be throttled")
	}
}

func TestLimiterFoldsCase(t *testing.T) {
	l := NewLimiter(2, time.Minute)
	l.Allow("JohnDoe")
	l.Allow("johndoe")
	if l.Allow("JOHNDOE") {
		t.Error("case variants should share a window")
	}
}

func TestLimiterWindowExpires(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return base }

	if !l.Allow("johndoe") {
		t.Fatal("first attempt should pass")
	}
	if l.Allow("johndoe") {
		t.Fatal("second attempt inside the window should be throttled")
	}

	base = base.Add(2 * time.Minute)
	if !l.Allow("johndoe") {
		t.Error("a new window should open after expiry")
	}
	if l.Remaining("johndoe") != 0 {
		t.Errorf("remaining = %d, want 0", l.Remaining("johndoe"))
	}
}

func TestLimiterReset(t *testing.T) {
	l := NewLimiter(1, time.Minute)
	l.Allow("johndoe")
	l.Reset("johndoe")
	if !l.Allow("johndoe") {
		t.Error("reset should reopen the window")
	}
}
