package redact

import (
	"strings"
	"testing"
)

func TestScrubPasswordField(t *testing.T) {
	got := Scrub("login failed for john, password=hunter2")
	if strings.Contains(got, "hunter2") {
		t.Fatalf("password leaked: %q", got)
	}
	if !strings.Contains(got, "[REDACTED]") {
		t.Fatalf("no redaction marker: %q", got)
	}
	if !strings.Contains(got, "john") {
		t.Fatalf("non-secret context lost: %q", got)
	}
}

func TestScrubBcryptHash(t *testing.T) {
	hash := "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"
	got := Scrub("stored hash " + hash)
	if strings.Contains(got, hash) {
		t.Fatalf("hash leaked: %q", got)
	}
}

func TestScrubLeavesPlainTextAlone(t *testing.T) {
	in := "john logged out"
	if got := Scrub(in); got != in {
		t.Fatalf("plain text mangled: %q", got)
	}
}
