package security

import (
	"errors"
	"fmt"
	"testing"
)

func TestCredentialsFindFirstMatchWins(t *testing.T) {
	creds := NewCredentials("john").
		With(PasswordCredential, "secret").
		With(UserNameCredential, "impostor")

	if got := creds.UserName(); got != "john" {
		t.Fatalf("UserName = %q, want john", got)
	}
	if got := creds.Password(); got != "secret" {
		t.Fatalf("Password = %q, want secret", got)
	}
	if got := creds.Find("missing"); got != "" {
		t.Fatalf("Find(missing) = %q, want empty", got)
	}
}

func TestCredentialsWithDoesNotMutateReceiver(t *testing.T) {
	base := NewCredentials("john")
	_ = base.With(PasswordCredential, "secret")
	if len(base) != 1 {
		t.Fatalf("receiver mutated: %v", base)
	}
}

func TestParseRight(t *testing.T) {
	cases := []struct {
		in   string
		want Right
		ok   bool
	}{
		{"Allow", Allow, true},
		{"deny", Deny, true},
		{"INHERIT", Inherit, true},
		{"", Inherit, true},
		{" allow ", Allow, true},
		{"grant", Inherit, false},
	}
	for _, tc := range cases {
		got, err := ParseRight(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("ParseRight(%q): %v", tc.in, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("ParseRight(%q): expected error", tc.in)
		}
		if tc.ok && got != tc.want {
			t.Fatalf("ParseRight(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestRightTextRoundTrip(t *testing.T) {
	for _, r := range []Right{Inherit, Allow, Deny} {
		text, err := r.MarshalText()
		if err != nil {
			t.Fatal(err)
		}
		var back Right
		if err := back.UnmarshalText(text); err != nil {
			t.Fatal(err)
		}
		if back != r {
			t.Fatalf("round trip %v -> %s -> %v", r, text, back)
		}
	}
}

func TestValidAction(t *testing.T) {
	for _, a := range Actions() {
		if !ValidAction(a) {
			t.Fatalf("action %q should be valid", a)
		}
	}
	if ValidAction("deleteEverything") {
		t.Fatal("unknown action reported valid")
	}
}

func TestWildcardMatch(t *testing.T) {
	cases := []struct {
		pattern, candidate string
		want               bool
	}{
		{"john*", "johnsmith", true},
		{"john*", "john", true},
		{"john*", "jane", false},
		{"JOHN*", "johnsmith", true},
		{"john*", "JOHNSMITH", true},
		{"*", "anyone", true},
		{"*admin", "siteadmin", true},
		{"*admin", "administrator", false},
		{"dev*ops", "devops", true},
		{"dev*ops", "dev.build.ops", true},
		{"john", "john", true},
		{"john", "johnny", false},
		{"j.hn", "john", false}, // dot is literal, not a regex token
	}
	for _, tc := range cases {
		if got := MatchWildcard(tc.pattern, tc.candidate); got != tc.want {
			t.Fatalf("MatchWildcard(%q, %q) = %v, want %v", tc.pattern, tc.candidate, got, tc.want)
		}
	}
}

func TestMatcherAnchored(t *testing.T) {
	m, err := NewMatcher("build*")
	if err != nil {
		t.Fatal(err)
	}
	if m.Match("prebuilder") {
		t.Fatal("match must anchor at the start of the candidate")
	}
	if !m.Match("builder") {
		t.Fatal("builder should match build*")
	}
}

func TestHasWildcard(t *testing.T) {
	if HasWildcard("john") {
		t.Fatal("john has no wildcard")
	}
	if !HasWildcard("jo*n") {
		t.Fatal("jo*n has a wildcard")
	}
}

func TestIsConfigError(t *testing.T) {
	wrapped := fmt.Errorf("check failed: %w", &BadReferenceError{RefID: "admin"})
	if !IsConfigError(wrapped) {
		t.Fatal("wrapped bad reference should be a config error")
	}
	if !IsConfigError(&CircularReferenceError{Chain: []string{"a", "b", "a"}}) {
		t.Fatal("circular reference should be a config error")
	}
	if !IsConfigError(&NotSupportedError{Operation: "password management"}) {
		t.Fatal("not-supported should be a config error")
	}
	if IsConfigError(errors.New("boom")) {
		t.Fatal("plain error is not a config error")
	}
	if IsConfigError(ErrSessionInvalid) {
		t.Fatal("invalid session is a user error, not a config error")
	}
}
