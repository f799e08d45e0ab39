package auth

import (
	"context"

	"github.com/ccnet/buildgate/internal/security"
)

// Simple authenticates on user name alone, with no password check. It
// exists for trusted networks and wildcard guest identities.
type Simple struct {
	name    string
	display string
	matcher *security.Matcher
}

// NewSimple builds a name-only provider.
func NewSimple(name, display string) (*Simple, error) {
	matcher, err := security.NewMatcher(name)
	if err != nil {
		return nil, err
	}
	return &Simple{name: name, display: display, matcher: matcher}, nil
}

func (s *Simple) Identifier() string { return s.name }
func (s *Simple) Kind() string       { return KindSimple }

// Authenticate passes when the presented user name matches the
// configured identifier.
func (s *Simple) Authenticate(_ context.Context, creds security.Credentials) bool {
	userName := creds.UserName()
	return userName != "" && s.matcher.Match(userName)
}

func (s *Simple) UserName(creds security.Credentials) string {
	return creds.UserName()
}

// DisplayName falls back to the presented user name when no display
// name is configured.
func (s *Simple) DisplayName(_ context.Context, creds security.Credentials) string {
	if s.display != "" {
		return s.display
	}
	return creds.UserName()
}

// ChangePassword is a no-op: there is no password to change.
func (s *Simple) ChangePassword(string) error { return nil }

// Display returns the configured display name.
func (s *Simple) Display() string { return s.display }
