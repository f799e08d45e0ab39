package manager

import (
	"context"

	"github.com/ccnet/buildgate/internal/security"
	"github.com/ccnet/buildgate/internal/security/audit"
	"github.com/ccnet/buildgate/internal/security/permission"
	"github.com/ccnet/buildgate/internal/security/project"
)

// Null is the manager for servers that opt out of security entirely.
// Every check allows, login trivially succeeds with the presented
// user name doubling as the token, and nothing is recorded. This is
// the explicit "security disabled" state, not an error state.
type Null struct{}

// NewNull builds the disabled-security manager.
func NewNull() Null { return Null{} }

func (Null) Init() error { return nil }

// Login returns the presented user name as the session token. No
// session state exists to expire or validate.
func (Null) Login(_ context.Context, creds security.Credentials) (string, error) {
	return creds.UserName(), nil
}

func (Null) Logout(context.Context, string) {}

func (Null) ValidateSession(token string) bool { return token != "" }

func (Null) UserName(token string) string { return token }

func (Null) DisplayName(token string) string { return token }

func (Null) Permission(string) permission.Rule { return nil }

func (Null) CheckServerPermission(string, security.Action) (bool, error) {
	return true, nil
}

func (Null) CheckProjectPermission(project.Authorizer, string, string, security.Action) (bool, error) {
	return true, nil
}

func (Null) DefaultRight(security.Action) security.Right { return security.Allow }

func (Null) RequiresSession() bool { return false }

func (Null) ListUsers() []UserDetails { return nil }

func (Null) ChangePassword(context.Context, string, string, string) error {
	return &security.NotSupportedError{Operation: "password management with security disabled"}
}

func (Null) ResetPassword(context.Context, string, string, string) error {
	return &security.NotSupportedError{Operation: "password management with security disabled"}
}

func (Null) LogEvent(context.Context, audit.Record) {}

func (Null) ReadAuditRecords(context.Context, int, int, *audit.Filter) ([]audit.Record, error) {
	return nil, nil
}
