package manager

import (
	"context"
	"fmt"

	"github.com/ccnet/buildgate/internal/security"
	"github.com/ccnet/buildgate/internal/security/auth"
	"github.com/ccnet/buildgate/internal/security/permission"
)

// Internal is the manager whose users and rules are configured inline
// (in code or server configuration) rather than in external files.
// Password management is not available: the definitions have no
// writable home.
type Internal struct {
	base
}

// NewInternal builds an inline-configured manager. Users and rules
// keep their declaration order; a repeated identifier replaces the
// earlier definition.
func NewInternal(opts Options, users []auth.Authenticator, rules []permission.Rule) *Internal {
	m := &Internal{base: newBase(opts)}
	for _, u := range users {
		m.users.add(u)
	}
	for _, r := range rules {
		m.rules.add(r)
	}
	return m
}

// Init restores durable sessions and validates every rule reference.
func (m *Internal) Init() error {
	if err := m.cache.Init(); err != nil {
		return fmt.Errorf("init session cache: %w", err)
	}
	if err := m.validateRules(); err != nil {
		return fmt.Errorf("validate security rules: %w", err)
	}
	return nil
}

func (m *Internal) ChangePassword(context.Context, string, string, string) error {
	return &security.NotSupportedError{Operation: "password management on an inline-configured manager"}
}

func (m *Internal) ResetPassword(context.Context, string, string, string) error {
	return &security.NotSupportedError{Operation: "password management on an inline-configured manager"}
}
