package manager

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ccnet/buildgate/internal/security"
	"github.com/ccnet/buildgate/internal/security/audit"
	"github.com/ccnet/buildgate/internal/security/auth"
	"github.com/ccnet/buildgate/internal/security/settings"
)

// File is the manager whose users and rules live in external settings
// files. Because every user definition has a source file, passwords
// can be changed and reset: the changed definition is rewritten in
// place, leaving the rest of its file untouched.
type File struct {
	base
	paths     []string
	directory auth.DirectoryService

	// lowercased user identifier -> source file
	sources map[string]string
}

// NewFile builds a file-backed manager over the given settings files.
// Files load in order; a repeated identifier replaces the earlier
// definition, wherever it was declared.
func NewFile(opts Options, directory auth.DirectoryService, paths ...string) *File {
	return &File{
		base:      newBase(opts),
		paths:     paths,
		directory: directory,
		sources:   map[string]string{},
	}
}

// Init loads every settings file, restores durable sessions and
// validates rule references. A file that fails to load fails startup:
// partial security configuration is worse than none.
func (m *File) Init() error {
	if err := m.cache.Init(); err != nil {
		return fmt.Errorf("init session cache: %w", err)
	}

	buildOpts := settings.BuildOptions{Directory: m.directory, Logger: m.logger}
	for _, path := range m.paths {
		loaded, err := settings.Load(path)
		if err != nil {
			return err
		}
		for _, s := range loaded {
			switch {
			case s.IsUser():
				provider, err := s.Authenticator(buildOpts)
				if err != nil {
					return err
				}
				m.users.add(provider)
				m.sources[strings.ToLower(provider.Identifier())] = path
			case s.IsPermission():
				rule, err := s.Rule()
				if err != nil {
					return err
				}
				m.rules.add(rule)
			default:
				return fmt.Errorf("settings %s: unknown type %q", path, s.Type)
			}
		}
	}

	if err := m.validateRules(); err != nil {
		return fmt.Errorf("validate security rules: %w", err)
	}

	m.logger.Info("security settings loaded",
		zap.Int("users", len(m.users.ordered)),
		zap.Int("rules", len(m.rules.ordered)),
		zap.Int("files", len(m.paths)))
	return nil
}

// ChangePassword replaces the calling user's own password. The old
// password must authenticate first; a mismatch is audited and refused
// without telling the caller more than "denied".
func (m *File) ChangePassword(ctx context.Context, token, oldPassword, newPassword string) error {
	userName := m.UserName(token)
	if userName == "" {
		return security.ErrSessionInvalid
	}
	provider := m.users.find(userName)
	if provider == nil {
		return security.ErrSessionInvalid
	}

	check := security.NewCredentials(userName)
	check = check.With(security.PasswordCredential, oldPassword)
	if !provider.Authenticate(ctx, check) {
		m.audit.LogEvent(ctx, audit.Record{
			UserName: userName,
			Type:     audit.EventChangePassword,
			Right:    security.Deny,
			Message:  "old password is incorrect",
		})
		return security.ErrPermissionDenied
	}

	if err := provider.ChangePassword(newPassword); err != nil {
		return err
	}
	if err := m.persist(provider); err != nil {
		return err
	}

	m.audit.LogEvent(ctx, audit.Record{
		UserName: userName,
		Type:     audit.EventChangePassword,
		Right:    security.Allow,
	})
	return nil
}

// ResetPassword sets another user's password. The caller must hold
// the modify-security right at server level.
func (m *File) ResetPassword(ctx context.Context, token, userName, newPassword string) error {
	caller := m.UserName(token)
	if caller == "" {
		return security.ErrSessionInvalid
	}

	allowed, err := m.CheckServerPermission(caller, security.ActionModifySecurity)
	if err != nil {
		return err
	}
	if !allowed {
		m.audit.LogEvent(ctx, audit.Record{
			UserName: caller,
			Type:     audit.EventResetPassword,
			Right:    security.Deny,
			Message:  fmt.Sprintf("refused password reset for %s", userName),
		})
		return security.ErrPermissionDenied
	}

	provider := m.users.find(userName)
	if provider == nil {
		return fmt.Errorf("no user named %q", userName)
	}
	if err := provider.ChangePassword(newPassword); err != nil {
		return err
	}
	if err := m.persist(provider); err != nil {
		return err
	}

	m.audit.LogEvent(ctx, audit.Record{
		UserName: caller,
		Type:     audit.EventResetPassword,
		Right:    security.Allow,
		Message:  fmt.Sprintf("password reset for %s", userName),
	})
	return nil
}

// persist rewrites the provider's settings element in its source file.
func (m *File) persist(provider auth.Authenticator) error {
	path, ok := m.sources[strings.ToLower(provider.Identifier())]
	if !ok {
		return fmt.Errorf("no settings file holds user %q", provider.Identifier())
	}
	updated, err := settings.FromAuthenticator(provider)
	if err != nil {
		return err
	}
	return settings.Replace(path, provider.Identifier(), updated)
}
