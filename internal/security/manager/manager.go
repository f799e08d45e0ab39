// Package manager provides the security managers that tie
// authentication, sessions, permissions and auditing together. A
// caller moves Anonymous -> Authenticated on a successful login and
// back on logout or session expiry.
package manager

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ccnet/buildgate/internal/metrics"
	"github.com/ccnet/buildgate/internal/security"
	"github.com/ccnet/buildgate/internal/security/audit"
	"github.com/ccnet/buildgate/internal/security/auth"
	"github.com/ccnet/buildgate/internal/security/permission"
	"github.com/ccnet/buildgate/internal/security/project"
	"github.com/ccnet/buildgate/internal/security/session"
	"github.com/ccnet/buildgate/internal/telemetry"
)

// UserDetails describes one configured user.
type UserDetails struct {
	UserName    string `json:"user_name"`
	DisplayName string `json:"display_name,omitempty"`
	Kind        string `json:"kind"`
}

// Manager is the server-side security surface.
type Manager interface {
	project.Authority

	// Init prepares the manager: loads configuration, restores
	// durable sessions, validates rule references.
	Init() error

	// Login authenticates the presented credentials and returns a
	// session token. A refused login returns an empty token and a nil
	// error; the caller learns nothing about why.
	Login(ctx context.Context, creds security.Credentials) (string, error)

	// Logout ends a session. Ending an absent session is not an error.
	Logout(ctx context.Context, token string)

	// ValidateSession reports whether a token maps to a live session.
	ValidateSession(token string) bool

	// UserName resolves a token to its user, "" when invalid.
	UserName(token string) string

	// DisplayName resolves a token to the user's display name,
	// falling back to the user name.
	DisplayName(token string) string

	// CheckProjectPermission decides a project-scoped action. A nil
	// authorizer falls back to the server-level check.
	CheckProjectPermission(authz project.Authorizer, projectName, userName string, action security.Action) (bool, error)

	// DefaultRight is the server's fallback right for an action.
	DefaultRight(action security.Action) security.Right

	// ListUsers enumerates every configured user.
	ListUsers() []UserDetails

	// ChangePassword lets the session's own user replace their
	// password after proving the old one.
	ChangePassword(ctx context.Context, token, oldPassword, newPassword string) error

	// ResetPassword lets a security administrator set another user's
	// password.
	ResetPassword(ctx context.Context, token, userName, newPassword string) error

	// LogEvent records an audit event.
	LogEvent(ctx context.Context, rec audit.Record)

	// ReadAuditRecords pages stored audit records, oldest first. With
	// no reader configured the result is empty.
	ReadAuditRecords(ctx context.Context, start, count int, filter *audit.Filter) ([]audit.Record, error)
}

// Options carries the collaborators every manager needs.
type Options struct {
	Cache    session.Cache
	Sinks    []audit.Sink
	Reader   audit.Reader
	Defaults permission.Rights
	Logger   *zap.Logger

	// Limiter throttles login attempts per user name; nil disables
	// throttling.
	Limiter *auth.Limiter
}

// userSet holds configured users in declaration order with
// case-insensitive lookup. A later definition of the same identifier
// replaces the earlier one.
type userSet struct {
	ordered []auth.Authenticator
	index   map[string]int
}

func newUserSet() *userSet {
	return &userSet{index: map[string]int{}}
}

func (s *userSet) add(a auth.Authenticator) {
	key := strings.ToLower(a.Identifier())
	if i, ok := s.index[key]; ok {
		s.ordered[i] = a
		return
	}
	s.index[key] = len(s.ordered)
	s.ordered = append(s.ordered, a)
}

// find returns the provider for a user name: an exact identifier
// match wins, else the first wildcard identifier that matches.
func (s *userSet) find(userName string) auth.Authenticator {
	if userName == "" {
		return nil
	}
	if i, ok := s.index[strings.ToLower(userName)]; ok {
		return s.ordered[i]
	}
	for _, a := range s.ordered {
		if security.HasWildcard(a.Identifier()) && security.MatchWildcard(a.Identifier(), userName) {
			return a
		}
	}
	return nil
}

// ruleSet holds permission rules in declaration order, with the same
// last-definition-wins identifier lookup as userSet.
type ruleSet struct {
	ordered []permission.Rule
	index   map[string]int
}

func newRuleSet() *ruleSet {
	return &ruleSet{index: map[string]int{}}
}

func (s *ruleSet) add(r permission.Rule) {
	key := strings.ToLower(r.Identifier())
	if i, ok := s.index[key]; ok {
		s.ordered[i] = r
		return
	}
	s.index[key] = len(s.ordered)
	s.ordered = append(s.ordered, r)
}

func (s *ruleSet) lookup(identifier string) permission.Rule {
	if i, ok := s.index[strings.ToLower(identifier)]; ok {
		return s.ordered[i]
	}
	return nil
}

// base implements the behavior shared by the internal and file-backed
// managers.
type base struct {
	cache    session.Cache
	audit    *audit.Dispatcher
	reader   audit.Reader
	defaults permission.Rights
	logger   *zap.Logger
	limiter  *auth.Limiter

	users *userSet
	rules *ruleSet
}

func newBase(opts Options) base {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cache := opts.Cache
	if cache == nil {
		cache = session.NewMemory(session.DefaultDuration, session.Sliding)
	}
	return base{
		cache:    cache,
		audit:    audit.NewDispatcher(logger, opts.Sinks...),
		reader:   opts.Reader,
		defaults: opts.Defaults,
		logger:   logger,
		limiter:  opts.Limiter,
		users:    newUserSet(),
		rules:    newRuleSet(),
	}
}

// Login implements the shared login flow: extract the user-name hint,
// find a provider, authenticate, mint a session. Every attempt emits
// an audit event; a refused attempt returns an empty token without an
// error so callers cannot distinguish why it failed.
func (b *base) Login(ctx context.Context, creds security.Credentials) (string, error) {
	hint := creds.UserName()
	ctx, span := telemetry.StartLoginSpan(ctx, hint)

	if b.limiter != nil && hint != "" && !b.limiter.Allow(hint) {
		b.logger.Warn("login throttled", zap.String("user", hint))
		b.audit.LogEvent(ctx, audit.Record{
			UserName: hint,
			Type:     audit.EventLogin,
			Right:    security.Deny,
			Message:  "too many login attempts",
		})
		metrics.LoginsTotal.WithLabelValues(metrics.Outcome(false)).Inc()
		telemetry.EndLoginSpan(span, false)
		return "", nil
	}

	provider := b.users.find(hint)
	if provider == nil || !provider.Authenticate(ctx, creds) {
		b.logger.Warn("login failed", zap.String("user", hint))
		b.audit.LogEvent(ctx, audit.Record{
			UserName: hint,
			Type:     audit.EventLogin,
			Right:    security.Deny,
			Message:  "login failure",
		})
		metrics.LoginsTotal.WithLabelValues(metrics.Outcome(false)).Inc()
		telemetry.EndLoginSpan(span, false)
		return "", nil
	}

	userName := provider.UserName(creds)
	token, err := b.cache.Add(ctx, userName)
	if err != nil {
		telemetry.EndLoginSpan(span, false)
		return "", err
	}
	if display := provider.DisplayName(ctx, creds); display != "" {
		if err := b.cache.StoreValue(ctx, token, session.DisplayNameKey, display); err != nil {
			b.logger.Warn("store display name", zap.String("user", userName), zap.Error(err))
		}
	}

	if b.limiter != nil {
		b.limiter.Reset(hint)
	}
	b.logger.Debug("login succeeded", zap.String("user", userName))
	b.audit.LogEvent(ctx, audit.Record{
		UserName: userName,
		Type:     audit.EventLogin,
		Right:    security.Allow,
	})
	metrics.LoginsTotal.WithLabelValues(metrics.Outcome(true)).Inc()
	telemetry.EndLoginSpan(span, true)
	return token, nil
}

// Logout ends the session. Removing an absent token is not an error,
// but it is audited as a Deny so repeated logouts stay visible.
func (b *base) Logout(ctx context.Context, token string) {
	userName := b.cache.UserName(token)
	if userName == "" {
		b.audit.LogEvent(ctx, audit.Record{
			Type:    audit.EventLogout,
			Right:   security.Deny,
			Message: "session has already been logged out",
		})
		return
	}
	b.cache.Remove(ctx, token)
	b.audit.LogEvent(ctx, audit.Record{
		UserName: userName,
		Type:     audit.EventLogout,
		Right:    security.Allow,
	})
}

func (b *base) ValidateSession(token string) bool {
	return token != "" && b.cache.UserName(token) != ""
}

func (b *base) UserName(token string) string {
	if token == "" {
		return ""
	}
	return b.cache.UserName(token)
}

func (b *base) DisplayName(token string) string {
	if display := b.cache.Value(token, session.DisplayNameKey); display != "" {
		return display
	}
	return b.UserName(token)
}

// Permission implements permission.RefLookup for reference resolution.
func (b *base) Permission(identifier string) permission.Rule {
	return b.rules.lookup(identifier)
}

// resolveServerRight walks the server rule list and applies the
// configured default when no rule decides. It does not audit; callers
// that represent a user-visible decision wrap it and log exactly once.
func (b *base) resolveServerRight(userName string, action security.Action) (security.Right, error) {
	right, err := permission.Resolve(b, b.rules.ordered, userName, action)
	if err != nil {
		return security.Inherit, err
	}
	if right == security.Inherit {
		right = b.defaults.For(action)
	}
	return right, nil
}

// quietAuthority exposes the manager's rule set to project authorizers
// without the audit wrapper, so a project-scoped check that falls back
// to the server produces a single project-scoped audit record.
type quietAuthority struct {
	*base
}

func (q quietAuthority) CheckServerPermission(userName string, action security.Action) (bool, error) {
	right, err := q.resolveServerRight(userName, action)
	if err != nil {
		return false, err
	}
	return right == security.Allow, nil
}

// CheckServerPermission resolves an action over the server rule list,
// falling back to the server default when no rule decides.
func (b *base) CheckServerPermission(userName string, action security.Action) (bool, error) {
	_, span := telemetry.StartPermissionSpan(context.Background(), userName, string(action))

	right, err := b.resolveServerRight(userName, action)
	if err != nil {
		span.End()
		return false, err
	}
	allowed := right == security.Allow

	b.audit.LogEvent(context.Background(), audit.Record{
		UserName: userName,
		Type:     audit.EventPermissionCheck,
		Right:    right,
		Message:  string(action),
	})
	metrics.PermissionChecksTotal.WithLabelValues(string(action), metrics.Outcome(allowed)).Inc()
	telemetry.EndPermissionSpan(span, allowed)
	return allowed, nil
}

// CheckProjectPermission routes a project-scoped check through the
// project's authorizer, passing the server default as the final
// fallback. A nil authorizer means the project has no security of its
// own and the server-level decision stands.
func (b *base) CheckProjectPermission(authz project.Authorizer, projectName, userName string, action security.Action) (bool, error) {
	if authz == nil {
		return b.CheckServerPermission(userName, action)
	}

	if userName == "" {
		userName = authz.GuestAccountName()
	}
	_, span := telemetry.StartPermissionSpan(context.Background(), userName, string(action))
	allowed, err := authz.CheckPermission(quietAuthority{b}, userName, action, b.defaults.For(action))
	if err != nil {
		span.End()
		return false, err
	}

	right := security.Deny
	if allowed {
		right = security.Allow
	}
	b.audit.LogEvent(context.Background(), audit.Record{
		Project:  projectName,
		UserName: userName,
		Type:     audit.EventPermissionCheck,
		Right:    right,
		Message:  string(action),
	})
	metrics.PermissionChecksTotal.WithLabelValues(string(action), metrics.Outcome(allowed)).Inc()
	telemetry.EndPermissionSpan(span, allowed)
	return allowed, nil
}

// RequiresSession reports whether anonymous callers are locked out:
// true exactly when the server's top-level default right is Deny.
func (b *base) RequiresSession() bool {
	return b.defaults.Default == security.Deny
}

func (b *base) DefaultRight(action security.Action) security.Right {
	return b.defaults.For(action)
}

func (b *base) ListUsers() []UserDetails {
	out := make([]UserDetails, 0, len(b.users.ordered))
	for _, a := range b.users.ordered {
		details := UserDetails{UserName: a.Identifier(), Kind: a.Kind()}
		// Configured display names only; no directory round trips.
		if d, ok := a.(interface{ Display() string }); ok {
			details.DisplayName = d.Display()
		}
		out = append(out, details)
	}
	return out
}

func (b *base) LogEvent(ctx context.Context, rec audit.Record) {
	b.audit.LogEvent(ctx, rec)
}

func (b *base) ReadAuditRecords(ctx context.Context, start, count int, filter *audit.Filter) ([]audit.Record, error) {
	if b.reader == nil {
		return nil, nil
	}
	return b.reader.Read(ctx, start, count, filter)
}

// validateRules checks every rule's reference chain for missing
// targets and cycles before the manager is used.
func (b *base) validateRules() error {
	return permission.ValidateRefs(b, b.rules.ordered)
}
