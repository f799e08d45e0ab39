// Package auth implements the pluggable authentication providers used
// by the security managers. A provider validates a login request and
// resolves the canonical user and display names behind it.
//
// Providers never report why a login failed; the only outcome visible
// to a caller is pass or fail.
package auth

import (
	"context"

	"github.com/ccnet/buildgate/internal/security"
)

// Provider kind tags. The set of provider shapes is closed.
const (
	KindPassword = "password"
	KindSimple   = "simple"
	KindLDAP     = "ldap"
)

// Authenticator validates credentials for one configured identity.
type Authenticator interface {
	// Identifier is the configured user name, possibly a wildcard.
	// It is never empty.
	Identifier() string

	// Kind is the provider kind tag.
	Kind() string

	// Authenticate reports whether the presented credentials are valid
	// for this identity.
	Authenticate(ctx context.Context, creds security.Credentials) bool

	// UserName resolves the canonical user name from the credentials.
	UserName(creds security.Credentials) string

	// DisplayName resolves the display name for the credentials.
	DisplayName(ctx context.Context, creds security.Credentials) string

	// ChangePassword updates the stored secret. Providers without a
	// stored secret return a NotSupportedError or no-op, depending on
	// whether a secret is meaningful for the provider at all.
	ChangePassword(newPassword string) error
}
