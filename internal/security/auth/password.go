package auth

import (
	"context"
	"crypto/subtle"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/ccnet/buildgate/internal/security"
)

// Password authenticates a user name against a stored secret. The
// secret is either a plain password, compared in constant time, or a
// bcrypt hash. The configured name may contain wildcards.
type Password struct {
	name    string
	display string
	matcher *security.Matcher

	mu       sync.RWMutex
	password string
	hash     string
}

// NewPassword builds a provider with a plain stored password.
func NewPassword(name, display, password string) (*Password, error) {
	return newPassword(name, display, password, "")
}

// NewPasswordHash builds a provider with a bcrypt password hash.
func NewPasswordHash(name, display, hash string) (*Password, error) {
	return newPassword(name, display, "", hash)
}

func newPassword(name, display, password, hash string) (*Password, error) {
	matcher, err := security.NewMatcher(name)
	if err != nil {
		return nil, err
	}
	return &Password{
		name:     name,
		display:  display,
		matcher:  matcher,
		password: password,
		hash:     hash,
	}, nil
}

func (p *Password) Identifier() string { return p.name }
func (p *Password) Kind() string       { return KindPassword }

// Authenticate checks the presented user name against the configured
// identifier and the presented password against the stored secret.
func (p *Password) Authenticate(_ context.Context, creds security.Credentials) bool {
	userName := creds.UserName()
	if userName == "" || !p.matcher.Match(userName) {
		return false
	}

	presented := creds.Password()

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.hash != "" {
		return bcrypt.CompareHashAndPassword([]byte(p.hash), []byte(presented)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(p.password), []byte(presented)) == 1
}

func (p *Password) UserName(creds security.Credentials) string {
	return creds.UserName()
}

// DisplayName returns the configured display name, falling back to the
// presented user name.
func (p *Password) DisplayName(_ context.Context, creds security.Credentials) string {
	if p.display != "" {
		return p.display
	}
	return creds.UserName()
}

// ChangePassword replaces the stored secret. A provider configured
// with a hash stays hashed.
func (p *Password) ChangePassword(newPassword string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.hash != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		p.hash = string(hashed)
		return nil
	}
	p.password = newPassword
	return nil
}

// Password returns the stored plain password, empty when hashed. Used
// when persisting a changed setting back to its source file.
func (p *Password) Password() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.password
}

// PasswordHash returns the stored bcrypt hash, empty when plain.
func (p *Password) PasswordHash() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.hash
}

// Display returns the configured display name.
func (p *Password) Display() string { return p.display }
