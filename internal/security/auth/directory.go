package auth

import (
	"context"

	"go.uber.org/zap"

	"github.com/ccnet/buildgate/internal/security"
)

// DirectoryService is the external user directory consulted by the
// Directory provider. Implemented over LDAP in production and faked in
// tests.
type DirectoryService interface {
	// Authenticate verifies the user's directory credentials.
	Authenticate(ctx context.Context, userName, password, domain string) (bool, error)

	// DisplayName looks up the user's directory display name. An empty
	// result means the directory holds none.
	DisplayName(ctx context.Context, userName, domain string) (string, error)
}

// Directory authenticates against an external user directory. Directory
// errors are treated as "user not found", never as a fatal error: the
// directory being down must read the same as bad credentials.
type Directory struct {
	name   string
	domain string
	svc    DirectoryService
	logger *zap.Logger
}

// NewDirectory builds a directory-backed provider for one configured
// user name.
func NewDirectory(name, domain string, svc DirectoryService, logger *zap.Logger) *Directory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Directory{name: name, domain: domain, svc: svc, logger: logger}
}

func (d *Directory) Identifier() string { return d.name }
func (d *Directory) Kind() string       { return KindLDAP }

// Domain returns the configured directory domain.
func (d *Directory) Domain() string { return d.domain }

func (d *Directory) Authenticate(ctx context.Context, creds security.Credentials) bool {
	userName := creds.UserName()
	if userName == "" {
		return false
	}

	ok, err := d.svc.Authenticate(ctx, userName, creds.Password(), d.domain)
	if err != nil {
		d.logger.Warn("directory lookup failed, treating user as not found",
			zap.String("domain", d.domain), zap.Error(err))
		return false
	}
	return ok
}

func (d *Directory) UserName(creds security.Credentials) string {
	return creds.UserName()
}

// DisplayName asks the directory for the user's display name, falling
// back to the presented user name.
func (d *Directory) DisplayName(ctx context.Context, creds security.Credentials) string {
	userName := creds.UserName()
	display, err := d.svc.DisplayName(ctx, userName, d.domain)
	if err != nil {
		d.logger.Warn("directory display name lookup failed",
			zap.String("domain", d.domain), zap.Error(err))
		return userName
	}
	if display == "" {
		return userName
	}
	return display
}

// ChangePassword is rejected: passwords live in the directory.
func (d *Directory) ChangePassword(string) error {
	return &security.NotSupportedError{Operation: "password management for directory users"}
}
