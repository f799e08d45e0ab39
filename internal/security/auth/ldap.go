package auth

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"
)

const defaultLDAPTimeout = 10 * time.Second

// LDAPService implements DirectoryService over an LDAP directory.
type LDAPService struct {
	url     string
	timeout time.Duration
}

// NewLDAPService builds a directory service client for the given LDAP
// URL (ldap:// or ldaps://). A non-positive timeout uses the default.
func NewLDAPService(url string, timeout time.Duration) *LDAPService {
	if timeout <= 0 {
		timeout = defaultLDAPTimeout
	}
	return &LDAPService{url: url, timeout: timeout}
}

// Authenticate binds to the directory as the user. An invalid-
// credentials result is a clean false; anything else is an error the
// caller maps to "user not found".
func (s *LDAPService) Authenticate(ctx context.Context, userName, password, domain string) (bool, error) {
	// An empty password would trigger an unauthenticated bind, which
	// some directories accept. Refuse it outright.
	if password == "" {
		return false, nil
	}

	conn, err := s.dial(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	if err := conn.Bind(bindName(userName, domain), password); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			return false, nil
		}
		return false, fmt.Errorf("ldap bind: %w", err)
	}
	return true, nil
}

// DisplayName searches the directory for the user's displayName
// attribute.
func (s *LDAPService) DisplayName(ctx context.Context, userName, domain string) (string, error) {
	conn, err := s.dial(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	req := ldap.NewSearchRequest(
		baseDN(domain),
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 1, int(s.timeout.Seconds()), false,
		fmt.Sprintf("(|(sAMAccountName=%s)(uid=%s))", ldap.EscapeFilter(userName), ldap.EscapeFilter(userName)),
		[]string{"displayName"},
		nil,
	)

	res, err := conn.Search(req)
	if err != nil {
		return "", fmt.Errorf("ldap search: %w", err)
	}
	if len(res.Entries) == 0 {
		return "", nil
	}
	return res.Entries[0].GetAttributeValue("displayName"), nil
}

func (s *LDAPService) dial(ctx context.Context) (*ldap.Conn, error) {
	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	conn, err := ldap.DialURL(s.url, ldap.DialWithDialer(&net.Dialer{Timeout: time.Until(deadline)}))
	if err != nil {
		return nil, fmt.Errorf("ldap dial %s: %w", s.url, err)
	}
	conn.SetTimeout(time.Until(deadline))
	return conn, nil
}

// bindName forms the directory logon name, user@domain when a domain
// is configured.
func bindName(userName, domain string) string {
	if domain == "" {
		return userName
	}
	return userName + "@" + domain
}

// baseDN derives a search base from a DNS domain name, e.g.
// corp.example.com becomes dc=corp,dc=example,dc=com.
func baseDN(domain string) string {
	if domain == "" {
		return ""
	}
	parts := strings.Split(domain, ".")
	for i, p := range parts {
		parts[i] = "dc=" + p
	}
	return strings.Join(parts, ",")
}
