// Package security defines the shared vocabulary of the build server's
// security subsystem: login credentials, rights, protected actions,
// wildcard identity matching, and the error taxonomy used by managers,
// permission rules and session caches.
package security

// Well-known credential names carried in a login request.
const (
	UserNameCredential = "username"
	PasswordCredential = "password"
)

// Credential is a single named value presented at login.
type Credential struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Credentials is an ordered credential list. Lookup is by name and the
// first match wins; duplicate names are permitted and never collapsed.
type Credentials []Credential

// NewCredentials builds a credential list carrying just a user name.
func NewCredentials(userName string) Credentials {
	return Credentials{{Name: UserNameCredential, Value: userName}}
}

// With returns a new list with the named value appended.
func (c Credentials) With(name, value string) Credentials {
	out := make(Credentials, len(c), len(c)+1)
	copy(out, c)
	return append(out, Credential{Name: name, Value: value})
}

// Find returns the first value stored under name, or the empty string.
func (c Credentials) Find(name string) string {
	for _, cred := range c {
		if cred.Name == name {
			return cred.Value
		}
	}
	return ""
}

// UserName returns the user name hint from the credential list.
func (c Credentials) UserName() string {
	return c.Find(UserNameCredential)
}

// Password returns the password from the credential list, if any.
func (c Credentials) Password() string {
	return c.Find(PasswordCredential)
}
