// Package settings reads and writes the YAML files that declare
// security users and permission rules for file-backed security
// configurations.
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ccnet/buildgate/internal/security"
	"github.com/ccnet/buildgate/internal/security/auth"
	"github.com/ccnet/buildgate/internal/security/permission"
)

// Setting type discriminators.
const (
	TypePasswordUser   = "passwordUser"
	TypeSimpleUser     = "simpleUser"
	TypeLDAPUser       = "ldapUser"
	TypeRolePermission = "rolePermission"
	TypeUserPermission = "userPermission"
)

// Setting is one declared user or permission rule. The Type field
// selects which of the remaining fields are meaningful.
type Setting struct {
	Type         string   `yaml:"type"`
	Name         string   `yaml:"name"`
	Display      string   `yaml:"display,omitempty"`
	Password     string   `yaml:"password,omitempty"`
	PasswordHash string   `yaml:"passwordHash,omitempty"`
	Domain       string   `yaml:"domain,omitempty"`
	Ref          string   `yaml:"ref,omitempty"`
	Users        []string `yaml:"users,omitempty"`

	SendMessage       string `yaml:"sendMessage,omitempty"`
	ForceBuild        string `yaml:"forceBuild,omitempty"`
	StartProject      string `yaml:"startProject,omitempty"`
	ChangeProject     string `yaml:"changeProject,omitempty"`
	ViewSecurity      string `yaml:"viewSecurity,omitempty"`
	ModifySecurity    string `yaml:"modifySecurity,omitempty"`
	ViewProject       string `yaml:"viewProject,omitempty"`
	ViewConfiguration string `yaml:"viewConfiguration,omitempty"`
	DefaultRight      string `yaml:"defaultRight,omitempty"`
}

// IsUser reports whether the setting declares an authentication user.
func (s Setting) IsUser() bool {
	switch s.Type {
	case TypePasswordUser, TypeSimpleUser, TypeLDAPUser:
		return true
	}
	return false
}

// IsPermission reports whether the setting declares a permission rule.
func (s Setting) IsPermission() bool {
	return s.Type == TypeRolePermission || s.Type == TypeUserPermission
}

// Rights parses the per-action right fields into a resolved bag.
func (s Setting) Rights() (permission.Rights, error) {
	bag := permission.Rights{Actions: map[security.Action]security.Right{}}

	def, err := security.ParseRight(s.DefaultRight)
	if err != nil {
		return bag, fmt.Errorf("setting %q: %w", s.Name, err)
	}
	bag.Default = def

	fields := map[security.Action]string{
		security.ActionSendMessage:       s.SendMessage,
		security.ActionForceBuild:        s.ForceBuild,
		security.ActionStartProject:      s.StartProject,
		security.ActionChangeProject:     s.ChangeProject,
		security.ActionViewSecurity:      s.ViewSecurity,
		security.ActionModifySecurity:    s.ModifySecurity,
		security.ActionViewProject:       s.ViewProject,
		security.ActionViewConfiguration: s.ViewConfiguration,
	}
	for action, raw := range fields {
		if raw == "" {
			continue
		}
		right, err := security.ParseRight(raw)
		if err != nil {
			return bag, fmt.Errorf("setting %q, action %s: %w", s.Name, action, err)
		}
		bag.Actions[action] = right
	}
	return bag, nil
}

// BuildOptions carries the collaborators settings-built users need.
type BuildOptions struct {
	Directory auth.DirectoryService
	Logger    *zap.Logger
}

// Authenticator constructs the authentication provider a user setting
// declares.
func (s Setting) Authenticator(opts BuildOptions) (auth.Authenticator, error) {
	switch s.Type {
	case TypePasswordUser:
		if s.PasswordHash != "" {
			return auth.NewPasswordHash(s.Name, s.Display, s.PasswordHash)
		}
		return auth.NewPassword(s.Name, s.Display, s.Password)
	case TypeSimpleUser:
		return auth.NewSimple(s.Name, s.Display)
	case TypeLDAPUser:
		if opts.Directory == nil {
			return nil, fmt.Errorf("setting %q: no directory service configured", s.Name)
		}
		return auth.NewDirectory(s.Name, s.Domain, opts.Directory, opts.Logger), nil
	}
	return nil, fmt.Errorf("setting %q: %q is not a user type", s.Name, s.Type)
}

// Rule constructs the permission rule a permission setting declares.
func (s Setting) Rule() (permission.Rule, error) {
	rights, err := s.Rights()
	if err != nil {
		return nil, err
	}
	switch s.Type {
	case TypeRolePermission:
		return permission.NewRole(s.Name, s.Users, s.Ref, rights), nil
	case TypeUserPermission:
		return permission.NewUser(s.Name, s.Ref, rights), nil
	}
	return nil, fmt.Errorf("setting %q: %q is not a permission type", s.Name, s.Type)
}

// FromAuthenticator converts a provider back to its declaration, used
// when a password change has to be written back to disk.
func FromAuthenticator(a auth.Authenticator) (Setting, error) {
	switch p := a.(type) {
	case *auth.Password:
		return Setting{
			Type:         TypePasswordUser,
			Name:         p.Identifier(),
			Display:      p.Display(),
			Password:     p.Password(),
			PasswordHash: p.PasswordHash(),
		}, nil
	case *auth.Simple:
		return Setting{Type: TypeSimpleUser, Name: p.Identifier(), Display: p.Display()}, nil
	case *auth.Directory:
		return Setting{Type: TypeLDAPUser, Name: p.Identifier(), Domain: p.Domain()}, nil
	}
	return Setting{}, fmt.Errorf("cannot persist provider of kind %q", a.Kind())
}

// Load reads every setting from a YAML file, in declaration order.
func Load(path string) ([]Setting, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings %s: %w", path, err)
	}

	var out []Setting
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	for i, s := range out {
		if s.Name == "" {
			return nil, fmt.Errorf("settings %s: entry %d has no name", path, i)
		}
	}
	return out, nil
}

// Save writes the full setting list to path, atomically.
func Save(path string, settings []Setting) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return writeAtomic(path, data)
}

// Replace rewrites the single setting named identifier in place,
// leaving every other entry in the file untouched, comments included.
// Matching is case-insensitive.
func Replace(path, identifier string, updated Setting) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read settings %s: %w", path, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse settings %s: %w", path, err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.SequenceNode {
		return fmt.Errorf("settings %s: not a setting list", path)
	}

	seq := doc.Content[0]
	replaced := false
	for i, entry := range seq.Content {
		if !strings.EqualFold(entryName(entry), identifier) {
			continue
		}
		// A user and a permission may share a name; only an entry of
		// the same class is the one being rewritten.
		if existing := (Setting{Type: entryType(entry)}); existing.IsUser() != updated.IsUser() {
			continue
		}
		var node yaml.Node
		if err := node.Encode(updated); err != nil {
			return fmt.Errorf("encode setting %q: %w", identifier, err)
		}
		seq.Content[i] = &node
		replaced = true
		break
	}
	if !replaced {
		return fmt.Errorf("settings %s: no entry named %q", path, identifier)
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return writeAtomic(path, out)
}

func entryName(entry *yaml.Node) string { return entryField(entry, "name") }

func entryType(entry *yaml.Node) string { return entryField(entry, "type") }

// entryField extracts a scalar field from a mapping node.
func entryField(entry *yaml.Node, field string) string {
	if entry.Kind != yaml.MappingNode {
		return ""
	}
	for i := 0; i+1 < len(entry.Content); i += 2 {
		if entry.Content[i].Value == field {
			return entry.Content[i+1].Value
		}
	}
	return ""
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write settings %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace settings %s: %w", filepath.Base(path), err)
	}
	return nil
}
