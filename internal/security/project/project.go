// Package project provides per-project authorization: a project
// either inherits the server's security decisions verbatim or owns an
// ordered rule list with its own default right and guest account.
package project

import (
	"github.com/ccnet/buildgate/internal/security"
	"github.com/ccnet/buildgate/internal/security/permission"
)

// Authority is the server-level security surface project authorization
// consults: rule lookup for references, the server-level check, and
// whether the server insists on sessions.
type Authority interface {
	permission.RefLookup
	CheckServerPermission(userName string, action security.Action) (bool, error)
	RequiresSession() bool
}

// Authorizer decides project-scoped permissions.
type Authorizer interface {
	// RequiresServerSecurity reports whether the project depends on
	// server-level rules being configured.
	RequiresServerSecurity() bool

	// RequiresSession reports whether an anonymous caller must be
	// rejected before permission checks even run.
	RequiresSession(mgr Authority) bool

	// GuestAccountName is the identity anonymous callers are checked
	// as, or "" when the project has no guest account.
	GuestAccountName() string

	// CheckPermission decides whether userName may perform action on
	// this project. serverDefault is the server's fallback right for
	// the action, consulted only after the project's own rules and
	// default have both stayed undecided.
	CheckPermission(mgr Authority, userName string, action security.Action, serverDefault security.Right) (bool, error)
}

// Inherited forwards every check verbatim to the server.
type Inherited struct{}

// NewInherited builds the delegating authorizer.
func NewInherited() Inherited { return Inherited{} }

func (Inherited) RequiresServerSecurity() bool { return false }

func (Inherited) GuestAccountName() string { return "" }

func (Inherited) RequiresSession(mgr Authority) bool { return mgr.RequiresSession() }

func (Inherited) CheckPermission(mgr Authority, userName string, action security.Action, _ security.Right) (bool, error) {
	return mgr.CheckServerPermission(userName, action)
}

// Default holds the project's own ordered rule list. Rules are
// evaluated in declaration order; the first applicable rule with a
// definitive right decides. An undecided check falls back to the
// project's own default right, then to the server's.
type Default struct {
	rules        []permission.Rule
	defaultRight security.Right
	guest        string
}

// NewDefault builds a project-owned authorizer. guest may be "" for
// projects that do not admit anonymous callers.
func NewDefault(guest string, defaultRight security.Right, rules ...permission.Rule) *Default {
	return &Default{rules: rules, defaultRight: defaultRight, guest: guest}
}

func (d *Default) RequiresServerSecurity() bool { return true }

func (d *Default) GuestAccountName() string { return d.guest }

// RequiresSession is false when a guest account is configured:
// anonymous callers are then evaluated as the guest instead of being
// turned away.
func (d *Default) RequiresSession(mgr Authority) bool {
	return d.guest == "" && mgr.RequiresSession()
}

// DefaultRight is the project's configured fallback.
func (d *Default) DefaultRight() security.Right { return d.defaultRight }

func (d *Default) CheckPermission(mgr Authority, userName string, action security.Action, serverDefault security.Right) (bool, error) {
	name := userName
	if name == "" {
		name = d.guest
	}

	right, err := permission.Resolve(mgr, d.rules, name, action)
	if err != nil {
		return false, err
	}
	if right == security.Inherit {
		right = d.defaultRight
	}
	if right == security.Inherit {
		right = serverDefault
	}
	return right == security.Allow, nil
}
