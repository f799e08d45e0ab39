// Package permission implements the named permission rules and the
// ordered resolution algorithm shared by server- and project-level
// checks.
//
// A rule decides two things: whether it applies to a user, and which
// right it yields for an action. Rules may reference another rule by
// identifier, in which case both decisions are delegated wholesale to
// the referenced rule.
package permission

import (
	"github.com/ccnet/buildgate/internal/security"
)

// RefLookup resolves a rule by identifier. The owning security manager
// implements it; rules use it to follow reference indirection.
type RefLookup interface {
	// Permission returns the rule registered under identifier, or nil.
	Permission(identifier string) Rule
}

// Rule is a named, addressable permission assertion.
type Rule interface {
	// Identifier is the configured role or user name. Never empty.
	Identifier() string

	// RefID is the identifier of a referenced rule, empty when the
	// rule stands alone.
	RefID() string

	// AppliesTo reports whether the rule applies to the user. A bad
	// reference surfaces as a configuration error.
	AppliesTo(mgr RefLookup, userName string) (bool, error)

	// Right yields the rule's right for the action. Inherit means the
	// rule does not decide this action.
	Right(mgr RefLookup, action security.Action) (security.Right, error)
}

// Rights is the bag of per-action rights carried by a concrete rule or
// used as a manager's static defaults.
type Rights struct {
	Default security.Right
	Actions map[security.Action]security.Right
}

// For looks up the right for an action, substituting the bag's default
// when the action's own right is Inherit.
func (r Rights) For(action security.Action) security.Right {
	right := r.Actions[action]
	if right == security.Inherit {
		right = r.Default
	}
	return right
}

// base carries the state shared by the concrete rule kinds: the
// identifier, an optional reference, and the rights bag.
type base struct {
	name   string
	refID  string
	rights Rights
}

func (b *base) Identifier() string { return b.name }
func (b *base) RefID() string      { return b.refID }

// Rights returns the rule's own rights bag.
func (b *base) Rights() Rights { return b.rights }

// referenced follows the rule's reference, if any. Returns nil with no
// error when the rule stands alone.
func (b *base) referenced(mgr RefLookup) (Rule, error) {
	if b.refID == "" {
		return nil, nil
	}
	ref := mgr.Permission(b.refID)
	if ref == nil {
		return nil, &security.BadReferenceError{RefID: b.refID}
	}
	return ref, nil
}

// right resolves the rule's right for an action, delegating to the
// referenced rule when one is configured.
func (b *base) right(mgr RefLookup, action security.Action) (security.Right, error) {
	ref, err := b.referenced(mgr)
	if err != nil {
		return security.Inherit, err
	}
	if ref != nil {
		return ref.Right(mgr, action)
	}
	return b.rights.For(action), nil
}
