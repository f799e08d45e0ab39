package permission

import (
	"strings"

	"github.com/ccnet/buildgate/internal/security"
)

// Role is a permission rule that applies to an explicit member list.
type Role struct {
	base
	members []string
}

// NewRole builds a role rule. Member matching is exact and
// case-insensitive.
func NewRole(name string, members []string, refID string, rights Rights) *Role {
	return &Role{
		base:    base{name: name, refID: refID, rights: rights},
		members: members,
	}
}

// Members returns the configured member list.
func (r *Role) Members() []string { return r.members }

// AppliesTo reports whether userName is a member of the role. When the
// role references another rule, applicability is the referenced rule's.
func (r *Role) AppliesTo(mgr RefLookup, userName string) (bool, error) {
	ref, err := r.referenced(mgr)
	if err != nil {
		return false, err
	}
	if ref != nil {
		return ref.AppliesTo(mgr, userName)
	}

	for _, member := range r.members {
		if strings.EqualFold(member, userName) {
			return true, nil
		}
	}
	return false, nil
}

// Right yields the role's right for an action.
func (r *Role) Right(mgr RefLookup, action security.Action) (security.Right, error) {
	return r.right(mgr, action)
}
