package permission

import (
	"strings"

	"github.com/ccnet/buildgate/internal/security"
)

// User is a permission rule scoped to a single user name.
type User struct {
	base
}

// NewUser builds a user-scoped rule. Name matching is exact and
// case-insensitive.
func NewUser(name, refID string, rights Rights) *User {
	return &User{base: base{name: name, refID: refID, rights: rights}}
}

// AppliesTo reports whether userName is the rule's configured user.
// When the rule references another rule, applicability is delegated.
func (u *User) AppliesTo(mgr RefLookup, userName string) (bool, error) {
	ref, err := u.referenced(mgr)
	if err != nil {
		return false, err
	}
	if ref != nil {
		return ref.AppliesTo(mgr, userName)
	}
	return strings.EqualFold(u.name, userName), nil
}

// Right yields the rule's right for an action.
func (u *User) Right(mgr RefLookup, action security.Action) (security.Right, error) {
	return u.right(mgr, action)
}
