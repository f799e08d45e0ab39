package permission

import (
	"strings"

	"github.com/ccnet/buildgate/internal/security"
)

// Resolve walks rules in configured order and returns the first
// definitive right yielded by a rule that applies to the user. Order is
// semantically significant: this is not a priority or last-writer-wins
// scheme. Returns Inherit when no rule decides, leaving the caller to
// apply its fallback default.
func Resolve(mgr RefLookup, rules []Rule, userName string, action security.Action) (security.Right, error) {
	for _, rule := range rules {
		applies, err := rule.AppliesTo(mgr, userName)
		if err != nil {
			return security.Inherit, err
		}
		if !applies {
			continue
		}

		right, err := rule.Right(mgr, action)
		if err != nil {
			return security.Inherit, err
		}
		if right != security.Inherit {
			return right, nil
		}
	}
	return security.Inherit, nil
}

// ValidateRefs eagerly checks every rule's reference chain for missing
// targets and cycles. Run at configuration load time so broken
// references fail the deployment instead of a later permission check.
func ValidateRefs(mgr RefLookup, rules []Rule) error {
	for _, rule := range rules {
		if err := walkRefs(mgr, rule); err != nil {
			return err
		}
	}
	return nil
}

func walkRefs(mgr RefLookup, rule Rule) error {
	seen := map[string]bool{strings.ToLower(rule.Identifier()): true}
	chain := []string{rule.Identifier()}

	for rule.RefID() != "" {
		refID := rule.RefID()
		chain = append(chain, refID)
		if seen[strings.ToLower(refID)] {
			return &security.CircularReferenceError{Chain: chain}
		}
		seen[strings.ToLower(refID)] = true

		next := mgr.Permission(refID)
		if next == nil {
			return &security.BadReferenceError{RefID: refID}
		}
		rule = next
	}
	return nil
}
