package security

import (
	"fmt"
	"strings"
)

// Right is the outcome of evaluating one permission rule against one
// action. Inherit means the rule does not decide and the next rule or
// fallback default applies.
type Right int

const (
	Inherit Right = iota
	Allow
	Deny
)

func (r Right) String() string {
	switch r {
	case Allow:
		return "Allow"
	case Deny:
		return "Deny"
	default:
		return "Inherit"
	}
}

// ParseRight converts a configuration value into a Right. The empty
// string parses as Inherit, matching an omitted setting.
func ParseRight(s string) (Right, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "inherit":
		return Inherit, nil
	case "allow":
		return Allow, nil
	case "deny":
		return Deny, nil
	default:
		return Inherit, fmt.Errorf("unknown security right %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler so rights serialize as
// their configuration names in JSON and YAML.
func (r Right) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Right) UnmarshalText(text []byte) error {
	parsed, err := ParseRight(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Action is a protected server or project operation.
type Action string

const (
	ActionSendMessage       Action = "sendMessage"
	ActionForceBuild        Action = "forceBuild" // covers force and abort
	ActionStartProject      Action = "startProject" // covers start and stop
	ActionChangeProject     Action = "changeProject"
	ActionViewSecurity      Action = "viewSecurity"
	ActionModifySecurity    Action = "modifySecurity"
	ActionViewProject       Action = "viewProject"
	ActionViewConfiguration Action = "viewConfiguration"
)

// Actions lists every protected action in a stable order.
func Actions() []Action {
	return []Action{
		ActionSendMessage,
		ActionForceBuild,
		ActionStartProject,
		ActionChangeProject,
		ActionViewSecurity,
		ActionModifySecurity,
		ActionViewProject,
		ActionViewConfiguration,
	}
}

// ValidAction reports whether a is a known protected action.
func ValidAction(a Action) bool {
	for _, known := range Actions() {
		if a == known {
			return true
		}
	}
	return false
}
