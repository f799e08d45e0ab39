package security

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors shared across the security subsystem.
var (
	// ErrSessionInvalid marks a request carrying a missing or expired
	// session token where a valid one is required.
	ErrSessionInvalid = errors.New("session is not valid")

	// ErrPermissionDenied marks an authorization refusal. The caller
	// decides whether that is fatal to the request.
	ErrPermissionDenied = errors.New("permission denied")
)

// BadReferenceError indicates a permission setting references an
// identifier that does not exist. This is a configuration fault, never
// a silent allow or deny.
type BadReferenceError struct {
	RefID string
}

func (e *BadReferenceError) Error() string {
	return fmt.Sprintf("reference to unknown permission %q", e.RefID)
}

// CircularReferenceError indicates a permission reference chain loops
// back on itself.
type CircularReferenceError struct {
	Chain []string
}

func (e *CircularReferenceError) Error() string {
	return fmt.Sprintf("circular permission reference: %s", strings.Join(e.Chain, " -> "))
}

// NotSupportedError indicates an operation the configured security
// manager does not implement, such as password management on a manager
// without a writable user store.
type NotSupportedError struct {
	Operation string
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("%s is not supported by this security manager", e.Operation)
}

// IsConfigError reports whether err belongs to the configuration-fault
// class: a broken deployment rather than a runtime user error.
func IsConfigError(err error) bool {
	var badRef *BadReferenceError
	var circular *CircularReferenceError
	var unsupported *NotSupportedError
	return errors.As(err, &badRef) || errors.As(err, &circular) || errors.As(err, &unsupported)
}
