package security

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// wildcardRun is what a single * expands to: zero or more user-name
// characters. User names are restricted to this alphabet.
const wildcardRun = "[A-Za-z0-9_.@-]*"

// HasWildcard reports whether an identifier contains a wildcard.
func HasWildcard(identifier string) bool {
	return strings.Contains(identifier, "*")
}

// Matcher matches candidate user names against a wildcard identifier.
// Matching is case-insensitive and anchored to the full candidate.
type Matcher struct {
	pattern string
	re      *regexp.Regexp
}

// NewMatcher compiles a wildcard identifier into a Matcher.
func NewMatcher(pattern string) (*Matcher, error) {
	var b strings.Builder
	b.WriteString("(?i)^")
	for _, part := range strings.Split(pattern, "*") {
		b.WriteString(regexp.QuoteMeta(part))
		b.WriteString(wildcardRun)
	}
	expr := strings.TrimSuffix(b.String(), wildcardRun) + "$"

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile wildcard %q: %w", pattern, err)
	}
	return &Matcher{pattern: pattern, re: re}, nil
}

// Pattern returns the source wildcard identifier.
func (m *Matcher) Pattern() string { return m.pattern }

// Match reports whether candidate matches the wildcard identifier.
func (m *Matcher) Match(candidate string) bool {
	return m.re.MatchString(candidate)
}

var matcherCache sync.Map // pattern -> *Matcher

// MatchWildcard is a convenience for one-off matches. Compiled matchers
// are cached since the same identifiers recur on every login.
func MatchWildcard(pattern, candidate string) bool {
	if cached, ok := matcherCache.Load(pattern); ok {
		return cached.(*Matcher).Match(candidate)
	}
	m, err := NewMatcher(pattern)
	if err != nil {
		return false
	}
	matcherCache.Store(pattern, m)
	return m.Match(candidate)
}
