// Package redact scrubs credential material from text destined for
// audit trails and log output. Audit records may carry more detail
// than is ever returned to a caller, but never a secret.
package redact

import (
	"regexp"
)

// placeholder replaces scrubbed values.
const placeholder = "[REDACTED]"

// Patterns for secrets that could leak through an audit message or a
// diagnostic string built from credentials.
var sensitivePatterns = []*regexp.Regexp{
	// password fields in key=value or key: value form
	regexp.MustCompile(`(?i)(password["'\s:=]+)\S+`),
	// bearer tokens
	regexp.MustCompile(`(?i)(bearer\s+)[a-zA-Z0-9\-_.~+/]+=*`),
	// generic API keys
	regexp.MustCompile(`(?i)(api[_-]?key["'\s:=]+)[a-zA-Z0-9\-_.]{16,}`),
	// bcrypt hashes
	regexp.MustCompile(`\$2[aby]\$\d\d\$[./A-Za-z0-9]{53}`),
}

// Scrub replaces secret-bearing substrings with [REDACTED], keeping
// the field label where possible for readability.
func Scrub(text string) string {
	result := text
	for _, pattern := range sensitivePatterns {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			loc := pattern.FindStringSubmatchIndex(match)
			if len(loc) >= 4 && loc[2] >= 0 {
				return match[loc[2]:loc[3]] + placeholder
			}
			return placeholder
		})
	}
	return result
}
