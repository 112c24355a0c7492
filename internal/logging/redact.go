package logging

import (
	"regexp"
)

// Patterns for secrets that should be redacted.
var secretPatterns = []*regexp.Regexp{
	// AWS access key ids
	regexp.MustCompile(`(AKIA[A-Z0-9]{16})`),

	// Bearer tokens
	regexp.MustCompile(`(?i)bearer\s+([a-zA-Z0-9._-]{20,})`),

	// JWTs
	regexp.MustCompile(`(eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+)`),

	// Generic long base64/hex strings assigned to secret-ish keys
	regexp.MustCompile(`(?i)(key|token|secret|password|auth)[=:]["']?([a-zA-Z0-9+/=_-]{32,})["']?`),
}

// RedactedValue is the replacement for sensitive values.
const RedactedValue = "[REDACTED]"

// Redact replaces sensitive information in a string.
func Redact(s string) string {
	result := s

	// Apply pattern-based redaction
	for _, pattern := range secretPatterns {
		result = pattern.ReplaceAllString(result, RedactedValue)
	}

	return result
}

