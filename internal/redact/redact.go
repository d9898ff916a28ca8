// Package redact strips credentials, tokens, SQL values and other sensitive
// fragments from strings before they are logged. Error responses never carry
// raw error text; redaction guards the logs.
package redact

import "regexp"

// Placeholders substituted for redacted fragments.
const (
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedJWTPlaceholder        = "[REDACTED_JWT]"
	RedactedHashPlaceholder       = "[REDACTED_HASH]"
	RedactedInvitePlaceholder     = "[REDACTED_INVITE]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedStackPlaceholder      = "[STACK_TRACE_REDACTED]"
)

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// rules run in order. Token-shaped patterns go before the key=value
// patterns so a JWT after "token:" is redacted as a JWT.
var rules = []rule{
	{regexp.MustCompile(`(?:goroutine \d+ \[|panic: )[\s\S]*`), RedactedStackPlaceholder},
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`), RedactedJWTPlaceholder},
	// Postgres DSNs and Redis URLs: everything up to and including the '@'.
	{regexp.MustCompile(`(?i)\b(?:postgres(?:ql)?|rediss?)://[^@\s]+@`), RedactedCredentialPlaceholder},
	{regexp.MustCompile(`\$2[aby]?\$\d{2}\$[./A-Za-z0-9]{53}`), RedactedHashPlaceholder},
	{regexp.MustCompile(`(?i)\b(?:password|passwd|pwd)\s*[=:]\s*['"]?[^'"&\s]+['"]?`), RedactedCredentialPlaceholder},
	{regexp.MustCompile(`(?i)\b(?:api[_-]?key|jwt_secret|secret|token)\s*[=:]\s*['"]?[A-Za-z0-9_\-.~+/]{8,}['"]?`), RedactedKeyPlaceholder},
	// Invite tokens are ULIDs: 26 characters of Crockford base32.
	{regexp.MustCompile(`\b[0-9A-HJKMNP-TV-Z]{26}\b`), RedactedInvitePlaceholder},
	{regexp.MustCompile(`(?i)\bVALUES\s*\([^)]*\)`), "VALUES [SQL_VALUES_REDACTED]"},
	{regexp.MustCompile(`(?i)\bWHERE\b[^\n]*`), "WHERE [SQL_WHERE_REDACTED]"},
	{regexp.MustCompile(`(?:/[\w.-]+){3,}`), RedactedPathPlaceholder},
}

// String redacts sensitive information from the input string
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range rules {
		result = r.pattern.ReplaceAllLiteralString(result, r.replacement)
	}
	return result
}

// Error redacts sensitive information from an error's Error() output
func Error(err error) string {
	if err == nil {
		return ""
	}

	return String(err.Error())
}
