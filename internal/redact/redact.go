// Package redact scrubs credentials, connection strings, file paths and
// query text from strings before they are logged, stored as job failure
// reasons or returned to clients.
package redact

import "regexp"

// Placeholders.
const (
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
)

type rule struct {
	re          *regexp.Regexp
	replacement string
}

// rules run in order. Earlier rules remove text later rules would only
// partially match, so connection URLs go before hosts and paths before
// hosts.
var rules = []rule{
	{regexp.MustCompile(`(?:goroutine \d+|panic:)[\s\S]*?(\n\t.*)+`), "[STACK_TRACE_REDACTED]"},
	{regexp.MustCompile(`(?i)\b(?:postgres(?:ql)?|rediss?|database|db)://[^@\s]+@`), RedactedCredentialPlaceholder},
	{regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`), RedactedKeyPlaceholder},
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`), "[REDACTED_JWT]"},
	{regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9._~+/-]+=*`), "${1}[REDACTED_TOKEN]"},
	{regexp.MustCompile(`(?i)(?:password|passwd|pwd)(?:[=:\s]?['"]?)[^'"&\s]{3,}`), RedactedCredentialPlaceholder},
	{regexp.MustCompile(`(?i)(?:api[_-]?key|secret|token)(?:['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`), RedactedKeyPlaceholder},
	{regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`), "[REDACTED_EMAIL]"},
	{regexp.MustCompile(
		`(?i)(?:SELECT|INSERT|UPDATE|DELETE)[\s\w,*()]+(?:FROM|INTO|SET)(?:[\s\w,*()='"$]+)?`,
	), "[REDACTED_SQL]"},
	{regexp.MustCompile(`(/[\w.-]+){2,}`), RedactedPathPlaceholder},
	{regexp.MustCompile(
		`\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}(?::\d{1,5})?\b`,
	), "[REDACTED_HOST]"},
}

// String redacts sensitive information from s.
func String(s string) string {
	if s == "" {
		return s
	}
	for _, r := range rules {
		s = r.re.ReplaceAllString(s, r.replacement)
	}
	return s
}

// Error redacts err.Error(). A nil error yields "".
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
