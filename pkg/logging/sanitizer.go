// Package logging holds helpers for keeping credentials out of log output.
package logging

import (
	"regexp"
)

// RedactedText is the replacement text for sensitive data.
const RedactedText = "[REDACTED]"

var (
	// password=xxx, pwd=xxx, pass=xxx in connection strings
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Token-style API auth headers and query params
	tokenPattern = regexp.MustCompile(`(?i)(token[= ])[A-Za-z0-9-_]{8,}`)

	// user:pass@host credentials embedded in URLs
	connStringPattern = regexp.MustCompile(`://[^:/@\s]+:[^@\s]+@[^/\s]+`)
)

// SanitizeURL strips embedded credentials and token parameters from a URL so
// it is safe to log.
func SanitizeURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	sanitized := connStringPattern.ReplaceAllString(rawURL, "://"+RedactedText+"@"+RedactedText)
	sanitized = tokenPattern.ReplaceAllString(sanitized, "${1}"+RedactedText)
	return sanitized
}

// SanitizeConnectionString removes passwords and embedded credentials from a
// database connection string before logging.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}
	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
	return sanitized
}

// SanitizeError sanitizes an error message that might carry credentials,
// such as connection failures echoing the connection string or HTTP errors
// echoing an auth header.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	sanitized := passwordPattern.ReplaceAllString(err.Error(), "${1}="+RedactedText)
	sanitized = tokenPattern.ReplaceAllString(sanitized, "${1}"+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
	return sanitized
}
