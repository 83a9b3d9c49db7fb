package logger

import (
	"net/url"
	"strings"
)

// Query parameters that must never reach the request log. Session cookies,
// proxy passwords and API key material all travel through the ops API.
var sensitiveParams = []string{
	"token",
	"secret",
	"password",
	"cookies",
	"key",
	"authorization",
}

// SanitizeQueryString reports whether a raw query string carries sensitive
// parameters and should be redacted from logs.
func SanitizeQueryString(rawQuery string) bool {
	if rawQuery == "" {
		return false
	}

	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		// Unparseable query strings are redacted rather than guessed at
		return true
	}

	for param := range values {
		lower := strings.ToLower(param)
		for _, sensitive := range sensitiveParams {
			if strings.Contains(lower, sensitive) {
				return true
			}
		}
	}

	return false
}
