// Package secret holds the key redaction helpers. API keys must never
// appear whole in errors, logs, or debug output; everything user-visible
// goes through one of these.
package secret

import "strings"

// RedactTail renders a key as "***<last4>". Keys shorter than four bytes
// keep whatever tail they have.
func RedactTail(key string) string {
	if len(key) <= 4 {
		return "***" + key
	}
	return "***" + key[len(key)-4:]
}

// MaskToken elides a bare credential for debug output: first six and
// last four characters when long enough, "****" when too short to mask
// safely.
func MaskToken(token string) string {
	if len(token) <= 10 {
		return "****"
	}
	return token[:6] + "****" + token[len(token)-4:]
}

// MaskAuthorization masks the token in an Authorization header value for
// debug output. Non-Bearer values are masked entirely.
func MaskAuthorization(value string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(value, prefix) {
		return "****"
	}
	return prefix + MaskToken(value[len(prefix):])
}
