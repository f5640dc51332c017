package logger

import (
	"log/slog"
	"strings"
)

// Key fragments that mark an attribute as secret.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"token",
	"authorization",
	"credential",
	"cookie",
}

const redactedValue = "***REDACTED***"

const bearerPrefix = "Bearer "

// redactSensitive masks values that look like credentials, then fully
// redacts secret-named keys.
func redactSensitive(a slog.Attr) slog.Attr {
	switch a.Value.Kind() {
	case slog.KindString:
		s := a.Value.String()
		if masked, ok := maskCredential(s); ok {
			return slog.String(a.Key, masked)
		}
		if s != "" && IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
	case slog.KindGroup:
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			out[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}
	return a
}

// maskCredential recognises Authorization header values and JWTs.
func maskCredential(s string) (string, bool) {
	if rest, ok := strings.CutPrefix(s, bearerPrefix); ok {
		return bearerPrefix + maskToken(rest), true
	}
	if looksLikeJWT(s) {
		return maskToken(s), true
	}
	return "", false
}

// looksLikeJWT matches the compact serialization of a JSON header:
// three dot-separated segments, the first starting with `{"`.
func looksLikeJWT(s string) bool {
	return strings.HasPrefix(s, "eyJ") && strings.Count(s, ".") == 2
}

// maskToken keeps the first and last three characters.
func maskToken(s string) string {
	if len(s) <= 12 {
		return "***"
	}
	return s[:3] + "..." + s[len(s)-3:]
}

// RedactString masks s if it looks like a credential.
func RedactString(s string) string {
	if masked, ok := maskCredential(s); ok {
		return masked
	}
	return s
}

// IsSensitiveKey reports whether a key name suggests secret content.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(k, pattern) {
			return true
		}
	}
	return false
}

// IsSensitiveValue reports whether a value looks like a credential.
func IsSensitiveValue(value string) bool {
	_, ok := maskCredential(value)
	return ok
}
