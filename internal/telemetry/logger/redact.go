package logger

import (
	"log/slog"
	"strings"
)

// Attribute names whose values must never reach the log output. Stored
// values are opaque user data and are logged by length only.
var sensitiveKeyPatterns = []string{
	"password",
	"secret",
	"credential",
	"auth",
	"value",
}

const redactedValue = "***REDACTED***"

func redactSensitive(a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		attrs := a.Value.Group()
		newAttrs := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			newAttrs[i] = redactSensitive(attr)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(newAttrs...)}
	}

	if !IsSensitiveKey(a.Key) {
		return a
	}

	switch a.Value.Kind() {
	case slog.KindString:
		if a.Value.String() == "" {
			return a
		}
		return slog.String(a.Key, redactedValue)
	case slog.KindAny:
		if b, ok := a.Value.Any().([]byte); ok && len(b) == 0 {
			return a
		}
		return slog.String(a.Key, redactedValue)
	}
	return a
}

// IsSensitiveKey checks if a key name suggests sensitive content.
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}
