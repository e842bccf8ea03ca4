package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

// Redactor masks secrets in log attributes.
type Redactor struct {
	keys     []string
	patterns []*redactPattern
}

type redactPattern struct {
	regex       *regexp.Regexp
	replacement string
}

// NewRedactor creates a Redactor with the built-in secret patterns.
func NewRedactor() *Redactor {
	return &Redactor{
		keys: []string{
			"api_key", "apikey", "authorization", "token", "secret", "password", "passwd",
		},
		patterns: []*redactPattern{
			{regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-._~+/]+=*`), "Bearer ***"},
			{regexp.MustCompile(`sk-[a-zA-Z0-9]{8,}`), "sk-***"},
		},
	}
}

// IsSensitiveKey reports whether values under key must be hidden.
func (r *Redactor) IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, k := range r.keys {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// RedactString masks secrets embedded in free text.
func (r *Redactor) RedactString(value string) string {
	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// ReplaceAttr is a slog.HandlerOptions.ReplaceAttr function.
func (r *Redactor) ReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		return a
	}
	if r.IsSensitiveKey(a.Key) {
		return slog.String(a.Key, RedactValue(a.Value.String()))
	}
	if a.Value.Kind() == slog.KindString {
		return slog.String(a.Key, r.RedactString(a.Value.String()))
	}
	return a
}

// RedactValue hides a secret, keeping a short prefix for recognition.
func RedactValue(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 8 {
		return "***"
	}
	return v[:4] + "***"
}
