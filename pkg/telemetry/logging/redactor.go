package logging

import (
	"log/slog"
	"net/url"
	"regexp"
	"strings"
)

// Mask replaces redacted values.
const Mask = "***"

var (
	// bearerPattern matches Authorization-style bearer tokens.
	bearerPattern = regexp.MustCompile(`(?i)bearer\s+[a-z0-9\-._~+/]+=*`)

	// urlPattern finds absolute http(s) URLs embedded in free text.
	urlPattern = regexp.MustCompile(`https?://[^\s"'<>]+`)

	sensitiveKeys = []string{
		"password", "passwd", "pwd",
		"secret", "token", "api_key", "apikey",
		"auth", "signature", "sig", "credential",
		"private_key",
	}
)

// Redactor masks credentials in log values: URL user-info passwords,
// sensitive query parameters, bearer tokens, and any value logged under a
// sensitive key.
type Redactor struct{}

// NewRedactor creates a Redactor.
func NewRedactor() *Redactor {
	return &Redactor{}
}

// ReplaceAttr is a slog.HandlerOptions.ReplaceAttr hook.
func (r *Redactor) ReplaceAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 {
		switch a.Key {
		case slog.TimeKey, slog.LevelKey, slog.SourceKey, slog.MessageKey:
			return a
		}
	}

	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, Mask)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, r.RedactString(a.Value.String()))
	case slog.KindAny:
		switch v := a.Value.Any().(type) {
		case *url.URL:
			if v != nil {
				return slog.String(a.Key, RedactURL(v))
			}
		case error:
			return slog.String(a.Key, r.RedactString(v.Error()))
		}
	}
	return a
}

// RedactString masks bearer tokens and URL credentials inside value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}
	if strings.Contains(value, "://") {
		value = urlPattern.ReplaceAllStringFunc(value, func(raw string) string {
			u, err := url.Parse(raw)
			if err != nil {
				return raw
			}
			if redacted, changed := redactURL(u); changed {
				return redacted
			}
			return raw
		})
	}
	return bearerPattern.ReplaceAllString(value, "Bearer "+Mask)
}

// RedactURL renders u with the user-info password and sensitive query
// parameter values masked. The input is not modified.
func RedactURL(u *url.URL) string {
	redacted, _ := redactURL(u)
	return redacted
}

// redactURL reports whether anything was masked. When nothing was, the
// URL is rendered as-is.
func redactURL(u *url.URL) (string, bool) {
	clone := *u
	changed := false

	if clone.User != nil {
		if _, hasPassword := clone.User.Password(); hasPassword {
			clone.User = url.UserPassword(clone.User.Username(), Mask)
			changed = true
		}
	}

	if clone.RawQuery != "" {
		if query, err := url.ParseQuery(clone.RawQuery); err == nil {
			masked := false
			for key := range query {
				if isSensitiveKey(key) {
					query[key] = []string{Mask}
					masked = true
				}
			}
			if masked {
				clone.RawQuery = query.Encode()
				changed = true
			}
		}
	}

	if !changed {
		return u.String(), false
	}
	// Userinfo and query encoding both escape '*'.
	return strings.ReplaceAll(clone.String(), url.QueryEscape(Mask), Mask), true
}

// isSensitiveKey reports whether a key name indicates a secret value.
func isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	for _, sensitive := range sensitiveKeys {
		if strings.Contains(lowerKey, sensitive) {
			return true
		}
	}
	return false
}
