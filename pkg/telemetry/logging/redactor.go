package logging

import (
	"regexp"
	"strings"
	"sync"

	"chatrelay/gateway/pkg/config"
)

// Redactor scrubs credentials and other secrets from log output.
// It is safe for concurrent use.
type Redactor struct {
	mu       sync.RWMutex
	patterns []*redactPattern
	literals []string
}

type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Built-in pattern names.
const (
	PatternAPIKey      = "api_key"
	PatternBearerToken = "bearer_token"
	PatternPassword    = "password"
	PatternEmail       = "email"
)

// Redacted replaces registered literal secrets.
const Redacted = "***"

// NewRedactor creates a Redactor with the built-in patterns plus custom ones.
// Invalid custom patterns are skipped; config validation reports them.
func NewRedactor(custom []config.RedactPattern) *Redactor {
	r := &Redactor{}

	r.add(PatternAPIKey, `(sk-[a-zA-Z0-9]+|api[-_]?key[-_:=]\s*[a-zA-Z0-9]+)`, "sk-***")
	r.add(PatternBearerToken, `Bearer\s+[a-zA-Z0-9\-._~+/]+=*`, "Bearer ***")
	r.add(PatternPassword, `(password|passwd|pwd)[:=]\s*[^\s]+`, "$1: ***")
	r.add(PatternEmail, `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`, "***@***")

	for _, p := range custom {
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			continue
		}
		r.patterns = append(r.patterns, &redactPattern{name: p.Name, regex: re, replacement: p.Replacement})
	}

	return r
}

func (r *Redactor) add(name, expr, replacement string) {
	r.patterns = append(r.patterns, &redactPattern{
		name:        name,
		regex:       regexp.MustCompile(expr),
		replacement: replacement,
	})
}

// AddLiteral registers an exact secret, such as the upstream credential,
// that must never appear in output regardless of its shape.
func (r *Redactor) AddLiteral(secret string) {
	if len(secret) < 4 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.literals {
		if s == secret {
			return
		}
	}
	r.literals = append(r.literals, secret)
}

// RedactString redacts secrets from a string value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}

	r.mu.RLock()
	for _, s := range r.literals {
		value = strings.ReplaceAll(value, s, Redacted)
	}
	r.mu.RUnlock()

	for _, p := range r.patterns {
		value = p.regex.ReplaceAllString(value, p.replacement)
	}
	return value
}

// IsSensitiveKey reports whether a log attribute key names secret material.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range []string{"password", "secret", "token", "api_key", "apikey", "authorization", "credential"} {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}
