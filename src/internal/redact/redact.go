// FILE: src/internal/redact/redact.go
package redact

import (
	"regexp"

	"github.com/lixenwraith/log"
)

// Redactor is a pure text transform applied to record messages and context
// values before commit
type Redactor interface {
	Redact(s string) string
}

// Func adapts a plain function to the Redactor interface
type Func func(string) string

func (f Func) Redact(s string) string { return f(s) }

type pattern struct {
	re          *regexp.Regexp
	replacement string
}

// RegexRedactor masks common PII and credential shapes
type RegexRedactor struct {
	patterns []pattern
	logger   *log.Logger
}

// NewRegexRedactor creates a redactor with the built-in pattern set
func NewRegexRedactor(logger *log.Logger) *RegexRedactor {
	r := &RegexRedactor{
		patterns: []pattern{
			{regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`), "[email]"},
			{regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._~+/=-]{8,}`), "bearer [token]"},
			{regexp.MustCompile(`(?i)(password|passwd|secret|api[_-]?key)\s*[=:]\s*\S+`), "$1=[redacted]"},
			{regexp.MustCompile(`\b\d{13,19}\b`), "[number]"}, // card-length digit runs
			{regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`), "[aws-key]"},
		},
		logger: logger,
	}

	logger.Debug("msg", "Redactor initialized",
		"component", "redact",
		"pattern_count", len(r.patterns))

	return r
}

// Redact applies every pattern in order
func (r *RegexRedactor) Redact(s string) string {
	for _, p := range r.patterns {
		s = p.re.ReplaceAllString(s, p.replacement)
	}
	return s
}
