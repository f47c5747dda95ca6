package pipeline

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

// codeClassPattern accepts language-* tokens and the math markers on <code>.
var codeClassPattern = regexp.MustCompile(`^(?:(?:language-[\w+#.-]+|` + MathInlineClass + `|` + MathDisplayClass + `)(?:\s+|$))+$`)

// HTMLSanitizer defines the contract for HTML sanitization.
type HTMLSanitizer interface {
	Sanitize(html []byte) []byte
}

// Sanitizer strips markup outside a GitHub-like safe subset.
// A Sanitizer is safe for concurrent use.
type Sanitizer struct {
	policy *bluemonday.Policy
}

// Compile-time interface check.
var _ HTMLSanitizer = (*Sanitizer)(nil)

// NewSanitizer creates a Sanitizer with the default policy.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{policy: NewPolicy()}
}

// NewPolicy returns the safe-subset policy extended so code elements keep
// language-* and math classes. The base policy already keeps element ids.
func NewPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()

	// Task list checkboxes
	p.AllowAttrs("type").Matching(regexp.MustCompile(`^checkbox$`)).OnElements("input")
	p.AllowAttrs("checked", "disabled").OnElements("input")

	p.AllowAttrs("class").Matching(codeClassPattern).OnElements("code")
	return p
}

// Sanitize returns html with disallowed elements and attributes removed.
func (s *Sanitizer) Sanitize(html []byte) []byte {
	return s.policy.SanitizeBytes(html)
}
