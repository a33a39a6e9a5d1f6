package security

import (
	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService sanitizes HTML bodies parsed out of upstream
// feeds before they are merged into a signal. Government bulletins are
// mostly plain paragraphs; the policy keeps basic block and inline
// formatting plus links and drops everything else.
type ContentSanitizerService interface {
	// Sanitize returns safe HTML for the given input. Empty input yields
	// empty output; the same input always yields the same output.
	Sanitize(rawHTML string) string
}

type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer builds the sanitizer with a fixed allowlist policy:
// p, br, ul, ol, li, blockquote, strong, em, and a with href only.
// Script, style, iframe and all on* attributes are removed. Links get
// target="_blank" and rel="noopener noreferrer".
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "strong", "em",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AllowURLSchemes("http", "https")
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &contentSanitizer{policy: p}
}

// Sanitize applies the policy.
func (s *contentSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}
