// Package sanitizer strips markup from user-supplied text before it is
// persisted or echoed back in responses.
package sanitizer

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer removes all HTML from free-text input such as display names
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer creates a sanitizer with the strict policy (no elements
// allowed at all)
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Clean strips markup and collapses surrounding whitespace
func (s *TextSanitizer) Clean(input string) string {
	return strings.TrimSpace(s.policy.Sanitize(input))
}
