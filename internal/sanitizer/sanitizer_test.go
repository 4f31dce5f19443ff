package sanitizer

import (
	"regexp"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

// For any input, the cleaned output contains no markup and no surrounding
// whitespace.
func TestClean_StripsAllMarkup(t *testing.T) {
	sanitizer := NewTextSanitizer()

	rapid.Check(t, func(t *rapid.T) {
		inner := rapid.StringMatching(`[a-zA-Z0-9 ]{0,20}`).Draw(t, "inner")
		tag := rapid.SampledFrom([]string{"b", "i", "script", "img", "a", "div"}).Draw(t, "tag")

		input := "<" + tag + ">" + inner + "</" + tag + ">"
		result := sanitizer.Clean(input)

		tagRegex := regexp.MustCompile(`(?i)<[a-z]`)
		if tagRegex.MatchString(result) {
			t.Fatalf("tag found in cleaned output: %s", result)
		}
		if result != strings.TrimSpace(result) {
			t.Fatalf("output should be trimmed: %q", result)
		}
	})
}

func TestClean_KnownCases(t *testing.T) {
	sanitizer := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text unchanged", "Alice Example", "Alice Example"},
		{"surrounding whitespace trimmed", "  Alice  ", "Alice"},
		{"inline markup stripped", "<b>Alice</b> Example", "Alice Example"},
		{"script content removed", `Alice<script>alert("x")</script>`, "Alice"},
		{"markup-only input becomes empty", "<br/>", ""},
		{"empty input", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizer.Clean(tt.input); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
