// internal/textutil/sanitize.go
package textutil

import (
	"regexp"
	"strings"
)

// Sanitizer converts provider markdown/HTML answers into normalized prose.
// The zero value is not usable; use NewSanitizer or the package-level Sanitize.
type Sanitizer struct {
	// PreserveLists keeps list items with a normalized "- " bullet. When false
	// the bullet markers are dropped entirely.
	PreserveLists bool
	// MaxBlankLines caps consecutive blank lines in the output.
	MaxBlankLines int
}

// NewSanitizer returns a sanitizer with the default settings used by the
// enrichment pipeline.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		PreserveLists: true,
		MaxBlankLines: 1,
	}
}

// Sanitize runs the default sanitizer.
func Sanitize(text string) string {
	return NewSanitizer().Sanitize(text)
}

var (
	markdownLinkRe   = regexp.MustCompile(`\[([^\]]*)\]\(([^)\s]*)\)`)
	codeFenceLineRe  = regexp.MustCompile("(?m)^[ \t]*```[^\n]*\n?")
	headingRe        = regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]+`)
	boldItalicRe     = regexp.MustCompile(`\*{1,3}([^*\n]+)\*{1,3}`)
	underscoreEmphRe = regexp.MustCompile(`_{1,3}([^_\n]+)_{1,3}`)
	bulletRe         = regexp.MustCompile(`(?m)^[ \t]*(?:[*•\-]|\d+\.)[ \t]+`)
	backslashEscRe   = regexp.MustCompile("\\\\([\\\\`*_{}\\[\\]()#+.!>|~-])")
	htmlTagRe        = regexp.MustCompile(`<[^>\n]+>`)
	sentenceSpaceRe  = regexp.MustCompile(`([.?!;:])([^\s])`)
	spaceRunRe       = regexp.MustCompile(`[ \t]+`)
)

var htmlEntities = [][2]string{
	{"&amp;", "&"},
	{"&lt;", "<"},
	{"&gt;", ">"},
	{"&quot;", "\""},
	{"&#39;", "'"},
	{"&apos;", "'"},
	{"&nbsp;", " "},
	{"&ndash;", "–"},
	{"&mdash;", "—"},
	{"&hellip;", "…"},
}

// Sanitize applies the normalization pipeline in a fixed order. The output is
// idempotent: Sanitize(Sanitize(x)) == Sanitize(x).
func (s *Sanitizer) Sanitize(text string) string {
	if text == "" {
		return ""
	}

	// 1. Unescape literal \n sequences into real newlines
	out := strings.ReplaceAll(text, `\n`, "\n")

	// 2. Rewrite markdown links to "text (url)"
	out = markdownLinkRe.ReplaceAllString(out, "$1 ($2)")

	// 3. Strip code fences and inline code markers, keeping inner content
	out = codeFenceLineRe.ReplaceAllString(out, "")
	out = strings.ReplaceAll(out, "`", "")

	// 4. Remove heading markers at line starts
	out = headingRe.ReplaceAllString(out, "")

	// 5. Remove backslash escapes. This runs before emphasis stripping so the
	// output stays stable: an escaped marker unescapes to a plain marker,
	// which the next steps then consume in the same pass.
	out = backslashEscRe.ReplaceAllString(out, "$1")

	// 6. Strip emphasis markers, keeping inner text
	out = boldItalicRe.ReplaceAllString(out, "$1")
	out = underscoreEmphRe.ReplaceAllString(out, "$1")

	// 7. Normalize list bullets
	if s.PreserveLists {
		out = bulletRe.ReplaceAllString(out, "- ")
	} else {
		out = bulletRe.ReplaceAllString(out, "")
	}

	// 8. Strip HTML tags
	out = htmlTagRe.ReplaceAllString(out, "")

	// 9. Decode common named HTML entities. Looped to a fixpoint so that
	// double-encoded input still sanitizes idempotently. Decoding can reveal
	// entity-encoded tags, so tags are stripped once more afterwards.
	out = decodeEntities(out)
	out = htmlTagRe.ReplaceAllString(out, "")

	// 10. Ensure a single space after sentence punctuation before non-newline content
	out = sentenceSpaceRe.ReplaceAllString(out, "$1 $2")

	// 11. Collapse whitespace runs, cap blank lines, trim lines and document
	out = spaceRunRe.ReplaceAllString(out, " ")
	out = s.collapseBlankLines(out)

	return strings.TrimSpace(out)
}

func decodeEntities(text string) string {
	for i := 0; i < 5; i++ {
		decoded := text
		for _, pair := range htmlEntities {
			decoded = strings.ReplaceAll(decoded, pair[0], pair[1])
		}
		if decoded == text {
			break
		}
		text = decoded
	}
	return text
}

func (s *Sanitizer) collapseBlankLines(text string) string {
	lines := strings.Split(text, "\n")
	maxBlank := s.MaxBlankLines
	if maxBlank < 0 {
		maxBlank = 0
	}

	var result []string
	blankRun := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			blankRun++
			if blankRun > maxBlank {
				continue
			}
			result = append(result, "")
			continue
		}
		blankRun = 0
		result = append(result, trimmed)
	}

	return strings.Join(result, "\n")
}
