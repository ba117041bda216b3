// internal/textutil/match.go
package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var quoteReplacer = strings.NewReplacer(
	"‘", "'", // left single quote
	"’", "'", // right single quote
	"“", `"`, // left double quote
	"”", `"`, // right double quote
)

// NormalizeForMatching prepares text for brand matching: NFD decomposition,
// combining-mark removal, and curly-to-straight quote substitution. Matching is
// invariant under these transforms on either operand.
func NormalizeForMatching(text string) string {
	decomposed := norm.NFD.String(text)

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}

	return quoteReplacer.Replace(b.String())
}

// BrandPattern compiles a case-insensitive word-boundary pattern for a brand
// name, applied against NormalizeForMatching output.
func BrandPattern(brand string) (*regexp.Regexp, error) {
	normalized := NormalizeForMatching(brand)
	return regexp.Compile(`(?i)\b` + regexp.QuoteMeta(normalized) + `\b`)
}

// CountBrandMentions counts word-boundary occurrences of brand in text. Both
// operands are normalized before matching. Returns 0 for empty or
// uncompilable brand names.
func CountBrandMentions(text, brand string) int {
	if strings.TrimSpace(brand) == "" {
		return 0
	}
	pattern, err := BrandPattern(brand)
	if err != nil {
		return 0
	}
	return len(pattern.FindAllStringIndex(NormalizeForMatching(text), -1))
}
