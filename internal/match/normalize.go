package match

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldTransformer decomposes characters and drops combining marks, so
// "Beyoncé" and "Beyonce" normalize to the same string.
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Patterns for featuring clauses in candidate titles. Both the bracketed
// form "(feat. X)" and the bare suffix "feat. X" appear in provider data.
var (
	bracketedFeatPattern = regexp.MustCompile(`(?i)\s*[(\[]\s*(?:feat\.?|ft\.?|featuring)\s+[^)\]]*[)\]]`)
	trailingFeatPattern  = regexp.MustCompile(`(?i)\s+(?:feat\.?|ft\.?|featuring)\s+.+$`)
)

// Normalize reduces a name or title to its comparison form: combining marks
// removed, punctuation stripped, lowercased, whitespace collapsed.
func Normalize(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}

	return strings.Join(strings.Fields(b.String()), " ")
}

// StripFeaturing removes a featuring clause from a title.
func StripFeaturing(title string) string {
	title = bracketedFeatPattern.ReplaceAllString(title, "")
	title = trailingFeatPattern.ReplaceAllString(title, "")
	return strings.TrimSpace(title)
}
