package catalog

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	glyphs     = strings.NewReplacer("™", "", "®", "", "©", "")
	separators = strings.NewReplacer(":", " ", "-", " ", "—", " ", "_", " ")

	reTrailingParen = regexp.MustCompile(`\s*\(.*\)\s*$`)
	reTrailingDash  = regexp.MustCompile(`\s+[-–—]\s+.*$`)
)

// Normalize folds a presence or catalog name to its lookup key: trimmed,
// lowercased, trademark glyphs dropped, separators turned into spaces and
// runs of whitespace collapsed.
func Normalize(s string) string {
	// a Caser keeps state, so one per call
	s = cases.Lower(language.Und).String(strings.TrimSpace(s))
	s = glyphs.Replace(s)
	s = separators.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// simplify drops a trailing " (…)" or " - …" from a raw name, e.g.
// "Valheim (Beta)" or "Rust - Staging Branch".
func simplify(raw string) string {
	s := reTrailingParen.ReplaceAllString(strings.TrimSpace(raw), "")
	s = reTrailingDash.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
