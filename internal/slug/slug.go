// Package slug derives the stable d-tag identifiers used to address mutable
// events. Identical (title, author, version) inputs always yield identical
// slugs, which is what lets an author supersede an earlier event at the same
// address.
package slug

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxLength bounds every slug produced by this package.
const MaxLength = 75

// Reserved infixes separating the title from the author and version parts.
const (
	AuthorInfix  = "-by-"
	VersionInfix = "-v-"
)

// Normalize lowercases s, folds accented letters to ASCII, turns whitespace,
// underscores and slashes into hyphens and drops every other character that
// is not a letter, digit, '.' or '-'. Runs of hyphens collapse to one and
// leading/trailing hyphens are trimmed. Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	lastHyphen := true // suppresses a leading hyphen
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
			lastHyphen = false
		case r == '-' || r == '_' || r == '/' || unicode.IsSpace(r):
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// Slug returns normalize(title) followed by "-by-<author>" and
// "-v-<version>" for each non-empty part, bounded to MaxLength. When the
// result is too long the title part is shortened first so the author and
// version stay addressable.
func Slug(title, author, version string) string {
	base := Normalize(title)

	var suffix string
	if a := Normalize(author); a != "" {
		suffix += AuthorInfix + a
	}
	if v := Normalize(version); v != "" {
		suffix += VersionInfix + v
	}

	if len(base)+len(suffix) <= MaxLength {
		return strings.TrimLeft(base+suffix, "-")
	}

	room := MaxLength - len(suffix)
	if room > 0 {
		base = strings.TrimRight(base[:min(room, len(base))], "-")
		return strings.TrimLeft(base+suffix, "-")
	}
	return strings.Trim((base + suffix)[:MaxLength], "-")
}

// Section returns the slug of the number-th section of a document, e.g.
// "book-intro-1-by-jane-v-1".
func Section(docTitle, sectionTitle string, number int, author, version string) string {
	return Slug(docTitle+" "+sectionTitle+" "+strconv.Itoa(number), author, version)
}
