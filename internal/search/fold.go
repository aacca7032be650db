// Package search provides the accent-insensitive text matching used by the
// admin request listing. It is small and dependency-light:
//
//   - Fold lowercases and strips diacritics ("Informação" -> "informacao")
//   - Document builds the folded search text stored alongside each request
//   - Terms splits a query into folded tokens, dropping Portuguese stop words
//   - Rank orders candidates by Jaccard similarity with the query
//
// No logging in the library; callers decide how/what to log.
package search

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var wordRE = regexp.MustCompile(`[\p{L}\p{N}]+(?:[-./][\p{L}\p{N}]+)*`)

// stopwords are dropped from queries; they would match nearly every request.
var stopwords = map[string]struct{}{
	"a": {}, "o": {}, "as": {}, "os": {}, "de": {}, "da": {}, "do": {}, "das": {}, "dos": {},
	"e": {}, "em": {}, "no": {}, "na": {}, "nos": {}, "nas": {}, "um": {}, "uma": {},
	"para": {}, "por": {}, "com": {}, "que": {}, "ao": {}, "aos": {},
}

// Fold lowercases s, removes combining marks and collapses whitespace.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}

// Document folds and joins the given fields into a single searchable string.
func Document(fields ...string) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = Fold(f); f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, " ")
}

// Terms returns the distinct folded tokens of q in order of appearance,
// without stop words.
func Terms(q string) []string {
	words := wordRE.FindAllString(Fold(q), -1)
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if _, stop := stopwords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
