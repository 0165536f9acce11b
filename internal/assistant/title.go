package assistant

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MinTitleScore is the lowest score accepted as a title match.
const MinTitleScore = 30

// TitleMatch is the best catalog entry for a free-text query.
type TitleMatch struct {
	Entry CatalogEntry
	Score int
}

var (
	titleQuotes = regexp.MustCompile(`['’]`)
	titlePunct  = regexp.MustCompile(`[^a-z0-9]+`)
)

// Normalize lowercases s, folds accents, drops apostrophes and turns any other
// run of non-alphanumerics into a single space, so "Amélie!" and "amelie"
// compare equal.
func Normalize(s string) string {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(fold, s); err == nil {
		s = folded
	}
	s = titleQuotes.ReplaceAllString(strings.ToLower(s), "")
	return strings.TrimSpace(titlePunct.ReplaceAllString(s, " "))
}

// ResolveTitle returns the catalog entry that best matches query. Ties go to
// the entry listed first; anything under MinTitleScore is no match.
func ResolveTitle(query string, catalog []CatalogEntry) (TitleMatch, bool) {
	q := Normalize(query)
	if q == "" {
		return TitleMatch{}, false
	}
	var best TitleMatch
	found := false
	for _, e := range catalog {
		c := Normalize(e.Title)
		if c == "" {
			continue
		}
		s := titleScore(q, c)
		if !found || s > best.Score {
			best = TitleMatch{Entry: e, Score: s}
			found = true
		}
	}
	if !found || best.Score < MinTitleScore {
		return TitleMatch{}, false
	}
	return best, true
}

func titleScore(q, c string) int {
	switch {
	case q == c:
		return 100
	case strings.Contains(c, q):
		return 90
	case strings.Contains(q, c):
		return 80
	case strings.HasPrefix(c, q):
		return 70
	}
	n := 0
	for _, tok := range strings.Fields(q) {
		if strings.Contains(c, tok) {
			n++
		}
	}
	return 10 * n
}
