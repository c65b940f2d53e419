// Package intent labels a query as a short lookup (name/brand/identifier) or a
// descriptive semantic query. Pure functions of the input text, no state.
package intent

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Intent is the interpretation applied to a query.
type Intent string

const (
	// Lookup means a short name/brand/identifier search.
	Lookup Intent = "lookup"
	// Semantic means a descriptive, meaning-based search.
	Semantic Intent = "semantic"
)

// rule is one step of the ordered classification chain.
type rule struct {
	name  string
	match func(q query) bool
	out   Intent
}

// query is the normalized view the rules operate on.
type query struct {
	text   string
	tokens []string
}

// rules are evaluated top-to-bottom; the first match decides. Order is part of
// the policy: the uppercase check must run before the length heuristic so
// short all-caps brands are not attributed to it.
var rules = []rule{
	{name: "short_with_uppercase", match: shortWithUppercase, out: Lookup},
	{name: "single_hangul_name", match: singleHangulName, out: Lookup},
	{name: "short_alnum_token", match: shortAlnumToken, out: Lookup},
}

// Classify labels query text. Empty or blank input defaults to Semantic.
func Classify(text string) Intent {
	q := normalize(text)
	if q.text == "" {
		return Semantic
	}
	for _, r := range rules {
		if r.match(q) {
			return r.out
		}
	}
	return Semantic
}

// normalize trims and collapses internal whitespace.
func normalize(text string) query {
	tokens := strings.Fields(text)
	return query{text: strings.Join(tokens, " "), tokens: tokens}
}

// shortWithUppercase: at most two tokens containing an uppercase rune.
func shortWithUppercase(q query) bool {
	if len(q.tokens) > 2 {
		return false
	}
	return strings.IndexFunc(q.text, unicode.IsUpper) >= 0
}

// singleHangulName: exactly one contiguous Hangul run of 2-4 syllables and no
// embedded whitespace. Catches bare Korean personal names.
func singleHangulName(q query) bool {
	if len(q.tokens) != 1 {
		return false
	}
	runs := hangulRuns(q.text)
	if len(runs) != 1 {
		return false
	}
	return runs[0] >= 2 && runs[0] <= 4
}

// shortAlnumToken: at most two tokens, at most six runes, and mostly ASCII
// alphanumeric content.
func shortAlnumToken(q query) bool {
	if len(q.tokens) > 2 {
		return false
	}
	total := utf8.RuneCountInString(q.text)
	if total == 0 || total > 6 {
		return false
	}
	alnum := 0
	for _, r := range q.text {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			alnum++
		}
	}
	return float64(alnum)/float64(total) >= 0.7
}

// hangulRuns returns the rune lengths of contiguous Hangul syllable runs.
func hangulRuns(s string) []int {
	var runs []int
	cur := 0
	for _, r := range s {
		if unicode.Is(unicode.Hangul, r) {
			cur++
			continue
		}
		if cur > 0 {
			runs = append(runs, cur)
			cur = 0
		}
	}
	if cur > 0 {
		runs = append(runs, cur)
	}
	return runs
}
