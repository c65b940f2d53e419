// Package visual decides whether a query should invoke the visual-retrieval
// channel, and how deeply. Analysis is a pure function of the query text:
// identical input always yields an identical result.
package visual

import (
	"sort"
	"strings"
	"unicode"
)

// Mode is the visual-channel invocation depth.
type Mode string

const (
	// ModeRecall authorizes broad first-pass visual retrieval.
	ModeRecall Mode = "recall"
	// ModeRerank authorizes visual scores only for re-scoring candidates.
	ModeRerank Mode = "rerank"
	// ModeSkip leaves the visual channel uninvoked.
	ModeSkip Mode = "skip"
)

// recallThreshold is the confidence at which a visual-only query graduates
// from rerank to recall, and a mixed query from skip to rerank.
const recallThreshold = 0.5

// Analysis is the routing decision for one query.
type Analysis struct {
	HasVisualIntent    bool     `json:"has_visual_intent"`
	HasSpeechIntent    bool     `json:"has_speech_intent"`
	SuggestedMode      Mode     `json:"suggested_mode"`
	Confidence         float64  `json:"confidence"`
	MatchedVisualTerms []string `json:"matched_visual_terms,omitempty"`
	MatchedSpeechTerms []string `json:"matched_speech_terms,omitempty"`
}

// signals feed the mode decision: intent flags plus the strength of the
// visual evidence alone, independent of any speech matches.
type signals struct {
	visual, speech bool
	visualConf     float64
}

// modeRule is one step of the ordered mode-decision chain.
type modeRule struct {
	name string
	when func(s signals) bool
	mode Mode
}

// modeRules are evaluated top-to-bottom after matching; the first hit decides.
// With speech in play the visual channel is never worth a broad first pass:
// a mixed signal yields rerank at best, never recall.
var modeRules = []modeRule{
	{"speech_dominates", func(s signals) bool { return s.speech && (!s.visual || s.visualConf < recallThreshold) }, ModeSkip},
	{"visual_strong", func(s signals) bool { return s.visual && !s.speech && s.visualConf >= recallThreshold }, ModeRecall},
	{"visual_weak", func(s signals) bool { return s.visual && !s.speech }, ModeRerank},
	{"mixed", func(s signals) bool { return s.visual && s.speech }, ModeRerank},
}

// Analyze inspects query text and returns a routing decision. It is total:
// any input, including the empty string, yields a fully populated Analysis.
func Analyze(query string) Analysis {
	lower := strings.ToLower(strings.TrimSpace(query))
	if lower == "" {
		return Analysis{SuggestedMode: ModeSkip}
	}

	tokens := tokenize(lower)

	visualHits, visualCats := matchTables(visualTables, lower, tokens)
	speechHits, speechCats := matchTables(speechTables, lower, tokens)

	if hasQuote(query) {
		speechHits = append(speechHits, patternQuote)
		speechCats["quote_marker"] = true
	}
	if isLongInterrogative(lower, tokens) {
		speechHits = append(speechHits, patternInterrogative)
		speechCats["interrogative"] = true
	}

	a := Analysis{
		HasVisualIntent:    len(visualHits) > 0,
		HasSpeechIntent:    len(speechHits) > 0,
		MatchedVisualTerms: dedupeSorted(visualHits),
		MatchedSpeechTerms: dedupeSorted(speechHits),
	}
	a.Confidence = confidence(
		len(a.MatchedVisualTerms)+len(a.MatchedSpeechTerms),
		len(visualCats)+len(speechCats),
	)

	s := signals{
		visual:     a.HasVisualIntent,
		speech:     a.HasSpeechIntent,
		visualConf: confidence(len(a.MatchedVisualTerms), len(visualCats)),
	}
	a.SuggestedMode = ModeSkip
	for _, r := range modeRules {
		if r.when(s) {
			a.SuggestedMode = r.mode
			break
		}
	}
	return a
}

// confidence maps match count and category diversity to [0,1]. Monotone in
// both: a first match is worth 0.3, each further distinct category 0.2, each
// further match within an already-hit category 0.05.
func confidence(matches, categories int) float64 {
	if matches == 0 || categories == 0 {
		return 0
	}
	c := 0.3 + 0.2*float64(categories-1) + 0.05*float64(matches-categories)
	if c > 1 {
		return 1
	}
	if c < 0 {
		return 0
	}
	return c
}

// matchTables collects matched terms and the set of categories hit.
func matchTables(tables []termTable, lower string, tokens map[string]bool) ([]string, map[string]bool) {
	var hits []string
	cats := make(map[string]bool)
	for _, tbl := range tables {
		for _, term := range tbl.terms {
			if matchTerm(term, lower, tokens) {
				hits = append(hits, term)
				cats[tbl.category] = true
			}
		}
	}
	return hits, cats
}

// matchTerm applies whole-token matching to single English words and
// substring matching to everything else.
func matchTerm(term, lower string, tokens map[string]bool) bool {
	if isASCIIWord(term) {
		return tokens[term]
	}
	return strings.Contains(lower, term)
}

func isASCIIWord(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII || r == ' ' || r == '-' {
			return false
		}
	}
	return true
}

// tokenize splits lowered text into a token set, trimming edge punctuation.
func tokenize(lower string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(lower) {
		tok = strings.Trim(tok, `.,!?;:'"()[]{}“”‘’「」『』`)
		if tok != "" {
			set[tok] = true
		}
	}
	return set
}

// hasQuote detects quotation markers in any supported quoting style.
func hasQuote(query string) bool {
	for _, q := range asciiQuotes {
		if strings.Count(query, string(q)) >= 2 {
			return true
		}
	}
	for _, q := range openingQuotes {
		if strings.ContainsRune(query, q) {
			return true
		}
	}
	return false
}

// isLongInterrogative reports a trailing question mark on a sentence long
// enough to read as "what was said", not as a short lookup.
func isLongInterrogative(lower string, tokens map[string]bool) bool {
	return strings.HasSuffix(lower, "?") && len(tokens) >= longInterrogativeMinTokens
}

func dedupeSorted(terms []string) []string {
	if len(terms) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}
