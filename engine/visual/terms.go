package visual

// TableVersion identifies the revision of the term tables below. Bump it when
// terms are added so downstream caches of routing decisions can be invalidated.
const TableVersion = "2025-08"

// termTable groups indicator terms by category. English single-word terms are
// matched as whole tokens; multi-word terms and Korean terms are matched as
// substrings (Korean particles attach directly to the noun, so whole-token
// matching would miss most real queries).
type termTable struct {
	category string
	terms    []string
}

// visualTables lists terms that indicate the query describes something seen
// on screen.
var visualTables = []termTable{
	{category: "color", terms: []string{
		"red", "blue", "green", "yellow", "black", "white", "orange",
		"purple", "pink", "brown",
		"빨간", "파란", "초록", "노란", "검은", "하얀", "분홍",
	}},
	{category: "action", terms: []string{
		"running", "walking", "dancing", "jumping", "swimming", "riding",
		"cooking", "eating", "playing", "smiling", "surfing",
		"뛰는", "걷는", "달리는", "춤추는", "웃는", "먹는", "요리하는",
	}},
	{category: "camera", terms: []string{
		"close-up", "closeup", "wide shot", "slow motion", "slow-mo",
		"timelapse", "time-lapse", "zoom", "aerial", "drone shot",
		"클로즈업", "슬로우모션", "타임랩스",
	}},
	{category: "object", terms: []string{
		"car", "dog", "cat", "beach", "sunset", "mountain", "flower",
		"bicycle", "guitar",
		"pizza", "coffee", "cake", "noodles",
		"강아지", "고양이", "자동차", "바다", "노을", "김치", "라면", "커피", "케이크",
	}},
}

// speechTables lists terms that indicate the query refers to spoken dialogue.
var speechTables = []termTable{
	{category: "reported_speech", terms: []string{
		"said", "says", "saying", "asked", "told", "mentioned",
		"talked about", "quote",
		"말했", "말하는", "라고", "이라고", "얘기한", "물어본",
	}},
}

// Quotation markers across quoting styles. ASCII quotes must appear at least
// twice (a lone apostrophe is usually a contraction); an opening typographic
// or CJK quote is conclusive on its own.
var (
	asciiQuotes   = []rune{'"', '\''}
	openingQuotes = []rune{'“', '‘', '「', '『'}
)

// Matched-pattern names for the non-table speech patterns.
const (
	patternQuote         = "quote"
	patternInterrogative = "long_interrogative"
)

// longInterrogativeMinTokens is the minimum token count for a trailing "?" to
// count as a spoken-question reference rather than a short lookup.
const longInterrogativeMinTokens = 4
